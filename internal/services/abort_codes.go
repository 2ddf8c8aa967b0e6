package services

import (
	"errors"
	"strings"

	"github.com/satonic/nft-marketplace/internal/apperrors"
	"github.com/satonic/nft-marketplace/internal/ledger"
)

// abortRules are matched in order against the ledger's VM status text
var abortRules = []struct {
	code string
	kind apperrors.ErrorKind
}{
	{"E_NOT_AUTHORIZED", apperrors.KindNotAuthorized},
	{"E_NFT_ALREADY_LISTED", apperrors.KindAlreadyListed},
	{"E_NFT_LISTED", apperrors.KindListedCannotTransfer},
	{"INSUFFICIENT_BALANCE", apperrors.KindInsufficientBalance},
	{"E_INVALID_RECIPIENT", apperrors.KindInvalidRecipient},
}

var kindMessages = map[apperrors.ErrorKind]string{
	apperrors.KindNotAuthorized:        "You are not authorized to perform this action on this NFT",
	apperrors.KindAlreadyListed:        "NFT is already listed",
	apperrors.KindListedCannotTransfer: "Cannot transfer NFT while it's listed for sale",
	apperrors.KindInsufficientBalance:  "Insufficient balance to pay for transaction fees",
	apperrors.KindInvalidRecipient:     "Invalid recipient address",
	apperrors.KindUnknown:              "Transaction failed",
}

// ClassifyAbort maps a VM status to an ErrorKind
func ClassifyAbort(vmStatus string) apperrors.ErrorKind {
	for _, rule := range abortRules {
		if strings.Contains(vmStatus, rule.code) {
			return rule.kind
		}
	}
	return apperrors.KindUnknown
}

// KindMessage is the user-facing text for an abort kind
func KindMessage(kind apperrors.ErrorKind) string {
	if msg, ok := kindMessages[kind]; ok {
		return msg
	}
	return kindMessages[apperrors.KindUnknown]
}

// abortError builds the TransactionError for a VM status
func abortError(vmStatus string) *apperrors.TransactionError {
	return &apperrors.TransactionError{Kind: ClassifyAbort(vmStatus), VMStatus: vmStatus}
}

// mapSubmitError translates a signer or gateway failure. Network errors pass
// through unchanged; a missing session is NotAuthorized; anything else the
// node refused is classified by its message.
func mapSubmitError(err error) error {
	switch {
	case errors.Is(err, ErrNoSession):
		return &apperrors.TransactionError{Kind: apperrors.KindNotAuthorized, VMStatus: err.Error()}
	case errors.Is(err, apperrors.ErrNetwork):
		return err
	}
	var rejected *ledger.RejectedError
	if errors.As(err, &rejected) {
		return abortError(rejected.Message)
	}
	return abortError(err.Error())
}
