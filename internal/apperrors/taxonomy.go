package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrDecode marks a malformed byte-encoded ledger field. Recoverable: callers fall back to raw text.
	ErrDecode = New("malformed encoded field").SetStatusCode(http.StatusUnprocessableEntity)

	// ErrNetwork marks an unreachable ledger or a failed ledger round trip.
	ErrNetwork = New("ledger unreachable").SetStatusCode(http.StatusBadGateway)

	// ErrConfirmationTimeout is the NetworkError raised when a confirmation wait exceeds its bound.
	ErrConfirmationTimeout = ErrNetwork.New("timed out waiting for transaction confirmation").SetStatusCode(http.StatusGatewayTimeout)

	// ErrValidation marks a bad user-supplied argument caught before submission.
	ErrValidation = New("invalid argument").SetStatusCode(http.StatusBadRequest)

	// ErrTransaction is matched by every *TransactionError.
	ErrTransaction = New("transaction aborted").SetStatusCode(http.StatusConflict)

	// ErrStaleData reports that a refresh was superseded by a newer one. Informational only.
	ErrStaleData = New("refresh superseded by a newer refresh").SetStatusCode(http.StatusOK)

	// ErrNotFound reports a missing ledger resource or catalog record.
	ErrNotFound = New("not found").SetStatusCode(http.StatusNotFound)
)

// ErrorKind classifies a ledger abort.
type ErrorKind string

const (
	KindNotAuthorized        ErrorKind = "NotAuthorized"
	KindAlreadyListed        ErrorKind = "AlreadyListed"
	KindInsufficientBalance  ErrorKind = "InsufficientBalance"
	KindInvalidRecipient     ErrorKind = "InvalidRecipient"
	KindListedCannotTransfer ErrorKind = "ListedCannotTransfer"
	KindUnknown              ErrorKind = "Unknown"
)

// TransactionError is a ledger-reported abort mapped to a stable kind.
type TransactionError struct {
	Kind     ErrorKind
	VMStatus string
}

func (e *TransactionError) Error() string {
	if e.VMStatus == "" {
		return fmt.Sprintf("transaction aborted: %s", e.Kind)
	}
	return fmt.Sprintf("transaction aborted: %s (%s)", e.Kind, e.VMStatus)
}

// Is lets errors.Is(err, ErrTransaction) match any TransactionError.
func (e *TransactionError) Is(target error) bool {
	return target == ErrTransaction
}

// KindOf extracts the abort kind from err, or "" when err is not a TransactionError.
func KindOf(err error) ErrorKind {
	var te *TransactionError
	if errors.As(err, &te) {
		return te.Kind
	}
	return ""
}
