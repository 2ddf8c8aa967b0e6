package handlers

import (
	"net/http"
	"strings"

	"github.com/satonic/nft-marketplace/internal/apperrors"
	"github.com/satonic/nft-marketplace/internal/models"
	"github.com/satonic/nft-marketplace/internal/services"
)

var (
	// ErrSignerUnavailable is returned for writes when no signer is configured
	ErrSignerUnavailable = apperrors.New("no signer configured").SetStatusCode(http.StatusServiceUnavailable)

	// ErrForbidden is returned when the session does not own the signer
	ErrForbidden = apperrors.New("session cannot sign for this account").SetStatusCode(http.StatusForbidden)
)

// RequireSigner rejects writes from sessions other than the signer's.
// Must run after AuthMiddleware.
func RequireSigner(txService *services.TransactionService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if txService == nil {
				writeError(w, r, ErrSignerUnavailable)
				return
			}
			address, ok := AddressFromContext(r.Context())
			if !ok {
				writeError(w, r, services.ErrUnauthorized)
				return
			}
			if !strings.EqualFold(address, txService.Signer().Address()) {
				writeError(w, r, ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// MintNFT handles minting a new NFT
func MintNFT(txService *services.TransactionService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.MintRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}

		receipt, err := txService.Mint(r.Context(), req)
		if err != nil {
			writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, receipt)
	}
}

// ListNFT handles listing an owned NFT for sale
func ListNFT(txService *services.TransactionService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := nftIDParam(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		var req models.ListRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		req.NFTID = id

		receipt, err := txService.ListForSale(r.Context(), req)
		if err != nil {
			writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, receipt)
	}
}

// PurchaseNFT handles buying a listed NFT
func PurchaseNFT(txService *services.TransactionService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := nftIDParam(r)
		if err != nil {
			writeError(w, r, err)
			return
		}

		receipt, err := txService.Purchase(r.Context(), models.PurchaseRequest{NFTID: id})
		if err != nil {
			writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, receipt)
	}
}

// PlaceBid handles a bid on an auctioned NFT
func PlaceBid(txService *services.TransactionService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := nftIDParam(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		var req models.BidRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		req.NFTID = id

		receipt, err := txService.PlaceBid(r.Context(), req)
		if err != nil {
			writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, receipt)
	}
}

// TransferNFT handles moving an NFT to another account
func TransferNFT(txService *services.TransactionService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := nftIDParam(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		var req models.TransferRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		req.NFTID = id

		receipt, err := txService.Transfer(r.Context(), req)
		if err != nil {
			writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, receipt)
	}
}
