package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/satonic/nft-marketplace/internal/apperrors"
	"github.com/satonic/nft-marketplace/internal/models"
	"github.com/satonic/nft-marketplace/internal/services"
)

// RefreshResponse reports the snapshot in place after a refresh
type RefreshResponse struct {
	Version uint64 `json:"version"`
	Count   int    `json:"count"`
	Stale   bool   `json:"stale"`
}

// ListNFTs handles one page of the searchable catalog
func ListNFTs(nftService *services.NFTService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filters, page, pageSize, err := parseViewParams(r)
		if err != nil {
			writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, nftService.List(filters, page, pageSize))
	}
}

// GetNFT handles retrieving a single NFT
func GetNFT(nftService *services.NFTService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := nftIDParam(r)
		if err != nil {
			writeError(w, r, err)
			return
		}

		nft, err := nftService.GetByID(id)
		if err != nil {
			writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, nft)
	}
}

// RefreshCatalog reloads the catalog from the ledger
func RefreshCatalog(nftService *services.NFTService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := nftService.Refresh(r.Context())
		stale := errors.Is(err, apperrors.ErrStaleData)
		if err != nil && !stale {
			writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, RefreshResponse{Version: snap.Version, Count: snap.Len(), Stale: stale})
	}
}

// GetOwnedNFTs lists the NFTs an address owns according to the ledger
func GetOwnedNFTs(nftService *services.NFTService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owned, err := nftService.OwnedBy(r.Context(), chi.URLParam(r, "address"))
		if err != nil {
			writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, owned)
	}
}

// GetBalance returns an account's coin balance
func GetBalance(walletService *services.WalletService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		balance, err := walletService.Balance(r.Context(), chi.URLParam(r, "address"))
		if err != nil {
			writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, balance)
	}
}

func nftIDParam(r *http.Request) (uint64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, apperrors.ErrValidation.Msg(fmt.Sprintf("invalid nft id %q", raw))
	}
	return id, nil
}

// parseViewParams reads q, rarity, active, page and page_size
func parseViewParams(r *http.Request) (models.Filters, int, int, error) {
	query := r.URL.Query()
	filters := models.Filters{Query: strings.TrimSpace(query.Get("q"))}

	if raw := query.Get("rarity"); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 8)
		rarity := models.Rarity(n)
		if err != nil || (rarity != models.RarityAll && !rarity.Valid()) {
			return filters, 0, 0, apperrors.ErrValidation.Msg(fmt.Sprintf("invalid rarity %q", raw))
		}
		filters.Rarity = rarity
	}

	if raw := query.Get("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			return filters, 0, 0, apperrors.ErrValidation.Msg(fmt.Sprintf("invalid active flag %q", raw))
		}
		filters.ActiveOnly = active
	}

	page, pageSize := 1, 0
	if raw := query.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err == nil && n > 0 {
			page = n
		}
	}
	if raw := query.Get("page_size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err == nil && n > 0 {
			pageSize = n
		}
	}

	return filters, page, pageSize, nil
}
