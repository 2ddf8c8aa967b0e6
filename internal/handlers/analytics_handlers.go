package handlers

import (
	"net/http"

	"github.com/satonic/nft-marketplace/internal/models"
	"github.com/satonic/nft-marketplace/internal/services"
)

// AnalyticsResponse carries the last computed stats and whether the latest poll failed
type AnalyticsResponse struct {
	models.MarketStats
	Stale     bool   `json:"stale"`
	LastError string `json:"last_error,omitempty"`
}

// GetAnalytics returns the marketplace aggregates
func GetAnalytics(analyticsService *services.AnalyticsService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := analyticsService.Stats()
		resp := AnalyticsResponse{MarketStats: stats}
		if err != nil {
			resp.Stale = true
			resp.LastError = err.Error()
		}

		writeJSON(w, http.StatusOK, resp)
	}
}
