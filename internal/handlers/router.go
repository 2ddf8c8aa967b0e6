package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/satonic/nft-marketplace/internal/services"
)

// Dependencies are the services the HTTP surface is built on.
// Transactions is nil when no signer is configured.
type Dependencies struct {
	NFTs         *services.NFTService
	Wallets      *services.WalletService
	Auth         *services.AuthService
	Transactions *services.TransactionService
	Analytics    *services.AnalyticsService
	Hub          *Hub
}

// NewRouter mounts every route of the marketplace API
func NewRouter(deps Dependencies) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", Health(deps))

		r.Route("/auth", func(r chi.Router) {
			r.Post("/challenge", RequestChallenge(deps.Auth))
			r.Post("/wallet", WalletLogin(deps.Auth))
			r.With(AuthMiddleware(deps.Auth)).Post("/logout", Logout(deps.Auth))
		})

		r.Route("/nfts", func(r chi.Router) {
			r.Get("/", ListNFTs(deps.NFTs))
			r.Get("/{id}", GetNFT(deps.NFTs))

			r.Group(func(r chi.Router) {
				r.Use(AuthMiddleware(deps.Auth))
				r.Use(RequireSigner(deps.Transactions))
				r.Post("/", MintNFT(deps.Transactions))
				r.Post("/{id}/list", ListNFT(deps.Transactions))
				r.Post("/{id}/purchase", PurchaseNFT(deps.Transactions))
				r.Post("/{id}/bid", PlaceBid(deps.Transactions))
				r.Post("/{id}/transfer", TransferNFT(deps.Transactions))
			})
		})

		r.Post("/catalog/refresh", RefreshCatalog(deps.NFTs))
		r.Get("/owners/{address}/nfts", GetOwnedNFTs(deps.NFTs))
		r.Get("/wallets/{address}/balance", GetBalance(deps.Wallets))
		r.Get("/analytics", GetAnalytics(deps.Analytics))
	})

	if deps.Hub != nil {
		r.Get("/ws", ServeWs(deps.Hub))
	}

	return r
}

// HealthResponse describes the state of the catalog and signer
type HealthResponse struct {
	Status         string `json:"status"`
	CatalogVersion uint64 `json:"catalog_version"`
	Records        int    `json:"records"`
	Signer         string `json:"signer,omitempty"`
}

// Health reports liveness together with the catalog version in use
func Health(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{Status: "ok"}
		if deps.NFTs != nil {
			snap := deps.NFTs.Snapshot()
			resp.CatalogVersion = snap.Version
			resp.Records = snap.Len()
		}
		if deps.Transactions != nil {
			resp.Signer = deps.Transactions.Signer().Address()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// requestLogger attaches a request scoped zerolog logger and logs completion
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := log.With().Str("request_id", middleware.GetReqID(r.Context())).Logger().WithContext(r.Context())
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			log.Ctx(ctx).Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Msg("request completed")
		}()

		next.ServeHTTP(ww, r.WithContext(ctx))
	})
}
