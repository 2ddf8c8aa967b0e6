package handlers

import (
	"net/http"
	"strings"

	"github.com/satonic/nft-marketplace/internal/models"
	"github.com/satonic/nft-marketplace/internal/services"
)

// RequestChallenge issues the message a wallet must sign to log in
func RequestChallenge(authService *services.AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.ChallengeRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		if err := services.Validate(req); err != nil {
			writeError(w, r, err)
			return
		}

		challenge, err := authService.Challenge(strings.TrimSpace(req.Address))
		if err != nil {
			writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, challenge)
	}
}

// WalletLogin handles wallet authentication
func WalletLogin(authService *services.AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.WalletAuthRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		if err := services.Validate(req); err != nil {
			writeError(w, r, err)
			return
		}

		// Authenticate with wallet
		token, err := authService.AuthenticateWithWallet(req)
		if err != nil {
			writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, token)
	}
}

// Logout ends the caller's session
func Logout(authService *services.AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, _ := TokenFromContext(r.Context())
		authService.Logout(token)
		w.WriteHeader(http.StatusNoContent)
	}
}

// AuthMiddleware is a middleware for authenticating requests
func AuthMiddleware(authService *services.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Get token from Authorization header
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, r, services.ErrUnauthorized.Msg("authorization header required"))
				return
			}

			// Extract token from "Bearer <token>"
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				writeError(w, r, services.ErrUnauthorized.Msg("invalid authorization header format"))
				return
			}

			token := parts[1]

			address, err := authService.ValidateToken(token)
			if err != nil {
				writeError(w, r, err)
				return
			}

			ctx := NewContextWithSession(r.Context(), address, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
