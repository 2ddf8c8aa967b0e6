package services

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog/log"

	"github.com/satonic/nft-marketplace/internal/apperrors"
	"github.com/satonic/nft-marketplace/internal/config"
	"github.com/satonic/nft-marketplace/internal/models"
)

// ErrUnauthorized is returned for bad credentials or tokens
var ErrUnauthorized = apperrors.New("unauthorized").SetStatusCode(http.StatusUnauthorized)

// Claims represents the JWT claims
type Claims struct {
	Address string `json:"address"`
	jwt.RegisteredClaims
}

// AuthService issues wallet sessions. A session proves control of an address
// by signing a server-issued challenge.
type AuthService struct {
	walletService *WalletService
	cfg           config.AuthConfig
	signer        *SessionSigner

	// mu makes reading and consuming a challenge one step
	mu         sync.Mutex
	challenges *expirable.LRU[string, string]
}

const (
	// challengeTTL bounds how long a challenge can be answered
	challengeTTL = 5 * time.Minute

	defaultChallengeLimit = 10000
)

// NewAuthService creates a new AuthService. At most cfg.ChallengeLimit
// challenges are outstanding; beyond that the oldest is forgotten.
func NewAuthService(walletService *WalletService, cfg config.AuthConfig) *AuthService {
	limit := cfg.ChallengeLimit
	if limit <= 0 {
		limit = defaultChallengeLimit
	}
	return &AuthService{
		walletService: walletService,
		cfg:           cfg,
		challenges:    expirable.NewLRU[string, string](limit, nil, challengeTTL),
	}
}

// AttachSigner lets sessions for the signer's address unlock it
func (s *AuthService) AttachSigner(signer *SessionSigner) {
	s.signer = signer
}

// Challenge issues the message address has to sign. A new challenge replaces
// the previous one for the same address.
func (s *AuthService) Challenge(address string) (*models.ChallengeResponse, error) {
	if !s.walletService.IsAddressValid(address) {
		return nil, apperrors.ErrValidation.Msg(fmt.Sprintf("invalid address %q", address))
	}

	msg := s.walletService.GenerateMessageToSign(address)

	s.mu.Lock()
	if evicted := s.challenges.Add(strings.ToLower(address), msg); evicted {
		log.Debug().Msg("challenge limit reached, oldest challenge dropped")
	}
	s.mu.Unlock()

	return &models.ChallengeResponse{Message: msg}, nil
}

// AuthenticateWithWallet authenticates a wallet by its signature over the
// outstanding challenge. Each challenge can be used once.
func (s *AuthService) AuthenticateWithWallet(req models.WalletAuthRequest) (*models.AuthToken, error) {
	key := strings.ToLower(req.Address)

	s.mu.Lock()
	msg, ok := s.challenges.Get(key)
	if ok {
		s.challenges.Remove(key)
	}
	s.mu.Unlock()

	if !ok || msg != req.Message {
		return nil, ErrUnauthorized.Msg("unknown or expired challenge")
	}

	// Verify the signature
	valid, err := s.walletService.VerifySignature(req.Address, req.Message, req.Signature)
	if err != nil {
		return nil, fmt.Errorf("signature verification failed: %w", err)
	}
	if !valid {
		return nil, ErrUnauthorized.Msg("invalid signature")
	}

	token, expiresAt, err := s.generateToken(req.Address)
	if err != nil {
		return nil, err
	}

	result := &models.AuthToken{
		Token:     token,
		ExpiresAt: expiresAt,
		Address:   req.Address,
	}

	if s.signer != nil && s.walletService.SameAddress(s.signer.Address(), req.Address) {
		if err := s.signer.Connect(token); err != nil {
			return nil, err
		}
		result.SignerAttached = true
		log.Info().Str("address", req.Address).Msg("signer session connected")
	}

	return result, nil
}

// Logout ends the session. If the token unlocked the signer it is locked again.
func (s *AuthService) Logout(token string) {
	if s.signer != nil && s.signer.Disconnect(token) {
		log.Info().Msg("signer session disconnected")
	}
}

// ValidateToken validates a JWT token and returns the session address
func (s *AuthService) ValidateToken(tokenString string) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// Check the signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}

		return []byte(s.cfg.JWTSecret), nil
	})

	if err != nil {
		return "", ErrUnauthorized.Err(err)
	}

	if !token.Valid {
		return "", ErrUnauthorized.Msg("invalid token")
	}

	return claims.Address, nil
}

// generateToken generates a JWT token for an address
func (s *AuthService) generateToken(address string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.JWTExpiration)

	claims := &Claims{
		Address: address,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "nft-marketplace",
			Subject:   address,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	// Sign token with secret key
	tokenString, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", time.Time{}, err
	}

	return tokenString, expiresAt, nil
}
