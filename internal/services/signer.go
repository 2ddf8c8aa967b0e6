package services

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/satonic/nft-marketplace/internal/apperrors"
	"github.com/satonic/nft-marketplace/internal/ledger"
	"github.com/satonic/nft-marketplace/internal/models"
)

// ErrNoSession is returned by SessionSigner when no wallet session is active
var ErrNoSession = apperrors.New("no active wallet session").SetStatusCode(http.StatusUnauthorized)

// Signer signs a payload on behalf of an account and submits it
type Signer interface {
	Address() string
	SignAndSubmit(ctx context.Context, payload models.EntryFunctionPayload) (ledger.TxHandle, error)
}

// KeySigner holds a secp256k1 key and signs payloads with BIP-340 Schnorr
type KeySigner struct {
	key     *btcec.PrivateKey
	address string
	gateway ledger.Gateway
}

// NewKeySigner parses a hex private key. The account address is the x-only
// public key.
func NewKeySigner(privateKeyHex string, gateway ledger.Gateway) (*KeySigner, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	if len(raw) != btcec.PrivKeyBytesLen {
		return nil, fmt.Errorf("invalid private key: expected %d bytes, got %d", btcec.PrivKeyBytesLen, len(raw))
	}
	key, pub := btcec.PrivKeyFromBytes(raw)
	return &KeySigner{
		key:     key,
		address: "0x" + hex.EncodeToString(schnorr.SerializePubKey(pub)),
		gateway: gateway,
	}, nil
}

// Address returns the signing account
func (k *KeySigner) Address() string {
	return k.address
}

// Sign returns the hex Schnorr signature over the chainhash digest of message
func (k *KeySigner) Sign(message []byte) (string, error) {
	sig, err := schnorr.Sign(k.key, chainhash.HashB(message))
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(sig.Serialize()), nil
}

// SignAndSubmit signs the canonical JSON encoding of payload and submits it
func (k *KeySigner) SignAndSubmit(ctx context.Context, payload models.EntryFunctionPayload) (ledger.TxHandle, error) {
	canonical, err := json.Marshal(payload)
	if err != nil {
		return ledger.TxHandle{}, fmt.Errorf("failed to encode payload: %w", err)
	}
	sig, err := k.Sign(canonical)
	if err != nil {
		return ledger.TxHandle{}, fmt.Errorf("failed to sign payload: %w", err)
	}

	return k.gateway.Submit(ctx, ledger.SignedTransaction{
		Sender:    k.address,
		Payload:   payload,
		PublicKey: k.address,
		Signature: sig,
	})
}

// SessionSigner gates another Signer behind a wallet session. Without a
// connected, unexpired session every request is rejected with ErrNoSession.
type SessionSigner struct {
	inner    Signer
	validate func(token string) (string, error)

	mu    sync.RWMutex
	token string
}

// NewSessionSigner wraps inner; auth validates session tokens
func NewSessionSigner(inner Signer, auth *AuthService) *SessionSigner {
	s := &SessionSigner{inner: inner, validate: auth.ValidateToken}
	auth.AttachSigner(s)
	return s
}

// Address returns the wrapped signer's account
func (s *SessionSigner) Address() string {
	return s.inner.Address()
}

// Connect attaches a session token for the signer's address
func (s *SessionSigner) Connect(token string) error {
	addr, err := s.validate(token)
	if err != nil {
		return err
	}
	if !strings.EqualFold(addr, s.inner.Address()) {
		return ErrUnauthorized.Msg("session belongs to another address")
	}
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	return nil
}

// Disconnect drops the session if token is the one attached
func (s *SessionSigner) Disconnect(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" || s.token != token {
		return false
	}
	s.token = ""
	return true
}

// Connected reports whether a valid session is attached
func (s *SessionSigner) Connected() bool {
	s.mu.RLock()
	token := s.token
	s.mu.RUnlock()
	if token == "" {
		return false
	}
	_, err := s.validate(token)
	return err == nil
}

// SignAndSubmit forwards to the wrapped signer when a session is active
func (s *SessionSigner) SignAndSubmit(ctx context.Context, payload models.EntryFunctionPayload) (ledger.TxHandle, error) {
	if !s.Connected() {
		return ledger.TxHandle{}, ErrNoSession
	}
	return s.inner.SignAndSubmit(ctx, payload)
}
