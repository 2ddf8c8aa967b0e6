package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satonic/nft-marketplace/internal/config"
	"github.com/satonic/nft-marketplace/internal/ledger/ledgertest"
	"github.com/satonic/nft-marketplace/internal/models"
)

func newAuth(expiration time.Duration) *AuthService {
	return NewAuthService(NewWalletService(&ledgertest.Gateway{}), config.AuthConfig{JWTSecret: "test-secret", JWTExpiration: expiration})
}

func login(t *testing.T, auth *AuthService, signer *KeySigner) (*models.AuthToken, error) {
	t.Helper()
	ch, err := auth.Challenge(signer.Address())
	require.NoError(t, err)
	sig, err := signer.Sign([]byte(ch.Message))
	require.NoError(t, err)
	return auth.AuthenticateWithWallet(models.WalletAuthRequest{Address: signer.Address(), Signature: sig, Message: ch.Message})
}

func TestWalletLogin(t *testing.T) {
	auth := newAuth(time.Hour)
	signer := mustSigner(t, testKey)

	token, err := login(t, auth, signer)
	require.NoError(t, err)
	assert.Equal(t, signer.Address(), token.Address)
	assert.False(t, token.SignerAttached)

	addr, err := auth.ValidateToken(token.Token)
	require.NoError(t, err)
	assert.Equal(t, signer.Address(), addr)
}

func TestWalletLoginRejectsBadSignatures(t *testing.T) {
	auth := newAuth(time.Hour)
	signer := mustSigner(t, testKey)
	other := mustSigner(t, otherKey)

	ch, err := auth.Challenge(signer.Address())
	require.NoError(t, err)
	forged, err := other.Sign([]byte(ch.Message))
	require.NoError(t, err)

	_, err = auth.AuthenticateWithWallet(models.WalletAuthRequest{Address: signer.Address(), Signature: forged, Message: ch.Message})
	assert.ErrorIs(t, err, ErrUnauthorized)

	// the challenge was consumed by the failed attempt
	good, err := signer.Sign([]byte(ch.Message))
	require.NoError(t, err)
	_, err = auth.AuthenticateWithWallet(models.WalletAuthRequest{Address: signer.Address(), Signature: good, Message: ch.Message})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestChallengesAreBounded(t *testing.T) {
	auth := NewAuthService(NewWalletService(&ledgertest.Gateway{}), config.AuthConfig{JWTSecret: "test-secret", JWTExpiration: time.Hour, ChallengeLimit: 3})
	signer := mustSigner(t, testKey)

	ch, err := auth.Challenge(signer.Address())
	require.NoError(t, err)
	for i := 1; i <= 3; i++ {
		_, err := auth.Challenge(fmt.Sprintf("0x%064x", i))
		require.NoError(t, err)
	}
	assert.Equal(t, 3, auth.challenges.Len())

	// the oldest challenge was dropped to make room
	sig, err := signer.Sign([]byte(ch.Message))
	require.NoError(t, err)
	_, err = auth.AuthenticateWithWallet(models.WalletAuthRequest{Address: signer.Address(), Signature: sig, Message: ch.Message})
	assert.ErrorIs(t, err, ErrUnauthorized)

	// a fresh challenge still works
	_, err = login(t, auth, signer)
	require.NoError(t, err)
}

func TestChallengeLimitDefaults(t *testing.T) {
	auth := newAuth(time.Hour)
	for i := 0; i < 50; i++ {
		_, err := auth.Challenge(fmt.Sprintf("0x%064x", i))
		require.NoError(t, err)
	}
	assert.Equal(t, 50, auth.challenges.Len())
}

func TestValidateTokenRejectsExpiredAndForeign(t *testing.T) {
	expired := newAuth(-time.Minute)
	token, err := login(t, expired, mustSigner(t, testKey))
	require.NoError(t, err)

	_, err = expired.ValidateToken(token.Token)
	assert.ErrorIs(t, err, ErrUnauthorized)

	other := NewAuthService(NewWalletService(&ledgertest.Gateway{}), config.AuthConfig{JWTSecret: "another", JWTExpiration: time.Hour})
	fresh, err := login(t, newAuth(time.Hour), mustSigner(t, testKey))
	require.NoError(t, err)
	_, err = other.ValidateToken(fresh.Token)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestSessionSigner(t *testing.T) {
	gw := &ledgertest.Gateway{SubmitFunc: ledgertest.Accept("0x1")}
	key, err := NewKeySigner(testKey, gw)
	require.NoError(t, err)
	auth := newAuth(time.Hour)
	session := NewSessionSigner(key, auth)
	ctx := context.Background()

	_, err = session.SignAndSubmit(ctx, models.EntryFunctionPayload{Function: "f"})
	assert.ErrorIs(t, err, ErrNoSession)
	assert.Zero(t, gw.Submits.Load())

	// a session for another address does not unlock the signer
	otherToken, err := login(t, auth, mustSigner(t, otherKey))
	require.NoError(t, err)
	assert.False(t, otherToken.SignerAttached)
	assert.False(t, session.Connected())

	token, err := login(t, auth, key)
	require.NoError(t, err)
	assert.True(t, token.SignerAttached)
	assert.True(t, session.Connected())

	h, err := session.SignAndSubmit(ctx, models.EntryFunctionPayload{Function: "f"})
	require.NoError(t, err)
	assert.Equal(t, "0x1", h.Hash)

	auth.Logout(otherToken.Token)
	assert.True(t, session.Connected())
	auth.Logout(token.Token)
	assert.False(t, session.Connected())

	_, err = session.SignAndSubmit(ctx, models.EntryFunctionPayload{Function: "f"})
	assert.ErrorIs(t, err, ErrNoSession)
}
