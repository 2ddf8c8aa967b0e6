package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satonic/nft-marketplace/internal/apperrors"
	"github.com/satonic/nft-marketplace/internal/ledger"
	"github.com/satonic/nft-marketplace/internal/models"
)

func TestWritesRequireSession(t *testing.T) {
	s := newTestServer(t, true)

	rec := s.do(t, http.MethodPost, "/api/v1/nfts/1/purchase", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/nfts/1/purchase", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, s.gw.Submits.Load())
}

func TestLoginAttachesSignerAndPurchase(t *testing.T) {
	s := newTestServer(t, true)

	token := s.login(t, signerKey)
	assert.True(t, token.SignerAttached)

	rec := s.do(t, http.MethodPost, "/api/v1/nfts/1/purchase", token.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var receipt models.TxReceipt
	decode(t, rec, &receipt)
	assert.Equal(t, "0xfeed", receipt.Hash)
	assert.Equal(t, models.TxPurchase, receipt.Kind)
	assert.Equal(t, uint64(2), receipt.CatalogVersion)
	require.NotNil(t, receipt.NFTID)
	assert.Equal(t, uint64(1), *receipt.NFTID)
}

func TestLogoutLocksSigner(t *testing.T) {
	s := newTestServer(t, true)
	token := s.login(t, signerKey)

	rec := s.do(t, http.MethodPost, "/api/v1/auth/logout", token.Token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	// the token is still a valid JWT but no longer unlocks the signer
	rec = s.do(t, http.MethodPost, "/api/v1/nfts/1/purchase", token.Token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	var resp ErrorResponse
	decode(t, rec, &resp)
	assert.Equal(t, apperrors.KindNotAuthorized, resp.Kind)
	assert.Zero(t, s.gw.Submits.Load())
}

func TestAbortReportedWithKind(t *testing.T) {
	s := newTestServer(t, true)
	s.gw.ConfirmFunc = func(_ context.Context, h ledger.TxHandle, _ time.Duration) (ledger.Confirmation, error) {
		return ledger.Confirmation{Hash: h.Hash, VMStatus: "Move abort: E_NFT_LISTED(0x10006)"}, nil
	}
	token := s.login(t, signerKey)

	rec := s.do(t, http.MethodPost, "/api/v1/nfts/1/transfer", token.Token,
		models.TransferRequest{Recipient: "0x" + visitorKey})
	require.Equal(t, http.StatusConflict, rec.Code)

	var resp ErrorResponse
	decode(t, rec, &resp)
	assert.Equal(t, apperrors.KindListedCannotTransfer, resp.Kind)
	assert.Equal(t, "Cannot transfer NFT while it's listed for sale", resp.Error)
}

func TestBidValidation(t *testing.T) {
	s := newTestServer(t, true)
	token := s.login(t, signerKey)

	rec := s.do(t, http.MethodPost, "/api/v1/nfts/2/bid", token.Token, models.BidRequest{Amount: "1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.do(t, http.MethodPost, "/api/v1/nfts/2/bid", token.Token, models.BidRequest{Amount: "abc"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, s.gw.Submits.Load())

	rec = s.do(t, http.MethodPost, "/api/v1/nfts/2/bid", token.Token, models.BidRequest{Amount: "2"})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, int64(1), s.gw.Submits.Load())
}

func TestMintAndList(t *testing.T) {
	s := newTestServer(t, true)
	token := s.login(t, signerKey)

	rec := s.do(t, http.MethodPost, "/api/v1/nfts", token.Token, models.MintRequest{
		Name: "Comet", Description: "A comet", URI: "https://example.com/comet.png", Rarity: models.RarityRare,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/v1/nfts", token.Token, models.MintRequest{Name: "Comet", Description: "x", URI: "https://example.com", Rarity: 9})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/nfts/3/list", token.Token, models.ListRequest{Price: "0.5"})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestUnknownFieldsRejected(t *testing.T) {
	s := newTestServer(t, true)
	token := s.login(t, signerKey)

	rec := s.do(t, http.MethodPost, "/api/v1/nfts/3/list", token.Token, map[string]string{"price": "1", "currency": "btc"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOtherSessionsCannotSign(t *testing.T) {
	s := newTestServer(t, true)
	token := s.login(t, visitorKey)
	assert.False(t, token.SignerAttached)

	rec := s.do(t, http.MethodPost, "/api/v1/nfts/1/purchase", token.Token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Zero(t, s.gw.Submits.Load())
}

func TestWritesWithoutSigner(t *testing.T) {
	s := newTestServer(t, false)
	token := s.login(t, signerKey)
	assert.False(t, token.SignerAttached)

	rec := s.do(t, http.MethodPost, "/api/v1/nfts/1/purchase", token.Token, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
