package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/satonic/nft-marketplace/internal/config"
	"github.com/satonic/nft-marketplace/internal/ledger"
	"github.com/satonic/nft-marketplace/internal/ledger/ledgertest"
	"github.com/satonic/nft-marketplace/internal/models"
	"github.com/satonic/nft-marketplace/internal/services"
	"github.com/satonic/nft-marketplace/internal/store"
)

const (
	signerKey  = "0000000000000000000000000000000000000000000000000000000000000001"
	visitorKey = "0000000000000000000000000000000000000000000000000000000000000002"
	marketAddr = "0xf87c7acfed155f11fae502d5d3c2f2a8bda1c96d89cfd0252bca321fa0cc5402"
)

var testMarket = config.MarketConfig{
	ModuleAddress:      marketAddr,
	ModuleName:         "NFTMarketplace",
	MarketplaceAddress: marketAddr,
	PageSize:           8,
	ListingLimit:       100,
}

// 1: "Blue Dragon" fixed price, 2: live auction, 3: not for sale
const catalogBody = `{"data":{"nfts":[
 {"id":"1","owner":"0xaa","name":"0x426c756520447261676f6e","description":"0x","uri":"0x","price":"100000000","for_sale":true,"rarity":1,"is_auction":false},
 {"id":"2","owner":"0xaa","name":"0x4d6f6f6e","description":"0x","uri":"0x","price":"150000000","for_sale":true,"rarity":2,"is_auction":true,
  "auction_end":{"vec":["4102444800"]},"highest_bid":{"vec":[]},"highest_bidder":{"vec":[]}},
 {"id":"3","owner":"0xaa","name":"0x53756e","description":"0x","uri":"0x","price":"0","for_sale":false,"rarity":4,"is_auction":false}
]}}`

type testServer struct {
	gw      *ledgertest.Gateway
	catalog *store.CatalogStore
	signer  *services.KeySigner
	deps    Dependencies
	router  http.Handler
}

func newTestServer(t *testing.T, withSigner bool) *testServer {
	t.Helper()
	gw := &ledgertest.Gateway{
		ReadFunc: func(_ context.Context, sel ledger.ResourceSelector) ([]byte, error) {
			if sel.Type == services.CoinStoreType {
				return []byte(`{"type":"coin","data":{"coin":{"value":"250000000"}}}`), nil
			}
			return []byte(catalogBody), nil
		},
		SubmitFunc:  ledgertest.Accept("0xfeed"),
		ConfirmFunc: ledgertest.Committed(true, "Executed successfully"),
	}
	catalog := store.NewCatalogStore(gw, ledger.ResourceSelector{Address: marketAddr, Type: testMarket.ResourceType()})
	_, err := catalog.Refresh(context.Background())
	require.NoError(t, err)

	wallets := services.NewWalletService(gw)
	auth := services.NewAuthService(wallets, config.AuthConfig{JWTSecret: "test-secret", JWTExpiration: time.Hour})

	key, err := services.NewKeySigner(signerKey, gw)
	require.NoError(t, err)

	deps := Dependencies{
		NFTs:      services.NewNFTService(catalog, gw, testMarket),
		Wallets:   wallets,
		Auth:      auth,
		Analytics: services.NewAnalyticsService(gw, testMarket),
	}
	if withSigner {
		signer := services.NewSessionSigner(key, auth)
		deps.Transactions = services.NewTransactionService(catalog, signer, gw, testMarket, time.Second)
	}

	return &testServer{gw: gw, catalog: catalog, signer: key, deps: deps, router: NewRouter(deps)}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

// login walks the challenge flow for key and returns the issued token
func (s *testServer) login(t *testing.T, key string) models.AuthToken {
	t.Helper()
	signer, err := services.NewKeySigner(key, s.gw)
	require.NoError(t, err)

	rec := s.do(t, http.MethodPost, "/api/v1/auth/challenge", "", models.ChallengeRequest{Address: signer.Address()})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var ch models.ChallengeResponse
	decode(t, rec, &ch)

	sig, err := signer.Sign([]byte(ch.Message))
	require.NoError(t, err)

	rec = s.do(t, http.MethodPost, "/api/v1/auth/wallet", "", models.WalletAuthRequest{
		Address:   signer.Address(),
		Signature: sig,
		Message:   ch.Message,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var token models.AuthToken
	decode(t, rec, &token)
	return token
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}
