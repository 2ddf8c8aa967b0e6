package services

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/satonic/nft-marketplace/internal/config"
	"github.com/satonic/nft-marketplace/internal/ledger"
	"github.com/satonic/nft-marketplace/internal/ledger/ledgertest"
	"github.com/satonic/nft-marketplace/internal/store"
)

const (
	testKey    = "0000000000000000000000000000000000000000000000000000000000000001"
	otherKey   = "0000000000000000000000000000000000000000000000000000000000000002"
	marketAddr = "0xf87c7acfed155f11fae502d5d3c2f2a8bda1c96d89cfd0252bca321fa0cc5402"
)

var testMarket = config.MarketConfig{
	ModuleAddress:      marketAddr,
	ModuleName:         "NFTMarketplace",
	MarketplaceAddress: marketAddr,
	PageSize:           8,
	ListingLimit:       100,
}

// 1: fixed-price listing, 2: live auction with a bid of 2, 3: ended auction
var testCatalog = `{"data":{"nfts":[
 {"id":"1","owner":"0xaa","name":"0x426c756520447261676f6e","description":"0x","uri":"0x","price":"100000000","for_sale":true,"rarity":1,"is_auction":false},
 {"id":"2","owner":"0xaa","name":"0x6869","description":"0x","uri":"0x","price":"100000000","for_sale":true,"rarity":2,"is_auction":true,
  "auction_end":{"vec":["4102444800"]},"highest_bid":{"vec":["200000000"]},"highest_bidder":{"vec":["0xbb"]}},
 {"id":"3","owner":"0xaa","name":"0x6869","description":"0x","uri":"0x","price":"100000000","for_sale":true,"rarity":3,"is_auction":true,
  "auction_end":{"vec":["1000"]}},
 {"id":"4","owner":"0xaa","name":"0x6869","description":"0x","uri":"0x","price":"100000000","for_sale":false,"rarity":4,"is_auction":false}
]}}`

type fixture struct {
	gw      *ledgertest.Gateway
	catalog *store.CatalogStore
	signer  *KeySigner
	txs     *TransactionService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gw := &ledgertest.Gateway{
		ReadFunc:    ledgertest.StaticRead(testCatalog),
		SubmitFunc:  ledgertest.Accept("0xfeed"),
		ConfirmFunc: ledgertest.Committed(true, "Executed successfully"),
	}
	catalog := store.NewCatalogStore(gw, ledger.ResourceSelector{Address: marketAddr, Type: testMarket.ResourceType()})
	_, err := catalog.Refresh(context.Background())
	require.NoError(t, err)

	signer, err := NewKeySigner(testKey, gw)
	require.NoError(t, err)

	return &fixture{
		gw:      gw,
		catalog: catalog,
		signer:  signer,
		txs:     NewTransactionService(catalog, signer, gw, testMarket, time.Second),
	}
}

func mustSigner(t *testing.T, key string) *KeySigner {
	t.Helper()
	s, err := NewKeySigner(key, &ledgertest.Gateway{})
	require.NoError(t, err)
	return s
}

func abortStatus(code string) string {
	return fmt.Sprintf("Move abort in %s::NFTMarketplace: %s(0x1000%d)", marketAddr, code, len(code)%10)
}

func upperHex(addr string) string {
	return "0x" + strings.ToUpper(addr[2:])
}
