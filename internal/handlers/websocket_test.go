package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satonic/nft-marketplace/internal/models"
)

func startHub(t *testing.T, s *testServer) (*Hub, *websocket.Conn) {
	t.Helper()
	hub := NewHub(s.catalog, 2, 20*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	cancelOnChange := s.catalog.OnChange(hub.CatalogChanged)

	s.deps.Hub = hub
	srv := httptest.NewServer(NewRouter(s.deps))

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		conn.Close()
		cancelOnChange()
		cancel()
		srv.Close()
	})
	return hub, conn
}

// next reads messages until one of type msgType arrives
func next(t *testing.T, conn *websocket.Conn, msgType string, v any) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var msg WebSocketMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Type == msgType {
			if v != nil {
				require.NoError(t, json.Unmarshal(msg.Payload, v))
			}
			return
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, msgType string, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(WebSocketMessage{Type: msgType, Payload: raw}))
}

func TestWebSocketWelcomeCarriesFirstPage(t *testing.T) {
	s := newTestServer(t, false)
	_, conn := startHub(t, s)

	var welcome WelcomePayload
	next(t, conn, MsgWelcome, &welcome)
	assert.NotEmpty(t, welcome.ClientID)
	assert.Equal(t, []uint64{1, 2}, pageIDs(welcome.View))
	assert.Equal(t, 3, welcome.View.Total)
}

func TestWebSocketDrivesClientView(t *testing.T) {
	s := newTestServer(t, false)
	_, conn := startHub(t, s)
	next(t, conn, MsgWelcome, nil)

	var page models.Page
	send(t, conn, MsgRarity, 4)
	next(t, conn, MsgView, &page)
	assert.Equal(t, []uint64{3}, pageIDs(page))

	send(t, conn, MsgRarity, 0)
	next(t, conn, MsgView, &page)
	send(t, conn, MsgPage, 2)
	next(t, conn, MsgView, &page)
	assert.Equal(t, []uint64{3}, pageIDs(page))
	assert.Equal(t, 2, page.Page)

	send(t, conn, MsgQuery, "dragon")
	next(t, conn, MsgView, &page)
	assert.Equal(t, []uint64{1}, pageIDs(page))
	assert.Equal(t, 1, page.Page)

	var errPayload map[string]string
	send(t, conn, MsgRarity, 9)
	next(t, conn, MsgError, &errPayload)
	assert.Contains(t, errPayload["message"], "rarity")
}

func TestWebSocketHugePageIsEmpty(t *testing.T) {
	s := newTestServer(t, false)
	_, conn := startHub(t, s)
	next(t, conn, MsgWelcome, nil)

	var page models.Page
	send(t, conn, MsgPage, 1<<62+1)
	next(t, conn, MsgView, &page)
	assert.Empty(t, page.Items)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 1<<62+1, page.Page)

	// the connection keeps serving the client afterwards
	send(t, conn, MsgPage, 1)
	next(t, conn, MsgView, &page)
	assert.Equal(t, []uint64{1, 2}, pageIDs(page))
}

func TestWebSocketReceivesCatalogChanges(t *testing.T) {
	s := newTestServer(t, false)
	_, conn := startHub(t, s)
	next(t, conn, MsgWelcome, nil)

	_, err := s.catalog.Refresh(context.Background())
	require.NoError(t, err)

	var changed CatalogChangedPayload
	next(t, conn, MsgCatalogChanged, &changed)
	assert.Equal(t, uint64(2), changed.Version)
	assert.Equal(t, 3, changed.Count)

	send(t, conn, MsgGetView, nil)
	var page models.Page
	next(t, conn, MsgView, &page)
	assert.Equal(t, uint64(2), page.Version)
}

func TestWebSocketAnalyticsBroadcast(t *testing.T) {
	s := newTestServer(t, false)
	hub, conn := startHub(t, s)
	// the welcome frame is only written once the client is registered
	next(t, conn, MsgWelcome, nil)

	hub.AnalyticsUpdated(models.MarketStats{TotalNFTs: 42})

	var stats models.MarketStats
	next(t, conn, MsgAnalytics, &stats)
	assert.Equal(t, uint64(42), stats.TotalNFTs)
}

func TestWebSocketIgnoresOutOfOrderSnapshots(t *testing.T) {
	s := newTestServer(t, false)
	hub, conn := startHub(t, s)
	next(t, conn, MsgWelcome, nil)

	records := s.catalog.Snapshot().Records
	for _, version := range []uint64{3, 2, 4} {
		hub.CatalogChanged(&models.Snapshot{Version: version, Records: records})
	}

	var versions []uint64
	for len(versions) < 2 {
		var changed CatalogChangedPayload
		next(t, conn, MsgCatalogChanged, &changed)
		versions = append(versions, changed.Version)
	}
	assert.Equal(t, []uint64{3, 4}, versions)

	send(t, conn, MsgGetView, nil)
	var page models.Page
	next(t, conn, MsgView, &page)
	assert.Equal(t, uint64(4), page.Version)
}
