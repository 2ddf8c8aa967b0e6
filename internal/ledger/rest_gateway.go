package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"

	"github.com/satonic/nft-marketplace/internal/apperrors"
)

// RESTGateway talks to a fullnode's REST API.
type RESTGateway struct {
	baseURL      string
	httpClient   *http.Client
	pollInterval time.Duration
}

// Verify that RESTGateway implements Gateway.
var _ Gateway = &RESTGateway{}

// NewRESTGateway creates a gateway for the node at baseURL (e.g.
// https://fullnode.testnet.aptoslabs.com/v1). requestTimeout bounds each
// round trip; pollInterval paces confirmation polling.
func NewRESTGateway(baseURL string, requestTimeout, pollInterval time.Duration) *RESTGateway {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &RESTGateway{
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   &http.Client{Timeout: requestTimeout},
		pollInterval: pollInterval,
	}
}

// Read fetches GET /accounts/{address}/resource/{type}.
func (g *RESTGateway) Read(ctx context.Context, sel ResourceSelector) ([]byte, error) {
	path := fmt.Sprintf("/accounts/%s/resource/%s", url.PathEscape(sel.Address), url.PathEscape(sel.Type))
	status, body, err := g.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	switch {
	case status == http.StatusNotFound:
		return nil, apperrors.ErrNotFound.Msg(fmt.Sprintf("resource %s not found at %s", sel.Type, sel.Address))
	case status >= 400:
		return nil, apperrors.ErrNetwork.Msg(fmt.Sprintf("read %s: %s", sel.Type, nodeMessage(status, body)))
	}
	return body, nil
}

// View calls POST /view.
func (g *RESTGateway) View(ctx context.Context, function string, args []any) ([]gjson.Result, error) {
	if args == nil {
		args = []any{}
	}
	payload, err := json.Marshal(map[string]any{
		"function":       function,
		"type_arguments": []string{},
		"arguments":      args,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode view request: %w", err)
	}

	status, body, err := g.do(ctx, http.MethodPost, "/view", payload)
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		return nil, apperrors.ErrNetwork.Msg(fmt.Sprintf("view %s: %s", function, nodeMessage(status, body)))
	}

	result := gjson.ParseBytes(body)
	if !result.IsArray() {
		return nil, apperrors.ErrDecode.Msg(fmt.Sprintf("view %s returned a non-array result", function))
	}
	return result.Array(), nil
}

// Submit calls POST /transactions. A 4xx answer is a rejection of the
// transaction itself and is reported as *RejectedError.
func (g *RESTGateway) Submit(ctx context.Context, tx SignedTransaction) (TxHandle, error) {
	payload, err := json.Marshal(tx)
	if err != nil {
		return TxHandle{}, fmt.Errorf("failed to encode transaction: %w", err)
	}

	status, body, err := g.do(ctx, http.MethodPost, "/transactions", payload)
	if err != nil {
		return TxHandle{}, err
	}
	switch {
	case status >= 500:
		return TxHandle{}, apperrors.ErrNetwork.Msg(fmt.Sprintf("submit: %s", nodeMessage(status, body)))
	case status >= 400:
		return TxHandle{}, &RejectedError{StatusCode: status, Message: nodeMessage(status, body)}
	}

	hash := gjson.GetBytes(body, "hash").String()
	if hash == "" {
		return TxHandle{}, apperrors.ErrDecode.Msg("submit response carries no transaction hash")
	}
	return TxHandle{Hash: hash}, nil
}

// AwaitConfirmation polls GET /transactions/by_hash/{hash} until the
// transaction leaves the pending state.
func (g *RESTGateway) AwaitConfirmation(ctx context.Context, h TxHandle, timeout time.Duration) (Confirmation, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(g.pollInterval)
	defer ticker.Stop()

	path := "/transactions/by_hash/" + url.PathEscape(h.Hash)
	for {
		status, body, err := g.do(ctx, http.MethodGet, path, nil)
		switch {
		case err != nil && ctx.Err() != nil:
			// fall through to the deadline check below
		case err != nil:
			log.Debug().Err(err).Str("hash", h.Hash).Msg("confirmation poll failed, retrying")
		case status == http.StatusNotFound:
			// not yet visible to this node
		case status >= 400:
			return Confirmation{}, apperrors.ErrNetwork.Msg(fmt.Sprintf("confirm %s: %s", h.Hash, nodeMessage(status, body)))
		default:
			doc := gjson.ParseBytes(body)
			if doc.Get("type").String() != "pending_transaction" {
				return Confirmation{
					Hash:     h.Hash,
					Success:  doc.Get("success").Bool(),
					VMStatus: doc.Get("vm_status").String(),
					Version:  doc.Get("version").Uint(),
				}, nil
			}
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return Confirmation{}, apperrors.ErrConfirmationTimeout.Msg(fmt.Sprintf("transaction %s not confirmed within %s", h.Hash, timeout))
			}
			return Confirmation{}, apperrors.ErrNetwork.MsgErr("confirmation wait cancelled", ctx.Err())
		case <-ticker.C:
		}
	}
}

func (g *RESTGateway) do(ctx context.Context, method, path string, body []byte) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return 0, nil, apperrors.ErrNetwork.MsgErr(fmt.Sprintf("%s %s failed", method, path), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, apperrors.ErrNetwork.MsgErr("failed to read response body", err)
	}
	return resp.StatusCode, data, nil
}

// nodeMessage extracts the node's error message, falling back to the raw body.
func nodeMessage(status int, body []byte) string {
	if msg := gjson.GetBytes(body, "message").String(); msg != "" {
		return msg
	}
	if len(body) > 0 {
		return fmt.Sprintf("status %d: %s", status, strings.TrimSpace(string(body)))
	}
	return fmt.Sprintf("status %d", status)
}
