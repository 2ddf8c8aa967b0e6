// Package ledgertest provides a scriptable in-memory ledger.Gateway for tests.
package ledgertest

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/tidwall/gjson"

	"github.com/satonic/nft-marketplace/internal/apperrors"
	"github.com/satonic/nft-marketplace/internal/ledger"
)

// Gateway dispatches to the configured funcs and counts calls. A nil func
// answers with apperrors.ErrNetwork.
type Gateway struct {
	ReadFunc    func(ctx context.Context, sel ledger.ResourceSelector) ([]byte, error)
	ViewFunc    func(ctx context.Context, function string, args []any) ([]gjson.Result, error)
	SubmitFunc  func(ctx context.Context, tx ledger.SignedTransaction) (ledger.TxHandle, error)
	ConfirmFunc func(ctx context.Context, h ledger.TxHandle, timeout time.Duration) (ledger.Confirmation, error)

	Reads    atomic.Int64
	Views    atomic.Int64
	Submits  atomic.Int64
	Confirms atomic.Int64
}

var _ ledger.Gateway = &Gateway{}

func (g *Gateway) Read(ctx context.Context, sel ledger.ResourceSelector) ([]byte, error) {
	g.Reads.Add(1)
	if g.ReadFunc == nil {
		return nil, apperrors.ErrNetwork
	}
	return g.ReadFunc(ctx, sel)
}

func (g *Gateway) View(ctx context.Context, function string, args []any) ([]gjson.Result, error) {
	g.Views.Add(1)
	if g.ViewFunc == nil {
		return nil, apperrors.ErrNetwork
	}
	return g.ViewFunc(ctx, function, args)
}

func (g *Gateway) Submit(ctx context.Context, tx ledger.SignedTransaction) (ledger.TxHandle, error) {
	g.Submits.Add(1)
	if g.SubmitFunc == nil {
		return ledger.TxHandle{}, apperrors.ErrNetwork
	}
	return g.SubmitFunc(ctx, tx)
}

func (g *Gateway) AwaitConfirmation(ctx context.Context, h ledger.TxHandle, timeout time.Duration) (ledger.Confirmation, error) {
	g.Confirms.Add(1)
	if g.ConfirmFunc == nil {
		return ledger.Confirmation{}, apperrors.ErrNetwork
	}
	return g.ConfirmFunc(ctx, h, timeout)
}

// StaticRead returns a ReadFunc that always answers body.
func StaticRead(body string) func(context.Context, ledger.ResourceSelector) ([]byte, error) {
	return func(context.Context, ledger.ResourceSelector) ([]byte, error) {
		return []byte(body), nil
	}
}

// Values parses a JSON array into view results.
func Values(jsonArray string) []gjson.Result {
	return gjson.Parse(jsonArray).Array()
}

// Accept is a SubmitFunc that hands back a fixed hash.
func Accept(hash string) func(context.Context, ledger.SignedTransaction) (ledger.TxHandle, error) {
	return func(context.Context, ledger.SignedTransaction) (ledger.TxHandle, error) {
		return ledger.TxHandle{Hash: hash}, nil
	}
}

// Committed is a ConfirmFunc reporting the given outcome.
func Committed(success bool, vmStatus string) func(context.Context, ledger.TxHandle, time.Duration) (ledger.Confirmation, error) {
	return func(_ context.Context, h ledger.TxHandle, _ time.Duration) (ledger.Confirmation, error) {
		return ledger.Confirmation{Hash: h.Hash, Success: success, VMStatus: vmStatus, Version: 1}, nil
	}
}
