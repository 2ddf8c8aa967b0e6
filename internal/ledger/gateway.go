// Package ledger is the boundary to the distributed ledger node. Everything
// above it speaks in resource selectors, view calls and signed entry-function
// payloads; the node's REST dialect stays behind the Gateway interface.
package ledger

import (
	"context"
	"time"

	"github.com/tidwall/gjson"

	"github.com/satonic/nft-marketplace/internal/models"
)

// ResourceSelector names a typed resource stored under an account.
type ResourceSelector struct {
	Address string
	Type    string
}

// SignedTransaction is an entry-function payload together with the sender's
// signature over its canonical encoding.
type SignedTransaction struct {
	Sender    string                      `json:"sender"`
	Payload   models.EntryFunctionPayload `json:"payload"`
	PublicKey string                      `json:"public_key"`
	Signature string                      `json:"signature"`
}

// TxHandle identifies a submitted transaction.
type TxHandle struct {
	Hash string `json:"hash"`
}

// Confirmation is the committed outcome of a transaction. Success is false
// when the ledger aborted it; VMStatus then carries the abort text.
type Confirmation struct {
	Hash     string
	Success  bool
	VMStatus string
	Version  uint64
}

// Gateway is the ledger access boundary used by the catalog store and the
// transaction services.
type Gateway interface {
	// Read fetches the raw JSON of a resource. A missing resource yields
	// apperrors.ErrNotFound, transport failures apperrors.ErrNetwork.
	Read(ctx context.Context, sel ResourceSelector) ([]byte, error)

	// View calls a read-only function and returns its positional results.
	View(ctx context.Context, function string, args []any) ([]gjson.Result, error)

	// Submit hands a signed transaction to the node.
	Submit(ctx context.Context, tx SignedTransaction) (TxHandle, error)

	// AwaitConfirmation blocks until the transaction is committed or timeout
	// elapses, in which case apperrors.ErrConfirmationTimeout is returned.
	AwaitConfirmation(ctx context.Context, h TxHandle, timeout time.Duration) (Confirmation, error)
}

// RejectedError is returned by Submit when the node refuses a transaction
// before execution, e.g. a failed simulation.
type RejectedError struct {
	StatusCode int
	Message    string
}

func (e *RejectedError) Error() string {
	return e.Message
}
