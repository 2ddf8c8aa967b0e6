package handlers

import (
	"context"
)

// Context keys
type contextKey string

const (
	// AddressKey is the key for the authenticated wallet address in the context
	AddressKey contextKey = "address"

	// TokenKey is the key for the raw session token in the context
	TokenKey contextKey = "token"
)

// NewContextWithSession adds the authenticated address and its token to the context
func NewContextWithSession(ctx context.Context, address, token string) context.Context {
	ctx = context.WithValue(ctx, AddressKey, address)
	return context.WithValue(ctx, TokenKey, token)
}

// AddressFromContext extracts the authenticated address from the context
func AddressFromContext(ctx context.Context) (string, bool) {
	address, ok := ctx.Value(AddressKey).(string)
	return address, ok
}

// TokenFromContext extracts the session token from the context
func TokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(TokenKey).(string)
	return token, ok
}
