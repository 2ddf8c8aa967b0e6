package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/satonic/nft-marketplace/internal/apperrors"
	"github.com/satonic/nft-marketplace/internal/services"
)

// maxBodyBytes caps request bodies
const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every non-2xx answer
type ErrorResponse struct {
	Error string              `json:"error"`
	Kind  apperrors.ErrorKind `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("failed to write response")
	}
}

// writeError answers with the status carried by err. Ledger aborts are
// reported with their kind and the user-facing message for it.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.StatusCode(err)
	resp := ErrorResponse{Error: err.Error()}

	var te *apperrors.TransactionError
	if errors.As(err, &te) {
		resp.Kind = te.Kind
		resp.Error = services.KindMessage(te.Kind)
	}

	event := log.Ctx(r.Context()).Debug()
	if status >= http.StatusInternalServerError {
		event = log.Ctx(r.Context()).Error()
	}
	event.Err(err).Str("method", r.Method).Str("path", r.URL.Path).Int("status", status).Msg("request failed")

	writeJSON(w, status, resp)
}

// decodeBody reads a JSON request body into v
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.ErrValidation.Msg("request body is empty")
		}
		return apperrors.ErrValidation.MsgErr("invalid request body", err)
	}
	return nil
}
