// Package http adapts error returning handlers to net/http and renders ServiceErrors as JSON
package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	apperrors "github.com/chainsafe/optimal-wallet/pkg/app/errors"
)

const maxBodyBytes = 1 << 20

// HandlerFunc is an http handler that reports failure through its return value
type HandlerFunc func(http.ResponseWriter, *http.Request) error

type errorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

// HandleError wraps h into a standard http.HandlerFunc.
// Errors that are not ServiceErrors are rendered as 500 and logged.
//
//	r.Post("/provisions", apphttp.HandleError(logger, h.submit))
func HandleError(logger *zap.Logger, h HandlerFunc) http.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			WriteError(w, logger, r, err)
		}
	}
}

// WriteError renders err as {"error", "code"}
func WriteError(w http.ResponseWriter, logger *zap.Logger, r *http.Request, err error) {
	status := http.StatusInternalServerError
	message := "Unexpected Service Error"

	var svcErr *apperrors.ServiceError
	if errors.As(err, &svcErr) {
		status = svcErr.StatusCode()
		message = svcErr.Message
	}
	if status >= http.StatusInternalServerError && logger != nil {
		logger.Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err))
	}

	_ = WriteJSON(w, status, &errorResponse{Error: message, Code: status})
}

// WriteJSON writes v with the given status
func WriteJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// ReadBody reads at most 1 MiB of the request body
func ReadBody(r *http.Request) ([]byte, error) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return nil, apperrors.BadRequestError(err, "failed to read request body")
	}
	if len(raw) > maxBodyBytes {
		return nil, apperrors.BadRequestError(nil, "request body too large")
	}
	return raw, nil
}
