package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Stable boundary error codes. Internal detail never crosses this surface;
// clients key their handling off these strings.
const (
	CodeInvalidRequest  = "invalid_request"
	CodeAuthInvalid     = "auth_invalid"
	CodeAuthExpired     = "auth_expired"
	CodeForbidden       = "forbidden"
	CodeAccountInactive = "account_inactive"
	CodeRateLimited     = "rate_limited"
	CodeAuthUnavailable = "auth_unavailable"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code string `json:"code"`
}

// writeJSON writes v with the given status. Encoding failures are logged;
// by then the status line is already gone.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", "error", err)
	}
}

// writeError writes a stable error code with no further detail.
func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code}})
}
