package api

import (
	"encoding/json"
	"net/http"

	"github.com/example/bank-ledger/internal/security"
)

// writeJSON encodes the body before touching the response, so an encode
// failure still yields a well-formed error envelope instead of a truncated
// 2xx body.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		security.WriteJSONError(w, r, http.StatusInternalServerError, "encoding_error", "")
		return
	}

	cid := security.CorrelationIDFromContext(r.Context())
	if cid != "" {
		w.Header().Set(security.CorrelationIDHeader, cid)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}
