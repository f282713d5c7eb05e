package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/Efrain290493/gft/internal/faults"
)

const apiVersion = "1.0.0"

// metadata is attached to every response body so callers can correlate
// a payload with server logs.
type metadata struct {
	ResponseID string `json:"response_id"`
	Timestamp  string `json:"timestamp"`
	Version    string `json:"version"`
}

func newMetadata() metadata {
	return metadata{
		ResponseID: uuid.New().String(),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Version:    apiVersion,
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// respondSuccess wraps data in the standard success envelope.
func respondSuccess(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"data":     data,
		"metadata": newMetadata(),
	})
}

// respondError maps the error to its HTTP status and emits the standard
// error envelope with the classified code.
func respondError(w http.ResponseWriter, err error) {
	kind := faults.KindOf(err)
	writeJSON(w, kind.HTTPStatus(), map[string]any{
		"success": false,
		"error": map[string]any{
			"code":    kind.String(),
			"message": err.Error(),
		},
		"metadata": newMetadata(),
	})
}

func respondErrorMessage(w http.ResponseWriter, kind faults.Kind, msg string) {
	writeJSON(w, kind.HTTPStatus(), map[string]any{
		"success": false,
		"error": map[string]any{
			"code":    kind.String(),
			"message": msg,
		},
		"metadata": newMetadata(),
	})
}
