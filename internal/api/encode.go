package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cadenza-fm/cadenza/internal/observe"
	"github.com/cadenza-fm/cadenza/internal/recerr"
)

// errorBody is the JSON envelope for all error responses. Clients dispatch on
// the machine-readable kind, never on the message text.
type errorBody struct {
	Error struct {
		Kind    recerr.Kind `json:"kind"`
		Message string      `json:"message"`
	} `json:"error"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// writeJSON encodes v with the given status. Encoding failures are logged;
// by then the status line is already written, so nothing else can be done.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		observe.Logger(r.Context()).Error("encode response", "err", err)
	}
}

// writeError maps err to its HTTP status via the error kind and writes the
// structured error envelope with the request's correlation ID.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := recerr.KindOf(err)
	status := recerr.HTTPStatus(kind)

	var body errorBody
	body.Error.Kind = kind
	body.Error.Message = errMessage(err, kind)
	body.CorrelationID = observe.CorrelationID(r.Context())

	if status >= http.StatusInternalServerError {
		observe.Logger(r.Context()).Error("request failed", "kind", kind, "err", err)
	}

	writeJSON(w, r, status, body)
}

// errMessage extracts the short message of a typed error. Untyped errors get
// a generic message so internals never leak to clients.
func errMessage(err error, kind recerr.Kind) string {
	var e *recerr.Error
	if errors.As(err, &e) {
		return e.Msg
	}
	switch kind {
	case recerr.KindTimeout:
		return "request deadline exceeded"
	default:
		return "internal error"
	}
}
