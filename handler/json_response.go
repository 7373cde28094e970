package handler

import (
	"encoding/json"
	"errors"
	"net/http"
)

// JSONResponse is the envelope of every JSON body. Exactly one of Data or
// Error is set.
type JSONResponse struct {
	Data  any            `json:"data,omitempty"`
	Meta  map[string]any `json:"meta,omitempty"`
	Error *ErrorDetail   `json:"error,omitempty"`
}

// ErrorDetail is the machine readable part of a failed response.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

// JSONOption adjusts an envelope before it is written.
type JSONOption func(status *int, body *JSONResponse)

func WithJSONStatus(code int) JSONOption {
	return func(status *int, _ *JSONResponse) { *status = code }
}

func WithJSONMeta(meta map[string]any) JSONOption {
	return func(_ *int, body *JSONResponse) { body.Meta = meta }
}

// envelope responses carry secrets and backup codes, so they are never cached.
type envelope struct {
	status int
	body   JSONResponse
}

func (e envelope) Render(w http.ResponseWriter, _ *http.Request) error {
	h := w.Header()
	h.Set("Content-Type", "application/json; charset=utf-8")
	h.Set("Cache-Control", "no-store")
	h.Set("Pragma", "no-cache")
	w.WriteHeader(e.status)
	return json.NewEncoder(w).Encode(e.body)
}

func build(status int, body JSONResponse, opts []JSONOption) Response {
	for _, opt := range opts {
		opt(&status, &body)
	}
	return envelope{status: status, body: body}
}

// JSON puts v in the data field with status 200.
func JSON(v any, opts ...JSONOption) Response {
	return build(http.StatusOK, JSONResponse{Data: v}, opts)
}

// JSONError puts err in the error field. An HTTPError keeps its status and
// key; any other error is reported as a bare 500 so its text never leaks.
func JSONError(err error, opts ...JSONOption) Response {
	var he HTTPError
	if !errors.As(err, &he) {
		he = ErrInternalServerError
	}
	msg := he.Message
	if msg == "" {
		msg = http.StatusText(he.Code)
	}
	return build(he.Code, JSONResponse{Error: &ErrorDetail{Code: he.Key, Message: msg}}, opts)
}
