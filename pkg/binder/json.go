package binder

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"reflect"
	"strings"
)

var (
	ErrUnsupportedMediaType = errors.New("binder: unsupported media type")
	ErrMissingContentType   = errors.New("binder: content type not set")
	ErrFailedToParseJSON    = errors.New("binder: malformed json body")
	ErrBodyTooLarge         = errors.New("binder: body exceeds limit")
)

// DefaultMaxJSONSize is the default maximum size for JSON request bodies.
// Two-factor payloads are a handful of bytes.
const DefaultMaxJSONSize = 4 << 10

// JSON creates a strict JSON binder: unknown fields and trailing data are
// rejected, and string fields are trimmed of surrounding whitespace.
//
//	http.HandleFunc("/2fa/verify", handler.Wrap(verify,
//		handler.WithBinder(binder.JSON()),
//	))
func JSON() func(r *http.Request, v any) error {
	return JSONWithLimit(DefaultMaxJSONSize)
}

// JSONWithLimit is JSON with a custom body size limit in bytes.
func JSONWithLimit(limit int64) func(r *http.Request, v any) error {
	return func(r *http.Request, v any) error {
		if err := r.Context().Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrFailedToParseJSON, err)
		}

		contentType := r.Header.Get("Content-Type")
		if contentType == "" {
			return fmt.Errorf("%w: expected application/json", ErrMissingContentType)
		}
		mediaType, _, err := mime.ParseMediaType(contentType)
		if err != nil || mediaType != "application/json" {
			return fmt.Errorf("%w: got %s, expected application/json", ErrUnsupportedMediaType, contentType)
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
		if err != nil {
			return fmt.Errorf("%w: failed to read request body: %v", ErrFailedToParseJSON, err)
		}
		if int64(len(body)) > limit {
			return fmt.Errorf("%w: max %d bytes", ErrBodyTooLarge, limit)
		}

		decoder := json.NewDecoder(strings.NewReader(string(body)))
		decoder.DisallowUnknownFields()

		if err := decoder.Decode(v); err != nil {
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("%w: empty body", ErrFailedToParseJSON)
			}
			return fmt.Errorf("%w: %v", ErrFailedToParseJSON, err)
		}

		var extra json.RawMessage
		if err := decoder.Decode(&extra); !errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: unexpected data after JSON object", ErrFailedToParseJSON)
		}

		trimStrings(reflect.ValueOf(v))
		return nil
	}
}

// trimStrings walks pointers, structs and slices and trims every settable string.
func trimStrings(rv reflect.Value) {
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if !rv.IsNil() {
			trimStrings(rv.Elem())
		}
	case reflect.String:
		if rv.CanSet() {
			rv.SetString(strings.TrimSpace(rv.String()))
		}
	case reflect.Struct:
		for i := range rv.NumField() {
			trimStrings(rv.Field(i))
		}
	case reflect.Slice, reflect.Array:
		for i := range rv.Len() {
			trimStrings(rv.Index(i))
		}
	}
}
