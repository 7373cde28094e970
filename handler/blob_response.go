package handler

import (
	"net/http"
	"strconv"
)

type blobResponse struct {
	contentType string
	data        []byte
}

func (b blobResponse) Render(w http.ResponseWriter, _ *http.Request) error {
	w.Header().Set("Content-Type", b.contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(b.data)))
	w.WriteHeader(http.StatusOK)
	_, err := w.Write(b.data)
	return err
}

// Blob writes data as-is with the given content type and status 200.
func Blob(contentType string, data []byte) Response {
	return blobResponse{contentType: contentType, data: data}
}

type errorResponse struct {
	err error
}

func (e errorResponse) Render(http.ResponseWriter, *http.Request) error {
	return e.err
}

// Error hands err to the ErrorHandler configured for the route, so that
// classification and logging of failures live in one place.
func Error(err error) Response {
	return errorResponse{err: err}
}
