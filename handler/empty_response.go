package handler

import "net/http"

type statusOnly int

func (s statusOnly) Render(w http.ResponseWriter, _ *http.Request) error {
	w.WriteHeader(int(s))
	return nil
}

// Empty is 204 No Content.
func Empty() Response { return statusOnly(http.StatusNoContent) }

// EmptyWithStatus writes status with no body.
func EmptyWithStatus(status int) Response { return statusOnly(status) }
