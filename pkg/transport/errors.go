package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/releng/waiverd/pkg/api"
)

// WriteJSON writes v as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// WriteJSONP writes v wrapped in a JSONP callback invocation with the
// application/javascript mimetype.
func WriteJSONP(w http.ResponseWriter, statusCode int, callback string, v any) {
	w.Header().Set("Content-Type", "application/javascript")
	w.WriteHeader(statusCode)
	body, err := json.Marshal(v)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "%s(%s)", callback, body)
}

// WriteError renders an error as the service's JSON error body
// {"message": ...}, deriving the HTTP status and headers from the
// *api.Error. Anything that is not an *api.Error is reported as a
// generic 500 so internal details never leak.
func WriteError(w http.ResponseWriter, err error) {
	var apiErr *api.Error
	if !errors.As(err, &apiErr) {
		apiErr = api.NewServerError()
	}
	for key, values := range apiErr.Headers {
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}
	WriteJSON(w, apiErr.HTTPStatus(), apiErr.Body())
}
