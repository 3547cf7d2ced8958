package api

import (
	"encoding/json"
	"net/http"
)

// APIError is a handler failure with the HTTP status to reply with
type APIError struct {
	Status int
	Err    Error
}

func (e *APIError) Error() string {
	return e.Err.Code + ": " + e.Err.Message
}

// Handler returns the data of a successful reply or the failure to report
type Handler func(r *http.Request) (any, *APIError)

// Wrap encodes the result of h in the envelope
func Wrap(h Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		data, apiErr := h(r)
		if apiErr != nil {
			w.WriteHeader(apiErr.Status)
			_ = json.NewEncoder(w).Encode(Response{OK: false, Error: &apiErr.Err})
			return
		}

		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(Response{OK: true, Data: data})
	}
}

// WrapMethod is Wrap restricted to one HTTP method; others get 405 with Allow set
func WrapMethod(method string, h Handler) http.HandlerFunc {
	wrapped := Wrap(h)
	rejected := Wrap(func(*http.Request) (any, *APIError) {
		return nil, &APIError{
			Status: http.StatusMethodNotAllowed,
			Err:    Error{Code: "method_not_allowed", Message: "use " + method},
		}
	})

	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			w.Header().Set("Allow", method)
			rejected(w, r)
			return
		}
		wrapped(w, r)
	}
}
