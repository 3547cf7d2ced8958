package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

var errBadJSON = &APIError{
	Status: http.StatusBadRequest,
	Err:    Error{Code: "bad_json", Message: "bad json"},
}

// ReadJSON decodes exactly one JSON value from the body into dst
func ReadJSON(r *http.Request, dst any) *APIError {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return &APIError{
				Status: http.StatusRequestEntityTooLarge,
				Err: Error{
					Code:    "payload_too_large",
					Message: "request body too large",
				},
			}
		}
		return errBadJSON
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errBadJSON
	}

	return nil
}
