package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// StatusError is a non-2xx backend response. 4xx means the request
// itself was rejected (validation); it concerns only the caller that
// issued it and never touches background polling state. 5xx counts as a
// transport-level failure like any network error.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend returned %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("backend returned %d", e.Code)
}

// Validation reports whether this is a 4xx rejection.
func (e *StatusError) Validation() bool {
	return e.Code >= 400 && e.Code < 500
}

// IsValidation reports whether err is a 4xx StatusError.
func IsValidation(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Validation()
}

// errorBody is the backend's error envelope.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func newStatusError(resp *http.Response) *StatusError {
	se := &StatusError{Code: resp.StatusCode}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return se
	}
	var body errorBody
	if json.Unmarshal(raw, &body) == nil {
		if body.Error != "" {
			se.Message = body.Error
		} else {
			se.Message = body.Message
		}
	}
	return se
}
