package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"hardwarelens-api/pkg/apierror"
)

// Response represents a standard API response.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Meta    *Meta       `json:"meta,omitempty"`
}

// Meta describes a list payload.
type Meta struct {
	Count int `json:"count"`
	Limit int `json:"limit,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, statusCode int, data interface{}) {
	write(w, statusCode, Response{Success: true, Data: data})
}

// List sends a list with its size in the meta block.
func List(w http.ResponseWriter, data interface{}, count, limit int) {
	write(w, http.StatusOK, Response{
		Success: true,
		Data:    data,
		Meta:    &Meta{Count: count, Limit: limit},
	})
}

func write(w http.ResponseWriter, statusCode int, body Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

// Error sends an error response. Anything that is not an *apierror.Error
// is reported as a generic 500.
func Error(w http.ResponseWriter, err error) {
	var apiErr *apierror.Error
	if !errors.As(err, &apiErr) {
		apiErr = apierror.InternalError("an unexpected error occurred")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.StatusCode)
	_, _ = w.Write(apiErr.ToJSON())
}

// OK sends a 200 OK response.
func OK(w http.ResponseWriter, data interface{}) {
	JSON(w, http.StatusOK, data)
}
