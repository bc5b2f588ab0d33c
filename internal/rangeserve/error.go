package rangeserve

import (
	"errors"
	"net/http"

	"github.com/gaby/zipstream/internal/gatewaymetrics"
)

// StatusError pairs an HTTP status code with a short client-facing
// message. Handlers in this repository pass it to WriteError whenever a
// failure must be surfaced as a specific status rather than a generic 500.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return e.Message
}

// WriteError writes a StatusError (or, for any other error, a generic 500)
// as a short plain-text response.
func WriteError(w http.ResponseWriter, err error) {
	var se *StatusError
	if !errors.As(err, &se) {
		se = &StatusError{Code: http.StatusInternalServerError, Message: "internal error"}
	}
	gatewaymetrics.RequestErrors.Add(1)
	http.Error(w, se.Message, se.Code)
}
