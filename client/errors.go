// ABOUTME: Error types returned by the backend client.
// ABOUTME: ValidationError is raised before any request; APIError carries the server's detail text.
package client

import (
	"errors"
	"fmt"
)

// ValidationMessage is the user-facing text for a rejected case file.
const ValidationMessage = "please select a JSON file"

// GenericSubmitFailure is shown when the backend gives no detail.
const GenericSubmitFailure = "failed to start simulation"

// ErrReportUnavailable means neither report endpoint produced a report.
var ErrReportUnavailable = errors.New("report unavailable")

// ErrNotEventStream means the stream endpoint answered with another content type.
var ErrNotEventStream = errors.New("response is not an event stream")

// ValidationError rejects a case file locally. No request is sent.
type ValidationError struct {
	Name        string
	ContentType string
}

func (e *ValidationError) Error() string {
	return ValidationMessage
}

// APIError is a non-2xx response from the backend.
type APIError struct {
	Status    int
	Detail    string
	RequestID string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Detail)
}
