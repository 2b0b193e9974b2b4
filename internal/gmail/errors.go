package gmail

import (
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/googleapi"
)

// TransportError is a failed Gmail API call. Status and Body are set when
// the server answered; Cause is the underlying error.
type TransportError struct {
	Op      string
	Message string
	Status  int
	Body    string
	Cause   error
}

func (e *TransportError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	return b.String()
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

func newTransportError(op string, err error) error {
	if err == nil {
		return nil
	}
	te := &TransportError{Op: op, Message: err.Error(), Cause: err}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		te.Status = apiErr.Code
		te.Body = apiErr.Body
		if apiErr.Message != "" {
			te.Message = apiErr.Message
		}
	}
	return te
}
