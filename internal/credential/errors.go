package credential

import (
	"fmt"
	"strings"
)

// Error reports a failure to obtain an access token. StatusCode is set when
// the token endpoint answered with a non-success status.
type Error struct {
	StatusCode int
	Message    string
	Body       string
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("credential: ")
	b.WriteString(e.Message)
	if e.Body != "" {
		fmt.Fprintf(&b, ": %s", strings.TrimSpace(e.Body))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }
