package api

import (
	"fmt"
	"net/http"
)

// RemoteError reports a failed backend call. The registry and dispatcher
// surface it to the user as a notification; nothing retries automatically.
type RemoteError struct {
	Op         string // backend path, e.g. "/integration/get_db_info"
	Database   string // database name, empty for list-level calls
	StatusCode int    // zero when the request never completed
	Message    string
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	if e.Database != "" {
		return fmt.Sprintf("%s (%s): %s", e.Op, e.Database, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// SessionExpired reports whether the backend rejected the session token.
func (e *RemoteError) SessionExpired() bool {
	return e.StatusCode == http.StatusUnauthorized
}
