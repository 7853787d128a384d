// utils/http.go
package utils

import (
	"net/http"
	"time"
)

// NewHTTPClient is the client used for calls to the profile and auth services.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Timeout: timeout}
}
