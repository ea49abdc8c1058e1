package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/openzim/cmsctl/pkg/auth/storage"
	"github.com/openzim/cmsctl/pkg/auth/types"
)

// Error codes carried by AuthError.
const (
	CodeInvalidGrant      = "invalid_grant"
	CodeInvalidState      = "invalid_state"
	CodeMissingParameters = "missing_parameters"
)

// permanentMessages are backend message fragments that mean the refresh
// token can never succeed again.
var permanentMessages = []string{
	"invalid authentication credentials",
	"refresh token expired",
}

// ValidationError reports malformed credentials, detected before any request.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// AuthError reports a login, refresh or callback rejected by a provider.
type AuthError struct {
	Provider types.ProviderType
	Op       string // "login", "callback", "refresh", "logout"
	Code     string
	Status   int
	Message  string
	Cause    error
}

func (e *AuthError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Provider))
	b.WriteString(" ")
	b.WriteString(e.Op)
	b.WriteString(" failed")
	if e.Status != 0 {
		fmt.Fprintf(&b, " (HTTP %d)", e.Status)
	}
	if e.Code != "" {
		b.WriteString(": ")
		b.WriteString(e.Code)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

func (e *AuthError) Unwrap() error {
	return e.Cause
}

// NetworkError reports a transport failure where no server response was received.
type NetworkError struct {
	Op    string
	URL   string
	Cause error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: request to %s failed: %v", e.Op, e.URL, e.Cause)
}

func (e *NetworkError) Unwrap() error {
	return e.Cause
}

// StorageError reports an unavailable persistence medium.
type StorageError = storage.Error

// IsPermanent reports whether a refresh failure invalidates the refresh token.
//
// A failure is permanent when the provider answered invalid_grant or 401, or
// when the backend message says the credentials are invalid or the refresh
// token expired. Everything else, network failures and 5xx included, is
// transient.
func IsPermanent(err error) bool {
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		return false
	}

	if authErr.Code == CodeInvalidGrant || authErr.Status == http.StatusUnauthorized {
		return true
	}

	msg := strings.ToLower(authErr.Message)
	for _, fragment := range permanentMessages {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}
