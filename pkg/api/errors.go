package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/openzim/cmsctl/pkg/auth"
)

// ErrorResponse is a non-2xx answer of the CMS API.
type ErrorResponse struct {
	Status int

	// Detail is the string form of a "detail" field.
	Detail string
	// Validation holds the list form of a "detail" field.
	Validation []ValidationDetail

	Message string
	Errors  map[string][]string

	// Body is the raw response body when it is not JSON.
	Body string
}

// ValidationDetail is one entry of a request validation failure.
type ValidationDetail struct {
	Loc  []interface{} `json:"loc"`
	Msg  string        `json:"msg"`
	Type string        `json:"type,omitempty"`
}

// Field returns the dotted location of the failure, without the request part
// prefix (body, query, path).
func (d ValidationDetail) Field() string {
	parts := make([]string, 0, len(d.Loc))
	for i, loc := range d.Loc {
		s := fmt.Sprint(loc)
		if f, ok := loc.(float64); ok {
			s = fmt.Sprintf("%d", int(f))
		}
		if i == 0 && len(d.Loc) > 1 && (s == "body" || s == "query" || s == "path" || s == "header") {
			continue
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, ".")
}

func (e *ErrorResponse) Error() string {
	msgs := e.Messages()
	if len(msgs) == 0 {
		return fmt.Sprintf("HTTP %d", e.Status)
	}
	return fmt.Sprintf("HTTP %d: %s", e.Status, strings.Join(msgs, "; "))
}

// Messages returns the user-facing messages carried by the response,
// falling back to a message derived from the status.
func (e *ErrorResponse) Messages() []string {
	var msgs []string

	if e.Detail != "" {
		msgs = append(msgs, e.Detail)
	}
	for _, d := range e.Validation {
		if field := d.Field(); field != "" {
			msgs = append(msgs, field+": "+d.Msg)
		} else {
			msgs = append(msgs, d.Msg)
		}
	}
	if e.Message != "" {
		msgs = append(msgs, e.Message)
	}

	fields := make([]string, 0, len(e.Errors))
	for field := range e.Errors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		for _, msg := range e.Errors[field] {
			msgs = append(msgs, field+": "+msg)
		}
	}

	if len(msgs) == 0 && e.Body != "" {
		msgs = append(msgs, e.Body)
	}
	if len(msgs) == 0 {
		msgs = append(msgs, statusMessage(e.Status))
	}
	return msgs
}

// errorBody covers the error shapes returned by the CMS API.
type errorBody struct {
	Detail  json.RawMessage     `json:"detail"`
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors"`
}

func decodeErrorResponse(status int, data []byte) *ErrorResponse {
	resp := &ErrorResponse{Status: status}

	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil {
		resp.Body = strings.TrimSpace(string(data))
		return resp
	}

	resp.Message = body.Message
	resp.Errors = body.Errors

	if len(body.Detail) > 0 {
		var detail string
		var validation []ValidationDetail
		switch {
		case json.Unmarshal(body.Detail, &detail) == nil:
			resp.Detail = detail
		case json.Unmarshal(body.Detail, &validation) == nil:
			resp.Validation = validation
		default:
			resp.Detail = string(body.Detail)
		}
	}

	return resp
}

func statusMessage(status int) string {
	switch {
	case status == http.StatusUnauthorized:
		return "You are not authenticated, please log in"
	case status == http.StatusForbidden:
		return "You are not allowed to perform this action"
	case status == http.StatusNotFound:
		return "Resource not found"
	case status >= 500:
		return fmt.Sprintf("Server error (HTTP %d), please retry later", status)
	default:
		return fmt.Sprintf("Request failed (HTTP %d)", status)
	}
}

// TranslateErrors flattens an error into user-facing strings.
func TranslateErrors(err error) []string {
	if err == nil {
		return nil
	}

	var errResp *ErrorResponse
	if errors.As(err, &errResp) {
		return errResp.Messages()
	}

	var validationErr *auth.ValidationError
	if errors.As(err, &validationErr) {
		return []string{validationErr.Message}
	}

	var authErr *auth.AuthError
	if errors.As(err, &authErr) {
		switch {
		case authErr.Message != "":
			return []string{authErr.Message}
		case authErr.Status != 0 && authErr.Code == "":
			return []string{statusMessage(authErr.Status)}
		default:
			return []string{authErr.Error()}
		}
	}

	var netErr *auth.NetworkError
	if errors.As(err, &netErr) {
		if errors.Is(err, context.DeadlineExceeded) {
			return []string{"The server did not answer in time, please retry later"}
		}
		return []string{"Unable to reach the server, please check your connection"}
	}

	if errors.Is(err, context.Canceled) {
		return []string{"Request cancelled"}
	}

	return []string{err.Error()}
}
