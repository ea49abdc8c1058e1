// Package api provides the request capability handed out by the session
// controller to resource fetchers.
//
// A Service is bound to one resource collection of the CMS API, e.g.
// <cms_api>/titles, and optionally to a bearer credential:
//
//	service, _ := controller.GetAPIService(ctx, "titles")
//	var title resources.Title
//	err := service.Get(ctx, "/"+id, nil, &title)
//
// Non-2xx responses are returned as *ErrorResponse, transport failures as
// *auth.NetworkError. TranslateErrors flattens both into user-facing strings.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/openzim/cmsctl/pkg/auth"
	"github.com/rs/zerolog"
)

// Service issues JSON requests below one base URL.
type Service struct {
	baseURL     string
	httpClient  *http.Client
	accessToken string
	logger      zerolog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithAccessToken binds the service to a bearer credential.
func WithAccessToken(token string) Option {
	return func(s *Service) {
		s.accessToken = token
	}
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Service) {
		if client != nil {
			s.httpClient = client
		}
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService creates a service for apiBase/resourcePath.
func NewService(apiBase, resourcePath string, opts ...Option) *Service {
	s := &Service{
		baseURL:    JoinURL(apiBase, resourcePath),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// JoinURL joins an API base and a resource path with exactly one slash.
func JoinURL(base, path string) string {
	base = strings.TrimRight(base, "/")
	path = strings.Trim(path, "/")
	if path == "" {
		return base
	}
	return base + "/" + path
}

// BaseURL returns the resource collection URL.
func (s *Service) BaseURL() string {
	return s.baseURL
}

// Authenticated reports whether requests carry a bearer credential.
func (s *Service) Authenticated() bool {
	return s.accessToken != ""
}

// AccessToken returns the bearer credential, empty when unauthenticated.
func (s *Service) AccessToken() string {
	return s.accessToken
}

// Get issues a GET on path relative to the base URL and decodes the JSON
// response into out. Empty query values are sent as is; callers clean them.
func (s *Service) Get(ctx context.Context, path string, query url.Values, out interface{}) error {
	return s.do(ctx, http.MethodGet, path, query, nil, out)
}

// Post issues a POST with a JSON body and decodes the JSON response into out.
func (s *Service) Post(ctx context.Context, path string, body, out interface{}) error {
	return s.do(ctx, http.MethodPost, path, nil, body, out)
}

func (s *Service) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	reqURL := s.baseURL
	if path != "" {
		reqURL = strings.TrimRight(s.baseURL, "/") + "/" + strings.TrimLeft(path, "/")
	}
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if bodyReader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if s.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.accessToken)
	}

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return &auth.NetworkError{Op: method, URL: reqURL, Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &auth.NetworkError{Op: method, URL: reqURL, Cause: err}
	}

	s.logger.Debug().
		Str("method", method).
		Str("url", reqURL).
		Int("status", resp.StatusCode).
		Bool("authenticated", s.Authenticated()).
		Dur("elapsed", time.Since(start)).
		Msg("api request")

	if resp.StatusCode >= 400 {
		return decodeErrorResponse(resp.StatusCode, data)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", reqURL, err)
	}
	return nil
}
