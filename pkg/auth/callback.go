package auth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// callbackParams merges the query and fragment parameters of a redirect URL.
// Fragment values win over query values with the same name.
func callbackParams(callbackURL string) (url.Values, error) {
	u, err := url.Parse(strings.TrimSpace(callbackURL))
	if err != nil {
		return nil, fmt.Errorf("invalid callback URL: %w", err)
	}

	params := u.Query()
	if u.Fragment != "" {
		fragment, err := url.ParseQuery(u.Fragment)
		if err != nil {
			return nil, fmt.Errorf("invalid callback fragment: %w", err)
		}
		for key, values := range fragment {
			params[key] = values
		}
	}

	if len(params) == 0 {
		return nil, fmt.Errorf("callback URL carries no parameters")
	}
	return params, nil
}

// CallbackListener receives the browser redirect of an oauth login on a
// loopback address.
type CallbackListener struct {
	server   *http.Server
	base     *url.URL
	received chan string
}

// ListenForCallback starts a listener on the host and path of redirectURL.
func ListenForCallback(redirectURL string) (*CallbackListener, error) {
	u, err := url.Parse(redirectURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redirect URL: %w", err)
	}

	addr := u.Host
	if !strings.Contains(addr, ":") {
		addr = "localhost:8080"
	}
	path := u.Path
	if path == "" {
		path = "/"
	}

	l := &CallbackListener{
		base:     u,
		received: make(chan string, 1),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		full := *l.base
		full.RawQuery = r.URL.RawQuery

		w.Header().Set("Content-Type", "text/html")
		if r.URL.Query().Get("error") != "" {
			_, _ = fmt.Fprint(w, "<html><body><h1>Authorization failed</h1><p>Return to the terminal for details.</p></body></html>")
		} else {
			_, _ = fmt.Fprint(w, "<html><body><h1>Authorization successful!</h1><p>You can close this window.</p></body></html>")
		}

		select {
		case l.received <- full.String():
		default:
		}
	})

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to start callback server: %w", err)
	}

	l.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() { _ = l.server.Serve(listener) }()

	return l, nil
}

// Wait returns the full callback URL of the first redirect received.
func (l *CallbackListener) Wait(ctx context.Context, timeout time.Duration) (string, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case callbackURL := <-l.received:
		return callbackURL, nil
	case <-ctx.Done():
		return "", errors.New("authorization cancelled")
	case <-timer.C:
		return "", errors.New("authorization timeout")
	}
}

// Close stops the listener.
func (l *CallbackListener) Close() error {
	return l.server.Close()
}
