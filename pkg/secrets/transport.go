package secrets

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Transport logs HTTP exchanges at debug level with secret headers and
// query values masked.
type Transport struct {
	detector *Detector
	next     http.RoundTripper
	logger   zerolog.Logger
}

// NewTransport wraps next, which defaults to http.DefaultTransport.
func NewTransport(detector *Detector, next http.RoundTripper, logger zerolog.Logger) *Transport {
	if next == nil {
		next = http.DefaultTransport
	}
	return &Transport{detector: detector, next: next, logger: logger}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.logger.GetLevel() > zerolog.DebugLevel {
		return t.next.RoundTrip(req)
	}

	start := time.Now()
	event := t.logger.Debug().
		Str("method", req.Method).
		Str("url", t.detector.MaskString(req.URL.String())).
		Interface("headers", t.detector.MaskHeaders(req.Header))

	resp, err := t.next.RoundTrip(req)
	event = event.Dur("elapsed", time.Since(start))
	if err != nil {
		event.Err(err).Msg("http request failed")
		return nil, err
	}

	event.Int("status", resp.StatusCode).Msg("http request")
	return resp, nil
}
