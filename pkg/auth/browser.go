package auth

import (
	"fmt"
	"io"
	"sync"

	"github.com/skratchdot/open-golang/open"
)

// BrowserOpener defines the interface for opening URLs in a browser.
type BrowserOpener interface {
	Open(url string) error
}

// SystemBrowserOpener opens URLs using the system default browser.
type SystemBrowserOpener struct{}

// Open opens a URL in the system default browser.
func (s *SystemBrowserOpener) Open(url string) error {
	return open.Run(url)
}

// PrintingOpener shows the URL and optionally launches the system browser.
// A failing launch is reported on the writer, not returned, since the user
// can still follow the printed URL.
type PrintingOpener struct {
	Writer   io.Writer
	Launch   bool
	Launcher BrowserOpener
}

// Open prints the URL and launches the browser when enabled.
func (p *PrintingOpener) Open(url string) error {
	_, _ = fmt.Fprintf(p.Writer, "\nOpen this URL to log in:\n%s\n\n", url)
	if !p.Launch {
		return nil
	}

	launcher := p.Launcher
	if launcher == nil {
		launcher = &SystemBrowserOpener{}
	}
	if err := launcher.Open(url); err != nil {
		_, _ = fmt.Fprintf(p.Writer, "Failed to open browser automatically.\n")
		_, _ = fmt.Fprintf(p.Writer, "Please visit the URL above manually.\n")
	}
	return nil
}

// MockBrowserOpener is a mock implementation for testing.
type MockBrowserOpener struct {
	mu         sync.Mutex
	OpenedURLs []string
	Err        error
}

// Open records the URL and returns the configured error.
func (m *MockBrowserOpener) Open(url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.OpenedURLs = append(m.OpenedURLs, url)
	return m.Err
}

// GetOpenedURLs returns a copy of the opened URLs in a thread-safe manner.
func (m *MockBrowserOpener) GetOpenedURLs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	urls := make([]string, len(m.OpenedURLs))
	copy(urls, m.OpenedURLs)
	return urls
}
