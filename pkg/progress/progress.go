// Package progress shows a spinner while a command waits on something the
// user has to do, such as completing a login in the browser.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"github.com/mattn/go-isatty"
	"github.com/pterm/pterm"
)

// Config configures a Spinner.
type Config struct {
	// Enabled turns the animation on. Messages are printed either way.
	Enabled bool
	// Writer receives the animation and messages. Defaults to stderr.
	Writer io.Writer
	// Interval is the animation frame delay.
	Interval time.Duration
}

// DefaultConfig animates on stderr when it is a terminal.
func DefaultConfig() *Config {
	return &Config{
		Enabled:  isatty.IsTerminal(os.Stderr.Fd()),
		Writer:   os.Stderr,
		Interval: 100 * time.Millisecond,
	}
}

// Spinner implements a spinner progress indicator.
type Spinner struct {
	spinner *spinner.Spinner
	config  *Config
	active  bool
	mu      sync.Mutex
}

// NewSpinner creates a new spinner progress indicator.
func NewSpinner(config *Config) *Spinner {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Writer == nil {
		config.Writer = os.Stderr
	}
	if config.Interval <= 0 {
		config.Interval = 100 * time.Millisecond
	}

	return &Spinner{
		config: config,
	}
}

// Start starts the spinner with a message.
func (s *Spinner) Start(message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active {
		return fmt.Errorf("spinner already active")
	}
	s.active = true

	if !s.config.Enabled {
		_, _ = fmt.Fprintln(s.config.Writer, message)
		return nil
	}

	s.spinner = spinner.New(spinner.CharSets[14], s.config.Interval, spinner.WithWriter(s.config.Writer))
	s.spinner.Suffix = " " + message
	s.spinner.Start()
	return nil
}

// Update updates the spinner message.
func (s *Spinner) Update(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active || s.spinner == nil {
		return
	}
	s.spinner.Lock()
	s.spinner.Suffix = " " + message
	s.spinner.Unlock()
}

// Success stops the spinner and prints a success line.
func (s *Spinner) Success(message string) {
	s.finish()
	pterm.Success.WithWriter(s.config.Writer).Println(message)
}

// Failure stops the spinner and prints a failure line.
func (s *Spinner) Failure(message string) {
	s.finish()
	pterm.Error.WithWriter(s.config.Writer).Println(message)
}

// Stop stops the spinner without a message.
func (s *Spinner) Stop() {
	s.finish()
}

// IsActive returns true if the spinner is active.
func (s *Spinner) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *Spinner) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.spinner != nil {
		s.spinner.Stop()
		s.spinner = nil
	}
	s.active = false
}
