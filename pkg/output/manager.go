package output

import (
	"fmt"
	"io"
	"os"
	"reflect"
	"sort"
	"strings"
)

// Manager manages output formatting and provides high-level formatting methods.
type Manager struct {
	formatters    map[string]Formatter
	defaultFormat string
	config        *FormatConfig
	out           io.Writer
	errOut        io.Writer
}

// NewManager creates a new output manager with default formatters writing
// to stdout and stderr.
func NewManager() *Manager {
	m := &Manager{
		formatters:    make(map[string]Formatter),
		defaultFormat: "table",
		config:        NewFormatConfig(),
		out:           os.Stdout,
		errOut:        os.Stderr,
	}

	m.RegisterFormatter(NewJSONFormatter())
	m.RegisterFormatter(NewYAMLFormatter())
	m.RegisterFormatter(NewTableFormatter())

	return m
}

// RegisterFormatter registers a new formatter.
func (m *Manager) RegisterFormatter(formatter Formatter) {
	m.formatters[formatter.Name()] = formatter
}

// GetFormatter returns a formatter by name.
func (m *Manager) GetFormatter(name string) (Formatter, error) {
	formatter, ok := m.formatters[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown output format '%s' (supported: %s)", name, strings.Join(m.SupportedFormats(), ", "))
	}
	return formatter, nil
}

// SetDefaultFormat sets the format used when none is requested.
func (m *Manager) SetDefaultFormat(format string) {
	m.defaultFormat = format
}

// DefaultFormat returns the format used when none is requested.
func (m *Manager) DefaultFormat() string {
	return m.defaultFormat
}

// SetConfig sets the base format configuration.
func (m *Manager) SetConfig(config *FormatConfig) {
	m.config = config
}

// Config returns a copy of the base format configuration.
func (m *Manager) Config() *FormatConfig {
	return m.config.clone()
}

// SetWriters redirects regular and error output.
func (m *Manager) SetWriters(out, errOut io.Writer) {
	m.out = out
	m.errOut = errOut
}

// Writer returns the regular output writer.
func (m *Manager) Writer() io.Writer {
	return m.out
}

// ErrWriter returns the error output writer.
func (m *Manager) ErrWriter() io.Writer {
	return m.errOut
}

// Format formats data using the specified format. A nil config uses the
// manager's base configuration.
func (m *Manager) Format(w io.Writer, data interface{}, format string, config *FormatConfig) error {
	if format == "" {
		format = m.defaultFormat
	}
	if config == nil {
		config = m.config
	}

	formatter, err := m.GetFormatter(format)
	if err != nil {
		return err
	}

	if isEmptyList(data) {
		if f, ok := formatter.(interface {
			FormatEmpty(io.Writer, string, *FormatConfig) error
		}); ok {
			return f.FormatEmpty(w, "", config)
		}
	}

	if !formatter.Supports(data) {
		return fmt.Errorf("format '%s' does not support data type %T", format, data)
	}

	return formatter.Format(w, data, config)
}

// Print formats data to the regular output.
func (m *Manager) Print(data interface{}, format string, config *FormatConfig) error {
	return m.Format(m.out, data, format, config)
}

// PrintError formats an error to the error output.
func (m *Manager) PrintError(err error, format string) error {
	if err == nil {
		return nil
	}
	if format == "" {
		format = m.defaultFormat
	}

	formatter, fmtErr := m.GetFormatter(format)
	if fmtErr != nil {
		return fmtErr
	}

	if f, ok := formatter.(interface {
		FormatError(io.Writer, error, *FormatConfig) error
	}); ok {
		return f.FormatError(m.errOut, err, m.config)
	}
	_, werr := fmt.Fprintf(m.errOut, "Error: %v\n", err)
	return werr
}

// Message prints a plain confirmation line. Structured formats stay silent
// so that their output remains parseable.
func (m *Manager) Message(format, msg string) {
	if format == "" {
		format = m.defaultFormat
	}
	if strings.ToLower(format) != "table" {
		return
	}
	fmt.Fprintln(m.out, msg)
}

// IsFormatSupported checks if a format is supported.
func (m *Manager) IsFormatSupported(format string) bool {
	_, ok := m.formatters[strings.ToLower(format)]
	return ok
}

// SupportedFormats returns the sorted names of all formats.
func (m *Manager) SupportedFormats() []string {
	formats := make([]string, 0, len(m.formatters))
	for name := range m.formatters {
		formats = append(formats, name)
	}
	sort.Strings(formats)
	return formats
}

func isEmptyList(data interface{}) bool {
	if data == nil {
		return false
	}
	v := reflect.ValueOf(data)
	return (v.Kind() == reflect.Slice || v.Kind() == reflect.Array) && v.Len() == 0
}
