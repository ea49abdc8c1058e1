package output

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// YAMLFormatter formats output as YAML.
type YAMLFormatter struct{}

// NewYAMLFormatter creates a new YAML formatter.
func NewYAMLFormatter() *YAMLFormatter {
	return &YAMLFormatter{}
}

// Name returns the formatter name.
func (f *YAMLFormatter) Name() string {
	return "yaml"
}

// Supports returns true for any data.
func (f *YAMLFormatter) Supports(data interface{}) bool {
	return true
}

// Format formats the data as YAML and writes it to the writer.
//
// Records carry json tags only, so data is converted through its JSON form
// first to keep field names identical across formats.
func (f *YAMLFormatter) Format(w io.Writer, data interface{}, _ *FormatConfig) error {
	if data == nil {
		_, err := w.Write([]byte("null\n"))
		return err
	}

	generic, err := toGeneric(data)
	if err != nil {
		return err
	}

	encoder := yaml.NewEncoder(w)
	defer func() { _ = encoder.Close() }()
	encoder.SetIndent(2)

	if err := encoder.Encode(generic); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return nil
}

// FormatError formats an error as YAML.
func (f *YAMLFormatter) FormatError(w io.Writer, err error, config *FormatConfig) error {
	return f.Format(w, map[string]interface{}{"error": err.Error()}, config)
}

// FormatEmpty formats an empty result as an empty YAML sequence.
func (f *YAMLFormatter) FormatEmpty(w io.Writer, _ string, config *FormatConfig) error {
	_, err := w.Write([]byte("[]\n"))
	return err
}
