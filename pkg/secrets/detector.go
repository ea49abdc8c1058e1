package secrets

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Detector finds secrets by field name, value shape and HTTP header.
type Detector struct {
	behavior      *Behavior
	fieldPatterns []*regexp.Regexp
	valuePatterns []*compiledValuePattern
	headers       map[string]bool
}

type compiledValuePattern struct {
	name    string
	pattern *regexp.Regexp
}

// NewDetector compiles the patterns of b. A nil behavior yields a disabled detector.
func NewDetector(b *Behavior) (*Detector, error) {
	if b == nil {
		return &Detector{behavior: &Behavior{}, headers: map[string]bool{}}, nil
	}

	d := &Detector{
		behavior:      b,
		fieldPatterns: make([]*regexp.Regexp, 0, len(b.FieldPatterns)),
		valuePatterns: make([]*compiledValuePattern, 0, len(b.ValuePatterns)),
		headers:       make(map[string]bool, len(b.Headers)),
	}

	for _, pattern := range b.FieldPatterns {
		regex, err := globToRegex(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid field pattern %q: %w", pattern, err)
		}
		d.fieldPatterns = append(d.fieldPatterns, regex)
	}

	for _, vp := range b.ValuePatterns {
		regex, err := regexp.Compile(vp.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid value pattern %q: %w", vp.Pattern, err)
		}
		if vp.Enabled {
			d.valuePatterns = append(d.valuePatterns, &compiledValuePattern{name: vp.Name, pattern: regex})
		}
	}

	for _, header := range b.Headers {
		d.headers[strings.ToLower(header)] = true
	}

	return d, nil
}

// IsEnabled returns whether detection is enabled.
func (d *Detector) IsEnabled() bool {
	return d != nil && d.behavior.Enabled
}

// IsSecretField reports whether a field name matches a field pattern.
func (d *Detector) IsSecretField(fieldName string) bool {
	if !d.IsEnabled() {
		return false
	}
	lower := strings.ToLower(fieldName)
	for _, pattern := range d.fieldPatterns {
		if pattern.MatchString(lower) {
			return true
		}
	}
	return false
}

// IsSecretValue reports whether value matches a value pattern, and which.
func (d *Detector) IsSecretValue(value string) (bool, string) {
	if !d.IsEnabled() {
		return false, ""
	}
	for _, vp := range d.valuePatterns {
		if vp.pattern.MatchString(value) {
			return true, vp.name
		}
	}
	return false, ""
}

// IsSecretHeader reports whether a header value must be masked.
func (d *Detector) IsSecretHeader(name string) bool {
	if !d.IsEnabled() {
		return false
	}
	return d.headers[strings.ToLower(name)]
}

// Mask masks value with the configured strategy.
func (d *Detector) Mask(value string) string {
	return MaskValue(value, d.behavior.Masking)
}

// MaskString masks every value pattern match in text.
func (d *Detector) MaskString(text string) string {
	if !d.IsEnabled() {
		return text
	}
	for _, vp := range d.valuePatterns {
		text = vp.pattern.ReplaceAllStringFunc(text, d.Mask)
	}
	return text
}

// MaskJSON masks secret fields and values in decoded JSON data.
func (d *Detector) MaskJSON(data interface{}) interface{} {
	if !d.IsEnabled() {
		return data
	}

	switch v := data.(type) {
	case map[string]interface{}:
		result := make(map[string]interface{}, len(v))
		for key, value := range v {
			if s, ok := value.(string); ok && d.IsSecretField(key) {
				result[key] = d.Mask(s)
				continue
			}
			result[key] = d.MaskJSON(value)
		}
		return result
	case []interface{}:
		result := make([]interface{}, len(v))
		for i, item := range v {
			result[i] = d.MaskJSON(item)
		}
		return result
	case string:
		return d.MaskString(v)
	default:
		return v
	}
}

// MaskJSONString masks a JSON document, falling back to text masking when
// it does not parse.
func (d *Detector) MaskJSONString(doc string) string {
	if !d.IsEnabled() {
		return doc
	}

	var data interface{}
	if err := json.Unmarshal([]byte(doc), &data); err != nil {
		return d.MaskString(doc)
	}

	out, err := json.Marshal(d.MaskJSON(data))
	if err != nil {
		return d.MaskString(doc)
	}
	return string(out)
}

// MaskHeaders returns a copy of headers with secret header values masked.
func (d *Detector) MaskHeaders(headers map[string][]string) map[string][]string {
	result := make(map[string][]string, len(headers))
	for key, values := range headers {
		if !d.IsSecretHeader(key) {
			result[key] = values
			continue
		}
		masked := make([]string, len(values))
		for i, v := range values {
			masked[i] = d.Mask(v)
		}
		result[key] = masked
	}
	return result
}

// globToRegex converts a glob pattern into an anchored case-insensitive regex.
func globToRegex(pattern string) (*regexp.Regexp, error) {
	escaped := regexp.QuoteMeta(pattern)
	escaped = strings.ReplaceAll(escaped, `\*`, ".*")
	escaped = strings.ReplaceAll(escaped, `\?`, ".")
	return regexp.Compile("(?i)^" + escaped + "$")
}
