package secrets

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
)

// MaskValue masks a value with the given strategy. A nil masking shows the
// first six characters.
func MaskValue(value string, m *Masking) string {
	if m == nil {
		return partialMask(value, 6, "***")
	}

	switch m.Style {
	case "full":
		return fullMask(m.Replacement)
	case "hash":
		return hashMask(value)
	default:
		return partialMask(value, m.PartialShowChars, m.Replacement)
	}
}

// MaskToken renders a credential for logs.
func MaskToken(token string) string {
	if token == "" {
		return ""
	}
	return partialMask(token, 6, "***")
}

func fullMask(replacement string) string {
	if replacement == "" {
		return "***"
	}
	return replacement
}

// partialMask shows the first showChars characters; shorter values are fully masked.
func partialMask(value string, showChars int, replacement string) string {
	if replacement == "" {
		replacement = "***"
	}
	if len(value) <= showChars {
		return replacement
	}
	return value[:showChars] + replacement
}

// hashMask keeps a stable fingerprint for correlating log lines.
func hashMask(value string) string {
	hash := sha256.Sum256([]byte(value))
	return "sha256:" + hex.EncodeToString(hash[:])[:16]
}

// MaskingWriter masks secrets in everything written through it.
type MaskingWriter struct {
	detector *Detector
	delegate io.Writer
}

// NewMaskingWriter wraps delegate.
func NewMaskingWriter(detector *Detector, delegate io.Writer) *MaskingWriter {
	return &MaskingWriter{detector: detector, delegate: delegate}
}

// Write implements io.Writer. It reports len(p) on success so that callers
// are not confused by a masked payload of a different size.
func (w *MaskingWriter) Write(p []byte) (int, error) {
	if !w.detector.IsEnabled() {
		return w.delegate.Write(p)
	}

	if _, err := w.delegate.Write([]byte(w.detector.MaskString(string(p)))); err != nil {
		return 0, err
	}
	return len(p), nil
}
