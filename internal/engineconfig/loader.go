package engineconfig

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// ValidationError names the offending field
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Load reads a YAML file over the defaults.
// Unknown fields are rejected so a typo cannot silently fall back to a default.
func Load(path string) (Settings, error) {
	settings := Default()
	if path == "" {
		return settings, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return settings, fmt.Errorf("read engine config: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML bytes over the defaults and validates the result
func Parse(data []byte) (Settings, error) {
	settings := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&settings); err != nil && !errors.Is(err, io.EOF) {
		return Default(), fmt.Errorf("decode engine config: %w", err)
	}

	if err := Validate(settings); err != nil {
		return Default(), err
	}

	return settings, nil
}

// Validate checks every threshold is usable
func Validate(s Settings) error {
	if s.StaleAfterDays < 0 {
		return ValidationError{"stale_after_days", "must be >= 0"}
	}
	if s.StaleLimit <= 0 {
		return ValidationError{"stale_limit", "must be > 0"}
	}
	if s.TrendMonths <= 0 {
		return ValidationError{"trend_months", "must be > 0"}
	}
	if s.DefaultLookbackDays <= 0 {
		return ValidationError{"default_lookback_days", "must be > 0"}
	}
	if s.StaleAlertDays < s.StaleAfterDays {
		return ValidationError{"stale_alert_days", "must be >= stale_after_days"}
	}
	return nil
}

// Hash returns a stable fingerprint logged with every evaluation
func Hash(s Settings) string {
	// struct → JSON keeps field order fixed
	jsonBytes, _ := json.Marshal(s)
	sum := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(sum[:8])
}
