package config

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// DecodeStrict decodes an embark.yaml document into out, rejecting keys the
// Config does not declare. An empty document leaves out untouched.
func DecodeStrict(r io.Reader, out any) error {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid embark.yaml: %w", err)
	}
	return nil
}

// Encode writes cfg as embark.yaml with two-space indentation.
func Encode(w io.Writer, cfg *Config) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode embark.yaml: %w", err)
	}
	return encoder.Close()
}
