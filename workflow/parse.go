package workflow

import (
	"bytes"
	"encoding/json"

	"gopkg.in/yaml.v3"
)

// Parse decodes a JSON or YAML document of the form
// {configuration: ..., layout: ...}.
func Parse(data []byte) (Workflow, error) {
	var w Workflow
	if err := decode(data, &w); err != nil {
		return Workflow{}, err
	}
	return w, nil
}

// ParseConfiguration decodes a bare configuration document.
func ParseConfiguration(data []byte) (*Configuration, error) {
	var cfg Configuration
	if err := decode(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ParseLayout decodes a bare layout document.
func ParseLayout(data []byte) (*Layout, error) {
	var layout Layout
	if err := decode(data, &layout); err != nil {
		return nil, err
	}
	return &layout, nil
}

// Marshal renders w as indented JSON, the exchange format used by exports.
func Marshal(w Workflow) ([]byte, error) {
	return json.MarshalIndent(w, "", "  ")
}

func decode(data []byte, out any) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return parseFailed("empty document", nil)
	}
	var err error
	if trimmed[0] == '{' {
		err = json.Unmarshal(trimmed, out)
	} else {
		// yaml handles everything json does not
		err = yaml.Unmarshal(trimmed, out)
	}
	if err != nil {
		return parseFailed(err.Error(), err)
	}
	return nil
}

func parseFailed(reason string, source error) error {
	err := ErrParseFailed.Clone()
	err.Source = source
	return err.WithMetadata(map[string]any{"reason": reason})
}
