package tool

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ParseSpecification decodes a specification from JSON or YAML. The format is
// sniffed from the first non-space byte; anything that does not open a JSON
// object is treated as YAML.
func ParseSpecification(data []byte) (*Specification, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty specification document")
	}
	var spec Specification
	if trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &spec); err != nil {
			return nil, fmt.Errorf("decode specification JSON: %w", err)
		}
		return &spec, nil
	}
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("decode specification YAML: %w", err)
	}
	return &spec, nil
}
