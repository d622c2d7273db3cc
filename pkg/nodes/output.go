package nodes

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/deckflow/pkg/domain"
)

// decodeOutput parses generator JSON into out and runs the struct validation rules.
// Failures are reported as *domain.GenerationSchemaError.
func decodeOutput(nodeID, content string, out any) error {
	raw := stripFences(content)
	if raw == "" {
		return &domain.GenerationSchemaError{NodeID: nodeID, Err: errors.New("empty output")}
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return &domain.GenerationSchemaError{NodeID: nodeID, Err: err}
	}
	if err := validate.Struct(out); err != nil {
		return &domain.GenerationSchemaError{NodeID: nodeID, Err: err}
	}
	return nil
}

// stripFences removes a Markdown code fence some models wrap JSON in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// describe renders v as indented JSON for prompt context.
func describe(label string, v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%s: unavailable (%v)", label, err)
	}
	return fmt.Sprintf("%s:\n%s", label, data)
}
