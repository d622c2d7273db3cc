package compiler

import (
	"bytes"
	"fmt"
	"os"

	"github.com/aretw0/deckflow/pkg/domain"
	"gopkg.in/yaml.v3"
)

// Parser converts topology documents into domain.Topology values.
// YAML is the native format; JSON documents are accepted as YAML.
type Parser struct {
	strict bool
}

// NewParser creates a parser that rejects unknown keys.
func NewParser() *Parser {
	return &Parser{strict: true}
}

// Parse decodes one topology document.
func (p *Parser) Parse(data []byte) (domain.Topology, error) {
	var t domain.Topology
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(p.strict)
	if err := dec.Decode(&t); err != nil {
		return domain.Topology{}, fmt.Errorf("failed to parse topology: %w", err)
	}
	if t.Name == "" {
		return domain.Topology{}, fmt.Errorf("topology missing name")
	}
	for i := range t.Edges {
		t.Edges[i].From = resolveSentinel(t.Edges[i].From)
		t.Edges[i].To = resolveSentinel(t.Edges[i].To)
		for j := range t.Edges[i].Targets {
			t.Edges[i].Targets[j] = resolveSentinel(t.Edges[i].Targets[j])
		}
	}
	return t, nil
}

// ParseFile reads and parses a topology file.
func (p *Parser) ParseFile(path string) (domain.Topology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Topology{}, fmt.Errorf("failed to read topology %s: %w", path, err)
	}
	return p.Parse(data)
}

// resolveSentinel lets documents write START and END instead of the internal IDs.
func resolveSentinel(id string) string {
	switch id {
	case "START", "start":
		return domain.Start
	case "END", "end":
		return domain.End
	}
	return id
}
