// Package templates loads the static catalog of sequences and message templates.
// The catalog is read once at startup and never mutated by the engine.
package templates

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"lead_engine_backend/internal/leads/domain"
	"lead_engine_backend/internal/templating"
	"lead_engine_backend/platform/apperr"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultCatalog []byte

// Store resolves sequences and message templates by ID.
type Store interface {
	GetSequence(id string) (domain.Sequence, error)
	GetMessageTemplate(id string) (string, error)
}

// MessageTemplate is a named message body.
type MessageTemplate struct {
	ID   string `json:"id"`
	Body string `json:"body"`
}

type catalogFile struct {
	Templates map[string]string `yaml:"templates"`
	Sequences []domain.Sequence `yaml:"sequences"`
}

// Catalog is an immutable, validated in-memory Store.
type Catalog struct {
	templates map[string]string
	sequences map[string]domain.Sequence
	order     []string
}

var _ Store = (*Catalog)(nil)

// Load reads a YAML catalog from path, or the built-in catalog when path is empty.
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Parse(defaultCatalog)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode template catalog: %w", err)
	}
	return New(file.Templates, file.Sequences)
}

// New builds a catalog from already-decoded parts. Every touch must reference a known template.
func New(templates map[string]string, sequences []domain.Sequence) (*Catalog, error) {
	c := &Catalog{
		templates: make(map[string]string, len(templates)),
		sequences: make(map[string]domain.Sequence, len(sequences)),
	}
	for id, body := range templates {
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, fmt.Errorf("template with empty id")
		}
		c.templates[id] = body
	}

	for _, seq := range sequences {
		if err := seq.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.sequences[seq.ID]; dup {
			return nil, fmt.Errorf("duplicate sequence id %q", seq.ID)
		}
		for i, touch := range seq.Touches {
			if _, ok := c.templates[touch.TemplateID]; !ok {
				return nil, fmt.Errorf("sequence %s: touch %d references unknown template %q", seq.ID, i, touch.TemplateID)
			}
		}
		seq.Touches = append([]domain.Touch(nil), seq.Touches...)
		c.sequences[seq.ID] = seq
		c.order = append(c.order, seq.ID)
	}
	return c, nil
}

// GetSequence returns the sequence with id.
func (c *Catalog) GetSequence(id string) (domain.Sequence, error) {
	seq, ok := c.sequences[id]
	if !ok {
		return domain.Sequence{}, apperr.NotFound("sequence not found").WithReason("sequence_not_found")
	}
	seq.Touches = append([]domain.Touch(nil), seq.Touches...)
	return seq, nil
}

// GetMessageTemplate returns the body of the template with id.
func (c *Catalog) GetMessageTemplate(id string) (string, error) {
	body, ok := c.templates[id]
	if !ok {
		return "", apperr.NotFound("message template not found").WithReason("template_not_found")
	}
	return body, nil
}

// Sequences lists sequences in catalog order.
func (c *Catalog) Sequences() []domain.Sequence {
	out := make([]domain.Sequence, 0, len(c.order))
	for _, id := range c.order {
		seq, _ := c.GetSequence(id)
		out = append(out, seq)
	}
	return out
}

// Templates lists message templates sorted by ID.
func (c *Catalog) Templates() []MessageTemplate {
	out := make([]MessageTemplate, 0, len(c.templates))
	for id, body := range c.templates {
		out = append(out, MessageTemplate{ID: id, Body: body})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// UnknownPlaceholders reports, per template, placeholders LeadVars cannot fill.
// They render as empty text, which is usually a typo in the catalog.
func (c *Catalog) UnknownPlaceholders() map[string][]string {
	known := templating.LeadVars(domain.Lead{})
	out := map[string][]string{}
	for id, body := range c.templates {
		for _, name := range templating.Placeholders(body) {
			if _, ok := known[name]; !ok {
				out[id] = append(out[id], name)
			}
		}
	}
	return out
}
