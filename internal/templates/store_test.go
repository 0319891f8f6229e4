package templates

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"lead_engine_backend/internal/leads/domain"
	"lead_engine_backend/platform/apperr"
)

func TestDefaultCatalogIsValid(t *testing.T) {
	c, err := Load("")
	if err != nil {
		t.Fatalf("default catalog failed to load: %v", err)
	}

	seq, err := c.GetSequence("novo_lead")
	if err != nil {
		t.Fatalf("expected novo_lead sequence: %v", err)
	}
	if len(seq.Touches) != 3 || seq.EffectiveAnchor() != domain.AnchorSequenceStart {
		t.Fatalf("unexpected novo_lead shape: %+v", seq)
	}
	if unknown := c.UnknownPlaceholders(); len(unknown) != 0 {
		t.Fatalf("default catalog uses unknown placeholders: %#v", unknown)
	}
}

func TestGetSequenceReturnsCopy(t *testing.T) {
	c, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	seq, _ := c.GetSequence("novo_lead")
	seq.Touches[0].TemplateID = "mutated"

	again, _ := c.GetSequence("novo_lead")
	if again.Touches[0].TemplateID == "mutated" {
		t.Fatalf("catalog sequence was mutated through a returned copy")
	}
}

func TestMissingEntriesAreNotFound(t *testing.T) {
	c, err := New(map[string]string{"a": "x"}, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := c.GetSequence("nope"); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := c.GetMessageTemplate("nope"); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestParseRejectsUnknownTemplateReference(t *testing.T) {
	data := []byte(`
templates:
  a: "oi"
sequences:
  - id: s
    touches:
      - delay_hours: 0
        template: b
`)
	if _, err := Parse(data); err == nil {
		t.Fatalf("expected error for unknown template reference")
	}
}

func TestParseRejectsEmptySequence(t *testing.T) {
	data := []byte(`
templates:
  a: "oi"
sequences:
  - id: s
    touches: []
`)
	_, err := Parse(data)
	if !errors.Is(err, domain.ErrEmptySequence) {
		t.Fatalf("expected ErrEmptySequence, got %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	data := []byte(`
templates:
  a: "Oi {NOME_LEAD} {FOO}"
sequences:
  - id: s
    anchor: previous_touch
    touches:
      - delay_hours: 1
        template: a
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if body, _ := c.GetMessageTemplate("a"); body != "Oi {NOME_LEAD} {FOO}" {
		t.Fatalf("unexpected body %q", body)
	}
	if unknown := c.UnknownPlaceholders(); len(unknown["a"]) != 1 || unknown["a"][0] != "FOO" {
		t.Fatalf("expected FOO reported as unknown, got %#v", unknown)
	}
}
