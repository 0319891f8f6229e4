package validator

import "testing"

type sample struct {
	Stage  string `validate:"omitempty,stage"`
	SortBy string `validate:"omitempty,sortby"`
}

func TestCustomTags(t *testing.T) {
	v := New()

	if err := v.Struct(sample{Stage: "negotiation", SortBy: "chance"}); err != nil {
		t.Fatalf("expected valid sample, got %v", err)
	}

	err := v.Struct(sample{Stage: "WON", SortBy: "random"})
	if err == nil {
		t.Fatalf("expected validation error")
	}
	fields := FieldErrors(err)
	if fields["Stage"] != "stage" || fields["SortBy"] != "sortby" {
		t.Fatalf("unexpected field errors: %#v", fields)
	}
}
