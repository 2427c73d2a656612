package kit

import "testing"

func TestParseSort_ValidateField(t *testing.T) {
	def := SortSpec{Field: "at", Asc: false}
	if s, err := ParseSort("", def, "at"); err != nil || s != def {
		t.Fatalf("empty spec should yield default, got %+v, %v", s, err)
	}
	s, err := ParseSort("at:asc", def, "at", "uid")
	if err != nil || s.Field != "at" || !s.Asc {
		t.Fatalf("unexpected: %+v, %v", s, err)
	}
	if _, err := ParseSort("unknown:asc", def, "at"); err == nil {
		t.Fatalf("expected error for unknown field")
	}
	if _, err := ParseSort("at:sideways", def, "at"); err == nil {
		t.Fatalf("expected error for invalid direction")
	}
}
