package kit

import (
	"strings"

	"github.com/samber/lo"
)

// SortSpec is a validated "field:dir" sort parameter.
type SortSpec struct {
	Field string
	Asc   bool
}

func parseSortSpec(spec string) (field string, asc bool, err error) {
	if spec == "" {
		return "", true, nil
	}
	parts := strings.Split(spec, ":")
	field = strings.TrimSpace(parts[0])
	dir := lo.TernaryF(len(parts) > 1,
		func() string { return strings.ToLower(strings.TrimSpace(parts[1])) },
		func() string { return "asc" },
	)
	switch dir {
	case "asc":
		asc = true
	case "desc":
		asc = false
	default:
		return "", true, BadRequest("invalid sort direction", dir)
	}
	return field, asc, nil
}

// ParseSort validates spec against the allowed fields. An empty spec yields def.
func ParseSort(spec string, def SortSpec, allowed ...string) (SortSpec, error) {
	field, asc, err := parseSortSpec(spec)
	if err != nil {
		return SortSpec{}, err
	}
	if field == "" {
		return def, nil
	}
	if !lo.Contains(allowed, field) {
		return SortSpec{}, BadRequest("invalid sort field", field)
	}
	return SortSpec{Field: field, Asc: asc}, nil
}
