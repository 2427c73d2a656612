package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/samber/lo"
)

// Output writes results as indented JSON or as key: value lines.
type Output struct {
	w      io.Writer
	format string
}

func NewOutput(w io.Writer, format string) *Output {
	return &Output{w: w, format: format}
}

func (o *Output) Print(v any) error {
	if o.format == "json" {
		enc := json.NewEncoder(o.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var flat map[string]any
	if err := json.Unmarshal(b, &flat); err != nil {
		_, err = fmt.Fprintln(o.w, string(b))
		return err
	}
	keys := lo.Keys(flat)
	slices.Sort(keys)
	for _, k := range keys {
		if _, err := fmt.Fprintf(o.w, "%s: %v\n", k, flat[k]); err != nil {
			return err
		}
	}
	return nil
}
