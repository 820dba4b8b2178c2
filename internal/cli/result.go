package cli

import (
	"fmt"
	"io"
)

// Result is a single message with ordered details.
// Created via Output.Result().
type Result struct {
	out     *Output
	meta    Meta
	message string
	details []kvPair
}

// With adds a detail key-value pair.
func (r *Result) With(key string, value any) *Result {
	r.details = append(r.details, kvPair{key: key, value: value})
	return r
}

// Render outputs the result in the configured format.
func (r *Result) Render() error {
	return r.out.Render(r)
}

// Meta returns the metadata.
func (r *Result) Meta() Meta {
	return r.meta
}

// RenderText writes the message and indented details.
func (r *Result) RenderText(w io.Writer) error {
	if _, err := fmt.Fprintln(w, r.message); err != nil {
		return err
	}
	return writePairs(w, "  ", r.details)
}

// Data returns message and details as an object.
func (r *Result) Data() any {
	result := make(map[string]any, len(r.details)+1)
	result["message"] = r.message
	for _, p := range r.details {
		result[toKey(p.key)] = p.value
	}
	return result
}
