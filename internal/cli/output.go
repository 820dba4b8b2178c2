// Package cli renders command results as text, JSON, or YAML and loads the
// signing key a command runs as.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Format represents an output format.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat parses a format string, defaulting to text.
func ParseFormat(s string) Format {
	switch s {
	case "json":
		return FormatJSON
	case "yaml", "yml":
		return FormatYAML
	default:
		return FormatText
	}
}

// Meta describes a rendered result.
type Meta struct {
	Type      string    `json:"type" yaml:"type"`
	Version   string    `json:"version,omitempty" yaml:"version,omitempty"`
	Generated time.Time `json:"generated" yaml:"generated"`
	Cursor    string    `json:"cursor,omitempty" yaml:"cursor,omitempty"`
	HasMore   bool      `json:"has_more,omitempty" yaml:"has_more,omitempty"`
}

// NewMeta creates metadata with the given type and current timestamp.
func NewMeta(resultType string) Meta {
	return Meta{
		Type:      resultType,
		Version:   "v1",
		Generated: time.Now().UTC(),
	}
}

// WithPagination adds pagination info to metadata.
func (m Meta) WithPagination(cursor string, hasMore bool) Meta {
	m.Cursor = cursor
	m.HasMore = hasMore
	return m
}

// Renderable can render itself as text and expose its data for structured
// formats.
type Renderable interface {
	Meta() Meta
	RenderText(w io.Writer) error
	Data() any
}

// Output handles formatted rendering with an envelope for structured formats.
type Output struct {
	format Format
	w      io.Writer
}

// NewOutput creates an output renderer for the given format.
func NewOutput(format Format, w io.Writer) *Output {
	return &Output{format: format, w: w}
}

// ViperGetter is the subset of viper.Viper we need.
type ViperGetter interface {
	GetString(key string) string
}

// NewOutputFromViper creates an output renderer from the "output" key.
func NewOutputFromViper(v ViperGetter) *Output {
	return NewOutput(ParseFormat(v.GetString("output")), os.Stdout)
}

// Format returns the configured output format.
func (o *Output) Format() Format {
	return o.format
}

// Writer returns the destination writer.
func (o *Output) Writer() io.Writer {
	return o.w
}

// Table creates a new table renderer attached to this output.
func (o *Output) Table(resultType string, headers ...string) *Table {
	return &Table{out: o, meta: NewMeta(resultType), headers: headers}
}

// KV creates a new key-value renderer attached to this output.
func (o *Output) KV(resultType string) *KV {
	return &KV{out: o, meta: NewMeta(resultType)}
}

// Result creates a new result renderer attached to this output.
func (o *Output) Result(resultType, message string) *Result {
	return &Result{out: o, meta: NewMeta(resultType), message: message}
}

// Value renders an arbitrary value. Text output is the value as YAML.
func (o *Output) Value(resultType string, v any) error {
	return o.Render(&value{meta: NewMeta(resultType), v: v})
}

// Render outputs the renderable in the configured format.
func (o *Output) Render(r Renderable) error {
	switch o.format {
	case FormatJSON:
		return o.renderJSON(r)
	case FormatYAML:
		return o.renderYAML(r)
	default:
		return o.renderText(r)
	}
}

func (o *Output) renderText(r Renderable) error {
	if err := r.RenderText(o.w); err != nil {
		return err
	}

	meta := r.Meta()
	if meta.HasMore && meta.Cursor != "" {
		if _, err := fmt.Fprintf(o.w, "\nMore results: --from=%s\n", meta.Cursor); err != nil {
			return err
		}
	}
	return nil
}

type envelope struct {
	Meta Meta `json:"meta" yaml:"meta"`
	Data any  `json:"data" yaml:"data"`
}

func (o *Output) renderJSON(r Renderable) error {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	return enc.Encode(envelope{Meta: r.Meta(), Data: r.Data()})
}

func (o *Output) renderYAML(r Renderable) error {
	enc := yaml.NewEncoder(o.w)
	enc.SetIndent(2)
	if err := enc.Encode(envelope{Meta: r.Meta(), Data: r.Data()}); err != nil {
		return err
	}
	return enc.Close()
}

type value struct {
	meta Meta
	v    any
}

func (v *value) Meta() Meta { return v.meta }
func (v *value) Data() any  { return v.v }

func (v *value) RenderText(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v.v); err != nil {
		return err
	}
	return enc.Close()
}
