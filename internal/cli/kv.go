package cli

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

var keyStyle = lipgloss.NewStyle().Bold(true)

// KV renders key-value pairs in insertion order.
// Created via Output.KV().
type KV struct {
	out   *Output
	meta  Meta
	pairs []kvPair
}

type kvPair struct {
	key   string
	value any
}

// Set adds a key-value pair. Value can be any type.
func (k *KV) Set(key string, value any) *KV {
	k.pairs = append(k.pairs, kvPair{key: key, value: value})
	return k
}

// Render outputs the key-value pairs in the configured format.
func (k *KV) Render() error {
	return k.out.Render(k)
}

// Meta returns the metadata.
func (k *KV) Meta() Meta {
	return k.meta
}

// RenderText writes aligned key: value lines.
func (k *KV) RenderText(w io.Writer) error {
	return writePairs(w, "", k.pairs)
}

// Data returns the pairs as an object.
func (k *KV) Data() any {
	result := make(map[string]any, len(k.pairs))
	for _, p := range k.pairs {
		result[toKey(p.key)] = p.value
	}
	return result
}

func writePairs(w io.Writer, indent string, pairs []kvPair) error {
	width := 0
	for _, p := range pairs {
		width = max(width, len(p.key)+1)
	}
	label := keyStyle.Width(width)
	for _, p := range pairs {
		if _, err := fmt.Fprintf(w, "%s%s  %v\n", indent, label.Render(p.key+":"), p.value); err != nil {
			return err
		}
	}
	return nil
}
