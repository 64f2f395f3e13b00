package store

import (
	"fmt"
	"strings"
)

// Decode parses the line-oriented structured-text format into a Document.
// Recognized lines: `## Section` headers, `Key: Value` fields, `- item`
// bullets, `| a | b |` table rows. Anything else, including text before the
// first header, is skipped; malformed input degrades to an empty document
// rather than failing.
func Decode(text string) *Document {
	doc := NewDocument()
	var cur *Section
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(strings.TrimRight(line, "\r"))
		switch {
		case trimmed == "":
			continue
		case strings.HasPrefix(trimmed, "##"):
			name := strings.TrimSpace(strings.TrimPrefix(trimmed, "##"))
			if name != "" {
				cur = doc.EnsureSection(name)
			}
		case cur == nil:
			continue
		case strings.HasPrefix(trimmed, "- "):
			if item := strings.TrimSpace(trimmed[2:]); item != "" {
				cur.AddItem(item)
			}
		case strings.HasPrefix(trimmed, "|"):
			if row := parseRow(trimmed); row != nil {
				cur.Rows = append(cur.Rows, row)
			}
		default:
			if key, val, ok := strings.Cut(trimmed, ":"); ok {
				if key = strings.TrimSpace(key); key != "" {
					cur.Set(key, ParseValue(val))
				}
			}
		}
	}
	return doc
}

// parseRow splits a `| a | b |` line into trimmed cells. Markdown-style
// separator rows (cells of dashes only) return nil.
func parseRow(line string) []string {
	inner := strings.TrimSuffix(strings.TrimPrefix(line, "|"), "|")
	parts := strings.Split(inner, "|")
	row := make([]string, 0, len(parts))
	separator := true
	for _, p := range parts {
		cell := strings.TrimSpace(p)
		if cell == "" || strings.Trim(cell, "-") != "" {
			separator = false
		}
		row = append(row, cell)
	}
	if separator {
		return nil
	}
	return row
}

// Encode renders a Document back to the structured-text format. Encoding a
// decoded document reproduces it exactly, so a read-modify-write cycle that
// touches nothing leaves the stored text unchanged.
func Encode(doc *Document) string {
	var b strings.Builder
	for i, sec := range doc.Sections {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "## %s\n", sec.Name)
		for _, f := range sec.Fields {
			fmt.Fprintf(&b, "%s: %s\n", f.Key, f.Value)
		}
		for _, item := range sec.Items {
			fmt.Fprintf(&b, "- %s\n", item)
		}
		for _, row := range sec.Rows {
			fmt.Fprintf(&b, "| %s |\n", strings.Join(row, " | "))
		}
	}
	return b.String()
}

// Attr is one key=value pair of a field-string record such as
// "confidence=0.8, occurrences=5". Typed records are serialized to this
// form only at the persistence boundary.
type Attr struct {
	Key   string
	Value Value
}

// FormatAttrs renders attrs as "k=v, k=v" in the given order.
func FormatAttrs(attrs []Attr) string {
	parts := make([]string, 0, len(attrs))
	for _, a := range attrs {
		parts = append(parts, a.Key+"="+a.Value.String())
	}
	return strings.Join(parts, ", ")
}

// ParseAttrs decodes a "k=v, k=v" field string. Malformed parts are
// skipped.
func ParseAttrs(s string) map[string]Value {
	out := make(map[string]Value)
	for _, part := range strings.Split(s, ",") {
		key, val, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		if key = strings.TrimSpace(key); key != "" {
			out[key] = ParseValue(val)
		}
	}
	return out
}
