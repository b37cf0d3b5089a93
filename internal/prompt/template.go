// Package prompt binds table rows into {{column}} prompt templates.
//
// Placeholders are taken verbatim between "{{" and the next "}}". Binding is a
// single left-to-right pass over the template: substituted values are copied
// as opaque text and never rescanned, so data containing braces cannot
// trigger further substitution.
package prompt

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/rshade/rowprompt/internal/table"
)

const (
	openDelim  = "{{"
	closeDelim = "}}"
)

// ErrUnknownColumn is wrapped by UnknownColumnError.
var ErrUnknownColumn = errors.New("unknown template column")

// UnknownColumnError names a placeholder that has no matching column.
type UnknownColumnError struct {
	Name string
}

func (e *UnknownColumnError) Error() string {
	return fmt.Sprintf("column %q not found in CSV headers", e.Name)
}

func (e *UnknownColumnError) Unwrap() error {
	return ErrUnknownColumn
}

// segment is either literal text or a placeholder reference.
type segment struct {
	text        string
	placeholder bool
}

// parse splits tmpl into literal and placeholder segments. An unterminated
// "{{" is kept as literal text.
func parse(tmpl string) []segment {
	var segs []segment
	rest := tmpl
	for {
		start := strings.Index(rest, openDelim)
		if start < 0 {
			break
		}
		end := strings.Index(rest[start+len(openDelim):], closeDelim)
		if end < 0 {
			break
		}
		if start > 0 {
			segs = append(segs, segment{text: rest[:start]})
		}
		name := rest[start+len(openDelim) : start+len(openDelim)+end]
		segs = append(segs, segment{text: name, placeholder: true})
		rest = rest[start+len(openDelim)+end+len(closeDelim):]
	}
	if rest != "" {
		segs = append(segs, segment{text: rest})
	}
	return segs
}

// Placeholders returns the placeholder names in order of appearance,
// including repeats.
func Placeholders(tmpl string) []string {
	var names []string
	for _, s := range parse(tmpl) {
		if s.placeholder {
			names = append(names, s.text)
		}
	}
	return names
}

// Validate checks every placeholder in tmpl against columns and returns an
// *UnknownColumnError for the first one that is missing.
func Validate(tmpl string, columns []string) error {
	for _, name := range Placeholders(tmpl) {
		if !slices.Contains(columns, name) {
			return &UnknownColumnError{Name: name}
		}
	}
	return nil
}

// Bind substitutes row values into tmpl.
func Bind(tmpl string, row table.Row) (string, error) {
	return render(parse(tmpl), len(tmpl), row)
}

func render(segs []segment, sizeHint int, row table.Row) (string, error) {
	var sb strings.Builder
	sb.Grow(sizeHint)
	for _, s := range segs {
		if !s.placeholder {
			sb.WriteString(s.text)
			continue
		}
		v, ok := row.Get(s.text)
		if !ok {
			return "", &UnknownColumnError{Name: s.text}
		}
		sb.WriteString(v)
	}
	return sb.String(), nil
}

// Template is a parsed prompt template that can be bound repeatedly.
type Template struct {
	raw  string
	segs []segment
}

// Compile validates tmpl against columns and returns a reusable Template.
func Compile(tmpl string, columns []string) (*Template, error) {
	if err := Validate(tmpl, columns); err != nil {
		return nil, err
	}
	return &Template{raw: tmpl, segs: parse(tmpl)}, nil
}

// String returns the source template.
func (t *Template) String() string {
	return t.raw
}

// Bind renders the template for row.
func (t *Template) Bind(row table.Row) (string, error) {
	return render(t.segs, len(t.raw), row)
}
