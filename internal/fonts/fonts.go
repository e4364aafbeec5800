// Package fonts matches subtitle styles to font files so the fonts a subtitle needs
// can be attached to the output container.
package fonts

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Subfamily is a normalized, sorted set of weight/slant tokens such as {Bold, Italic}.
type Subfamily []string

// NewSubfamily normalizes tokens: "Oblique" is treated as "Italic", duplicates and
// blanks are dropped and the result is sorted so equal sets compare equal.
func NewSubfamily(tokens ...string) Subfamily {
	set := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if tok == "Oblique" {
			tok = "Italic"
		}
		set[tok] = struct{}{}
	}
	sf := make(Subfamily, 0, len(set))
	for tok := range set {
		sf = append(sf, tok)
	}
	sort.Strings(sf)
	return sf
}

// ParseSubfamily splits a font's subfamily name ("Bold Oblique") into a set.
func ParseSubfamily(name string) Subfamily {
	return NewSubfamily(strings.Fields(name)...)
}

// Equal reports whether both sets hold the same tokens.
func (s Subfamily) Equal(other Subfamily) bool {
	a, b := NewSubfamily(s...), NewSubfamily(other...)
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (s Subfamily) String() string {
	return strings.Join(s, "+")
}

// Font describes one font file.
type Font struct {
	Name      string
	Family    string
	Subfamily Subfamily
	File      string // file identity; two fonts are duplicates iff File matches
}

// Style is a style definition from a subtitle document.
type Style struct {
	Name      string
	Family    string
	Subfamily Subfamily
}

// ErrFontNotFound is matched by every FontNotFoundError.
var ErrFontNotFound = errors.New("font not found")

// FontNotFoundError reports a style with no matching font, or with more than one.
type FontNotFoundError struct {
	Style      Style
	Candidates int
}

func (e *FontNotFoundError) Error() string {
	if e.Candidates > 1 {
		return fmt.Sprintf("style '%s' matches %d fonts: font => '%s/%s'",
			e.Style.Name, e.Candidates, e.Style.Family, e.Style.Subfamily)
	}
	return fmt.Sprintf("could not find a font for style '%s': font => '%s/%s'",
		e.Style.Name, e.Style.Family, e.Style.Subfamily)
}

func (e *FontNotFoundError) Is(target error) bool {
	return target == ErrFontNotFound
}

// Resolve returns the font for every style. Each style must match exactly one font
// (same family, same subfamily set). The result holds each file once, in the order
// the files were first matched.
func Resolve(fonts []Font, styles []Style) ([]Font, error) {
	matched := make([]Font, 0, len(styles))
	for _, style := range styles {
		var candidates []Font
		for _, f := range fonts {
			if f.Family == style.Family && f.Subfamily.Equal(style.Subfamily) {
				candidates = append(candidates, f)
			}
		}
		if len(candidates) != 1 {
			return nil, &FontNotFoundError{Style: style, Candidates: len(candidates)}
		}
		matched = append(matched, candidates[0])
	}
	return Dedupe(matched), nil
}

// Dedupe drops fonts whose file was already seen, keeping the first occurrence.
func Dedupe(fonts []Font) []Font {
	seen := make(map[string]bool, len(fonts))
	out := make([]Font, 0, len(fonts))
	for _, f := range fonts {
		if seen[f.File] {
			continue
		}
		seen[f.File] = true
		out = append(out, f)
	}
	return out
}
