// Package mime parses Content-Type and Accept header values into
// type/subtype pairs and matches them with wildcard support.
package mime

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidMediaType is wrapped by [ParseError] when a value has no '/'.
var ErrInvalidMediaType = errors.New("invalid media type")

// ParseError reports the value that failed to parse.
type ParseError struct {
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%v: %q", e.Err, e.Value)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Any matches every media type.
var Any = Type{Type: "*", Subtype: "*"}

// Type is a parsed media type without parameters.
type Type struct {
	Type    string
	Subtype string
}

// Parse strips any parameters following ';' and splits the remainder
// into type and subtype. Both halves are lower-cased.
func Parse(s string) (Type, error) {
	v := s
	if i := strings.IndexByte(v, ';'); i >= 0 {
		v = v[:i]
	}
	v = strings.TrimSpace(v)

	typ, sub, ok := strings.Cut(v, "/")
	typ, sub = strings.TrimSpace(typ), strings.TrimSpace(sub)
	if !ok || typ == "" || sub == "" || strings.Contains(sub, "/") {
		return Type{}, &ParseError{Value: s, Err: ErrInvalidMediaType}
	}

	return Type{
		Type:    strings.ToLower(typ),
		Subtype: strings.ToLower(sub),
	}, nil
}

// MustParse is like Parse but panics on error.
func MustParse(s string) Type {
	t, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return t
}

// Matches reports whether t and other name the same media type, treating
// "*" on either side as a wildcard for that half.
func (t Type) Matches(other Type) bool {
	return part(t.Type, other.Type) && part(t.Subtype, other.Subtype)
}

func (t Type) String() string {
	return t.Type + "/" + t.Subtype
}

// Matches parses a and b and reports whether they match.
// Unparseable input never matches.
func Matches(a, b string) bool {
	ta, err := Parse(a)
	if err != nil {
		return false
	}
	tb, err := Parse(b)
	if err != nil {
		return false
	}
	return ta.Matches(tb)
}

// ParseList splits a comma separated header value such as Accept and
// parses every entry, skipping the ones that fail.
func ParseList(header string) []Type {
	var types []Type
	for entry := range strings.SplitSeq(header, ",") {
		if strings.TrimSpace(entry) == "" {
			continue
		}
		t, err := Parse(entry)
		if err != nil {
			continue
		}
		types = append(types, t)
	}
	return types
}

func part(a, b string) bool {
	return a == b || a == "*" || b == "*"
}
