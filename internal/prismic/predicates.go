package prismic

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Predicate is a single Prismic query predicate such as at(document.type, "posts").
type Predicate struct {
	op     string
	path   string
	values []string
}

const (
	opAt  = "at"
	opAny = "any"
)

// At matches documents whose field at path equals value.
func At(path, value string) Predicate {
	return Predicate{op: opAt, path: path, values: []string{value}}
}

// Any matches documents whose field at path equals one of values.
func Any(path string, values ...string) Predicate {
	return Predicate{op: opAny, path: path, values: append([]string(nil), values...)}
}

// Op returns the predicate operator ("at" or "any").
func (p Predicate) Op() string { return p.op }

// Path returns the field path the predicate applies to.
func (p Predicate) Path() string { return p.path }

// Values returns a copy of the predicate operands.
func (p Predicate) Values() []string { return append([]string(nil), p.values...) }

// Matches reports whether value satisfies the predicate.
func (p Predicate) Matches(value string) bool {
	for _, v := range p.values {
		if v == value {
			return true
		}
	}
	return false
}

// String renders the predicate in Prismic's query syntax.
func (p Predicate) String() string {
	switch p.op {
	case opAny:
		quoted := make([]string, 0, len(p.values))
		for _, v := range p.values {
			quoted = append(quoted, strconv.Quote(v))
		}
		return fmt.Sprintf("[any(%s, [%s])]", p.path, strings.Join(quoted, ", "))
	default:
		value := ""
		if len(p.values) > 0 {
			value = p.values[0]
		}
		return fmt.Sprintf("[at(%s, %s)]", p.path, strconv.Quote(value))
	}
}

// encodeQuery joins predicates into the value of the q parameter.
func encodeQuery(predicates []Predicate) string {
	var b strings.Builder
	b.WriteByte('[')
	for _, p := range predicates {
		b.WriteString(p.String())
	}
	b.WriteByte(']')
	return b.String()
}

var predicatePattern = regexp.MustCompile(`^\[(at|any)\(\s*([A-Za-z0-9_.\-]+)\s*,\s*(.+)\)\]$`)

// ParsePredicate parses the output of Predicate.String.
func ParsePredicate(raw string) (Predicate, error) {
	m := predicatePattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return Predicate{}, fmt.Errorf("prismic: malformed predicate %q", raw)
	}
	op, path, operand := m[1], m[2], strings.TrimSpace(m[3])

	if op == opAny {
		var values []string
		if err := json.Unmarshal([]byte(operand), &values); err != nil {
			return Predicate{}, fmt.Errorf("prismic: malformed any() operand %q: %w", operand, err)
		}
		return Any(path, values...), nil
	}

	value, err := strconv.Unquote(operand)
	if err != nil {
		return Predicate{}, fmt.Errorf("prismic: malformed at() operand %q: %w", operand, err)
	}
	return At(path, value), nil
}
