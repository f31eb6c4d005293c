// Package pathtemplate expands rootless path templates such as
//
//	{root[work]}/{project[name]}/{hierarchy}/{folder[name]}_v{version:0>5}.usda
//
// against nested context data. Formatting is strict: every placeholder must
// resolve or the whole template fails.
package pathtemplate

import (
	"fmt"
	"strconv"
	"strings"
)

// Data is the template context. Nested values are map[string]any or
// map[string]string.
type Data map[string]any

type segment struct {
	literal string
	field   *placeholder
}

type placeholder struct {
	raw   string
	path  []string
	width int
	fill  bool
	// integer is set for "0Nd"/"d" specs which only accept whole numbers.
	integer bool
}

// Template is a parsed path template, safe for concurrent use.
type Template struct {
	raw      string
	segments []segment
}

// UnresolvedPlaceholderError is returned when the context lacks one or more
// placeholder keys. Keys lists every missing placeholder in template order.
type UnresolvedPlaceholderError struct {
	Template string
	Keys     []string
}

func (e *UnresolvedPlaceholderError) Error() string {
	return fmt.Sprintf("template %q has unresolved placeholders: %s", e.Template, strings.Join(e.Keys, ", "))
}

// Parse compiles a template string.
func Parse(raw string) (*Template, error) {
	t := &Template{raw: raw}
	var lit strings.Builder

	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case c == '{' && i+1 < len(raw) && raw[i+1] == '{':
			lit.WriteByte('{')
			i++
		case c == '}' && i+1 < len(raw) && raw[i+1] == '}':
			lit.WriteByte('}')
			i++
		case c == '{':
			end := strings.IndexByte(raw[i+1:], '}')
			if end < 0 {
				return nil, fmt.Errorf("template %q: unterminated placeholder at offset %d", raw, i)
			}
			ph, err := parsePlaceholder(raw[i+1 : i+1+end])
			if err != nil {
				return nil, fmt.Errorf("template %q: %w", raw, err)
			}
			if lit.Len() > 0 {
				t.segments = append(t.segments, segment{literal: lit.String()})
				lit.Reset()
			}
			t.segments = append(t.segments, segment{field: ph})
			i += end + 1
		case c == '}':
			return nil, fmt.Errorf("template %q: unmatched '}' at offset %d", raw, i)
		default:
			lit.WriteByte(c)
		}
	}
	if lit.Len() > 0 {
		t.segments = append(t.segments, segment{literal: lit.String()})
	}
	return t, nil
}

func parsePlaceholder(body string) (*placeholder, error) {
	ph := &placeholder{raw: body}
	key := body
	if i := strings.IndexByte(body, ':'); i >= 0 {
		key = body[:i]
		if err := ph.parseSpec(body[i+1:]); err != nil {
			return nil, fmt.Errorf("placeholder {%s}: %w", body, err)
		}
	}

	name, rest, _ := strings.Cut(key, "[")
	if name == "" {
		return nil, fmt.Errorf("placeholder {%s}: empty key", body)
	}
	ph.path = append(ph.path, name)
	if rest != "" {
		rest = "[" + rest
		for rest != "" {
			if rest[0] != '[' {
				return nil, fmt.Errorf("placeholder {%s}: malformed key", body)
			}
			end := strings.IndexByte(rest, ']')
			if end <= 1 {
				return nil, fmt.Errorf("placeholder {%s}: malformed key", body)
			}
			ph.path = append(ph.path, rest[1:end])
			rest = rest[end+1:]
		}
	}
	return ph, nil
}

// parseSpec accepts "0>N", "0N", "0Nd" and "d".
func (p *placeholder) parseSpec(spec string) error {
	switch {
	case spec == "d":
		p.integer = true
		return nil
	case strings.HasPrefix(spec, "0>"):
		w, err := strconv.Atoi(spec[2:])
		if err != nil || w <= 0 {
			return fmt.Errorf("invalid width in format spec %q", spec)
		}
		p.width, p.fill = w, true
		return nil
	case strings.HasPrefix(spec, "0"):
		digits := strings.TrimSuffix(spec[1:], "d")
		w, err := strconv.Atoi(digits)
		if err != nil || w <= 0 {
			return fmt.Errorf("invalid width in format spec %q", spec)
		}
		p.width, p.fill, p.integer = w, true, true
		return nil
	}
	return fmt.Errorf("unsupported format spec %q", spec)
}

// String returns the unparsed template.
func (t *Template) String() string {
	return t.raw
}

// Keys returns the placeholders of the template in order, e.g. "folder[name]".
func (t *Template) Keys() []string {
	var keys []string
	for _, seg := range t.segments {
		if seg.field != nil {
			keys = append(keys, seg.field.key())
		}
	}
	return keys
}

// Format substitutes every placeholder. It never returns a partially
// resolved string.
func (t *Template) Format(data Data) (string, error) {
	var out strings.Builder
	var missing []string

	for _, seg := range t.segments {
		if seg.field == nil {
			out.WriteString(seg.literal)
			continue
		}
		value, ok := lookup(data, seg.field.path)
		if !ok {
			missing = append(missing, seg.field.key())
			continue
		}
		rendered, err := seg.field.render(value)
		if err != nil {
			return "", fmt.Errorf("template %q: placeholder {%s}: %w", t.raw, seg.field.raw, err)
		}
		out.WriteString(rendered)
	}

	if len(missing) > 0 {
		return "", &UnresolvedPlaceholderError{Template: t.raw, Keys: missing}
	}
	return out.String(), nil
}

// Resolve parses and formats in one step.
func Resolve(raw string, data Data) (string, error) {
	t, err := Parse(raw)
	if err != nil {
		return "", err
	}
	return t.Format(data)
}

func (p *placeholder) key() string {
	var b strings.Builder
	b.WriteString(p.path[0])
	for _, part := range p.path[1:] {
		b.WriteString("[" + part + "]")
	}
	return b.String()
}

func lookup(data Data, path []string) (any, bool) {
	var current any = map[string]any(data)
	for _, part := range path {
		switch m := current.(type) {
		case map[string]any:
			v, ok := m[part]
			if !ok {
				return nil, false
			}
			current = v
		case Data:
			v, ok := m[part]
			if !ok {
				return nil, false
			}
			current = v
		case map[string]string:
			v, ok := m[part]
			if !ok {
				return nil, false
			}
			current = v
		default:
			return nil, false
		}
	}
	if current == nil {
		return nil, false
	}
	switch current.(type) {
	case map[string]any, Data, map[string]string:
		// A mapping is not a printable leaf.
		return nil, false
	}
	return current, true
}

func (p *placeholder) render(value any) (string, error) {
	var s string
	if p.integer {
		n, err := toInt(value)
		if err != nil {
			return "", err
		}
		s = strconv.FormatInt(n, 10)
	} else {
		s = fmt.Sprint(value)
	}
	if p.fill && len(s) < p.width {
		if strings.HasPrefix(s, "-") && p.integer {
			s = "-" + strings.Repeat("0", p.width-len(s)) + s[1:]
		} else {
			s = strings.Repeat("0", p.width-len(s)) + s
		}
	}
	return s, nil
}

func toInt(value any) (int64, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint:
		return int64(v), nil
	case float64:
		if v != float64(int64(v)) {
			return 0, fmt.Errorf("value %v is not an integer", v)
		}
		return int64(v), nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("value %q is not an integer", v)
		}
		return n, nil
	}
	return 0, fmt.Errorf("value of type %T is not an integer", value)
}
