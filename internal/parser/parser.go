// Package parser splits person records into their YAML header and opaque
// Markdown body, and decodes the wikilink reference syntax used in header
// field values.
package parser

import (
	"bytes"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var wikilinkRe = regexp.MustCompile(`^\[\[(.*?)\]\]$`)

const delim = "---"

// Result holds the output of parsing a record file. The body is opaque to
// the engine: it is split off and carried through writes untouched.
type Result struct {
	Frontmatter map[string]interface{}
	Body        string
}

// Parse extracts the frontmatter mapping and body from raw record bytes.
// Files without frontmatter, and files whose frontmatter is not valid YAML,
// parse to a nil mapping with the entire content as body.
func Parse(data []byte) (*Result, error) {
	header, rest, ok := SplitRaw(data)
	if !ok {
		return &Result{Body: string(data)}, nil
	}

	var fm map[string]interface{}
	if err := yaml.Unmarshal(header, &fm); err != nil {
		return &Result{Body: string(data)}, nil
	}

	return &Result{
		Frontmatter: fm,
		Body:        strings.TrimLeft(string(rest), "\n\r"),
	}, nil
}

// SplitRaw separates the frontmatter block (between leading --- delimiters)
// from the rest of the file, byte-exact. rest begins immediately after the
// closing delimiter line, including any blank lines, so callers can
// reassemble the file without disturbing the body.
func SplitRaw(data []byte) (header, rest []byte, ok bool) {
	trimmed := bytes.TrimLeft(data, "\n\r")
	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, data, false
	}

	after := trimmed[len(delim):]
	idx := bytes.Index(after, []byte("\n"+delim))
	if idx < 0 {
		return nil, data, false
	}

	header = after[:idx]
	rest = after[idx+1+len(delim):]
	// Drop the newline that terminates the closing delimiter line.
	if len(rest) > 0 && rest[0] == '\r' {
		rest = rest[1:]
	}
	if len(rest) > 0 && rest[0] == '\n' {
		rest = rest[1:]
	}
	return header, rest, true
}

// Assemble rebuilds a record file from a frontmatter block and the opaque
// rest of the file. header must not include the --- delimiters.
func Assemble(header, rest []byte) []byte {
	var b bytes.Buffer
	b.WriteString(delim)
	b.WriteByte('\n')
	b.Write(bytes.TrimLeft(header, "\n"))
	if len(header) > 0 && header[len(header)-1] != '\n' {
		b.WriteByte('\n')
	}
	b.WriteString(delim)
	b.WriteByte('\n')
	b.Write(rest)
	return b.Bytes()
}

// ParseWikilink decodes a [[Target]] or [[Target|alias]] field value.
// ok is false when the value is not wikilink-shaped.
func ParseWikilink(value string) (target string, ok bool) {
	m := wikilinkRe.FindStringSubmatch(strings.TrimSpace(value))
	if m == nil {
		return "", false
	}
	target = m[1]
	if i := strings.Index(target, "|"); i >= 0 {
		target = target[:i]
	}
	target = strings.TrimSpace(target)
	if target == "" {
		return "", false
	}
	return target, true
}

// Wikilink renders a display-name reference in field form.
func Wikilink(name string) string {
	return "[[" + name + "]]"
}

// StringList coerces a frontmatter value into a list of strings, accepting
// a bare scalar as a one-element list. Nulls and empty strings are dropped.
func StringList(v interface{}) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		if s := strings.TrimSpace(t); s != "" {
			return []string{s}
		}
		return nil
	case []interface{}:
		var out []string
		for _, item := range t {
			if s, ok := item.(string); ok {
				if s = strings.TrimSpace(s); s != "" {
					out = append(out, s)
				}
			}
		}
		return out
	default:
		return nil
	}
}

// StringValue coerces a frontmatter value into a single string. Lists
// yield their first element; everything else yields "".
func StringValue(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case []interface{}:
		if len(t) > 0 {
			if s, ok := t[0].(string); ok {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}
