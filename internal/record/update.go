package record

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/othala/internal/parser"
)

// Change is one field mutation applied by Update. A nil Value removes the
// field (canonical name and aliases alike); a string or []string sets it.
type Change struct {
	Field string
	Value interface{}
}

// Update applies field changes to a record's frontmatter and returns the
// new file content. The body and every untouched header field survive the
// rewrite: the header is edited as a YAML node tree, so key order,
// comments, and value styles of unrelated entries are preserved. Files
// without a header get one created when there is anything to set.
func Update(data []byte, changes []Change) ([]byte, error) {
	if len(changes) == 0 {
		return data, nil
	}
	header, rest, hasHeader := parser.SplitRaw(data)

	var doc yaml.Node
	if hasHeader {
		if err := yaml.Unmarshal(header, &doc); err != nil {
			return nil, fmt.Errorf("record: parse header: %w", err)
		}
	}
	mapping := documentMapping(&doc)
	if mapping == nil {
		return nil, fmt.Errorf("record: header is not a mapping")
	}

	for _, ch := range changes {
		if ch.Value == nil {
			removeField(mapping, ch.Field)
			continue
		}
		node, err := valueNode(ch.Value)
		if err != nil {
			return nil, fmt.Errorf("record: field %s: %w", ch.Field, err)
		}
		setField(mapping, ch.Field, node)
	}

	if len(mapping.Content) == 0 {
		// Nothing left to say: removals against a missing or emptied
		// header leave the file as it was.
		if !hasHeader {
			return data, nil
		}
		return rest, nil
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(mapping); err != nil {
		return nil, fmt.Errorf("record: encode header: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("record: encode header: %w", err)
	}

	if !hasHeader {
		rest = data
	}
	return parser.Assemble(buf.Bytes(), rest), nil
}

// documentMapping returns the top-level mapping node, creating an empty
// one for headerless files.
func documentMapping(doc *yaml.Node) *yaml.Node {
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		if doc.Content[0].Kind == yaml.MappingNode {
			return doc.Content[0]
		}
		return nil
	}
	return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
}

// findKey locates the mapping index of a field, matching the canonical
// name first and then its aliases, so files keep whichever spelling they
// already use.
func findKey(mapping *yaml.Node, canonical string) int {
	for _, name := range FieldNames(canonical) {
		for i := 0; i+1 < len(mapping.Content); i += 2 {
			if mapping.Content[i].Value == name {
				return i
			}
		}
	}
	return -1
}

func setField(mapping *yaml.Node, canonical string, value *yaml.Node) {
	if i := findKey(mapping, canonical); i >= 0 {
		mapping.Content[i+1] = value
		return
	}
	key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: canonical}
	mapping.Content = append(mapping.Content, key, value)
}

func removeField(mapping *yaml.Node, canonical string) {
	for {
		i := findKey(mapping, canonical)
		if i < 0 {
			return
		}
		mapping.Content = append(mapping.Content[:i], mapping.Content[i+2:]...)
	}
}

// valueNode builds a YAML node for a string or string-list field value.
// Wikilink values are double-quoted so the brackets cannot be read back as
// a nested sequence; lists render in flow style.
func valueNode(v interface{}) (*yaml.Node, error) {
	switch t := v.(type) {
	case string:
		return scalarNode(t), nil
	case []string:
		seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Style: yaml.FlowStyle}
		for _, s := range t {
			seq.Content = append(seq.Content, scalarNode(s))
		}
		return seq, nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

func scalarNode(s string) *yaml.Node {
	n := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
	if strings.HasPrefix(s, "[[") {
		n.Style = yaml.DoubleQuotedStyle
	}
	return n
}
