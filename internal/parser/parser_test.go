package parser

import (
	"bytes"
	"testing"
)

func TestParse_FrontmatterAndBody(t *testing.T) {
	input := []byte("---\ntype: person\nname: Arne Berg\nfather: \"[[Gustav Berg]]\"\n---\n\nBorn on the family farm.\n")
	r, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Frontmatter["name"] != "Arne Berg" {
		t.Errorf("name = %v, want %q", r.Frontmatter["name"], "Arne Berg")
	}
	if r.Frontmatter["father"] != "[[Gustav Berg]]" {
		t.Errorf("father = %v", r.Frontmatter["father"])
	}
	if r.Body != "Born on the family farm.\n" {
		t.Errorf("body = %q", r.Body)
	}
}

func TestParse_NoFrontmatter(t *testing.T) {
	input := []byte("# Just a heading\nSome text.\n")
	r, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Frontmatter != nil {
		t.Errorf("expected nil frontmatter, got %v", r.Frontmatter)
	}
	if r.Body != string(input) {
		t.Errorf("body = %q, want full input", r.Body)
	}
}

func TestParse_InvalidYAMLFallback(t *testing.T) {
	input := []byte("---\n: invalid: yaml: {{{\n---\nBody\n")
	r, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Invalid YAML falls back to treating everything as body.
	if r.Frontmatter != nil {
		t.Errorf("expected nil frontmatter on invalid YAML")
	}
	if r.Body != string(input) {
		t.Errorf("body = %q, want full input", r.Body)
	}
}

func TestSplitRaw_AssembleRoundTrip(t *testing.T) {
	cases := [][]byte{
		[]byte("---\nname: Arne Berg\n---\nNotes.\n"),
		[]byte("---\nname: Arne Berg\nborn: \"1921\"\n---\n\nNotes with a blank line above.\n"),
		[]byte("---\nname: X\n---\n"),
	}
	for _, input := range cases {
		header, rest, ok := SplitRaw(input)
		if !ok {
			t.Fatalf("SplitRaw failed for %q", input)
		}
		if got := Assemble(header, rest); !bytes.Equal(got, input) {
			t.Errorf("round trip = %q, want %q", got, input)
		}
	}
}

func TestSplitRaw_NoFrontmatter(t *testing.T) {
	input := []byte("plain text, no header\n")
	_, rest, ok := SplitRaw(input)
	if ok {
		t.Error("expected ok=false without frontmatter")
	}
	if !bytes.Equal(rest, input) {
		t.Errorf("rest = %q, want full input", rest)
	}
}

func TestParseWikilink_Forms(t *testing.T) {
	cases := []struct {
		in     string
		target string
		ok     bool
	}{
		{"[[Gustav Berg]]", "Gustav Berg", true},
		{"[[Gustav Berg|far]]", "Gustav Berg", true},
		{"  [[Gustav Berg]]  ", "Gustav Berg", true},
		{"Gustav Berg", "", false},
		{"[[ ]]", "", false},
		{"[[|alias]]", "", false},
		{"", "", false},
	}
	for _, c := range cases {
		target, ok := ParseWikilink(c.in)
		if target != c.target || ok != c.ok {
			t.Errorf("ParseWikilink(%q) = (%q, %v), want (%q, %v)", c.in, target, ok, c.target, c.ok)
		}
	}
}

func TestWikilink_Render(t *testing.T) {
	if got := Wikilink("Arne Berg"); got != "[[Arne Berg]]" {
		t.Errorf("Wikilink = %q", got)
	}
}

func TestStringList_Coercion(t *testing.T) {
	if got := StringList(nil); got != nil {
		t.Errorf("nil should yield nil, got %v", got)
	}
	if got := StringList("[[Gustav]]"); len(got) != 1 || got[0] != "[[Gustav]]" {
		t.Errorf("scalar = %v", got)
	}
	if got := StringList("  "); got != nil {
		t.Errorf("blank scalar should yield nil, got %v", got)
	}
	list := []interface{}{"[[A]]", "", 7, " [[B]] "}
	if got := StringList(list); len(got) != 2 || got[0] != "[[A]]" || got[1] != "[[B]]" {
		t.Errorf("list = %v, want [[[A]] [[B]]]", got)
	}
}

func TestStringValue_Coercion(t *testing.T) {
	if got := StringValue(" p-arne "); got != "p-arne" {
		t.Errorf("scalar = %q", got)
	}
	if got := StringValue([]interface{}{"p-first", "p-second"}); got != "p-first" {
		t.Errorf("list = %q, want first element", got)
	}
	if got := StringValue(42); got != "" {
		t.Errorf("int = %q, want empty", got)
	}
}
