package templating

import (
	"testing"
	"time"
)

func newTestCompiler() *Compiler {
	return NewCompiler(nil)
}

func TestCompilePlaceholderSubstitution(t *testing.T) {
	c := newTestCompiler()

	got := c.Compile("Hello {{patient.first_name}}", map[string]any{
		"patient": map[string]any{"first_name": "Anna"},
	})
	if got != "Hello Anna" {
		t.Fatalf("got %q", got)
	}

	got = c.Compile("Hello {{patient.first_name}}", map[string]any{})
	if got != "Hello " {
		t.Fatalf("missing placeholder should render empty, got %q", got)
	}
}

func TestCompileValueFormatting(t *testing.T) {
	c := newTestCompiler()
	start := time.Date(2024, 5, 10, 10, 30, 0, 0, time.UTC)

	data := map[string]any{
		"appointment": map[string]any{"start_time": start},
		"patient":     map[string]any{"recall": true, "fasting": false},
	}

	got := c.Compile("Termin: {{appointment.start_time}}", data)
	if got != "Termin: 10.05.2024 10:30" {
		t.Fatalf("date formatting: got %q", got)
	}

	got = c.Compile("{{patient.recall}}/{{patient.fasting}}", data)
	if got != "Ja/Nein" {
		t.Fatalf("bool formatting: got %q", got)
	}
}

func TestCompileBranchSelection(t *testing.T) {
	c := newTestCompiler()
	tmpl := "{{if a.x == 1}}A{{else if a.x == 2}}B{{else}}C{{endif}}"

	cases := []struct {
		x    any
		want string
	}{
		{1, "A"},
		{2, "B"},
		{9, "C"},
	}
	for _, tc := range cases {
		got := c.Compile(tmpl, map[string]any{"a": map[string]any{"x": tc.x}})
		if got != tc.want {
			t.Fatalf("x=%v: got %q, want %q", tc.x, got, tc.want)
		}
	}
}

func TestCompileOrderingCondition(t *testing.T) {
	c := newTestCompiler()
	tmpl := "{{if patient.age >= 50}}Vorsorge empfohlen{{else}}Keine Vorsorge{{endif}}"

	got := c.Compile(tmpl, map[string]any{"patient": map[string]any{"age": 54}})
	if got != "Vorsorge empfohlen" {
		t.Fatalf("got %q", got)
	}

	got = c.Compile(tmpl, map[string]any{"patient": map[string]any{"age": 30}})
	if got != "Keine Vorsorge" {
		t.Fatalf("got %q", got)
	}
}

func TestCompileNestedConditionals(t *testing.T) {
	c := newTestCompiler()
	tmpl := "{{if a.x == 1}}outer{{if a.y == 2}}-inner{{endif}}{{endif}}"

	got := c.Compile(tmpl, map[string]any{"a": map[string]any{"x": 1, "y": 2}})
	if got != "outer-inner" {
		t.Fatalf("got %q", got)
	}

	got = c.Compile(tmpl, map[string]any{"a": map[string]any{"x": 1, "y": 3}})
	if got != "outer" {
		t.Fatalf("got %q", got)
	}
}

func TestCompileMalformedBlocksKeptVerbatim(t *testing.T) {
	c := newTestCompiler()
	data := map[string]any{"a": map[string]any{"x": 1}}

	// unterminated if keeps the directive visible
	got := c.Compile("start {{if a.x == 1}}body", data)
	if got != "start {{if a.x == 1}}body" {
		t.Fatalf("unterminated block: got %q", got)
	}

	// dangling endif stays in place
	got = c.Compile("text {{endif}} tail", data)
	if got != "text {{endif}} tail" {
		t.Fatalf("dangling endif: got %q", got)
	}

	// malformed inline condition selects the else branch
	got = c.Compile("{{if nonsense}}A{{else}}B{{endif}}", data)
	if got != "B" {
		t.Fatalf("malformed condition: got %q", got)
	}
}

func TestCompileIdempotent(t *testing.T) {
	c := newTestCompiler()
	data := map[string]any{
		"patient": map[string]any{"first_name": "Anna", "recall": true},
	}
	tmpl := "Hallo {{patient.first_name}}, {{if patient.recall == true}}Erinnerung aktiv{{endif}}"

	once := c.Compile(tmpl, data)
	twice := c.Compile(once, data)
	if once != twice {
		t.Fatalf("expected idempotent output, got %q then %q", once, twice)
	}
}

func TestCompileControlTokensRemoved(t *testing.T) {
	c := newTestCompiler()
	got := c.Compile("{{if a.x == 1}}A{{endif}}", map[string]any{"a": map[string]any{"x": 2}})
	if got != "" {
		t.Fatalf("expected all control tokens removed, got %q", got)
	}
}
