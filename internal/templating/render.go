package templating

import (
	"strings"
	"time"

	"clinic_notify_backend/platform/logger"
)

// Formatting applied during placeholder substitution. Dates carry the
// patient-facing day-first layout, booleans render as Ja/Nein.
const (
	dateTimeLayout = "02.01.2006 15:04"
	boolYes        = "Ja"
	boolNo         = "Nein"
)

// Compiler renders template strings against an evaluation context.
// Compile is total: malformed directives survive as verbatim text, a
// malformed inline condition counts as not met, and a missing placeholder
// renders as the empty string. The logger may be nil.
type Compiler struct {
	log *logger.Logger
}

// NewCompiler creates a template compiler.
func NewCompiler(log *logger.Logger) *Compiler {
	return &Compiler{log: log}
}

// Compile expands conditional blocks and substitutes placeholders.
// Compiling the output of a well-formed template again yields the same
// string: once no directives remain the input passes through untouched.
func (c *Compiler) Compile(template string, data map[string]any) string {
	nodes := parse(lex(template))
	var b strings.Builder
	c.renderNodes(nodes, data, &b)
	return b.String()
}

func (c *Compiler) renderNodes(nodes []node, data map[string]any, b *strings.Builder) {
	for _, n := range nodes {
		switch v := n.(type) {
		case textNode:
			b.WriteString(v.text)
		case placeholderNode:
			b.WriteString(c.substitute(v.path, data))
		case conditionalNode:
			c.renderConditional(v, data, b)
		}
	}
}

func (c *Compiler) renderConditional(cond conditionalNode, data map[string]any, b *strings.Builder) {
	for _, br := range cond.branches {
		if c.conditionMet(br.condition, data) {
			c.renderNodes(br.body, data, b)
			return
		}
	}
	c.renderNodes(cond.elseBody, data, b)
}

func (c *Compiler) conditionMet(expression string, data map[string]any) bool {
	parsed, err := ParseComparison(expression)
	if err != nil {
		if c.log != nil {
			c.log.ConditionParseFailure(expression, err)
		}
		return false
	}
	return parsed.Evaluate(data)
}

func (c *Compiler) substitute(path string, data map[string]any) string {
	value, ok := Resolve(data, path)
	if !ok {
		return ""
	}
	return FormatValue(value)
}

// FormatValue renders a resolved field value the way it appears in a message.
func FormatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case bool:
		if v {
			return boolYes
		}
		return boolNo
	case time.Time:
		return v.Format(dateTimeLayout)
	case *time.Time:
		if v == nil {
			return ""
		}
		return v.Format(dateTimeLayout)
	case string:
		return v
	default:
		return stringify(v)
	}
}
