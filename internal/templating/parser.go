package templating

import "strings"

// The template grammar is parsed into a small AST instead of being expanded
// by chained regex passes: nesting is well-defined and the most specific
// directive always wins. Anything structurally malformed (an {{endif}} with
// no open block, an {{if}} that never closes) is kept as verbatim text so a
// broken template degrades to visible text instead of failing a render.

type tokenKind int

const (
	tokText tokenKind = iota
	tokIf
	tokElseIf
	tokElse
	tokEndif
	tokPlaceholder
)

type token struct {
	kind tokenKind
	raw  string // original text, including braces for directives
	arg  string // condition expression or placeholder path
}

func lex(template string) []token {
	var tokens []token
	rest := template
	for {
		open := strings.Index(rest, "{{")
		if open < 0 {
			break
		}
		close := strings.Index(rest[open:], "}}")
		if close < 0 {
			break
		}
		if open > 0 {
			tokens = append(tokens, token{kind: tokText, raw: rest[:open]})
		}
		raw := rest[open : open+close+2]
		tokens = append(tokens, classify(raw, rest[open+2:open+close]))
		rest = rest[open+close+2:]
	}
	if rest != "" {
		tokens = append(tokens, token{kind: tokText, raw: rest})
	}
	return tokens
}

func classify(raw, inner string) token {
	content := strings.TrimSpace(inner)
	switch {
	case content == "endif":
		return token{kind: tokEndif, raw: raw}
	case content == "else":
		return token{kind: tokElse, raw: raw}
	case strings.HasPrefix(content, "else if "):
		return token{kind: tokElseIf, raw: raw, arg: strings.TrimSpace(content[len("else if "):])}
	case strings.HasPrefix(content, "if "):
		return token{kind: tokIf, raw: raw, arg: strings.TrimSpace(content[len("if "):])}
	case content == "if", content == "else if":
		// directive keyword without a condition, keep verbatim
		return token{kind: tokText, raw: raw}
	default:
		return token{kind: tokPlaceholder, raw: raw, arg: content}
	}
}

type node interface{}

type textNode struct {
	text string
}

type placeholderNode struct {
	path string
}

type branch struct {
	condition string // inline dialect expression
	body      []node
}

type conditionalNode struct {
	branches []branch
	elseBody []node
}

type parser struct {
	tokens []token
	pos    int
}

func parse(tokens []token) []node {
	p := &parser{tokens: tokens}
	var nodes []node
	for p.pos < len(p.tokens) {
		tok := p.tokens[p.pos]
		switch tok.kind {
		case tokText:
			p.pos++
			nodes = append(nodes, textNode{text: tok.raw})
		case tokPlaceholder:
			p.pos++
			nodes = append(nodes, placeholderNode{path: tok.arg})
		case tokIf:
			if cond, ok := p.parseConditional(); ok {
				nodes = append(nodes, cond)
			} else {
				p.pos++
				nodes = append(nodes, textNode{text: tok.raw})
			}
		default:
			// dangling else/else if/endif outside any block
			p.pos++
			nodes = append(nodes, textNode{text: tok.raw})
		}
	}
	return nodes
}

// parseConditional consumes an if block including its endif. When the block
// never closes it leaves the position untouched and reports failure; the
// caller emits the opening directive verbatim.
func (p *parser) parseConditional() (node, bool) {
	start := p.pos
	ifTok := p.tokens[p.pos]
	p.pos++

	cond := conditionalNode{branches: []branch{{condition: ifTok.arg}}}
	inElse := false

	appendNode := func(n node) {
		if inElse {
			cond.elseBody = append(cond.elseBody, n)
		} else {
			last := len(cond.branches) - 1
			cond.branches[last].body = append(cond.branches[last].body, n)
		}
	}

	for p.pos < len(p.tokens) {
		tok := p.tokens[p.pos]
		switch tok.kind {
		case tokText:
			p.pos++
			appendNode(textNode{text: tok.raw})
		case tokPlaceholder:
			p.pos++
			appendNode(placeholderNode{path: tok.arg})
		case tokIf:
			if nested, ok := p.parseConditional(); ok {
				appendNode(nested)
			} else {
				p.pos++
				appendNode(textNode{text: tok.raw})
			}
		case tokElseIf:
			p.pos++
			if inElse {
				// else if after else is malformed, keep it visible
				appendNode(textNode{text: tok.raw})
				continue
			}
			cond.branches = append(cond.branches, branch{condition: tok.arg})
		case tokElse:
			p.pos++
			if inElse {
				appendNode(textNode{text: tok.raw})
				continue
			}
			inElse = true
		case tokEndif:
			p.pos++
			return cond, true
		}
	}

	p.pos = start
	return nil, false
}
