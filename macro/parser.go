package macro

import (
	"fmt"
	"strconv"
	"strings"
)

// Bound names select the loop view at parse time.
var boundNames = map[string]BoundKind{
	"nmaxitems":         BoundAll,
	"nmaxitemsnokey":    BoundNonKey,
	"nmaxitemsnokeyall": BoundNonKey,
	"nmaxsearchkeys":    BoundSearchable,
	"nmaxtables":        BoundTables,
}

// Counter names, matched case-insensitively, resolve to the 1-based
// position of the innermost enclosing loop of their kind.
var counterNames = map[string]BoundKind{
	"ncount":              boundAny,
	"ncountitems":         BoundAll,
	"ncountitemsnokey":    BoundNonKey,
	"ncountitemsnokeyall": BoundNonKey,
	"ncountsearchkeys":    BoundSearchable,
	"ncounttables":        BoundTables,
}

var fieldAttrs = map[string]bool{
	"name": true, "caption": true, "type": true, "typecast": true, "ordinal": true,
	"primarykey": true, "searchable": true, "sqltype": true, "class": true,
}

var tableAttrs = map[string]bool{
	"name": true, "caption": true, "description": true, "class": true,
	"primarykey": true, "ordinal": true,
}

var comparisonOps = []string{"<=", ">=", "==", "!=", "<", ">"}

type block struct {
	open  Token
	node  Node
	body  []Node
	cased bool // switch: a case or othercase has been seen
	other bool // switch: collecting othercase; if: collecting else
}

type parser struct {
	file  string
	stack []*block
	root  []Node
}

// Parse lexes and parses template source into its root node list. The
// returned tree is never partially built: on error the tree is nil.
func Parse(file, src string) ([]Node, error) {
	tokens, err := Lex(file, src)
	if err != nil {
		return nil, err
	}
	return ParseTokens(file, tokens)
}

// ParseTokens builds a tree from an already lexed token stream.
func ParseTokens(file string, tokens []Token) ([]Node, error) {
	p := &parser{file: file}
	for _, tok := range tokens {
		if err := p.consume(tok); err != nil {
			return nil, err
		}
	}
	if len(p.stack) > 0 {
		top := p.top()
		return nil, &ParseError{
			File:     file,
			Pos:      top.open.Pos,
			Kind:     MismatchedClose,
			Expected: "end" + top.open.Value,
			Found:    "end of input",
			OpenedAt: top.open.Pos,
		}
	}
	return p.root, nil
}

func (p *parser) top() *block {
	if len(p.stack) == 0 {
		return nil
	}
	return p.stack[len(p.stack)-1]
}

func (p *parser) add(n Node) {
	if top := p.top(); top != nil {
		top.body = append(top.body, n)
		return
	}
	p.root = append(p.root, n)
}

func (p *parser) errorf(tok Token, kind ParseErrorKind, format string, args ...interface{}) error {
	return &ParseError{File: p.file, Pos: tok.Pos, Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (p *parser) consume(tok Token) error {
	switch tok.Kind {
	case TokenText:
		if top := p.top(); top != nil && isSwitch(top) && !top.cased {
			if strings.TrimSpace(tok.Value) != "" {
				return p.errorf(tok, BadArgument, "text %q before the first {case} of a switch", snippet(strings.TrimSpace(tok.Value)))
			}
			return nil
		}
		p.add(&Literal{Text: tok.Value})
		return nil

	case TokenPlaceholder:
		if top := p.top(); top != nil && isSwitch(top) && !top.cased {
			return p.errorf(tok, BadArgument, "placeholder {%s} before the first {case} of a switch", tok.Value)
		}
		ref, err := p.operand(tok, tok.Value)
		if err != nil {
			return err
		}
		p.add(&Placeholder{Ref: ref, Pos: tok.Pos})
		return nil

	case TokenOpen:
		return p.open(tok)
	case TokenBranch:
		return p.branch(tok)
	case TokenClose:
		return p.close(tok)
	}
	return p.errorf(tok, UnknownDirective, "unexpected token %s", tok.Kind)
}

func (p *parser) open(tok Token) error {
	if top := p.top(); top != nil && isSwitch(top) && !top.cased {
		return p.errorf(tok, BadArgument, "{%s} before the first {case} of a switch", tok.Value)
	}

	var n Node
	switch tok.Value {
	case "for":
		bound, err := p.bound(tok)
		if err != nil {
			return err
		}
		n = &For{Bound: bound, Pos: tok.Pos}
	case "switch":
		if tok.Arg == "" {
			return p.errorf(tok, BadArgument, "switch needs a selector")
		}
		sel, err := p.operand(tok, unbrace(tok.Arg))
		if err != nil {
			return err
		}
		n = &Switch{Selector: sel, Pos: tok.Pos}
	case "if":
		cond, err := p.condition(tok)
		if err != nil {
			return err
		}
		n = &If{Cond: cond, Pos: tok.Pos}
	default:
		return p.errorf(tok, UnknownDirective, "unknown directive {%s}", tok.Value)
	}

	p.stack = append(p.stack, &block{open: tok, node: n})
	return nil
}

func (p *parser) branch(tok Token) error {
	top := p.top()
	switch tok.Value {
	case "case", "othercase":
		if top == nil || !isSwitch(top) {
			return p.errorf(tok, UnexpectedBranch, "{%s} outside of a switch", tok.Value)
		}
		sw := top.node.(*Switch)
		if top.other {
			return p.errorf(tok, UnexpectedBranch, "{%s} after {othercase}", tok.Value)
		}
		p.flushCase(top)

		if tok.Value == "othercase" {
			if tok.Arg != "" {
				return p.errorf(tok, BadArgument, "othercase takes no argument")
			}
			top.other = true
			sw.HasOther = true
			return nil
		}

		values, err := caseValues(tok.Arg)
		if err != nil {
			return p.errorf(tok, BadArgument, "%v", err)
		}
		sw.Cases = append(sw.Cases, Case{Values: values})
		return nil

	case "else":
		if top == nil {
			return p.errorf(tok, UnexpectedBranch, "{else} outside of an if")
		}
		ifn, ok := top.node.(*If)
		if !ok {
			return p.errorf(tok, UnexpectedBranch, "{else} inside {%s}", top.open.Value)
		}
		if top.other {
			return p.errorf(tok, UnexpectedBranch, "second {else} in the same if")
		}
		ifn.Then = top.body
		top.body = nil
		top.other = true
		return nil
	}
	return p.errorf(tok, UnknownDirective, "unknown directive {%s}", tok.Value)
}

// flushCase moves the collected body into the case (or othercase) that owns it.
func (p *parser) flushCase(b *block) {
	sw := b.node.(*Switch)
	switch {
	case b.other:
		sw.Other = b.body
	case b.cased:
		sw.Cases[len(sw.Cases)-1].Body = b.body
	}
	b.body = nil
	b.cased = true
}

func (p *parser) close(tok Token) error {
	if !closeKeywords[tok.Value] {
		return p.errorf(tok, UnknownDirective, "unknown directive {%s}", tok.Value)
	}
	if tok.Arg != "" {
		return p.errorf(tok, BadArgument, "{%s} takes no argument", tok.Value)
	}

	top := p.top()
	if top == nil {
		return &ParseError{
			File:     p.file,
			Pos:      tok.Pos,
			Kind:     MismatchedClose,
			Expected: "no close",
			Found:    "{" + tok.Value + "}",
			OpenedAt: tok.Pos,
		}
	}
	if want := "end" + top.open.Value; want != tok.Value {
		return &ParseError{
			File:     p.file,
			Pos:      tok.Pos,
			Kind:     MismatchedClose,
			Expected: want,
			Found:    "{" + tok.Value + "}",
			OpenedAt: top.open.Pos,
		}
	}

	switch n := top.node.(type) {
	case *For:
		n.Body = top.body
	case *Switch:
		p.flushCase(top)
	case *If:
		if top.other {
			n.Else = top.body
			if n.Else == nil {
				n.Else = []Node{}
			}
		} else {
			n.Then = top.body
		}
	}

	p.stack = p.stack[:len(p.stack)-1]
	p.add(top.node)
	return nil
}

func (p *parser) bound(tok Token) (Bound, error) {
	arg := unbrace(tok.Arg)
	if arg == "" {
		return Bound{}, p.errorf(tok, BadArgument, "for needs a bound")
	}
	if n, err := strconv.Atoi(arg); err == nil {
		return Bound{Kind: BoundAll, Limit: Operand{Kind: OperandLiteral, Value: n}}, nil
	}
	if !isPath(arg) || strings.Contains(arg, ".") {
		return Bound{}, p.errorf(tok, BadArgument, "invalid loop bound %q", tok.Arg)
	}
	if kind, ok := boundNames[strings.ToLower(arg)]; ok {
		return Bound{Kind: kind, Limit: Operand{Kind: OperandScalar, Name: strings.ToLower(arg)}}, nil
	}
	return Bound{Kind: BoundAll, Limit: Operand{Kind: OperandScalar, Name: arg}}, nil
}

func (p *parser) condition(tok Token) (Condition, error) {
	if tok.Arg == "" {
		return Condition{}, p.errorf(tok, BadArgument, "if needs a condition")
	}

	op, at := findOperator(tok.Arg)
	if op == "" {
		left, err := p.operand(tok, unbrace(tok.Arg))
		return Condition{Left: left}, err
	}

	left, err := p.operand(tok, unbrace(strings.TrimSpace(tok.Arg[:at])))
	if err != nil {
		return Condition{}, err
	}
	right, err := p.operand(tok, unbrace(strings.TrimSpace(tok.Arg[at+len(op):])))
	if err != nil {
		return Condition{}, err
	}
	return Condition{Left: left, Op: op, Right: right}, nil
}

// operand resolves a reference at parse time: literal, counter, item
// attribute (validated against the innermost loop) or scalar.
func (p *parser) operand(tok Token, ref string) (Operand, error) {
	if ref == "" {
		return Operand{}, p.errorf(tok, BadArgument, "empty operand")
	}
	if n, err := strconv.Atoi(ref); err == nil {
		return Operand{Kind: OperandLiteral, Value: n}, nil
	}
	if !isPath(ref) {
		return Operand{}, p.errorf(tok, BadArgument, "invalid reference %q", ref)
	}

	if attr, ok := strings.CutPrefix(ref, "item."); ok {
		loop, found := p.innermostLoop()
		if !found {
			return Operand{}, p.errorf(tok, BadArgument, "{%s} used outside of a for loop", ref)
		}
		attrs := fieldAttrs
		if loop == BoundTables {
			attrs = tableAttrs
		}
		if !attrs[attr] {
			return Operand{}, p.errorf(tok, BadArgument, "unknown attribute %q for items of %s", attr, loop)
		}
		return Operand{Kind: OperandItem, Name: attr}, nil
	}
	if ref == "item" {
		return Operand{}, p.errorf(tok, BadArgument, "{item} needs an attribute, e.g. {item.name}")
	}

	if kind, ok := counterNames[strings.ToLower(ref)]; ok {
		return Operand{Kind: OperandCounter, Name: ref, Loop: kind}, nil
	}
	if strings.Contains(ref, ".") {
		return Operand{}, p.errorf(tok, BadArgument, "unknown reference %q", ref)
	}
	return Operand{Kind: OperandScalar, Name: ref}, nil
}

func (p *parser) innermostLoop() (BoundKind, bool) {
	for i := len(p.stack) - 1; i >= 0; i-- {
		if f, ok := p.stack[i].node.(*For); ok {
			return f.Bound.Kind, true
		}
	}
	return 0, false
}

func isSwitch(b *block) bool {
	_, ok := b.node.(*Switch)
	return ok
}

// unbrace strips one pair of surrounding braces: {nmaxitems} -> nmaxitems.
func unbrace(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '{' && s[len(s)-1] == '}' {
		return strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}

// findOperator returns the first comparison operator outside braces.
func findOperator(s string) (string, int) {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
			continue
		case '}':
			depth--
			continue
		}
		if depth > 0 {
			continue
		}
		for _, op := range comparisonOps {
			if strings.HasPrefix(s[i:], op) {
				return op, i
			}
		}
	}
	return "", -1
}

func caseValues(arg string) ([]int, error) {
	if strings.TrimSpace(arg) == "" {
		return nil, fmt.Errorf("case needs at least one integer value")
	}
	parts := strings.Split(arg, ",")
	values := make([]int, 0, len(parts))
	for _, part := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("case value %q is not an integer", strings.TrimSpace(part))
		}
		values = append(values, v)
	}
	return values, nil
}
