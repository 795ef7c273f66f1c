package macro

import (
	"fmt"
	"strconv"
	"strings"
)

// Node is one element of a parsed template. Trees are immutable once
// parsed and may be expanded concurrently against different environments.
type Node interface {
	node()
	String() string
}

// BoundKind selects the view a for loop iterates.
type BoundKind int

const (
	// boundAny matches the innermost loop of any kind; used by nCount.
	boundAny BoundKind = iota
	BoundAll
	BoundNonKey
	BoundSearchable
	BoundTables
)

func (k BoundKind) String() string {
	switch k {
	case BoundAll:
		return "all_fields"
	case BoundNonKey:
		return "non_key_fields"
	case BoundSearchable:
		return "searchable_fields"
	case BoundTables:
		return "tables"
	default:
		return "any"
	}
}

// OperandKind tells how an Operand is resolved at expansion time.
type OperandKind int

const (
	OperandLiteral OperandKind = iota + 1
	OperandScalar
	OperandItem
	OperandCounter
)

// Operand is a value reference inside a directive or placeholder: an integer
// literal, a scalar binding, an attribute of the current loop item or the
// position counter of an enclosing loop.
type Operand struct {
	Kind  OperandKind
	Name  string    // scalar name, item attribute or counter spelling
	Value int       // OperandLiteral
	Loop  BoundKind // OperandCounter
}

func (o Operand) String() string {
	switch o.Kind {
	case OperandLiteral:
		return strconv.Itoa(o.Value)
	case OperandItem:
		return "item." + o.Name
	default:
		return o.Name
	}
}

// Bound is the resolved argument of a for directive.
type Bound struct {
	Kind  BoundKind
	Limit Operand
}

// Condition is the argument of an if directive. An empty Op tests Left for
// truth.
type Condition struct {
	Left  Operand
	Op    string
	Right Operand
}

func (c Condition) String() string {
	if c.Op == "" {
		return c.Left.String()
	}
	return c.Left.String() + c.Op + c.Right.String()
}

type Literal struct {
	Text string
}

type Placeholder struct {
	Ref Operand
	Pos Position
}

type For struct {
	Bound Bound
	Body  []Node
	Pos   Position
}

type Case struct {
	Values []int
	Body   []Node
}

// Switch expands the first case whose values contain the selector, else the
// othercase body when present, else nothing.
type Switch struct {
	Selector Operand
	Cases    []Case
	Other    []Node
	HasOther bool
	Pos      Position
}

type If struct {
	Cond Condition
	Then []Node
	Else []Node
	Pos  Position
}

func (*Literal) node()     {}
func (*Placeholder) node() {}
func (*For) node()         {}
func (*Switch) node()      {}
func (*If) node()          {}

func (n *Literal) String() string {
	return fmt.Sprintf("Literal(%q)", n.Text)
}

func (n *Placeholder) String() string {
	return fmt.Sprintf("Placeholder(%s)", n.Ref)
}

func (n *For) String() string {
	return fmt.Sprintf("For(%s over %s)", n.Bound.Limit, n.Bound.Kind)
}

func (n *Switch) String() string {
	return fmt.Sprintf("Switch(%s)", n.Selector)
}

func (n *If) String() string {
	return fmt.Sprintf("If(%s)", n.Cond)
}

// Dump renders a tree one node per line, indented by depth.
func Dump(nodes []Node) string {
	var b strings.Builder
	dump(&b, nodes, 0)
	return b.String()
}

func dump(b *strings.Builder, nodes []Node, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, n := range nodes {
		b.WriteString(indent)
		b.WriteString(n.String())
		b.WriteByte('\n')

		switch n := n.(type) {
		case *For:
			dump(b, n.Body, depth+1)
		case *Switch:
			for _, c := range n.Cases {
				vals := make([]string, len(c.Values))
				for i, v := range c.Values {
					vals[i] = strconv.Itoa(v)
				}
				fmt.Fprintf(b, "%s  Case(%s)\n", indent, strings.Join(vals, ","))
				dump(b, c.Body, depth+2)
			}
			if n.HasOther {
				fmt.Fprintf(b, "%s  OtherCase\n", indent)
				dump(b, n.Other, depth+2)
			}
		case *If:
			fmt.Fprintf(b, "%s  Then\n", indent)
			dump(b, n.Then, depth+2)
			if n.Else != nil {
				fmt.Fprintf(b, "%s  Else\n", indent)
				dump(b, n.Else, depth+2)
			}
		}
	}
}
