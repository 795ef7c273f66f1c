package macro

import (
	"fmt"
	"strings"

	"github.com/iancoleman/strcase"

	"github.com/ridoystarlord/tplgen/schema"
)

// frame is one active for loop: the element being visited and its 1-based
// position within the loop.
type frame struct {
	kind  BoundKind
	field schema.Field
	table schema.Table
	pos   int
}

type expander struct {
	env   *Env
	loops []frame
	out   strings.Builder
}

// Expand renders a parsed tree against env. It performs no I/O and keeps no
// state between calls, so one tree can be expanded concurrently against
// many environments.
func Expand(nodes []Node, env *Env) (string, error) {
	x := &expander{env: env}
	if err := x.nodes(nodes); err != nil {
		return "", err
	}
	return x.out.String(), nil
}

func (x *expander) nodes(nodes []Node) error {
	for _, n := range nodes {
		if err := x.node(n); err != nil {
			return err
		}
	}
	return nil
}

func (x *expander) node(n Node) error {
	switch n := n.(type) {
	case *Literal:
		x.out.WriteString(n.Text)
		return nil

	case *Placeholder:
		v, err := x.resolve(n.Ref, n.Pos)
		if err != nil {
			return err
		}
		x.out.WriteString(v.String())
		return nil

	case *For:
		return x.loop(n)

	case *Switch:
		v, err := x.resolve(n.Selector, n.Pos)
		if err != nil {
			return err
		}
		sel, ok := v.Int()
		if !ok {
			return &EvalError{Kind: NonInteger, Path: n.Selector.String(), Pos: n.Pos,
				Message: fmt.Sprintf("switch selector is %q", v.String())}
		}
		for _, c := range n.Cases {
			for _, want := range c.Values {
				if want == sel {
					return x.nodes(c.Body)
				}
			}
		}
		if n.HasOther {
			return x.nodes(n.Other)
		}
		return nil

	case *If:
		ok, err := x.condition(n.Cond, n.Pos)
		if err != nil {
			return err
		}
		if ok {
			return x.nodes(n.Then)
		}
		return x.nodes(n.Else)
	}
	return fmt.Errorf("unknown node %T", n)
}

func (x *expander) loop(n *For) error {
	v, err := x.resolve(n.Bound.Limit, n.Pos)
	if err != nil {
		return err
	}
	limit, ok := v.Int()
	if !ok {
		return &EvalError{Kind: NonInteger, Path: n.Bound.Limit.String(), Pos: n.Pos,
			Message: fmt.Sprintf("loop bound is %q", v.String())}
	}
	if avail := x.env.viewLen(n.Bound.Kind); limit > avail {
		limit = avail
	}

	for i := 0; i < limit; i++ {
		f := frame{kind: n.Bound.Kind, pos: i + 1}
		if n.Bound.Kind == BoundTables {
			f.table = x.env.tables[i]
		} else {
			f.field = x.env.views[n.Bound.Kind][i]
		}

		x.loops = append(x.loops, f)
		err := x.nodes(n.Body)
		x.loops = x.loops[:len(x.loops)-1]
		if err != nil {
			return err
		}
	}
	return nil
}

func (x *expander) condition(c Condition, pos Position) (bool, error) {
	left, err := x.resolve(c.Left, pos)
	if err != nil {
		return false, err
	}
	if c.Op == "" {
		return left.truthy(), nil
	}
	right, err := x.resolve(c.Right, pos)
	if err != nil {
		return false, err
	}

	l, ok := left.Int()
	if !ok {
		return false, &EvalError{Kind: NonInteger, Path: c.Left.String(), Pos: pos,
			Message: fmt.Sprintf("comparison operand is %q", left.String())}
	}
	r, ok := right.Int()
	if !ok {
		return false, &EvalError{Kind: NonInteger, Path: c.Right.String(), Pos: pos,
			Message: fmt.Sprintf("comparison operand is %q", right.String())}
	}

	switch c.Op {
	case "<":
		return l < r, nil
	case "<=":
		return l <= r, nil
	case ">":
		return l > r, nil
	case ">=":
		return l >= r, nil
	case "==":
		return l == r, nil
	case "!=":
		return l != r, nil
	}
	return false, fmt.Errorf("unknown operator %q", c.Op)
}

func (x *expander) resolve(o Operand, pos Position) (Value, error) {
	switch o.Kind {
	case OperandLiteral:
		return IntValue(o.Value), nil

	case OperandScalar:
		v, ok := x.env.scalars[o.Name]
		if !ok {
			return Value{}, &EvalError{Kind: UnboundPlaceholder, Path: o.Name, Pos: pos}
		}
		return v, nil

	case OperandCounter:
		for i := len(x.loops) - 1; i >= 0; i-- {
			if o.Loop == boundAny || x.loops[i].kind == o.Loop {
				return IntValue(x.loops[i].pos), nil
			}
		}
		return Value{}, &EvalError{Kind: OutOfRange, Path: o.Name, Pos: pos,
			Message: fmt.Sprintf("no enclosing loop over %s", o.Loop)}

	case OperandItem:
		if len(x.loops) == 0 {
			return Value{}, &EvalError{Kind: OutOfRange, Path: o.String(), Pos: pos, Message: "no enclosing loop"}
		}
		f := x.loops[len(x.loops)-1]
		if f.kind == BoundTables {
			return tableAttr(f.table, o.Name, pos)
		}
		return fieldAttr(f.field, o.Name, pos)
	}
	return Value{}, fmt.Errorf("unknown operand kind %d", o.Kind)
}

func fieldAttr(f schema.Field, attr string, pos Position) (Value, error) {
	switch attr {
	case "name":
		return TextValue(f.Name), nil
	case "caption":
		return TextValue(f.Label()), nil
	case "type":
		return IntValue(int(f.Type)), nil
	case "typecast":
		return TextValue(f.Type.Typecast()), nil
	case "ordinal":
		return IntValue(f.Ordinal), nil
	case "primarykey":
		return boolValue(f.PrimaryKey), nil
	case "searchable":
		return boolValue(f.Searchable), nil
	case "sqltype":
		return TextValue(f.SQLType), nil
	case "class":
		return TextValue(strcase.ToCamel(f.Name)), nil
	}
	return Value{}, &EvalError{Kind: UnboundPlaceholder, Path: "item." + attr, Pos: pos}
}

func tableAttr(t schema.Table, attr string, pos Position) (Value, error) {
	switch attr {
	case "name":
		return TextValue(t.Name), nil
	case "caption":
		return TextValue(t.DisplayName()), nil
	case "description":
		return TextValue(t.Description), nil
	case "class":
		return TextValue(strcase.ToCamel(t.Name)), nil
	case "ordinal":
		return IntValue(t.Ordinal), nil
	case "primarykey":
		if pk, ok := t.PrimaryKey(); ok {
			return TextValue(pk.Name), nil
		}
		return Value{}, &EvalError{Kind: UnboundPlaceholder, Path: "item.primarykey", Pos: pos,
			Message: fmt.Sprintf("table %s has no primary key", t.Name)}
	}
	return Value{}, &EvalError{Kind: UnboundPlaceholder, Path: "item." + attr, Pos: pos}
}

func boolValue(b bool) Value {
	if b {
		return IntValue(1)
	}
	return IntValue(0)
}
