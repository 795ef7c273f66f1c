package macro

import (
	"errors"
	"fmt"
)

// Position locates a token in template source. Line and Column are 1-based.
type Position struct {
	Line   int
	Column int
}

func (p Position) String() string {
	return fmt.Sprintf("line %d, column %d", p.Line, p.Column)
}

// ErrUnterminatedDirective is wrapped by every LexError.
var ErrUnterminatedDirective = errors.New("unterminated directive")

// LexError reports a directive that opens with '{' and never closes.
type LexError struct {
	File    string
	Pos     Position
	Snippet string
}

func (e *LexError) Error() string {
	return fmt.Sprintf("%s: %s: %v near %q", e.File, e.Pos, ErrUnterminatedDirective, e.Snippet)
}

func (e *LexError) Unwrap() error {
	return ErrUnterminatedDirective
}

// ParseErrorKind classifies structural template errors.
type ParseErrorKind int

const (
	MismatchedClose ParseErrorKind = iota + 1
	UnknownDirective
	UnexpectedBranch
	BadArgument
)

func (k ParseErrorKind) String() string {
	switch k {
	case MismatchedClose:
		return "mismatched close"
	case UnknownDirective:
		return "unknown directive"
	case UnexpectedBranch:
		return "unexpected branch"
	case BadArgument:
		return "bad argument"
	default:
		return "parse error"
	}
}

// ParseError reports a template whose directives do not form a valid tree.
// For MismatchedClose, Expected names the close directive the innermost open
// block needs and Found the directive (or "end of input") actually seen.
type ParseError struct {
	File     string
	Pos      Position
	Kind     ParseErrorKind
	Expected string
	Found    string
	OpenedAt Position
	Message  string
}

func (e *ParseError) Error() string {
	switch e.Kind {
	case MismatchedClose:
		return fmt.Sprintf("%s: %s: %s: expected {%s} for block opened at %s, found %s",
			e.File, e.Pos, e.Kind, e.Expected, e.OpenedAt, e.Found)
	default:
		return fmt.Sprintf("%s: %s: %s: %s", e.File, e.Pos, e.Kind, e.Message)
	}
}

// EvalErrorKind classifies expansion failures.
type EvalErrorKind int

const (
	UnboundPlaceholder EvalErrorKind = iota + 1
	NonInteger
	OutOfRange
)

func (k EvalErrorKind) String() string {
	switch k {
	case UnboundPlaceholder:
		return "unbound placeholder"
	case NonInteger:
		return "non-integer value"
	case OutOfRange:
		return "out of range"
	default:
		return "evaluation error"
	}
}

// EvalError reports a failure while expanding a parsed tree against one
// environment. It never leaves partial output behind.
type EvalError struct {
	Kind    EvalErrorKind
	Path    string
	Pos     Position
	Message string
}

func (e *EvalError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s {%s}: %s", e.Pos, e.Kind, e.Path, e.Message)
	}
	return fmt.Sprintf("%s: %s {%s}", e.Pos, e.Kind, e.Path)
}

// IsTemplateError reports whether err is a lex or parse error, i.e. the
// template itself is broken regardless of the data it is bound to.
func IsTemplateError(err error) bool {
	var lexErr *LexError
	var parseErr *ParseError
	return errors.As(err, &lexErr) || errors.As(err, &parseErr)
}
