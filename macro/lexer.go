// Package macro implements the directive language used by generation
// templates: lexing, parsing into a node tree and expanding the tree
// against a table-bound environment.
package macro

import (
	"sort"
	"strings"
)

// TokenKind represents the type of a template token
type TokenKind int

const (
	TokenText TokenKind = iota
	TokenPlaceholder
	TokenOpen
	TokenBranch
	TokenClose
)

func (k TokenKind) String() string {
	switch k {
	case TokenText:
		return "text"
	case TokenPlaceholder:
		return "placeholder"
	case TokenOpen:
		return "open"
	case TokenBranch:
		return "branch"
	case TokenClose:
		return "close"
	default:
		return "unknown"
	}
}

// Token is one lexed unit. Text tokens carry their span in Value;
// placeholders carry the dotted path in Value; directives carry the keyword
// in Value and the trimmed argument text in Arg.
type Token struct {
	Kind  TokenKind
	Value string
	Arg   string
	Pos   Position
}

var (
	openKeywords   = map[string]bool{"for": true, "switch": true, "if": true}
	branchKeywords = map[string]bool{"case": true, "othercase": true, "else": true}
	closeKeywords  = map[string]bool{"endfor": true, "endswitch": true, "endif": true}
)

type braceStatus int

const (
	braceClosed braceStatus = iota
	braceNewline
	braceEOF
)

// Lex splits template source into tokens. A '{' starts a token only when it
// is followed by an identifier and closes on the same line; everything else
// stays literal text, so braces of the generated language pass through.
// A directive keyword or a bare placeholder path left open at the end of a
// line is an unterminated directive.
func Lex(file, src string) ([]Token, error) {
	var tokens []Token
	lines := lineStarts(src)
	textStart := 0

	for i := 0; i < len(src); {
		if src[i] != '{' || i+1 >= len(src) || !isIdentStart(src[i+1]) {
			i++
			continue
		}

		end, status := matchBrace(src, i)
		switch status {
		case braceEOF:
			return nil, &LexError{File: file, Pos: positionAt(lines, i), Snippet: snippet(src[i:])}
		case braceNewline:
			if looksLikeMacro(src[i+1 : end]) {
				return nil, &LexError{File: file, Pos: positionAt(lines, i), Snippet: snippet(src[i:end])}
			}
			i++
			continue
		}

		tok, ok := classify(src[i+1 : end])
		if !ok {
			i++
			continue
		}

		if i > textStart {
			tokens = append(tokens, Token{Kind: TokenText, Value: src[textStart:i], Pos: positionAt(lines, textStart)})
		}
		tok.Pos = positionAt(lines, i)
		tokens = append(tokens, tok)

		i = end + 1
		textStart = i
	}

	if textStart < len(src) {
		tokens = append(tokens, Token{Kind: TokenText, Value: src[textStart:], Pos: positionAt(lines, textStart)})
	}

	return tokens, nil
}

// matchBrace finds the '}' balancing the '{' at start.
func matchBrace(src string, start int) (int, braceStatus) {
	depth := 0
	for j := start; j < len(src); j++ {
		switch src[j] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return j, braceClosed
			}
		case '\n':
			return j, braceNewline
		}
	}
	return -1, braceEOF
}

// classify decides what the content between braces is. The second result is
// false when the content is not part of the macro language.
func classify(content string) (Token, bool) {
	word := leadingIdent(content)
	rest := content[len(word):]

	if openKeywords[word] || branchKeywords[word] || closeKeywords[word] {
		if rest == "" || rest[0] == ' ' || rest[0] == '\t' || rest[0] == '{' {
			kind := TokenOpen
			if branchKeywords[word] {
				kind = TokenBranch
			} else if closeKeywords[word] {
				kind = TokenClose
			}
			return Token{Kind: kind, Value: word, Arg: strings.TrimSpace(rest)}, true
		}
	}

	if isPath(content) {
		// endforeach, endwhile: a close directive that does not exist
		if rest == "" && len(word) > 3 && strings.HasPrefix(word, "end") {
			return Token{Kind: TokenClose, Value: word}, true
		}
		return Token{Kind: TokenPlaceholder, Value: content}, true
	}

	// foreach {x}, while {y}: shaped like a directive with a braced argument
	arg := strings.TrimSpace(rest)
	if len(arg) > 2 && arg[0] == '{' && arg[len(arg)-1] == '}' && !strings.ContainsAny(arg[1:len(arg)-1], "{}") {
		return Token{Kind: TokenOpen, Value: word, Arg: arg}, true
	}

	return Token{}, false
}

// looksLikeMacro reports whether the rest of a line after an unclosed '{'
// starts a directive, starts an item attribute or is a placeholder path.
func looksLikeMacro(line string) bool {
	line = strings.TrimRight(line, " \t\r")
	word := leadingIdent(line)
	rest := line[len(word):]

	keyword := openKeywords[word] || branchKeywords[word] || closeKeywords[word] ||
		(len(word) > 3 && strings.HasPrefix(word, "end"))
	if keyword && (rest == "" || rest[0] == ' ' || rest[0] == '\t' || rest[0] == '{') {
		return true
	}
	if word == "item" && strings.HasPrefix(rest, ".") {
		return true
	}
	return isPath(line)
}

func leadingIdent(s string) string {
	for i := 0; i < len(s); i++ {
		if !isIdentPart(s[i]) {
			return s[:i]
		}
	}
	return s
}

// isPath reports whether s is a dotted identifier path like item.name.
func isPath(s string) bool {
	if s == "" {
		return false
	}
	for _, part := range strings.Split(s, ".") {
		if part == "" || !isIdentStart(part[0]) {
			return false
		}
		for i := 1; i < len(part); i++ {
			if !isIdentPart(part[i]) {
				return false
			}
		}
	}
	return true
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func lineStarts(src string) []int {
	starts := []int{0}
	for i := 0; i < len(src); i++ {
		if src[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

func positionAt(starts []int, offset int) Position {
	line := sort.Search(len(starts), func(i int) bool { return starts[i] > offset }) - 1
	return Position{Line: line + 1, Column: offset - starts[line] + 1}
}

func snippet(s string) string {
	const max = 24
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
