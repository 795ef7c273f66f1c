package macro

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kinds(tokens []Token) []TokenKind {
	out := make([]TokenKind, len(tokens))
	for i, t := range tokens {
		out[i] = t.Kind
	}
	return out
}

func TestLex_Directives(t *testing.T) {
	src := "<ul>{for {nmaxitems}}<li>{item.name}</li>{endfor}</ul>"

	tokens, err := Lex("list.php", src)
	require.NoError(t, err)

	assert.Equal(t, []TokenKind{TokenText, TokenOpen, TokenText, TokenPlaceholder, TokenText, TokenClose, TokenText}, kinds(tokens))
	assert.Equal(t, "for", tokens[1].Value)
	assert.Equal(t, "{nmaxitems}", tokens[1].Arg)
	assert.Equal(t, "item.name", tokens[3].Value)
	assert.Equal(t, "endfor", tokens[5].Value)
}

func TestLex_BranchesAndArguments(t *testing.T) {
	tokens, err := Lex("t", "{switch {item.type}}{case 2, 3}a{othercase}b{endswitch}{if nCount<{nmaxitems}}c{else}d{endif}")
	require.NoError(t, err)

	var got []string
	for _, tok := range tokens {
		if tok.Kind == TokenOpen || tok.Kind == TokenBranch {
			got = append(got, tok.Value+"|"+tok.Arg)
		}
	}
	assert.Equal(t, []string{
		"switch|{item.type}",
		"case|2, 3",
		"othercase|",
		"if|nCount<{nmaxitems}",
		"else|",
	}, got)
}

func TestLex_HostLanguageBracesPassThrough(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"block over lines", "function f() {\n  return 1;\n}"},
		{"leading space", "{ name }"},
		{"php variable", "{$row['id']}"},
		{"statement", "if ($a) {return;}"},
		{"json", `{"a": 1}`},
		{"empty", "{}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens, err := Lex("t", tt.src)
			require.NoError(t, err)
			require.Len(t, tokens, 1)
			assert.Equal(t, TokenText, tokens[0].Kind)
			assert.Equal(t, tt.src, tokens[0].Value)
		})
	}
}

func TestLex_UnterminatedDirective(t *testing.T) {
	_, err := Lex("form.php", "line one\n<b>{for {nmaxitems}")
	require.Error(t, err)

	var lexErr *LexError
	require.True(t, errors.As(err, &lexErr))
	assert.ErrorIs(t, err, ErrUnterminatedDirective)
	assert.Equal(t, "form.php", lexErr.File)
	assert.Equal(t, Position{Line: 2, Column: 4}, lexErr.Pos)
	assert.True(t, IsTemplateError(err))
}

func TestLex_UnterminatedBeforeNewline(t *testing.T) {
	tests := []struct {
		name string
		src  string
		pos  Position
	}{
		{"placeholder", "<b>{filename\n", Position{Line: 1, Column: 4}},
		{"item path", "x\n  {item.name</td>\n", Position{Line: 2, Column: 3}},
		{"item path at line end", "{item.caption\r\n", Position{Line: 1, Column: 1}},
		{"open directive", "{for {nmaxitems}\nrow\n{endfor}\n", Position{Line: 1, Column: 1}},
		{"branch", "{switch {item.type}}{case 1\nx{endswitch}\n", Position{Line: 1, Column: 21}},
		{"close", "{for 1}x{endfor\n", Position{Line: 1, Column: 9}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Lex("form.php", tt.src)
			require.Error(t, err)

			var lexErr *LexError
			require.True(t, errors.As(err, &lexErr))
			assert.ErrorIs(t, err, ErrUnterminatedDirective)
			assert.Equal(t, tt.pos, lexErr.Pos)
		})
	}

	t.Run("host code stays literal", func(t *testing.T) {
		src := "a{color:red;\n}\nif (x) {$y = 1;\n}\n"
		tokens, err := Lex("style.php", src)
		require.NoError(t, err)
		require.Len(t, tokens, 1)
		assert.Equal(t, src, tokens[0].Value)
	})
}

func TestLex_Positions(t *testing.T) {
	tokens, err := Lex("t", "a\nbb{filename}\n  {endfor}")
	require.NoError(t, err)

	require.Len(t, tokens, 4)
	assert.Equal(t, Position{Line: 1, Column: 1}, tokens[0].Pos)
	assert.Equal(t, Position{Line: 2, Column: 3}, tokens[1].Pos)
	assert.Equal(t, Position{Line: 3, Column: 3}, tokens[3].Pos)
}

func TestLex_UnknownDirectiveShapes(t *testing.T) {
	tokens, err := Lex("t", "{foreach {x}}{endwhile}")
	require.NoError(t, err)

	require.Len(t, tokens, 2)
	assert.Equal(t, TokenOpen, tokens[0].Kind)
	assert.Equal(t, "foreach", tokens[0].Value)
	assert.Equal(t, TokenClose, tokens[1].Kind)
	assert.Equal(t, "endwhile", tokens[1].Value)
}
