// Package placeholder protects format specifiers (%s, %1$d, …) and the
// literal escape sequences \n, \t and \r during translation by replacing
// them with opaque tokens (__TOK0__, __TOK1__, …) that translation
// providers pass through untouched. After translation, Restore substitutes
// the tokens back.
package placeholder

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	// positional (%1$s), unindexed (%d) and two-character escapes (\n)
	rePlaceholder = regexp.MustCompile(`%\d+\$[sdif]|%[sdif]|\\n|\\t|\\r`)
)

const tokenPrefix = "__TOK"

// Token pairs a synthetic key with the substring it stands in for.
type Token struct {
	Key      string
	Original string
}

// TokenMap is the ordered list of tokens created for one text, in scan order.
type TokenMap []Token

// Protect replaces every placeholder in text, left to right and without
// overlaps, by a token unique within that text. When the text already
// contains the token prefix the prefix is lengthened until it no longer
// occurs, so restoring can never touch original content.
func Protect(text string) (string, TokenMap) {
	prefix := tokenPrefix
	for strings.Contains(text, prefix) {
		prefix += "X"
	}

	var tokens TokenMap
	protected := rePlaceholder.ReplaceAllStringFunc(text, func(match string) string {
		key := fmt.Sprintf("%s%d__", prefix, len(tokens))
		tokens = append(tokens, Token{Key: key, Original: match})
		return key
	})

	return protected, tokens
}

// Restore substitutes every token key in text with its original substring.
// Keys missing from text are ignored.
func Restore(text string, tokens TokenMap) string {
	if len(tokens) == 0 {
		return text
	}
	pairs := make([]string, 0, len(tokens)*2)
	for _, tok := range tokens {
		pairs = append(pairs, tok.Key, tok.Original)
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

// InstructionHint returns a short sentence to append to an LLM prompt so the
// model knows to leave tokens intact.
func InstructionHint() string {
	return "Keep every " + tokenPrefix + "n__ marker exactly as it appears; do not translate, move, or remove them."
}

// Validate checks whether all tokens are still present in the translated
// text. It returns the indices of the missing ones.
func Validate(text string, tokens TokenMap) []int {
	var missing []int
	for i, tok := range tokens {
		if !strings.Contains(text, tok.Key) {
			missing = append(missing, i)
		}
	}
	return missing
}
