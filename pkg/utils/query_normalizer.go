package utils

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MinQueryWordLength is the shortest word (in runes) that takes part in
// lexical matching. Shorter tokens are mostly articles and noise.
const MinQueryWordLength = 3

// letterFolds maps letter variants onto one canonical form. Hamza carriers
// (أ إ آ ؤ ئ) are already reduced by mark stripping after NFD.
var letterFolds = map[rune]rune{
	'ة': 'ه', // teh marbuta
	'ى': 'ي', // alef maksura
	'ی': 'ي', // farsi yeh
	'ک': 'ك', // keheh
	'ٱ': 'ا', // alef wasla
}

const tatweel = 'ـ'

func isDroppable(r rune) bool {
	return r == tatweel || unicode.Is(unicode.Mn, r)
}

func foldLetter(r rune) rune {
	if folded, ok := letterFolds[r]; ok {
		return folded
	}
	// Arabic-Indic and extended digits to ASCII.
	if r >= '٠' && r <= '٩' {
		return '0' + (r - '٠')
	}
	if r >= '۰' && r <= '۹' {
		return '0' + (r - '۰')
	}
	return r
}

func newFoldTransformer() transform.Transformer {
	return transform.Chain(
		norm.NFD,
		runes.Remove(runes.Predicate(isDroppable)),
		runes.Map(foldLetter),
		norm.NFC,
	)
}

// NormalizeQuery canonicalizes free text for matching and as a cache and log
// key: lower-case, combining marks stripped, letter variants folded,
// whitespace collapsed. The result is stable under repeated application.
func NormalizeQuery(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	folded, _, err := transform.String(newFoldTransformer(), strings.ToLower(raw))
	if err != nil {
		// Only invalid UTF-8 can fail here; fall back to lower-casing.
		folded = strings.ToLower(raw)
	}

	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}

// QueryWords splits a normalized query into the distinct words long enough to
// be matched individually, preserving first-seen order.
func QueryWords(normalized string) []string {
	fields := strings.Fields(normalized)
	words := make([]string, 0, len(fields))
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if utf8.RuneCountInString(f) < MinQueryWordLength {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		words = append(words, f)
	}
	return words
}
