package mentions

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Client-side authoring aid for @mentions. Matching is advisory only: the
// server accepts and stores unmatched @tokens as plain text, and rendering
// highlights any @token regardless of validity.

const maxCandidates = 5

// Member is a room member eligible for mention completion.
type Member struct {
	ID   int
	Name string
}

var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// fold lowercases and strips diacritics so "jose" matches "José".
func fold(s string) string {
	out, _, err := transform.String(foldTransformer, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// Fragment extracts the @-fragment the caret sits in. The @ must start the
// text or follow whitespace; a mid-word @ is not a mention. Returns the
// fragment without the @, its byte offset, and whether one was found.
func Fragment(text string, caret int) (fragment string, start int, ok bool) {
	if caret < 0 || caret > len(text) {
		return "", 0, false
	}
	head := text[:caret]
	at := strings.LastIndexByte(head, '@')
	if at < 0 {
		return "", 0, false
	}
	if at > 0 {
		prev := rune(head[at-1])
		if !unicode.IsSpace(prev) {
			return "", 0, false
		}
	}
	fragment = head[at+1:]
	if strings.ContainsFunc(fragment, unicode.IsSpace) {
		return "", 0, false
	}
	return fragment, at, true
}

// Candidates ranks members against the fragment, case- and
// diacritic-insensitively, capped at a small list. Prefix matches outrank
// substring matches; ties keep name order.
func Candidates(members []Member, fragment string) []Member {
	needle := fold(fragment)

	type ranked struct {
		member Member
		prefix bool
	}
	var matches []ranked
	for _, m := range members {
		name := fold(m.Name)
		switch {
		case needle == "":
			matches = append(matches, ranked{member: m, prefix: true})
		case strings.HasPrefix(name, needle):
			matches = append(matches, ranked{member: m, prefix: true})
		case strings.Contains(name, needle):
			matches = append(matches, ranked{member: m})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].prefix != matches[j].prefix {
			return matches[i].prefix
		}
		return fold(matches[i].member.Name) < fold(matches[j].member.Name)
	})

	if len(matches) > maxCandidates {
		matches = matches[:maxCandidates]
	}
	out := make([]Member, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.member)
	}
	return out
}

// Apply substitutes the typed fragment with "@FullName " and returns the
// rewritten text and new caret position. Text is returned unchanged when the
// caret is not inside a fragment.
func Apply(text string, caret int, member Member) (string, int) {
	_, start, ok := Fragment(text, caret)
	if !ok {
		return text, caret
	}
	replacement := "@" + member.Name + " "
	rewritten := text[:start] + replacement + text[caret:]
	return rewritten, start + len(replacement)
}

// Tokens returns every @token in the text for highlight rendering, valid
// member or not.
func Tokens(text string) []string {
	var tokens []string
	fields := strings.Fields(text)
	for _, f := range fields {
		if strings.HasPrefix(f, "@") && len(f) > 1 {
			tokens = append(tokens, strings.TrimRight(f[1:], ".,;:!?"))
		}
	}
	return tokens
}
