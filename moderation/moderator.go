// Package moderation censors forbidden words in outbound message
// content before it becomes authoritative.
package moderation

import (
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
	"github.com/abadojack/whatlanggo"
)

// Moderator matches a normalized form of the content against an
// Aho-Corasick automaton and masks the matched spans in the original.
type Moderator struct {
	matcher      *goahocorasick.Machine
	censoredChar rune
}

// NewModerator builds the automaton from a normalized copy of the
// censored words list.
func NewModerator(censoredWords []string, censoredChar rune) (Moderator, error) {
	patterns := make([][]rune, len(censoredWords))
	for i, word := range censoredWords {
		patterns[i] = normalize([]rune(word), nil)
	}
	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return Moderator{}, err
	}
	return Moderator{matcher: m, censoredChar: censoredChar}, nil
}

// Censor masks every forbidden span and reports whether anything was
// masked. Spacing and untouched characters are preserved.
func (m *Moderator) Censor(original string) (string, bool) {
	origRunes := []rune(original)
	var origIdx []int
	normalized := normalize(origRunes, &origIdx)
	if len(normalized) == 0 {
		return original, false
	}

	spans := m.matcher.MultiPatternSearch(normalized, false)
	if len(spans) == 0 {
		return original, false
	}

	for _, span := range spans {
		start := span.Pos
		end := start + len(span.Word)
		if start < 0 || end > len(origIdx) {
			continue
		}
		for i := origIdx[start]; i <= origIdx[end-1]; i++ {
			origRunes[i] = m.censoredChar
		}
	}
	return string(origRunes), true
}

// Language returns the ISO 639-1 code of the content's detected
// language, for the moderation log line.
func Language(content string) string {
	info := whatlanggo.Detect(content)
	return info.Lang.Iso6391()
}

// normalize lowercases, undoes common leet substitutions and strips
// separator noise. When idx is non-nil it records, for every kept
// rune, its position in the input so matches can be mapped back.
func normalize(input []rune, idx *[]int) []rune {
	out := make([]rune, 0, len(input))
	for i, r := range input {
		clean := unleet(r)
		if isNoise(clean) {
			continue
		}
		out = append(out, unicode.ToLower(clean))
		if idx != nil {
			*idx = append(*idx, i)
		}
	}
	return out
}

// unleet maps common leet-speak characters back to letters.
func unleet(r rune) rune {
	switch r {
	case '4', '@':
		return 'a'
	case '3':
		return 'e'
	case '1', '!':
		return 'i'
	case '0':
		return 'o'
	case '5', '$':
		return 's'
	case '7':
		return 't'
	}
	return r
}

func isNoise(r rune) bool {
	return unicode.IsSpace(r) || r == '.' || r == '-' || r == '_' || r == '*'
}
