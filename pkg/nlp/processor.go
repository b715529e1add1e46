package nlp

import (
	"math"
	"strings"
	"unicode"

	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const DefaultThreshold = 0.8

var DefaultPhrases = []string{
	"I'm awake",
	"I am awake",
	"I'm up",
	"good morning",
	"stop alarm",
}

type PhraseMatcher struct {
	phrases   []string
	cleaned   []string
	threshold float64
}

func NewPhraseMatcher(phrases []string, threshold float64) IPhraseMatcher {
	if len(phrases) == 0 {
		phrases = DefaultPhrases
	}
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}

	m := &PhraseMatcher{threshold: threshold}
	for _, p := range phrases {
		c := cleanText(p)
		if c == "" {
			continue
		}
		m.phrases = append(m.phrases, p)
		m.cleaned = append(m.cleaned, c)
	}
	return m
}

func (m *PhraseMatcher) Phrases() []string {
	out := make([]string, len(m.phrases))
	copy(out, m.phrases)
	return out
}

// Match returns the best scoring phrase for utterance.
func (m *PhraseMatcher) Match(utterance string) MatchResult {
	text := cleanText(utterance)
	best := MatchResult{Utterance: utterance, MatchType: "none"}
	if text == "" {
		return best
	}

	for i, phrase := range m.cleaned {
		score, kind := m.score(text, phrase)
		if score > best.Score {
			best.Score = score
			best.Phrase = m.phrases[i]
			best.MatchType = kind
		}
	}

	best.Matched = best.Score >= m.threshold
	return best
}

func (m *PhraseMatcher) score(text, phrase string) (float64, string) {
	if text == phrase {
		return 1.0, "exact"
	}
	if strings.Contains(" "+text+" ", " "+phrase+" ") {
		return 1.0, "contains"
	}

	// slide a window the size of the phrase over the utterance
	words := strings.Fields(text)
	size := len(strings.Fields(phrase))
	if size > len(words) {
		return similarity(text, phrase), "fuzzy"
	}

	best := 0.0
	for i := 0; i+size <= len(words); i++ {
		window := strings.Join(words[i:i+size], " ")
		if s := similarity(window, phrase); s > best {
			best = s
		}
	}
	return best, "fuzzy"
}

func similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}

	distance := levenshteinDistance([]rune(a), []rune(b))
	maxLen := math.Max(float64(len([]rune(a))), float64(len([]rune(b))))
	if maxLen == 0 {
		return 0.0
	}

	return math.Max(0, 1.0-(float64(distance)/maxLen))
}

func levenshteinDistance(s1, s2 []rune) int {
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	prev := make([]int, len(s2)+1)
	curr := make([]int, len(s2)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(s1); i++ {
		curr[0] = i
		for j := 1; j <= len(s2); j++ {
			cost := 0
			if s1[i-1] != s2[j-1] {
				cost = 1
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(s2)]
}

func cleanText(text string) string {
	text = strings.ToLower(text)

	t := transform.Chain(norm.NFD, transform.RemoveFunc(isMn), norm.NFC)
	result, _, _ := transform.String(t, text)

	// apostrophes join contractions ("i'm" -> "im")
	result = strings.NewReplacer("'", "", "’", "").Replace(result)
	result = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return r
		}
		return ' '
	}, result)

	return strings.Join(strings.Fields(result), " ")
}

func isMn(r rune) bool {
	return unicode.Is(unicode.Mn, r)
}
