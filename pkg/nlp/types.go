package nlp

// MatchResult describes how well an utterance matched a dismissal phrase.
type MatchResult struct {
	Phrase    string  `json:"phrase"`
	Utterance string  `json:"utterance"`
	Score     float64 `json:"score"`
	Matched   bool    `json:"matched"`
	MatchType string  `json:"match_type"`
}

type IPhraseMatcher interface {
	Match(utterance string) MatchResult
	Phrases() []string
}
