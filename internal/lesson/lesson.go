// Package lesson holds the passage a learner is studying: its sentences
// with translation and phonetics, word lookups, and the local history of
// past lessons.
package lesson

import (
	"regexp"
	"strings"
	"time"
)

// Sentence is one practice unit of a lesson. It is immutable once built.
type Sentence struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	Translation string `json:"translation"`
	Phonetic    string `json:"phonetic"`
}

// Words splits the sentence on whitespace and cleans each token for
// lookup. Tokens that are only punctuation are dropped.
func (s Sentence) Words() []string {
	fields := strings.Fields(s.Text)
	words := make([]string, 0, len(fields))
	for _, f := range fields {
		if w := CleanWord(f); w != "" {
			words = append(words, w)
		}
	}
	return words
}

// Lesson is a processed passage.
type Lesson struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	FullText  string     `json:"fullText"`
	Sentences []Sentence `json:"sentences"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Sentence returns the sentence with the given ID.
func (l *Lesson) Sentence(id string) (Sentence, bool) {
	if l == nil {
		return Sentence{}, false
	}
	for _, s := range l.Sentences {
		if s.ID == id {
			return s, true
		}
	}
	return Sentence{}, false
}

// WordInfo is the result of a single word lookup. It is never cached.
type WordInfo struct {
	Word        string `json:"word"`
	Translation string `json:"translation"`
	Phonetic    string `json:"phonetic"`
}

var punctuation = regexp.MustCompile(`[.,!?;:()]`)

// CleanWord strips sentence punctuation from a token.
func CleanWord(token string) string {
	return punctuation.ReplaceAllString(strings.TrimSpace(token), "")
}
