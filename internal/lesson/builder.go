package lesson

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/muesli/reflow/truncate"
	"golang.org/x/text/unicode/norm"
)

// Fallback values used when the provider's split cannot be parsed.
const (
	FallbackTranslation = "Lỗi xử lý"
	FallbackPhonetic    = "N/A"
)

// titleWidth is the maximum display width of a generated title.
const titleWidth = 48

var (
	// ErrEmptyPassage is returned when there is nothing to split.
	ErrEmptyPassage = errors.New("passage is empty")

	// ErrEmptyWord is returned when a lookup is asked for no word.
	ErrEmptyWord = errors.New("word is empty")

	// ErrMalformedResponse marks an analysis response that could not be
	// parsed. Splitting recovers from it; lookups do not.
	ErrMalformedResponse = errors.New("malformed analysis response")
)

// Draft is a sentence as returned by the analyzer, before it has an ID.
type Draft struct {
	Text        string `json:"text"`
	Translation string `json:"translation"`
	Phonetic    string `json:"phonetic"`
}

// Analyzer performs the linguistic analysis of passages and words.
type Analyzer interface {
	Split(ctx context.Context, passage string) ([]Draft, error)
	Lookup(ctx context.Context, word string) (WordInfo, error)
}

// Builder turns passages into lessons.
type Builder struct {
	analyzer Analyzer
	now      func() time.Time
}

// NewBuilder returns a Builder backed by analyzer.
func NewBuilder(analyzer Analyzer) *Builder {
	return &Builder{analyzer: analyzer, now: time.Now}
}

// Build splits passage into sentences and assigns each an ID of the form
// s-<unix-ms>-<index>. A malformed split response turns the whole passage
// into a single sentence carrying the fallback translation and phonetic.
func (b *Builder) Build(ctx context.Context, passage string) (*Lesson, error) {
	passage = strings.TrimSpace(passage)
	if passage == "" {
		return nil, ErrEmptyPassage
	}

	drafts, err := b.analyzer.Split(ctx, passage)
	switch {
	case errors.Is(err, ErrMalformedResponse):
		log.Warn("Failed to parse split sentences, using fallback", "error", err)
		drafts = []Draft{{
			Text:        passage,
			Translation: FallbackTranslation,
			Phonetic:    FallbackPhonetic,
		}}
	case err != nil:
		return nil, fmt.Errorf("split passage: %w", err)
	}

	created := b.now()
	stamp := created.UnixMilli()

	l := &Lesson{
		ID:        fmt.Sprintf("l-%d", stamp),
		FullText:  passage,
		CreatedAt: created,
	}
	for _, d := range drafts {
		text := normalize(d.Text)
		if text == "" {
			continue
		}
		l.Sentences = append(l.Sentences, Sentence{
			ID:          fmt.Sprintf("s-%d-%d", stamp, len(l.Sentences)),
			Text:        text,
			Translation: normalize(d.Translation),
			Phonetic:    normalize(d.Phonetic),
		})
	}
	if len(l.Sentences) == 0 {
		return nil, fmt.Errorf("split passage: %w", ErrMalformedResponse)
	}
	l.Title = Title(l.Sentences[0].Text)

	log.Debug("Lesson built", "id", l.ID, "sentences", len(l.Sentences))
	return l, nil
}

// Lookup fetches translation and phonetics for a word. The token is
// cleaned of punctuation first.
func (b *Builder) Lookup(ctx context.Context, word string) (WordInfo, error) {
	word = CleanWord(word)
	if word == "" {
		return WordInfo{}, ErrEmptyWord
	}

	info, err := b.analyzer.Lookup(ctx, word)
	if err != nil {
		return WordInfo{}, fmt.Errorf("lookup %q: %w", word, err)
	}
	if info.Word == "" {
		info.Word = word
	}
	info.Word = normalize(info.Word)
	info.Translation = normalize(info.Translation)
	info.Phonetic = normalize(info.Phonetic)
	return info, nil
}

// Title derives a display title from a sentence.
func Title(text string) string {
	return truncate.StringWithTail(strings.TrimSpace(text), titleWidth, "…")
}

// normalize trims and NFC-normalizes provider text so IPA diacritics
// compare and measure consistently.
func normalize(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
