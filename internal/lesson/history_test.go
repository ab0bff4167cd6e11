package lesson

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func testLesson(n int, title string) *Lesson {
	created := time.Date(2026, 1, 1, 0, 0, n, 0, time.UTC)
	return &Lesson{
		ID:       fmt.Sprintf("l-%d", created.UnixMilli()),
		Title:    title,
		FullText: strings.Repeat(title+" ", 20),
		Sentences: []Sentence{
			{ID: fmt.Sprintf("s-%d-0", created.UnixMilli()), Text: title, Translation: "bản dịch", Phonetic: "/ˈfəʊ.nə.tɪk/"},
		},
		CreatedAt: created,
	}
}

func TestHistorySaveAndGet(t *testing.T) {
	for _, level := range []int{0, 3} {
		t.Run(fmt.Sprintf("level %d", level), func(t *testing.T) {
			h, err := OpenHistory(t.TempDir(), 10, level)
			if err != nil {
				t.Fatalf("OpenHistory failed: %v", err)
			}
			defer h.Close()

			l := testLesson(1, "Hello world.")
			if err := h.Save(l); err != nil {
				t.Fatalf("Save failed: %v", err)
			}

			got, err := h.Get(l.ID)
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if got.Title != l.Title || got.FullText != l.FullText {
				t.Errorf("Lesson mismatch: %+v", got)
			}
			if len(got.Sentences) != 1 || got.Sentences[0].Phonetic != "/ˈfəʊ.nə.tɪk/" {
				t.Errorf("Sentences mismatch: %+v", got.Sentences)
			}
			if !got.CreatedAt.Equal(l.CreatedAt) {
				t.Errorf("CreatedAt mismatch: %v vs %v", got.CreatedAt, l.CreatedAt)
			}
		})
	}
}

func TestHistoryNewestFirstAndCapped(t *testing.T) {
	h, err := OpenHistory(t.TempDir(), 3, 3)
	if err != nil {
		t.Fatalf("OpenHistory failed: %v", err)
	}
	defer h.Close()

	for i := 1; i <= 5; i++ {
		if err := h.Save(testLesson(i, fmt.Sprintf("Lesson %d", i))); err != nil {
			t.Fatalf("Save %d failed: %v", i, err)
		}
	}

	list := h.List()
	if len(list) != 3 {
		t.Fatalf("Expected 3 lessons after cap, got %d", len(list))
	}
	for i, want := range []string{"Lesson 5", "Lesson 4", "Lesson 3"} {
		if list[i].Title != want {
			t.Errorf("Position %d: expected %s, got %s", i, want, list[i].Title)
		}
	}

	if _, err := h.Get(testLesson(1, "").ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected evicted lesson to be gone, got %v", err)
	}
}

func TestHistoryPersists(t *testing.T) {
	dir := t.TempDir()

	h, err := OpenHistory(dir, 10, 3)
	if err != nil {
		t.Fatalf("OpenHistory failed: %v", err)
	}
	l := testLesson(7, "Persisted lesson.")
	if err := h.Save(l); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	h.Close()

	reopened, err := OpenHistory(dir, 10, 3)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer reopened.Close()

	if reopened.Len() != 1 {
		t.Fatalf("Expected 1 lesson after reopen, got %d", reopened.Len())
	}
	if _, err := reopened.Get(l.ID); err != nil {
		t.Errorf("Get after reopen failed: %v", err)
	}
}

func TestHistoryDelete(t *testing.T) {
	h, err := OpenHistory(t.TempDir(), 10, 0)
	if err != nil {
		t.Fatalf("OpenHistory failed: %v", err)
	}
	defer h.Close()

	l := testLesson(1, "Delete me.")
	_ = h.Save(l)

	if err := h.Delete(l.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if h.Len() != 0 {
		t.Errorf("Expected empty history, got %d", h.Len())
	}
	if err := h.Delete(l.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestHistorySearch(t *testing.T) {
	h, err := OpenHistory(t.TempDir(), 10, 0)
	if err != nil {
		t.Fatalf("OpenHistory failed: %v", err)
	}
	defer h.Close()

	_ = h.Save(testLesson(1, "Learning English is an exciting journey."))
	_ = h.Save(testLesson(2, "Consistency is the key to success."))

	got := h.Search("consist")
	if len(got) != 1 || !strings.HasPrefix(got[0].Title, "Consistency") {
		t.Errorf("Unexpected search result %+v", got)
	}

	if len(h.Search("")) != 2 {
		t.Error("Expected empty query to return all lessons")
	}
}
