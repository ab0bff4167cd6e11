package lesson

import (
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/zstd"
	"github.com/sahilm/fuzzy"
)

const indexFile = "history.index"

// ErrNotFound is returned for an unknown lesson ID.
var ErrNotFound = errors.New("lesson not found")

// Summary describes a stored lesson without loading its sentences.
type Summary struct {
	ID        string
	Title     string
	Sentences int
	Size      int64 // bytes on disk
	CreatedAt time.Time
}

// historyEntry is the on-disk index record for a lesson.
type historyEntry struct {
	ID         string
	Title      string
	FilePath   string
	Sentences  int
	Size       int64
	Compressed bool
	CreatedAt  time.Time
}

// History is a local store of past lessons, newest first, capped at a
// fixed number of lessons. Lesson files are zstd-compressed JSON.
type History struct {
	basePath   string
	maxLessons int

	compressionLevel int
	encoder          *zstd.Encoder
	decoder          *zstd.Decoder

	index map[string]*historyEntry
	mu    sync.RWMutex
}

// OpenHistory opens or creates the store in basePath. compressionLevel is a
// zstd level; 0 disables compression.
func OpenHistory(basePath string, maxLessons, compressionLevel int) (*History, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}
	if maxLessons <= 0 {
		return nil, fmt.Errorf("max lessons must be positive, got %d", maxLessons)
	}

	h := &History{
		basePath:         basePath,
		maxLessons:       maxLessons,
		compressionLevel: compressionLevel,
		index:            make(map[string]*historyEntry),
	}

	if compressionLevel > 0 {
		var err error
		h.encoder, err = zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(compressionLevel)))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}
	}
	// Files written with compression on stay readable after it is turned off.
	var err error
	h.decoder, err = zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	if err := h.loadIndex(); err != nil {
		log.Warn("History index unreadable, starting empty", "path", basePath, "error", err)
		h.index = make(map[string]*historyEntry)
	}

	return h, nil
}

// Save stores l, evicting the oldest lessons beyond the cap.
func (h *History) Save(l *Lesson) error {
	if l == nil || l.ID == "" {
		return errors.New("lesson has no ID")
	}

	data, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("failed to encode lesson: %w", err)
	}

	compressed := false
	if h.encoder != nil {
		if c := h.encoder.EncodeAll(data, nil); len(c) < len(data) {
			data = c
			compressed = true
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	path := h.filePath(l.ID)
	if err := writeFile(path, data); err != nil {
		return fmt.Errorf("failed to write lesson file: %w", err)
	}

	h.index[l.ID] = &historyEntry{
		ID:         l.ID,
		Title:      l.Title,
		FilePath:   path,
		Sentences:  len(l.Sentences),
		Size:       int64(len(data)),
		Compressed: compressed,
		CreatedAt:  l.CreatedAt,
	}

	for len(h.index) > h.maxLessons {
		h.evictOldest()
	}

	return h.saveIndex()
}

// Get loads a lesson by ID.
func (h *History) Get(id string) (*Lesson, error) {
	h.mu.RLock()
	entry, ok := h.index[id]
	h.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	data, err := os.ReadFile(entry.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read lesson %s: %w", id, err)
	}
	if entry.Compressed {
		data, err = h.decoder.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress lesson %s: %w", id, err)
		}
	}

	var l Lesson
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("failed to decode lesson %s: %w", id, err)
	}
	return &l, nil
}

// Delete removes a lesson. Unknown IDs return ErrNotFound.
func (h *History) Delete(id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	entry, ok := h.index[id]
	if !ok {
		return ErrNotFound
	}
	os.Remove(entry.FilePath)
	delete(h.index, id)
	return h.saveIndex()
}

// List returns all lessons, newest first.
func (h *History) List() []Summary {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Summary, 0, len(h.index))
	for _, e := range h.index {
		out = append(out, e.summary())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Len returns the number of stored lessons.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.index)
}

// summaries implements fuzzy.Source over lesson titles.
type summaries []Summary

func (s summaries) String(i int) string { return s[i].Title }
func (s summaries) Len() int            { return len(s) }

// Search fuzzy-matches query against lesson titles, best match first. An
// empty query returns every lesson.
func (h *History) Search(query string) []Summary {
	all := h.List()
	if query == "" {
		return all
	}

	matches := fuzzy.FindFrom(query, summaries(all))
	out := make([]Summary, 0, len(matches))
	for _, m := range matches {
		out = append(out, all[m.Index])
	}
	return out
}

// Close releases the compression codecs.
func (h *History) Close() error {
	if h.encoder != nil {
		_ = h.encoder.Close()
	}
	if h.decoder != nil {
		h.decoder.Close()
	}
	return nil
}

func (e *historyEntry) summary() Summary {
	return Summary{
		ID:        e.ID,
		Title:     e.Title,
		Sentences: e.Sentences,
		Size:      e.Size,
		CreatedAt: e.CreatedAt,
	}
}

func (h *History) filePath(id string) string {
	return filepath.Join(h.basePath, id+".lesson")
}

func (h *History) evictOldest() {
	var oldest *historyEntry
	for _, e := range h.index {
		if oldest == nil || e.CreatedAt.Before(oldest.CreatedAt) {
			oldest = e
		}
	}
	if oldest != nil {
		log.Debug("Evicting lesson from history", "id", oldest.ID, "created", oldest.CreatedAt)
		os.Remove(oldest.FilePath)
		delete(h.index, oldest.ID)
	}
}

func (h *History) loadIndex() error {
	file, err := os.Open(filepath.Join(h.basePath, indexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	return gob.NewDecoder(file).Decode(&h.index)
}

func (h *History) saveIndex() error {
	path := filepath.Join(h.basePath, indexFile)
	tempPath := path + ".tmp"

	file, err := os.Create(tempPath)
	if err != nil {
		return err
	}
	if err := gob.NewEncoder(file).Encode(h.index); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode history index: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return err
	}
	return os.Rename(tempPath, path)
}

// writeFile writes through a temp file and renames it into place.
func writeFile(path string, data []byte) error {
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		os.Remove(tempPath)
		return err
	}
	return os.Rename(tempPath, path)
}
