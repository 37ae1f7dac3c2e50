// Package document tracks the authoritative in-memory text of open
// manifests and applies incremental edit operations.
package document

import (
	"fmt"
	"sync"

	"crateslsp/internal/source"
)

// Document is one open manifest: its current text and the editor's
// monotonically increasing version counter.
type Document struct {
	URI     string
	Text    string
	Version int32
}

// Change is a single content change: a full-text replacement when
// Range is nil, otherwise a ranged splice.
type Change struct {
	Range *source.Range
	Text  string
}

// Store owns exactly one Document per URI. It is safe for concurrent
// use; diagnostic passes read documents while the protocol loop
// mutates them.
type Store struct {
	mu   sync.RWMutex
	docs map[string]*Document
}

func NewStore() *Store {
	return &Store{docs: make(map[string]*Document)}
}

// Open creates the document. An already open URI is replaced.
func (s *Store) Open(uri, text string, version int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[uri] = &Document{URI: uri, Text: text, Version: version}
}

// Get returns a snapshot of the document's text and version.
func (s *Store) Get(uri string) (string, int32, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[uri]
	if !ok {
		return "", 0, false
	}
	return doc.Text, doc.Version, true
}

// ApplyChanges applies an ordered list of content changes and bumps the
// version. Out-of-bounds positions in a ranged change are an error;
// clamping would silently desynchronize the tracked text from the
// editor's buffer. On error the document keeps the text of the changes
// applied so far and still records the new version, matching full-sync
// recovery on the next replacement.
func (s *Store) ApplyChanges(uri string, changes []Change, version int32) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[uri]
	if !ok {
		return "", fmt.Errorf("document not open: %s", uri)
	}
	var firstErr error
	for _, change := range changes {
		next, err := applyChange(doc.Text, change)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		doc.Text = next
	}
	doc.Version = version
	return doc.Text, firstErr
}

func applyChange(text string, change Change) (string, error) {
	if change.Range == nil {
		return change.Text, nil
	}
	idx := source.NewTextIndex([]byte(text))
	start, err := idx.OffsetForPosition(change.Range.Start)
	if err != nil {
		return "", fmt.Errorf("change start: %w", err)
	}
	end, err := idx.OffsetForPosition(change.Range.End)
	if err != nil {
		return "", fmt.Errorf("change end: %w", err)
	}
	if end < start {
		return "", fmt.Errorf("inverted change range %d-%d", start, end)
	}
	return text[:start] + change.Text + text[end:], nil
}

// ApplySave records saved text when the client includes it; otherwise
// the tracked text stands.
func (s *Store) ApplySave(uri string, text *string) (string, int32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[uri]
	if !ok {
		return "", 0, false
	}
	if text != nil {
		doc.Text = *text
	}
	return doc.Text, doc.Version, true
}

// Close destroys the document. It reports whether the URI was open.
func (s *Store) Close(uri string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.docs[uri]
	delete(s.docs, uri)
	return ok
}
