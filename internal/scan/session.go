package scan

import (
	"sync"

	"github.com/google/uuid"
)

// Session is the explicit per-scan context. All state that a scan touches —
// mode, corpus, records, annotation handles, selection — lives here rather
// than at package level, so the engine stays reentrant across sessions and
// testable in isolation.
type Session struct {
	ID string

	mu       sync.Mutex
	applying bool

	mode    Mode
	values  []RequestedValue // manual-mode inputs
	corpus  *Corpus
	records []*EntityRecord
	anns    []*Annotation

	Selection *SelectionController
}

// NewSession creates a session in the given mode.
func NewSession(mode Mode, listener SelectionListener) *Session {
	s := &Session{ID: uuid.NewString(), mode: mode}
	s.Selection = NewSelectionController(s.Annotations, listener)
	return s
}

// Mode returns the current scan mode.
func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SetMode switches modes. Cancellation is coarse: the selection set and any
// prior results are discarded wholesale; the next scan's clear pass removes
// the wrappers themselves.
func (s *Session) SetMode(mode Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if mode == s.mode {
		return
	}
	s.mode = mode
	s.corpus = nil
	s.records = nil
	s.anns = nil
	s.values = nil
	s.Selection.Clear()
}

// SetManualValues supplies the values a manual-mode scan looks up.
func (s *Session) SetManualValues(values []RequestedValue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = values
}

// begin claims single-pass exclusivity for the applier loop.
func (s *Session) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.applying {
		return ErrScanInProgress
	}
	s.applying = true
	return nil
}

func (s *Session) end() {
	s.mu.Lock()
	s.applying = false
	s.mu.Unlock()
}

func (s *Session) storeResults(corpus *Corpus, records []*EntityRecord, anns []*Annotation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.corpus = corpus
	s.records = records
	s.anns = anns
}

// Corpus returns the last scan's corpus snapshot.
func (s *Session) Corpus() *Corpus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.corpus
}

// Records returns the last scan's merged entity records.
func (s *Session) Records() []*EntityRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records
}

// Annotations returns the last scan's annotation handles.
func (s *Session) Annotations() []*Annotation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.anns
}

func (s *Session) manualValues() []RequestedValue {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values
}
