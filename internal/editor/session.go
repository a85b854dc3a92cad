// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package editor implements the designer's editing session: a live canvas
// with linear undo/redo over serialized snapshots, dirty tracking against
// the last persisted state, and a debounced background autosave.
//
// A Session owns its canvas exclusively. All mutations go through the
// session so history is captured strictly in mutation order.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"mockupstudio/internal/scene"
)

var (
	// ErrSnapshotCorrupt is returned by Undo/Redo when the target history
	// entry cannot be loaded. The session state is left unchanged.
	ErrSnapshotCorrupt = errors.New("history snapshot is corrupt")

	// ErrSessionClosed is returned by operations on a closed session.
	ErrSessionClosed = errors.New("editing session is closed")
)

// Saver persists a template's serialized state. publish is true only for
// explicit, user-visible saves that may flip the published flag.
type Saver interface {
	SaveState(ctx context.Context, templateID, state string, publish bool) error
}

// SaverFunc adapts a function to the Saver interface.
type SaverFunc func(ctx context.Context, templateID, state string, publish bool) error

// SaveState calls f.
func (f SaverFunc) SaveState(ctx context.Context, templateID, state string, publish bool) error {
	return f(ctx, templateID, state, publish)
}

// Options configure a new Session. The initial state is handed over here
// rather than through any shared variable.
type Options struct {
	TemplateID    string
	InitialState  string
	Saver         Saver
	Clock         Clock
	AutoSaveDelay time.Duration

	// FlushOnClose makes Close persist unsaved edits instead of dropping
	// whatever the pending autosave would have written.
	FlushOnClose bool

	// SaveTimeout bounds each background autosave call.
	SaveTimeout time.Duration
}

// State is a point-in-time view of a session for callers and the API.
type State struct {
	TemplateID   string `json:"templateId"`
	HistoryLen   int    `json:"historyLength"`
	HistoryIndex int    `json:"historyIndex"`
	CanUndo      bool   `json:"canUndo"`
	CanRedo      bool   `json:"canRedo"`
	Dirty        bool   `json:"isDirty"`
	Selected     string `json:"selectedId,omitempty"`
	AutoSaving   bool   `json:"autosavePending"`
}

// Session is one designer's editing session over a template.
type Session struct {
	mu sync.Mutex

	// saveMu serializes writes to the Saver from snapshot through
	// SaveState, so saves land in snapshot order. Acquire it before mu.
	saveMu sync.Mutex

	templateID string
	canvas     *DocumentCanvas
	saver      Saver
	clock      Clock
	autosave   *debouncer

	history   []string
	index     int
	replaying bool
	batching  bool
	changed   bool

	persisted string
	dirty     bool
	selected  string

	flushOnClose bool
	saveTimeout  time.Duration
	closed       bool
	lastUsed     time.Time
}

// NewSession loads the initial state into a fresh canvas and seeds the
// history with it. A state that fails to parse is a load error and no
// session is created.
func NewSession(opts Options) (*Session, error) {
	if opts.Saver == nil {
		return nil, errors.New("new session: saver is required")
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if opts.AutoSaveDelay <= 0 {
		opts.AutoSaveDelay = DefaultAutoSaveDelay
	}
	if opts.SaveTimeout <= 0 {
		opts.SaveTimeout = 30 * time.Second
	}

	doc, err := scene.ParseString(opts.InitialState)
	if err != nil {
		return nil, fmt.Errorf("new session for %s: %w", opts.TemplateID, err)
	}
	s := &Session{
		templateID:   opts.TemplateID,
		canvas:       NewDocumentCanvas(doc),
		saver:        opts.Saver,
		clock:        opts.Clock,
		autosave:     newDebouncer(opts.Clock, opts.AutoSaveDelay),
		index:        -1,
		flushOnClose: opts.FlushOnClose,
		saveTimeout:  opts.SaveTimeout,
		lastUsed:     opts.Clock.Now(),
	}
	s.canvas.OnChange(s.handleChange)

	snap, err := s.canvas.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("new session for %s: %w", opts.TemplateID, err)
	}
	s.history = []string{snap}
	s.index = 0
	s.persisted = snap
	return s, nil
}

// handleChange is the canvas listener. It runs with s.mu held because the
// canvas is only mutated from inside session methods.
func (s *Session) handleChange(Event) {
	if s.replaying {
		return
	}
	if s.batching {
		s.changed = true
		return
	}
	s.recordLocked()
	s.scheduleAutoSaveLocked()
}

// Do runs fn against the live canvas. All events fn triggers collapse into
// a single history entry, recorded once fn returns. If fn fails after a
// partial mutation, that mutation is still recorded so history matches the
// canvas.
func (s *Session) Do(fn func(c *DocumentCanvas) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.touchLocked()

	s.batching, s.changed = true, false
	err := fn(s.canvas)
	s.batching = false
	if s.changed {
		s.changed = false
		s.recordLocked()
		s.scheduleAutoSaveLocked()
	}
	if s.selected != "" {
		if o, _ := s.canvas.Document().Find(s.selected); o == nil {
			s.selected = ""
		}
	}
	return err
}

// RecordSnapshot captures the live canvas as a new history entry, dropping
// any redo entries past the cursor. It is a no-op while a snapshot is being
// replayed into the canvas.
func (s *Session) RecordSnapshot() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.replaying || s.closed {
		return
	}
	s.recordLocked()
}

func (s *Session) recordLocked() {
	snap, err := s.canvas.Snapshot()
	if err != nil {
		slog.Warn("history snapshot failed", "template_id", s.templateID, "error", err)
		return
	}
	s.history = append(s.history[:s.index+1], snap)
	s.index = len(s.history) - 1
	s.dirty = snap != s.persisted
}

// Undo steps back one history entry. At the oldest entry it does nothing.
func (s *Session) Undo() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.touchLocked()
	if s.index <= 0 {
		return nil
	}
	return s.replayLocked(s.index - 1)
}

// Redo steps forward one history entry. At the newest entry it does nothing.
func (s *Session) Redo() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.touchLocked()
	if s.index >= len(s.history)-1 {
		return nil
	}
	return s.replayLocked(s.index + 1)
}

// replayLocked loads history[target] into the canvas. The pending autosave
// is cancelled first so it cannot fire with an intermediate state.
func (s *Session) replayLocked(target int) error {
	s.autosave.cancel()

	s.replaying = true
	err := s.canvas.Load(s.history[target])
	s.replaying = false
	if err != nil {
		slog.Warn("history replay aborted",
			"template_id", s.templateID, "entry", target, "index", s.index, "error", err)
		return fmt.Errorf("%w: entry %d: %v", ErrSnapshotCorrupt, target, err)
	}

	s.index = target
	s.dirty = s.history[target] != s.persisted
	if s.selected != "" {
		if o, _ := s.canvas.Document().Find(s.selected); o == nil {
			s.selected = ""
		}
	}
	s.scheduleAutoSaveLocked()
	return nil
}

// CanUndo reports whether Undo would change the canvas.
func (s *Session) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index > 0
}

// CanRedo reports whether Redo would change the canvas.
func (s *Session) CanRedo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index < len(s.history)-1
}

// ScheduleAutoSave (re)starts the debounce timer. When it fires, the live
// state at that moment is saved silently; failures are logged and retried
// on the next edit.
func (s *Session) ScheduleAutoSave() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.scheduleAutoSaveLocked()
}

func (s *Session) scheduleAutoSaveLocked() {
	s.autosave.schedule(s.fireAutoSave)
}

// CancelAutoSave stops a pending autosave. It reports whether one was
// pending.
func (s *Session) CancelAutoSave() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.autosave.cancel()
}

func (s *Session) fireAutoSave(gen uint64) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	if s.closed || !s.autosave.current(gen) {
		s.mu.Unlock()
		return
	}
	state, err := s.canvas.Snapshot()
	s.mu.Unlock()
	if err != nil {
		slog.Warn("autosave snapshot failed", "template_id", s.templateID, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.saveTimeout)
	defer cancel()
	if err := s.saver.SaveState(ctx, s.templateID, state, false); err != nil {
		slog.Warn("autosave failed", "template_id", s.templateID, "error", err)
		return
	}
	slog.Debug("autosaved", "template_id", s.templateID, "bytes", len(state))

	s.mu.Lock()
	s.markPersistedLocked(state)
	s.mu.Unlock()
}

func (s *Session) markPersistedLocked(state string) {
	s.persisted = state
	if s.index >= 0 {
		s.dirty = s.history[s.index] != state
	}
}

// Save persists the live state immediately. Unlike autosave, errors are
// returned so the caller can show them. publish marks the template
// published.
func (s *Session) Save(ctx context.Context, publish bool) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.touchLocked()
	s.autosave.cancel()
	state, err := s.canvas.Snapshot()
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("save %s: %w", s.templateID, err)
	}

	if err := s.saver.SaveState(ctx, s.templateID, state, publish); err != nil {
		return fmt.Errorf("save %s: %w", s.templateID, err)
	}

	s.mu.Lock()
	s.markPersistedLocked(state)
	s.mu.Unlock()
	return nil
}

// Close tears the session down. The pending autosave is cancelled and an
// autosave already in flight is waited for; with FlushOnClose, unsaved
// edits are then written with a final silent save.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.autosave.cancel()
	s.mu.Unlock()

	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	flush := s.flushOnClose && s.dirty
	state, err := s.canvas.Snapshot()
	s.mu.Unlock()

	if !flush {
		return nil
	}
	if err != nil {
		return fmt.Errorf("close %s: %w", s.templateID, err)
	}
	if err := s.saver.SaveState(ctx, s.templateID, state, false); err != nil {
		return fmt.Errorf("close %s: %w", s.templateID, err)
	}
	s.mu.Lock()
	s.markPersistedLocked(state)
	s.mu.Unlock()
	return nil
}

// Select marks an object as the toolbar's current selection. Selection is
// not part of history.
func (s *Session) Select(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if o, _ := s.canvas.Document().Find(id); o == nil {
		return fmt.Errorf("select %q: %w", id, ErrObjectNotFound)
	}
	s.selected = id
	return nil
}

// Deselect clears the selection.
func (s *Session) Deselect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.selected = ""
	return nil
}

// Selected returns a copy of the selected object, or nil.
func (s *Session) Selected() *scene.Object {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == "" {
		return nil
	}
	o, _ := s.canvas.Document().Find(s.selected)
	return o.Clone()
}

// Document returns a deep copy of the live document.
func (s *Session) Document() *scene.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canvas.Document().Clone()
}

// Snapshot returns the serialized live document.
func (s *Session) Snapshot() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canvas.Snapshot()
}

// TemplateID returns the template being edited.
func (s *Session) TemplateID() string {
	return s.templateID
}

// State returns the session's history and dirty status.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		TemplateID:   s.templateID,
		HistoryLen:   len(s.history),
		HistoryIndex: s.index,
		CanUndo:      s.index > 0,
		CanRedo:      s.index < len(s.history)-1,
		Dirty:        s.dirty,
		Selected:     s.selected,
		AutoSaving:   s.autosave.pending(),
	}
}

// IsDirty reports whether the live canvas diverges from the last
// persisted state.
func (s *Session) IsDirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

func (s *Session) touchLocked() {
	s.lastUsed = s.clock.Now()
}

// idleSince reports when the session was last used.
func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}
