package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"mockupstudio/internal/scene"
)

// fakeClock is a manually advanced Clock. Due timers fire synchronously
// inside Advance, on the caller's goroutine.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()
	for _, t := range due {
		t.f()
	}
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

type saveCall struct {
	state   string
	publish bool
}

// recordingSaver captures every save and optionally fails.
type recordingSaver struct {
	mu    sync.Mutex
	calls []saveCall
	err   error
}

func (r *recordingSaver) SaveState(_ context.Context, _, state string, publish bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, saveCall{state: state, publish: publish})
	return r.err
}

func (r *recordingSaver) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *recordingSaver) last() saveCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[len(r.calls)-1]
}

func blankState(t *testing.T) string {
	t.Helper()
	d, err := scene.New("Mug", 800, 600)
	if err != nil {
		t.Fatalf("scene.New() error: %v", err)
	}
	s, err := scene.Serialize(d)
	if err != nil {
		t.Fatalf("Serialize() error: %v", err)
	}
	return s
}

func newTestSession(t *testing.T, flush bool) (*Session, *fakeClock, *recordingSaver) {
	t.Helper()
	clock := newFakeClock()
	saver := &recordingSaver{}
	s, err := NewSession(Options{
		TemplateID:    "tpl-1",
		InitialState:  blankState(t),
		Saver:         saver,
		Clock:         clock,
		AutoSaveDelay: 3 * time.Second,
		FlushOnClose:  flush,
	})
	if err != nil {
		t.Fatalf("NewSession() error: %v", err)
	}
	return s, clock, saver
}

func addText(t *testing.T, s *Session, text string) {
	t.Helper()
	if err := s.Do(func(c *DocumentCanvas) error {
		c.AddText(text)
		return nil
	}); err != nil {
		t.Fatalf("Do(AddText) error: %v", err)
	}
}

func snapshot(t *testing.T, s *Session) string {
	t.Helper()
	snap, err := s.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot() error: %v", err)
	}
	return snap
}

// TestNewSessionRejectsCorruptState verifies load errors block the session.
func TestNewSessionRejectsCorruptState(t *testing.T) {
	_, err := NewSession(Options{TemplateID: "x", InitialState: `{"width":`, Saver: &recordingSaver{}})
	if !errors.Is(err, scene.ErrInvalidDocument) {
		t.Errorf("NewSession() error = %v, want ErrInvalidDocument", err)
	}
	if _, err := NewSession(Options{InitialState: blankState(t)}); err == nil {
		t.Error("NewSession() without saver should fail")
	}
}

// TestScenarioAddUndoRedo covers: new 800×600 document, add a rectangle,
// add text "Hello", undo once, redo once.
func TestScenarioAddUndoRedo(t *testing.T) {
	s, _, _ := newTestSession(t, false)

	if err := s.Do(func(c *DocumentCanvas) error {
		_, err := c.AddShape(scene.KindRect, 200, 100)
		return err
	}); err != nil {
		t.Fatalf("Do(AddShape) error: %v", err)
	}
	afterRect := snapshot(t, s)
	addText(t, s, "Hello")
	afterText := snapshot(t, s)

	if err := s.Undo(); err != nil {
		t.Fatalf("Undo() error: %v", err)
	}
	if got := snapshot(t, s); got != afterRect {
		t.Errorf("after undo got %s, want %s", got, afterRect)
	}
	if err := s.Redo(); err != nil {
		t.Fatalf("Redo() error: %v", err)
	}
	if got := snapshot(t, s); got != afterText {
		t.Errorf("after redo got %s, want %s", got, afterText)
	}

	st := s.State()
	if st.HistoryLen != 3 || st.HistoryIndex != 2 {
		t.Errorf("history = %d entries at %d, want 3 at 2", st.HistoryLen, st.HistoryIndex)
	}
	doc := s.Document()
	if len(doc.Objects) != 2 || doc.Objects[1].Text.Text != "Hello" {
		t.Errorf("unexpected objects after redo: %+v", doc.Objects)
	}
}

// TestUndoRedoBoundaries verifies undo at the oldest and redo at the newest
// entry leave history untouched.
func TestUndoRedoBoundaries(t *testing.T) {
	s, _, _ := newTestSession(t, false)

	before := s.State()
	if err := s.Undo(); err != nil {
		t.Fatalf("Undo() on fresh session error: %v", err)
	}
	if err := s.Redo(); err != nil {
		t.Fatalf("Redo() on fresh session error: %v", err)
	}
	if after := s.State(); after != before {
		t.Errorf("state changed: %+v -> %+v", before, after)
	}

	addText(t, s, "a")
	before = s.State()
	if err := s.Redo(); err != nil {
		t.Fatalf("Redo() at end error: %v", err)
	}
	if after := s.State(); after.HistoryLen != before.HistoryLen || after.HistoryIndex != before.HistoryIndex {
		t.Errorf("redo at end changed history: %+v -> %+v", before, after)
	}
	if s.CanRedo() {
		t.Error("CanRedo() = true at end of history")
	}
}

// TestTruncationOnBranch verifies a new edit after undo discards the redo
// entries.
func TestTruncationOnBranch(t *testing.T) {
	s, _, _ := newTestSession(t, false)
	for _, txt := range []string{"one", "two", "three"} {
		addText(t, s, txt)
	}
	for range 2 {
		if err := s.Undo(); err != nil {
			t.Fatalf("Undo() error: %v", err)
		}
	}
	if !s.CanRedo() {
		t.Fatal("CanRedo() = false after undo")
	}

	addText(t, s, "branch")
	if s.CanRedo() {
		t.Error("CanRedo() = true after branching edit")
	}
	before := snapshot(t, s)
	if err := s.Redo(); err != nil {
		t.Fatalf("Redo() error: %v", err)
	}
	if got := snapshot(t, s); got != before {
		t.Error("redo after branch changed the canvas")
	}
	if st := s.State(); st.HistoryLen != 3 {
		t.Errorf("history length = %d, want 3", st.HistoryLen)
	}
}

// TestCorruptSnapshot verifies that a broken entry aborts the replay without
// moving the cursor or leaving the replaying guard set.
func TestCorruptSnapshot(t *testing.T) {
	tests := []struct {
		name  string
		entry string
	}{
		{name: "truncated json", entry: `{"width":800,"height"`},
		{name: "missing entry", entry: ""},
		{name: "invalid document", entry: `{"width":0,"height":0,"objects":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _, _ := newTestSession(t, false)
			addText(t, s, "keep")
			live := snapshot(t, s)
			s.history[0] = tt.entry

			err := s.Undo()
			if !errors.Is(err, ErrSnapshotCorrupt) {
				t.Fatalf("Undo() error = %v, want ErrSnapshotCorrupt", err)
			}
			if st := s.State(); st.HistoryIndex != 1 {
				t.Errorf("historyIndex = %d, want 1", st.HistoryIndex)
			}
			if s.replaying {
				t.Error("replaying flag left set")
			}
			if got := snapshot(t, s); got != live {
				t.Error("canvas changed by failed replay")
			}

			addText(t, s, "after")
			if st := s.State(); st.HistoryLen != 3 {
				t.Errorf("edits after failed replay not recorded: %+v", st)
			}
		})
	}
}

// TestScenarioAutosaveDebounce covers five rapid edits producing exactly one
// save, three time units after the last edit.
func TestScenarioAutosaveDebounce(t *testing.T) {
	s, clock, saver := newTestSession(t, false)

	for i := range 5 {
		addText(t, s, fmt.Sprintf("edit %d", i))
		clock.Advance(500 * time.Millisecond)
	}
	final := snapshot(t, s)

	clock.Advance(2500*time.Millisecond - time.Millisecond)
	if n := saver.count(); n != 0 {
		t.Fatalf("saves before debounce elapsed = %d, want 0", n)
	}
	clock.Advance(time.Millisecond)
	if n := saver.count(); n != 1 {
		t.Fatalf("saves after debounce = %d, want 1", n)
	}
	call := saver.last()
	if call.publish {
		t.Error("autosave must not publish")
	}
	if call.state != final {
		t.Error("autosave did not write the most recent state")
	}
	if s.IsDirty() {
		t.Error("session still dirty after autosave")
	}

	clock.Advance(10 * time.Second)
	if n := saver.count(); n != 1 {
		t.Errorf("extra saves fired: %d", n)
	}
}

// TestUndoCancelsPendingAutosave verifies a replay restarts the debounce so
// the stale timer never fires.
func TestUndoCancelsPendingAutosave(t *testing.T) {
	s, clock, saver := newTestSession(t, false)
	initial := snapshot(t, s)

	addText(t, s, "x")
	clock.Advance(2 * time.Second)
	if err := s.Undo(); err != nil {
		t.Fatalf("Undo() error: %v", err)
	}
	clock.Advance(2 * time.Second)
	if n := saver.count(); n != 0 {
		t.Fatalf("stale autosave fired: %d calls", n)
	}
	clock.Advance(time.Second)
	if n := saver.count(); n != 1 {
		t.Fatalf("saves = %d, want 1", n)
	}
	if saver.last().state != initial {
		t.Error("autosave after undo did not write the undone state")
	}
}

// TestAutosaveFailureIsSwallowed verifies failures stay silent and the next
// edit retries.
func TestAutosaveFailureIsSwallowed(t *testing.T) {
	s, clock, saver := newTestSession(t, false)
	saver.err = errors.New("network down")

	addText(t, s, "a")
	clock.Advance(3 * time.Second)
	if !s.IsDirty() {
		t.Error("failed autosave cleared dirty flag")
	}

	saver.err = nil
	addText(t, s, "b")
	clock.Advance(3 * time.Second)
	if n := saver.count(); n != 2 {
		t.Errorf("saves = %d, want 2", n)
	}
	if s.IsDirty() {
		t.Error("retry did not clear dirty flag")
	}
}

// TestExplicitSave verifies manual saves publish, surface errors and drive
// dirty tracking.
func TestExplicitSave(t *testing.T) {
	s, clock, saver := newTestSession(t, false)
	if s.IsDirty() {
		t.Fatal("fresh session is dirty")
	}

	addText(t, s, "a")
	if !s.IsDirty() {
		t.Fatal("edit did not mark session dirty")
	}
	if err := s.Save(context.Background(), true); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if !saver.last().publish {
		t.Error("explicit save did not publish")
	}
	if s.IsDirty() {
		t.Error("session dirty after save")
	}
	clock.Advance(5 * time.Second)
	if n := saver.count(); n != 1 {
		t.Errorf("explicit save left the autosave pending: %d calls", n)
	}

	if err := s.Undo(); err != nil {
		t.Fatalf("Undo() error: %v", err)
	}
	if !s.IsDirty() {
		t.Error("undo past the saved state should be dirty")
	}
	if err := s.Redo(); err != nil {
		t.Fatalf("Redo() error: %v", err)
	}
	if s.IsDirty() {
		t.Error("redo back to the saved state should be clean")
	}

	saver.err = errors.New("boom")
	if err := s.Save(context.Background(), false); err == nil {
		t.Error("Save() swallowed the saver error")
	}
}

// TestClose verifies teardown cancels the timer and flushes only when
// configured to.
func TestClose(t *testing.T) {
	t.Run("flush", func(t *testing.T) {
		s, clock, saver := newTestSession(t, true)
		addText(t, s, "unsaved")
		want := snapshot(t, s)
		if err := s.Close(context.Background()); err != nil {
			t.Fatalf("Close() error: %v", err)
		}
		if n := saver.count(); n != 1 || saver.last().state != want || saver.last().publish {
			t.Fatalf("close flush calls = %+v", saver.calls)
		}
		clock.Advance(time.Minute)
		if n := saver.count(); n != 1 {
			t.Errorf("timer fired after close: %d calls", n)
		}
		if err := s.Undo(); !errors.Is(err, ErrSessionClosed) {
			t.Errorf("Undo() after close error = %v", err)
		}
	})

	t.Run("drop", func(t *testing.T) {
		s, clock, saver := newTestSession(t, false)
		addText(t, s, "unsaved")
		if err := s.Close(context.Background()); err != nil {
			t.Fatalf("Close() error: %v", err)
		}
		clock.Advance(time.Minute)
		if n := saver.count(); n != 0 {
			t.Errorf("saves after close = %d, want 0", n)
		}
	})

	t.Run("clean", func(t *testing.T) {
		s, _, saver := newTestSession(t, true)
		if err := s.Close(context.Background()); err != nil {
			t.Fatalf("Close() error: %v", err)
		}
		if n := saver.count(); n != 0 {
			t.Errorf("clean session flushed %d times", n)
		}
	})
}

// gatedSaver records saves like recordingSaver, but its first call
// signals entered and then blocks until release is closed.
type gatedSaver struct {
	recordingSaver
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newGatedSaver() *gatedSaver {
	return &gatedSaver{entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedSaver) SaveState(ctx context.Context, id, state string, publish bool) error {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.release
	}
	return g.recordingSaver.SaveState(ctx, id, state, publish)
}

func newGatedSession(t *testing.T, flush bool) (*Session, *fakeClock, *gatedSaver) {
	t.Helper()
	clock := newFakeClock()
	saver := newGatedSaver()
	s, err := NewSession(Options{
		TemplateID:    "tpl-1",
		InitialState:  blankState(t),
		Saver:         saver,
		Clock:         clock,
		AutoSaveDelay: 3 * time.Second,
		FlushOnClose:  flush,
	})
	if err != nil {
		t.Fatalf("NewSession() error: %v", err)
	}
	return s, clock, saver
}

// startBlockedAutosave fires the autosave on its own goroutine and returns
// once it is inside SaveState. The returned channel closes when it ends.
func startBlockedAutosave(t *testing.T, clock *fakeClock, saver *gatedSaver) <-chan struct{} {
	t.Helper()
	done := make(chan struct{})
	go func() {
		defer close(done)
		clock.Advance(3 * time.Second)
	}()
	select {
	case <-saver.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("autosave never reached the saver")
	}
	return done
}

// TestExplicitSaveWinsOverInFlightAutosave verifies an autosave that is
// already writing cannot land after a newer explicit save.
func TestExplicitSaveWinsOverInFlightAutosave(t *testing.T) {
	s, clock, saver := newGatedSession(t, false)
	addText(t, s, "AAA")
	autosaved := startBlockedAutosave(t, clock, saver)

	addText(t, s, "BBB")
	want := snapshot(t, s)

	saved := make(chan error, 1)
	go func() { saved <- s.Save(context.Background(), false) }()
	close(saver.release)

	if err := <-saved; err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	<-autosaved

	if n := saver.count(); n != 2 {
		t.Fatalf("saves = %d, want 2", n)
	}
	if got := saver.last().state; got != want {
		t.Error("last write is not the explicit save's state")
	}
	st := s.State()
	if st.Dirty {
		t.Error("session dirty after explicit save")
	}
	if st.AutoSaving {
		t.Error("autosave still pending after explicit save")
	}
}

// TestCloseWaitsForInFlightAutosave verifies Close returns only after the
// running autosave and then flushes edits made after its snapshot.
func TestCloseWaitsForInFlightAutosave(t *testing.T) {
	s, clock, saver := newGatedSession(t, true)
	addText(t, s, "AAA")
	autosaved := startBlockedAutosave(t, clock, saver)

	addText(t, s, "BBB")
	want := snapshot(t, s)

	closed := make(chan error, 1)
	go func() { closed <- s.Close(context.Background()) }()
	select {
	case err := <-closed:
		t.Fatalf("Close() returned while autosave in flight: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
	close(saver.release)

	if err := <-closed; err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	<-autosaved
	if got := saver.last().state; got != want {
		t.Error("close flush did not write the latest state last")
	}
	if s.IsDirty() {
		t.Error("session dirty after close flush")
	}
}

// TestSelectionAfterClose verifies a closed session refuses selection
// changes.
func TestSelectionAfterClose(t *testing.T) {
	s, _, _ := newTestSession(t, false)
	addText(t, s, "pick me")
	id := s.Document().Objects[0].ID
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if err := s.Select(id); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Select() after close error = %v, want ErrSessionClosed", err)
	}
	if err := s.Deselect(); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Deselect() after close error = %v, want ErrSessionClosed", err)
	}
}

// TestSelectionIsSideChannel verifies selection never enters history and is
// cleared when the selected object disappears.
func TestSelectionIsSideChannel(t *testing.T) {
	s, _, _ := newTestSession(t, false)
	addText(t, s, "pick me")
	id := s.Document().Objects[0].ID

	before := s.State().HistoryLen
	if err := s.Select(id); err != nil {
		t.Fatalf("Select() error: %v", err)
	}
	if got := s.Selected(); got == nil || got.ID != id {
		t.Fatalf("Selected() = %+v", got)
	}
	if s.State().HistoryLen != before {
		t.Error("selection entered history")
	}
	if err := s.Select("nope"); !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("Select(unknown) error = %v", err)
	}

	if err := s.Undo(); err != nil {
		t.Fatalf("Undo() error: %v", err)
	}
	if s.Selected() != nil {
		t.Error("selection survived removal of the object")
	}
}

// TestDoCollapsesEvents verifies one Do call yields one history entry even
// when it fires several change events.
func TestDoCollapsesEvents(t *testing.T) {
	s, _, _ := newTestSession(t, false)
	err := s.Do(func(c *DocumentCanvas) error {
		o := c.AddText("a")
		if _, err := c.Duplicate(o.ID); err != nil {
			return err
		}
		return c.SetCustomizable(o.ID, true)
	})
	if err != nil {
		t.Fatalf("Do() error: %v", err)
	}
	if st := s.State(); st.HistoryLen != 2 {
		t.Errorf("history length = %d, want 2", st.HistoryLen)
	}

	if err := s.Do(func(*DocumentCanvas) error { return nil }); err != nil {
		t.Fatalf("Do(no-op) error: %v", err)
	}
	if st := s.State(); st.HistoryLen != 2 {
		t.Errorf("no-op Do recorded history: %d", st.HistoryLen)
	}
}

// TestRecordSnapshotIgnoredWhileReplaying verifies the re-entrancy guard.
func TestRecordSnapshotIgnoredWhileReplaying(t *testing.T) {
	s, _, _ := newTestSession(t, false)
	s.replaying = true
	s.RecordSnapshot()
	s.replaying = false
	if st := s.State(); st.HistoryLen != 1 {
		t.Errorf("history length = %d, want 1", st.HistoryLen)
	}
	s.RecordSnapshot()
	if st := s.State(); st.HistoryLen != 2 || st.HistoryIndex != 1 {
		t.Errorf("RecordSnapshot() state = %+v", st)
	}
}

// TestHistoryLinearity checks that N edits, U undos and R redos leave the
// canvas at the state after N-U+R edits.
func TestHistoryLinearity(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 100
	properties := gopter.NewProperties(params)

	properties.Property("undo/redo is linear", prop.ForAll(
		func(n, u, r int) bool {
			u = u % (n + 1)
			r = r % (u + 1)

			s, _, _ := newTestSession(t, false)
			snaps := []string{snapshot(t, s)}
			for i := range n {
				addText(t, s, fmt.Sprintf("edit %d", i))
				snaps = append(snaps, snapshot(t, s))
			}
			for range u {
				if err := s.Undo(); err != nil {
					return false
				}
			}
			for range r {
				if err := s.Redo(); err != nil {
					return false
				}
			}
			return snapshot(t, s) == snaps[n-u+r]
		},
		gen.IntRange(1, 8),
		gen.IntRange(0, 8),
		gen.IntRange(0, 8),
	))

	properties.TestingRun(t)
}
