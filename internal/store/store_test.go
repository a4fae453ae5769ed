package store

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/mdkanban/mdkanban/internal/card"
	"github.com/mdkanban/mdkanban/internal/fsadapter"
	"github.com/mdkanban/mdkanban/internal/watcher"
)

var epoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// tickClock advances one second every time it is read.
type tickClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *tickClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type fixture struct {
	store   *Store
	faulty  *fsadapter.Faulty
	memory  *fsadapter.Afero
	watcher *watcher.Manual
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	memory := fsadapter.NewMemory("")
	faulty := fsadapter.NewFaulty(memory)
	w := watcher.NewManual()
	clock := &tickClock{t: epoch}

	base := []Option{
		WithLogger(log.New(io.Discard, "", 0)),
		WithClock(clock.Now),
	}
	s, err := New(faulty, w, append(base, opts...)...)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return &fixture{store: s, faulty: faulty, memory: memory, watcher: w}
}

// seed writes a card file directly, bypassing the store.
func (f *fixture) seed(t *testing.T, column, id, title string) card.Card {
	t.Helper()

	ctx := context.Background()
	c := card.Card{
		ID:       id,
		Title:    title,
		Content:  "Body of " + title,
		Column:   column,
		FilePath: card.PathFor(fsadapter.DefaultMount, column, id+card.Extension),
		Metadata: card.Metadata{Created: epoch.Add(-time.Hour)},
	}
	data, written := card.Serialize(c, epoch.Add(-time.Minute))

	if err := f.memory.Mkdir(ctx, card.ColumnPath(fsadapter.DefaultMount, column), fsadapter.MkdirOptions{Recursive: true}); err != nil {
		t.Fatalf("Mkdir() failed: %v", err)
	}
	if err := f.memory.WriteFile(ctx, written.FilePath, data); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}
	return written
}

func (f *fixture) load(t *testing.T) {
	t.Helper()
	if err := f.store.LoadCards(context.Background()); err != nil {
		t.Fatalf("LoadCards() failed: %v", err)
	}
}

func (f *fixture) exists(p string) bool {
	_, err := f.memory.ReadFile(context.Background(), p)
	return err == nil
}

func columnIDs(b Board, column string) []string {
	col, _ := b.Column(column)
	ids := []string{}
	for _, c := range col.Cards {
		ids = append(ids, c.ID)
	}
	return ids
}

func TestNew_RequiresCapabilities(t *testing.T) {
	if _, err := New(nil, watcher.NewManual()); err == nil {
		t.Error("New() without adapter should fail")
	}
	if _, err := New(fsadapter.NewMemory(""), nil); err == nil {
		t.Error("New() without watcher should fail")
	}
	if _, err := New(fsadapter.NewMemory(""), watcher.NewManual(), WithColumns("a", "a")); err == nil {
		t.Error("New() with duplicate columns should fail")
	}
}

func TestNew_EmptyBoardHasAllColumns(t *testing.T) {
	f := newFixture(t)

	b := f.store.Board()
	want := Board{Columns: []Column{
		{ID: "backlog", Title: "Backlog", Cards: []card.Card{}},
		{ID: "in-progress", Title: "In Progress", Cards: []card.Card{}},
		{ID: "done", Title: "Done", Cards: []card.Card{}},
	}}
	if diff := cmp.Diff(want, b); diff != "" {
		t.Errorf("Board() mismatch (-want +got):\n%s", diff)
	}
	if got := f.store.State().Status(); got != "idle" {
		t.Errorf("Status() = %q, want idle", got)
	}
}

func TestAddCard(t *testing.T) {
	f := newFixture(t)

	c, err := f.store.AddCard(context.Background(), "Write docs", "backlog", "", nil)
	if err != nil {
		t.Fatalf("AddCard() failed: %v", err)
	}

	col, _ := f.store.Board().Column("backlog")
	if len(col.Cards) != 1 {
		t.Fatalf("backlog has %d cards, want 1", len(col.Cards))
	}
	got := col.Cards[0]
	if got.Title != "Write docs" {
		t.Errorf("Title = %q, want %q", got.Title, "Write docs")
	}
	if !strings.HasPrefix(got.FilePath, "./kanban-data/backlog/") || !strings.HasSuffix(got.FilePath, ".md") {
		t.Errorf("FilePath = %q", got.FilePath)
	}
	if got.ID != c.ID || card.IDFromPath(got.FilePath) != got.ID {
		t.Errorf("id %q does not match file %q", got.ID, got.FilePath)
	}
	if !f.exists(got.FilePath) {
		t.Errorf("card file %s was not written", got.FilePath)
	}
}

func TestAddCard_WithMetadata(t *testing.T) {
	f := newFixture(t)
	assignee := "alice"
	due := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

	c, err := f.store.AddCard(context.Background(), "Ship", "done", "  notes  ", &card.Metadata{
		Tags:     []string{"release"},
		Assignee: &assignee,
		DueDate:  &due,
	})
	if err != nil {
		t.Fatalf("AddCard() failed: %v", err)
	}
	if c.Content != "notes" {
		t.Errorf("Content = %q, want trimmed", c.Content)
	}

	data, err := f.memory.ReadFile(context.Background(), c.FilePath)
	if err != nil {
		t.Fatalf("ReadFile() failed: %v", err)
	}
	parsed, err := card.Parse(data, c.FilePath, "done")
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	if diff := cmp.Diff(c, parsed); diff != "" {
		t.Errorf("file does not match returned card (-want +got):\n%s", diff)
	}
}

func TestAddCard_UnknownColumn(t *testing.T) {
	f := newFixture(t)

	_, err := f.store.AddCard(context.Background(), "X", "someday", "", nil)
	if !errors.Is(err, ErrUnknownColumn) {
		t.Fatalf("AddCard() error = %v, want ErrUnknownColumn", err)
	}
	if f.store.Board().Len() != 0 {
		t.Error("nothing should be added")
	}
	if len(f.faulty.Calls()) != 0 {
		t.Errorf("no adapter calls expected, got %+v", f.faulty.Calls())
	}
}

func TestAddCard_WriteFailure(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("disk full")
	f.faulty.FailOn(fsadapter.OpWriteFile, boom)

	_, err := f.store.AddCard(context.Background(), "X", "backlog", "", nil)
	if !errors.Is(err, boom) {
		t.Fatalf("AddCard() error = %v, want %v", err, boom)
	}
	if f.store.Board().Len() != 0 {
		t.Error("failed add must not leave a card in memory")
	}
	if msg := f.store.State().Error; !strings.Contains(msg, "disk full") {
		t.Errorf("Error = %q, want the failure message", msg)
	}
}

func TestMoveCard_OptimisticThenCommitted(t *testing.T) {
	f := newFixture(t)
	seeded := f.seed(t, "backlog", "c1", "First")
	f.load(t)

	gate := f.faulty.Pause(fsadapter.OpRename)
	type result struct {
		c   card.Card
		err error
	}
	done := make(chan result, 1)
	go func() {
		c, err := f.store.MoveCard(context.Background(), "c1", "done")
		done <- result{c, err}
	}()

	select {
	case <-gate.Reached():
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for rename")
	}

	b := f.store.Board()
	if ids := columnIDs(b, "backlog"); len(ids) != 0 {
		t.Errorf("backlog = %v, want empty while the rename is pending", ids)
	}
	col, _ := b.Column("done")
	if len(col.Cards) != 1 || col.Cards[0].Column != "done" {
		t.Fatalf("done = %+v, want the moved card", col.Cards)
	}

	gate.Release()
	var r result
	select {
	case r = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for MoveCard")
	}
	if r.err != nil {
		t.Fatalf("MoveCard() failed: %v", r.err)
	}

	got, ok := f.store.Card("c1")
	if !ok {
		t.Fatal("card disappeared")
	}
	if !got.Metadata.Updated.After(seeded.Metadata.Updated) {
		t.Errorf("Updated = %v, want after %v", got.Metadata.Updated, seeded.Metadata.Updated)
	}
	if got.FilePath != "./kanban-data/done/c1.md" || got.ID != "c1" {
		t.Errorf("moved card = %s at %s", got.ID, got.FilePath)
	}
	if !got.Metadata.Created.Equal(seeded.Metadata.Created) {
		t.Errorf("Created changed: %v -> %v", seeded.Metadata.Created, got.Metadata.Created)
	}
	if f.exists(seeded.FilePath) || !f.exists(got.FilePath) {
		t.Error("file was not renamed into the done column")
	}
}

func TestMoveCard_RollbackOnRenameFailure(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "backlog", "c0", "Zero")
	f.seed(t, "backlog", "c1", "First")
	f.seed(t, "backlog", "c2", "Second")
	f.seed(t, "done", "d1", "Done one")
	f.load(t)

	before := f.store.Board()
	boom := errors.New("permission revoked")
	f.faulty.FailOn(fsadapter.OpRename, boom)

	_, err := f.store.MoveCard(context.Background(), "c1", "done")
	if !errors.Is(err, boom) {
		t.Fatalf("MoveCard() error = %v, want %v", err, boom)
	}

	if diff := cmp.Diff(before, f.store.Board()); diff != "" {
		t.Errorf("board not restored (-before +after):\n%s", diff)
	}
	if f.store.State().Error == "" {
		t.Error("error state should be set")
	}
}

func TestMoveCard_RollbackRestoresFileWhenRewriteFails(t *testing.T) {
	f := newFixture(t)
	seeded := f.seed(t, "backlog", "c1", "First")
	f.load(t)

	before := f.store.Board()
	f.faulty.FailOn(fsadapter.OpWriteFile, errors.New("io error"))

	if _, err := f.store.MoveCard(context.Background(), "c1", "done"); err == nil {
		t.Fatal("MoveCard() should fail")
	}
	if diff := cmp.Diff(before, f.store.Board()); diff != "" {
		t.Errorf("board not restored (-before +after):\n%s", diff)
	}
	if !f.exists(seeded.FilePath) {
		t.Error("file should be renamed back into backlog")
	}
	if f.exists("./kanban-data/done/c1.md") {
		t.Error("file should not remain in done")
	}
}

func TestMoveCard_SameColumnIsNoop(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "backlog", "c1", "First")
	f.load(t)

	before := f.store.Board()
	f.faulty.ResetCalls()

	c, err := f.store.MoveCard(context.Background(), "c1", "backlog")
	if err != nil {
		t.Fatalf("MoveCard() failed: %v", err)
	}
	if c.ID != "c1" {
		t.Errorf("MoveCard() returned %q", c.ID)
	}
	if calls := f.faulty.Calls(); len(calls) != 0 {
		t.Errorf("no adapter calls expected, got %+v", calls)
	}
	if diff := cmp.Diff(before, f.store.Board()); diff != "" {
		t.Errorf("board changed (-before +after):\n%s", diff)
	}
}

// waitFor polls until cond holds.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("Timeout waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestMoveCard_RacingMovesLastWriteWins(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "backlog", "c1", "First")
	f.load(t)

	gate := f.faulty.Pause(fsadapter.OpRename)
	first := make(chan error, 1)
	go func() {
		_, err := f.store.MoveCard(context.Background(), "c1", "done")
		first <- err
	}()
	select {
	case <-gate.Reached():
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for rename")
	}

	second := make(chan error, 1)
	go func() {
		_, err := f.store.MoveCard(context.Background(), "c1", "in-progress")
		second <- err
	}()
	// The second move shows up in memory while the first is still renaming.
	waitFor(t, "second move", func() bool {
		return len(columnIDs(f.store.Board(), "in-progress")) == 1
	})
	if ids := columnIDs(f.store.Board(), "done"); len(ids) != 0 {
		t.Errorf("done = %v, want empty after the second move", ids)
	}

	gate.Release()
	for name, ch := range map[string]chan error{"first": first, "second": second} {
		select {
		case err := <-ch:
			if err != nil {
				t.Errorf("%s MoveCard() failed: %v", name, err)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("Timeout waiting for %s MoveCard", name)
		}
	}

	b := f.store.Board()
	if diff := cmp.Diff([]string{"c1"}, columnIDs(b, "in-progress")); diff != "" {
		t.Errorf("in-progress mismatch (-want +got):\n%s", diff)
	}
	got, _ := f.store.Card("c1")
	if got.FilePath != "./kanban-data/in-progress/c1.md" {
		t.Errorf("FilePath = %q", got.FilePath)
	}
	if !f.exists("./kanban-data/in-progress/c1.md") {
		t.Error("file should be in in-progress")
	}
	for _, p := range []string{"./kanban-data/backlog/c1.md", "./kanban-data/done/c1.md"} {
		if f.exists(p) {
			t.Errorf("%s should not exist", p)
		}
	}
	if st := f.store.State(); st.Error != "" {
		t.Errorf("Error = %q, want none", st.Error)
	}
}

func TestMoveCard_FailedMoveKeepsLaterMove(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "backlog", "c1", "First")
	f.load(t)

	f.faulty.FailOn(fsadapter.OpWriteFile, errors.New("disk full"))
	gate := f.faulty.Pause(fsadapter.OpWriteFile)
	first := make(chan error, 1)
	go func() {
		_, err := f.store.MoveCard(context.Background(), "c1", "done")
		first <- err
	}()
	select {
	case <-gate.Reached():
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for rewrite")
	}

	// Hold the second move at its rename until the failure is healed.
	renameGate := f.faulty.Pause(fsadapter.OpRename)
	second := make(chan error, 1)
	go func() {
		_, err := f.store.MoveCard(context.Background(), "c1", "in-progress")
		second <- err
	}()
	waitFor(t, "second move", func() bool {
		return len(columnIDs(f.store.Board(), "in-progress")) == 1
	})

	// The first rewrite fails; the second move must not be undone by it.
	gate.Release()
	if err := <-first; err == nil {
		t.Fatal("first MoveCard() should fail")
	}
	f.faulty.Heal()
	select {
	case <-renameGate.Reached():
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for second rename")
	}
	renameGate.Release()
	if err := <-second; err != nil {
		t.Fatalf("second MoveCard() failed: %v", err)
	}

	if diff := cmp.Diff([]string{"c1"}, columnIDs(f.store.Board(), "in-progress")); diff != "" {
		t.Errorf("in-progress mismatch (-want +got):\n%s", diff)
	}
	if !f.exists("./kanban-data/in-progress/c1.md") {
		t.Error("file should follow the second move")
	}
	if f.exists("./kanban-data/backlog/c1.md") || f.exists("./kanban-data/done/c1.md") {
		t.Error("only one card file should remain")
	}
}

func TestUpdateCard_WaitsForPendingMove(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "backlog", "c1", "First")
	f.load(t)

	gate := f.faulty.Pause(fsadapter.OpRename)
	moved := make(chan error, 1)
	go func() {
		_, err := f.store.MoveCard(context.Background(), "c1", "done")
		moved <- err
	}()
	<-gate.Reached()

	updated := make(chan error, 1)
	title := "Renamed"
	go func() {
		_, err := f.store.UpdateCard(context.Background(), "c1", card.Patch{Title: &title})
		updated <- err
	}()

	gate.Release()
	if err := <-moved; err != nil {
		t.Fatalf("MoveCard() failed: %v", err)
	}
	if err := <-updated; err != nil {
		t.Fatalf("UpdateCard() failed: %v", err)
	}

	got, _ := f.store.Card("c1")
	if got.Title != "Renamed" || got.Column != "done" {
		t.Errorf("card = %q in %q, want Renamed in done", got.Title, got.Column)
	}
	data, err := f.memory.ReadFile(context.Background(), "./kanban-data/done/c1.md")
	if err != nil {
		t.Fatalf("ReadFile() failed: %v", err)
	}
	if !strings.Contains(string(data), "title: Renamed") {
		t.Errorf("file was not updated in place:\n%s", data)
	}
	if f.exists("./kanban-data/backlog/c1.md") {
		t.Error("update must not recreate the old file")
	}
}

func TestMoveCard_IgnoresCancellation(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "backlog", "c1", "First")
	f.load(t)

	ctx, cancel := context.WithCancel(context.Background())
	gate := f.faulty.Pause(fsadapter.OpWriteFile)
	done := make(chan error, 1)
	go func() {
		_, err := f.store.MoveCard(ctx, "c1", "done")
		done <- err
	}()
	select {
	case <-gate.Reached():
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for rewrite")
	}

	cancel()
	gate.Release()
	if err := <-done; err != nil {
		t.Fatalf("MoveCard() failed: %v", err)
	}

	got, _ := f.store.Card("c1")
	if got.Column != "done" || got.FilePath != "./kanban-data/done/c1.md" {
		t.Errorf("card = %s at %s, want done", got.Column, got.FilePath)
	}
	if !f.exists(got.FilePath) || f.exists("./kanban-data/backlog/c1.md") {
		t.Error("file should have moved to done")
	}
}

func TestMoveCard_RollbackRestoresFileWithCancelledContext(t *testing.T) {
	f := newFixture(t)
	seeded := f.seed(t, "backlog", "c1", "First")
	f.load(t)

	before := f.store.Board()
	boom := errors.New("io error")
	f.faulty.FailOn(fsadapter.OpWriteFile, boom)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.store.MoveCard(ctx, "c1", "done"); !errors.Is(err, boom) {
		t.Fatalf("MoveCard() error = %v, want %v", err, boom)
	}
	if diff := cmp.Diff(before, f.store.Board()); diff != "" {
		t.Errorf("board not restored (-before +after):\n%s", diff)
	}
	if !f.exists(seeded.FilePath) || f.exists("./kanban-data/done/c1.md") {
		t.Error("file should be back in backlog")
	}
}

func TestAddCard_IgnoresCancellation(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c, err := f.store.AddCard(ctx, "Late", "backlog", "", nil)
	if err != nil {
		t.Fatalf("AddCard() failed: %v", err)
	}
	if !f.exists(c.FilePath) {
		t.Error("card file should be written")
	}
}

func TestMoveCard_RollbackSkipsCardThatMovedOn(t *testing.T) {
	f := newFixture(t)
	seeded := f.seed(t, "backlog", "c1", "First")
	f.load(t)

	gate := f.faulty.Pause(fsadapter.OpRename)
	result := make(chan error, 1)
	go func() {
		_, err := f.store.MoveCard(context.Background(), "c1", "done")
		result <- err
	}()
	select {
	case <-gate.Reached():
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for rename")
	}

	// A reload sees the card somewhere else while the rename is pending.
	elsewhere := seeded.Clone()
	elsewhere.Column = "in-progress"
	elsewhere.FilePath = "./kanban-data/in-progress/c1.md"
	f.store.SyncFromFileSystem([]card.Card{elsewhere})

	f.faulty.FailOn(fsadapter.OpRename, fsadapter.ErrPermission)
	gate.Release()
	if err := <-result; err == nil {
		t.Fatal("MoveCard() should fail")
	}

	b := f.store.Board()
	if diff := cmp.Diff([]string{"c1"}, columnIDs(b, "in-progress")); diff != "" {
		t.Errorf("in-progress mismatch (-want +got):\n%s", diff)
	}
	if ids := columnIDs(b, "backlog"); len(ids) != 0 {
		t.Errorf("backlog = %v, rollback should not restore a card that moved on", ids)
	}
}

func TestMoveCard_NotFound(t *testing.T) {
	f := newFixture(t)

	if _, err := f.store.MoveCard(context.Background(), "nope", "done"); err != nil {
		t.Fatalf("MoveCard() error = %v, want nil", err)
	}
	if got := f.store.State().Error; got != NotFoundMessage {
		t.Errorf("Error = %q, want %q", got, NotFoundMessage)
	}
}

func TestUpdateCard(t *testing.T) {
	f := newFixture(t)
	seeded := f.seed(t, "backlog", "c1", "First")
	f.load(t)

	title := "Renamed"
	got, err := f.store.UpdateCard(context.Background(), "c1", card.Patch{Title: &title, Tags: []string{"x"}})
	if err != nil {
		t.Fatalf("UpdateCard() failed: %v", err)
	}
	if got.Title != "Renamed" || got.ID != "c1" || got.FilePath != seeded.FilePath {
		t.Errorf("UpdateCard() = %+v", got)
	}
	if !got.Metadata.Updated.After(seeded.Metadata.Updated) {
		t.Error("Updated should be refreshed")
	}

	inMemory, _ := f.store.Card("c1")
	if diff := cmp.Diff(got, inMemory); diff != "" {
		t.Errorf("memory mismatch (-returned +memory):\n%s", diff)
	}

	data, _ := f.memory.ReadFile(context.Background(), seeded.FilePath)
	if !strings.Contains(string(data), "title: Renamed") {
		t.Errorf("file not rewritten:\n%s", data)
	}
}

func TestUpdateCard_Missing(t *testing.T) {
	f := newFixture(t)

	c, err := f.store.UpdateCard(context.Background(), "missing-id", card.Patch{})
	if err != nil {
		t.Fatalf("UpdateCard() error = %v, want nil", err)
	}
	if c.ID != "" {
		t.Errorf("UpdateCard() = %+v, want zero card", c)
	}
	if got := f.store.State().Error; got != "Card not found" {
		t.Errorf("Error = %q, want %q", got, "Card not found")
	}
}

func TestUpdateCard_MissingStrict(t *testing.T) {
	f := newFixture(t, WithStrictNotFound())

	_, err := f.store.UpdateCard(context.Background(), "missing-id", card.Patch{})
	if !IsNotFound(err) {
		t.Fatalf("UpdateCard() error = %v, want ErrCardNotFound", err)
	}
	if got := f.store.State().Error; got != NotFoundMessage {
		t.Errorf("Error = %q, want %q", got, NotFoundMessage)
	}
}

func TestUpdateCard_WriteFailureLeavesMemory(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "backlog", "c1", "First")
	f.load(t)

	before := f.store.Board()
	f.faulty.FailOn(fsadapter.OpWriteFile, errors.New("read-only"))

	title := "Renamed"
	if _, err := f.store.UpdateCard(context.Background(), "c1", card.Patch{Title: &title}); err == nil {
		t.Fatal("UpdateCard() should fail")
	}
	if diff := cmp.Diff(before, f.store.Board()); diff != "" {
		t.Errorf("board changed (-before +after):\n%s", diff)
	}
}

func TestDeleteCard(t *testing.T) {
	f := newFixture(t)
	seeded := f.seed(t, "backlog", "c1", "First")
	f.load(t)

	f.faulty.FailOn(fsadapter.OpUnlink, errors.New("busy"))
	if err := f.store.DeleteCard(context.Background(), "c1"); err == nil {
		t.Fatal("DeleteCard() should fail")
	}
	if _, ok := f.store.Card("c1"); !ok {
		t.Fatal("card must stay on the board after a failed delete")
	}

	f.faulty.Heal()
	if err := f.store.DeleteCard(context.Background(), "c1"); err != nil {
		t.Fatalf("DeleteCard() failed: %v", err)
	}
	if _, ok := f.store.Card("c1"); ok {
		t.Error("card should be gone")
	}
	if f.exists(seeded.FilePath) {
		t.Error("file should be unlinked")
	}

	if err := f.store.DeleteCard(context.Background(), "c1"); err != nil {
		t.Errorf("DeleteCard(missing) error = %v, want nil", err)
	}
	if got := f.store.State().Error; got != NotFoundMessage {
		t.Errorf("Error = %q, want %q", got, NotFoundMessage)
	}
}

func TestLoadCards_SkipsCorruptFiles(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "backlog", "good", "Valid")
	if err := f.memory.WriteFile(context.Background(), "./kanban-data/backlog/bad.md", []byte("---\ntitle: [unclosed\n---\n")); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}
	if err := f.memory.WriteFile(context.Background(), "./kanban-data/backlog/notes.txt", []byte("ignored")); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}

	if err := f.store.LoadCards(context.Background()); err != nil {
		t.Fatalf("LoadCards() error = %v, want nil", err)
	}

	if diff := cmp.Diff([]string{"good"}, columnIDs(f.store.Board(), "backlog")); diff != "" {
		t.Errorf("backlog mismatch (-want +got):\n%s", diff)
	}
	st := f.store.State()
	if st.Loading || st.Error != "" {
		t.Errorf("state = loading:%v error:%q, want idle", st.Loading, st.Error)
	}
}

func TestLoadCards_Idempotent(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "backlog", "a", "A")
	f.seed(t, "in-progress", "b", "B")
	f.seed(t, "done", "c", "C")

	f.load(t)
	first := f.store.Board()
	f.load(t)
	second := f.store.Board()

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("second load differs (-first +second):\n%s", diff)
	}
	if first.Len() != 3 {
		t.Errorf("Len() = %d, want 3", first.Len())
	}
}

func TestLoadCards_FailureKeepsBoard(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "backlog", "a", "A")
	f.load(t)
	before := f.store.Board()

	f.faulty.FailOn(fsadapter.OpReadDir, errors.New("grant revoked"))
	err := f.store.LoadCards(context.Background())
	if err == nil || !fsadapter.IsAdapterError(err) {
		t.Fatalf("LoadCards() error = %v, want adapter error", err)
	}

	if diff := cmp.Diff(before, f.store.Board()); diff != "" {
		t.Errorf("board changed (-before +after):\n%s", diff)
	}
	st := f.store.State()
	if st.Loading {
		t.Error("Loading should be cleared")
	}
	if !strings.Contains(st.Error, "grant revoked") {
		t.Errorf("Error = %q", st.Error)
	}
	if st.Status() != "error" {
		t.Errorf("Status() = %q, want error", st.Status())
	}
}

func TestLoadCards_MissingRootKeepsBoard(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "backlog", "a", "A")
	f.seed(t, "done", "b", "B")
	f.load(t)

	// The board folder goes away, e.g. an unmounted drive.
	for _, dir := range []string{"/backlog", "/done"} {
		if err := f.memory.Fs().RemoveAll(dir); err != nil {
			t.Fatalf("RemoveAll(%s) failed: %v", dir, err)
		}
	}

	err := f.store.LoadCards(context.Background())
	if !fsadapter.IsNotExist(err) {
		t.Fatalf("LoadCards() error = %v, want not-exist", err)
	}
	st := f.store.State()
	if st.Error == "" {
		t.Error("Error should be set")
	}
	if st.Board.Len() != 2 {
		t.Errorf("Len() = %d, want the previous 2 cards", st.Board.Len())
	}
}

func TestLoadCards_MissingColumnDirectoryIsEmpty(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "backlog", "a", "A")

	f.load(t)
	if f.store.Board().Len() != 1 {
		t.Errorf("Len() = %d, want 1", f.store.Board().Len())
	}
}

func TestSyncFromFileSystem(t *testing.T) {
	f := newFixture(t)

	f.store.SyncFromFileSystem([]card.Card{
		{ID: "1", Column: "done"},
		{ID: "2", Column: "backlog"},
		{ID: "3", Column: "elsewhere"},
		{ID: "4", Column: "done"},
		{ID: "1", Column: "backlog"},
	})

	b := f.store.Board()
	if diff := cmp.Diff([]string{"2"}, columnIDs(b, "backlog")); diff != "" {
		t.Errorf("backlog (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"1", "4"}, columnIDs(b, "done")); diff != "" {
		t.Errorf("done (-want +got):\n%s", diff)
	}
	if ids := columnIDs(b, "in-progress"); len(ids) != 0 {
		t.Errorf("in-progress = %v, want empty", ids)
	}
}

func TestSetError(t *testing.T) {
	f := newFixture(t)
	f.store.SyncFromFileSystem([]card.Card{{ID: "1", Column: "done"}})

	f.store.SetError("something broke")
	st := f.store.State()
	if st.Error != "something broke" || st.Board.Len() != 1 {
		t.Errorf("state = %+v", st)
	}

	f.store.ClearError()
	if f.store.State().Error != "" {
		t.Error("ClearError() should clear the error")
	}
}

func TestSubscribe(t *testing.T) {
	f := newFixture(t)

	ch, cancel := f.store.Subscribe()
	defer cancel()

	initial := <-ch
	if initial.Board.Len() != 0 {
		t.Fatalf("initial snapshot has %d cards", initial.Board.Len())
	}

	if _, err := f.store.AddCard(context.Background(), "Hello", "backlog", "", nil); err != nil {
		t.Fatalf("AddCard() failed: %v", err)
	}

	select {
	case snap := <-ch:
		if snap.Board.Len() != 1 {
			t.Errorf("snapshot has %d cards, want 1", snap.Board.Len())
		}
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for snapshot")
	}

	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Error("channel should be closed after cancel")
	}
}

func TestSetAdapter(t *testing.T) {
	f := newFixture(t)
	if err := f.store.SetAdapter(nil); err == nil {
		t.Error("SetAdapter(nil) should fail")
	}

	other := fsadapter.NewMemory("")
	if err := f.store.SetAdapter(other); err != nil {
		t.Fatalf("SetAdapter() failed: %v", err)
	}
	c, err := f.store.AddCard(context.Background(), "Elsewhere", "backlog", "", nil)
	if err != nil {
		t.Fatalf("AddCard() failed: %v", err)
	}
	if _, err := other.ReadFile(context.Background(), c.FilePath); err != nil {
		t.Errorf("card should be written through the new adapter: %v", err)
	}
	if f.exists(c.FilePath) {
		t.Error("old adapter should not be used after SetAdapter")
	}
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	f.store.SyncFromFileSystem([]card.Card{{ID: "1", Column: "done"}, {ID: "2", Column: "done"}})

	want := []ColumnStats{{"backlog", 0}, {"in-progress", 0}, {"done", 2}}
	if diff := cmp.Diff(want, f.store.Stats()); diff != "" {
		t.Errorf("Stats() mismatch (-want +got):\n%s", diff)
	}
}

func TestWithOptimisticUpdate(t *testing.T) {
	var steps []string

	err := WithOptimisticUpdate(func() func() {
		steps = append(steps, "apply")
		return nil
	}, func() error {
		steps = append(steps, "commit")
		return nil
	})
	if err != nil || len(steps) != 1 {
		t.Errorf("nil rollback should skip commit: err=%v steps=%v", err, steps)
	}

	steps = nil
	boom := errors.New("boom")
	err = WithOptimisticUpdate(func() func() {
		steps = append(steps, "apply")
		return func() { steps = append(steps, "rollback") }
	}, func() error {
		steps = append(steps, "commit")
		return boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("error = %v, want %v", err, boom)
	}
	if diff := cmp.Diff([]string{"apply", "commit", "rollback"}, steps); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}
