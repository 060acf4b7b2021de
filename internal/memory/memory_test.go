package memory

import (
	"database/sql"
	"errors"
	"strings"
	"testing"

	"github.com/spacehq/space/internal/core"
	"github.com/spacehq/space/internal/events"
	"github.com/spacehq/space/internal/store"
	"github.com/spacehq/space/internal/types"
)

func openTest(t *testing.T) (*sql.DB, *events.Journal) {
	t.Helper()
	ws, err := core.InitWorkspace(t.TempDir())
	if err != nil {
		t.Fatalf("init workspace: %v", err)
	}
	db, err := store.Open(ws, DBName)
	if err != nil {
		t.Fatalf("open memory db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	eventsDB, err := store.Open(ws, events.DBName)
	if err != nil {
		t.Fatalf("open events db: %v", err)
	}
	t.Cleanup(func() { _ = eventsDB.Close() })

	return db, events.NewJournal(eventsDB)
}

func mustAdd(t *testing.T, db *sql.DB, journal *events.Journal, agent, topic, message string) *types.Memory {
	t.Helper()
	entry, err := AddEntry(db, journal, AddOptions{AgentID: agent, Topic: topic, Message: message})
	if err != nil {
		t.Fatalf("add %q: %v", message, err)
	}
	return entry
}

func TestAddAndGet(t *testing.T) {
	db, journal := openTest(t)

	entry := mustAdd(t, db, journal, "zealot-1", "build", "sqlite needs WAL for concurrent readers")
	mustAdd(t, db, journal, "zealot-1", "other", "unrelated")
	mustAdd(t, db, journal, "oracle-1", "build", "not mine")

	got, err := GetMemories(db, "zealot-1", "build", false, 0)
	if err != nil || len(got) != 1 {
		t.Fatalf("topic filter: %d %v", len(got), err)
	}
	if got[0].MemoryID != entry.MemoryID {
		t.Fatal("wrong entry")
	}
	if got[0].Source != types.MemorySourceManual {
		t.Fatalf("default source: %s", got[0].Source)
	}

	all, _ := GetMemories(db, "zealot-1", "", false, 0)
	if len(all) != 2 {
		t.Fatalf("agent scope: %d", len(all))
	}
}

func TestShortIDResolution(t *testing.T) {
	db, journal := openTest(t)

	entry := mustAdd(t, db, journal, "zealot-1", "build", "the entry")
	short := core.ShortID(entry.MemoryID)

	got, err := GetByID(db, short)
	if err != nil || got.MemoryID != entry.MemoryID {
		t.Fatalf("short lookup: %v %v", got, err)
	}
	if _, err := GetByID(db, "zzzzzzzz"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestEditBumpsTimestampAndEmits(t *testing.T) {
	db, journal := openTest(t)

	entry := mustAdd(t, db, journal, "zealot-1", "build", "first draft")
	edited, err := EditEntry(db, journal, core.ShortID(entry.MemoryID), "second draft")
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if edited.Message != "second draft" {
		t.Fatalf("message: %s", edited.Message)
	}
	if edited.Timestamp < entry.Timestamp {
		t.Fatal("timestamp went backwards")
	}

	edits, _ := journal.CountByType("zealot-1", "memory.edit")
	if edits != 1 {
		t.Fatalf("expected edit event, got %d", edits)
	}
}

func TestArchiveRestore(t *testing.T) {
	db, journal := openTest(t)

	entry := mustAdd(t, db, journal, "zealot-1", "build", "to archive")

	if err := ArchiveEntry(db, journal, entry.MemoryID); err != nil {
		t.Fatalf("archive: %v", err)
	}
	active, _ := GetMemories(db, "zealot-1", "", false, 0)
	if len(active) != 0 {
		t.Fatal("archived entry still listed")
	}
	withArchived, _ := GetMemories(db, "zealot-1", "", true, 0)
	if len(withArchived) != 1 {
		t.Fatal("archived entry missing from include_archived")
	}

	if err := RestoreEntry(db, journal, entry.MemoryID); err != nil {
		t.Fatalf("restore: %v", err)
	}
	active, _ = GetMemories(db, "zealot-1", "", false, 0)
	if len(active) != 1 {
		t.Fatal("restore did not reactivate")
	}
}

func TestRestoreRefusesSuperseded(t *testing.T) {
	db, journal := openTest(t)

	old := mustAdd(t, db, journal, "zealot-1", "build", "old")
	if _, err := ReplaceEntry(db, journal, []string{old.MemoryID}, "zealot-1", "build", "new", ""); err != nil {
		t.Fatalf("replace: %v", err)
	}

	err := RestoreEntry(db, journal, old.MemoryID)
	if !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestMarkCore(t *testing.T) {
	db, journal := openTest(t)

	entry := mustAdd(t, db, journal, "zealot-1", "values", "always checkpoint before sleep")
	if err := MarkCore(db, journal, entry.MemoryID, true); err != nil {
		t.Fatalf("mark: %v", err)
	}

	coreEntries, err := GetCoreEntries(db, "zealot-1")
	if err != nil || len(coreEntries) != 1 {
		t.Fatalf("core entries: %d %v", len(coreEntries), err)
	}

	if err := MarkCore(db, journal, entry.MemoryID, false); err != nil {
		t.Fatalf("unmark: %v", err)
	}
	coreEntries, _ = GetCoreEntries(db, "zealot-1")
	if len(coreEntries) != 0 {
		t.Fatal("unmark did not clear")
	}
}

func TestSearch(t *testing.T) {
	db, journal := openTest(t)

	mustAdd(t, db, journal, "zealot-1", "build", "the migration safeguard rolls back on row loss")
	mustAdd(t, db, journal, "zealot-1", "migration-notes", "short")
	mustAdd(t, db, journal, "zealot-1", "other", "nothing relevant")

	// Matches in either topic or message.
	got, err := SearchEntries(db, "zealot-1", "migration", false)
	if err != nil || len(got) != 2 {
		t.Fatalf("search: %d %v", len(got), err)
	}
}

func TestDelete(t *testing.T) {
	db, journal := openTest(t)

	entry := mustAdd(t, db, journal, "zealot-1", "build", "ephemeral")
	if err := DeleteEntry(db, journal, core.ShortID(entry.MemoryID)); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := GetByID(db, entry.MemoryID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected gone, got %v", err)
	}
	deletes, _ := journal.CountByType("zealot-1", "memory.delete")
	if deletes != 1 {
		t.Fatalf("expected delete event, got %d", deletes)
	}
}

func TestReplaceSupersession(t *testing.T) {
	db, journal := openTest(t)

	id1 := mustAdd(t, db, journal, "zealot-1", "core", "old").MemoryID
	id2 := mustAdd(t, db, journal, "zealot-1", "core", "older").MemoryID

	merged, err := ReplaceEntry(db, journal, []string{core.ShortID(id1), id2}, "zealot-1", "core", "new", "merge")
	if err != nil {
		t.Fatalf("replace: %v", err)
	}

	want := id1 + "," + id2
	if merged.Supersedes != want {
		t.Fatalf("supersedes: %q want %q", merged.Supersedes, want)
	}
	if merged.SynthesisNote == nil || *merged.SynthesisNote != "merge" {
		t.Fatalf("note: %v", merged.SynthesisNote)
	}

	for _, oldID := range []string{id1, id2} {
		old, err := GetByID(db, oldID)
		if err != nil {
			t.Fatalf("get old: %v", err)
		}
		if old.ArchivedAt == nil {
			t.Fatalf("%s not archived", core.ShortID(oldID))
		}
		if old.SupersededBy == nil || *old.SupersededBy != merged.MemoryID {
			t.Fatalf("%s not pointed at successor", core.ShortID(oldID))
		}
	}

	chain, err := GetChain(db, merged.MemoryID)
	if err != nil {
		t.Fatalf("chain: %v", err)
	}
	if len(chain.Predecessors) != 2 {
		t.Fatalf("predecessors: %d", len(chain.Predecessors))
	}
	found := map[string]bool{}
	for _, pred := range chain.Predecessors {
		found[pred.MemoryID] = true
	}
	if !found[id1] || !found[id2] {
		t.Fatal("chain missing a predecessor")
	}

	replaces, _ := journal.CountByType("zealot-1", "memory.replace")
	if replaces != 1 {
		t.Fatalf("expected one replace event, got %d", replaces)
	}
}

func TestReplaceUnknownPredecessorIsAtomic(t *testing.T) {
	db, journal := openTest(t)

	id1 := mustAdd(t, db, journal, "zealot-1", "core", "old").MemoryID

	if _, err := ReplaceEntry(db, journal, []string{id1, "missing0"}, "zealot-1", "core", "new", ""); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	// The failed replace left nothing behind.
	old, _ := GetByID(db, id1)
	if old.ArchivedAt != nil || old.SupersededBy != nil {
		t.Fatal("failed replace mutated predecessor")
	}
	all, _ := GetMemories(db, "zealot-1", "", true, 0)
	if len(all) != 1 {
		t.Fatalf("failed replace left %d entries", len(all))
	}
}

func TestChainWalksMultipleHops(t *testing.T) {
	db, journal := openTest(t)

	first := mustAdd(t, db, journal, "zealot-1", "core", "v1")
	second, _ := ReplaceEntry(db, journal, []string{first.MemoryID}, "zealot-1", "core", "v2", "")
	third, _ := ReplaceEntry(db, journal, []string{second.MemoryID}, "zealot-1", "core", "v3", "")

	chain, err := GetChain(db, first.MemoryID)
	if err != nil {
		t.Fatalf("chain: %v", err)
	}
	if len(chain.Successors) != 2 {
		t.Fatalf("successors: %d", len(chain.Successors))
	}
	if chain.Successors[0].MemoryID != second.MemoryID || chain.Successors[1].MemoryID != third.MemoryID {
		t.Fatal("successors out of order")
	}

	chain, _ = GetChain(db, third.MemoryID)
	if len(chain.Predecessors) != 2 {
		t.Fatalf("transitive predecessors: %d", len(chain.Predecessors))
	}
}

func TestFindRelated(t *testing.T) {
	db, journal := openTest(t)

	source := mustAdd(t, db, journal, "zealot-1", "build", "sqlite migration safeguard prevents destructive schema changes")
	strong := mustAdd(t, db, journal, "zealot-1", "build", "migration safeguard measures sqlite table rows before schema rewrites")
	weak := mustAdd(t, db, journal, "zealot-1", "ops", "schema docs live in canon")
	mustAdd(t, db, journal, "zealot-1", "misc", "lunch at noon")
	mustAdd(t, db, journal, "oracle-1", "build", "sqlite migration safeguard notes from another agent")

	related, err := FindRelated(db, source, 5, false)
	if err != nil {
		t.Fatalf("related: %v", err)
	}
	if len(related) != 2 {
		t.Fatalf("expected 2 related, got %d", len(related))
	}
	if related[0].Memory.MemoryID != strong.MemoryID {
		t.Fatal("strongest overlap not first")
	}
	if related[1].Memory.MemoryID != weak.MemoryID {
		t.Fatal("weak overlap missing")
	}
	if related[0].Score <= related[1].Score {
		t.Fatalf("scores not descending: %d %d", related[0].Score, related[1].Score)
	}
}

func TestRecentEntries(t *testing.T) {
	db, journal := openTest(t)

	fresh := mustAdd(t, db, journal, "zealot-1", "build", "fresh")
	stale := mustAdd(t, db, journal, "zealot-1", "build", "stale")
	// Push one entry outside the window.
	if _, err := db.Exec(
		"UPDATE memories SET created_at = created_at - 86400*30 WHERE memory_id = ?", stale.MemoryID,
	); err != nil {
		t.Fatalf("backdate: %v", err)
	}

	recent, err := GetRecentEntries(db, "zealot-1", 7, 10)
	if err != nil || len(recent) != 1 || recent[0].MemoryID != fresh.MemoryID {
		t.Fatalf("recent: %v %v", recent, err)
	}
}

func TestSplitSupersedes(t *testing.T) {
	if got := splitSupersedes(""); got != nil {
		t.Fatalf("empty: %v", got)
	}
	got := splitSupersedes("a, b,c")
	if strings.Join(got, "|") != "a|b|c" {
		t.Fatalf("split: %v", got)
	}
}
