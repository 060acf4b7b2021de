package knowledge

import (
	"database/sql"
	"errors"
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
		t.Fatalf("open knowledge db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	eventsDB, err := store.Open(ws, events.DBName)
	if err != nil {
		t.Fatalf("open events db: %v", err)
	}
	t.Cleanup(func() { _ = eventsDB.Close() })

	return db, events.NewJournal(eventsDB)
}

func mustWrite(t *testing.T, db *sql.DB, journal *events.Journal, domain, agent, content string) *types.Knowledge {
	t.Helper()
	entry, err := WriteKnowledge(db, journal, domain, agent, content, nil)
	if err != nil {
		t.Fatalf("write %q: %v", content, err)
	}
	return entry
}

func TestWriteAndQuery(t *testing.T) {
	db, journal := openTest(t)

	mustWrite(t, db, journal, "sqlite", "zealot-1", "WAL readers never block writers")
	mustWrite(t, db, journal, "sqlite", "oracle-1", "busy_timeout smooths writer contention")
	mustWrite(t, db, journal, "git", "zealot-1", "porcelain output is stable for scripting")

	byDomain, err := QueryByDomain(db, "sqlite", false)
	if err != nil || len(byDomain) != 2 {
		t.Fatalf("domain: %d %v", len(byDomain), err)
	}
	byAgent, err := QueryByAgent(db, "zealot-1", false)
	if err != nil || len(byAgent) != 2 {
		t.Fatalf("agent: %d %v", len(byAgent), err)
	}
	all, err := ListAll(db, false)
	if err != nil || len(all) != 3 {
		t.Fatalf("all: %d %v", len(all), err)
	}

	writes, _ := journal.CountByType("zealot-1", "knowledge.write")
	if writes != 2 {
		t.Fatalf("expected 2 write events, got %d", writes)
	}
}

func TestConfidenceClamped(t *testing.T) {
	db, journal := openTest(t)

	high := 1.7
	entry, err := WriteKnowledge(db, journal, "sqlite", "zealot-1", "overconfident", &high)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if entry.Confidence == nil || *entry.Confidence != 1 {
		t.Fatalf("high not clamped: %v", entry.Confidence)
	}

	low := -0.3
	entry, _ = WriteKnowledge(db, journal, "sqlite", "zealot-1", "underconfident", &low)
	if entry.Confidence == nil || *entry.Confidence != 0 {
		t.Fatalf("low not clamped: %v", entry.Confidence)
	}

	entry, _ = WriteKnowledge(db, journal, "sqlite", "zealot-1", "unscored", nil)
	if entry.Confidence != nil {
		t.Fatalf("nil confidence should persist as null: %v", entry.Confidence)
	}
	got, _ := GetByID(db, entry.KnowledgeID)
	if got.Confidence != nil {
		t.Fatal("null confidence did not round-trip")
	}
}

func TestUpdateInPlace(t *testing.T) {
	db, journal := openTest(t)

	half := 0.5
	entry, err := WriteKnowledge(db, journal, "sqlite", "zealot-1", "draft", &half)
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	updated, err := UpdateEntry(db, journal, core.ShortID(entry.KnowledgeID), "final", nil)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Content != "final" {
		t.Fatalf("content: %s", updated.Content)
	}
	// Omitted confidence keeps the stored value.
	if updated.Confidence == nil || *updated.Confidence != 0.5 {
		t.Fatalf("confidence lost: %v", updated.Confidence)
	}
	if updated.KnowledgeID != entry.KnowledgeID {
		t.Fatal("update changed identity")
	}
}

func TestArchiveRestore(t *testing.T) {
	db, journal := openTest(t)

	entry := mustWrite(t, db, journal, "sqlite", "zealot-1", "to archive")

	if err := ArchiveEntry(db, journal, entry.KnowledgeID); err != nil {
		t.Fatalf("archive: %v", err)
	}
	active, _ := QueryByDomain(db, "sqlite", false)
	if len(active) != 0 {
		t.Fatal("archived entry still listed")
	}
	withArchived, _ := QueryByDomain(db, "sqlite", true)
	if len(withArchived) != 1 {
		t.Fatal("archived entry missing from include_archived")
	}

	if err := RestoreEntry(db, journal, entry.KnowledgeID); err != nil {
		t.Fatalf("restore: %v", err)
	}
	active, _ = QueryByDomain(db, "sqlite", false)
	if len(active) != 1 {
		t.Fatal("restore did not reactivate")
	}
}

func TestShortIDRules(t *testing.T) {
	db, journal := openTest(t)

	entry := mustWrite(t, db, journal, "sqlite", "zealot-1", "the entry")

	got, err := GetByID(db, core.ShortID(entry.KnowledgeID))
	if err != nil || got.KnowledgeID != entry.KnowledgeID {
		t.Fatalf("short lookup: %v %v", got, err)
	}
	if _, err := GetByID(db, "zzzzzzzz"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestFindRelated(t *testing.T) {
	db, journal := openTest(t)

	source := mustWrite(t, db, journal, "sqlite", "zealot-1", "wal checkpoint truncate folds the write ahead log")
	strong := mustWrite(t, db, journal, "sqlite", "oracle-1", "checkpoint truncate requires quiescent writers on the wal")
	mustWrite(t, db, journal, "cooking", "oracle-1", "salt early and often")

	related, err := FindRelated(db, source, 5, false)
	if err != nil {
		t.Fatalf("related: %v", err)
	}
	if len(related) != 1 || related[0].Knowledge.KnowledgeID != strong.KnowledgeID {
		t.Fatalf("related: %+v", related)
	}
	if related[0].Score < 3 {
		t.Fatalf("weak score: %d", related[0].Score)
	}
}
