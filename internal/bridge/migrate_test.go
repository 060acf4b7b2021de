package bridge

import (
	"database/sql"
	"testing"

	"github.com/spacehq/space/internal/core"
	"github.com/spacehq/space/internal/store"
)

// Builds a database with the legacy integer message ids, then opens it
// through the store so the registered migration runs.
func TestLegacyMessageIDMigration(t *testing.T) {
	ws, err := core.InitWorkspace(t.TempDir())
	if err != nil {
		t.Fatalf("init workspace: %v", err)
	}

	raw, err := sql.Open("sqlite", ws.DBPath("bridge.db"))
	if err != nil {
		t.Fatalf("open raw: %v", err)
	}
	stmts := []string{
		`CREATE TABLE channels (
			channel_id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			topic TEXT,
			created_at INTEGER NOT NULL,
			archived_at INTEGER
		)`,
		`CREATE TABLE messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			channel_id TEXT NOT NULL,
			agent_id TEXT NOT NULL,
			content TEXT NOT NULL,
			priority TEXT NOT NULL DEFAULT 'normal',
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE bookmarks (
			agent_id TEXT NOT NULL,
			channel_id TEXT NOT NULL,
			last_seen_id TEXT NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (agent_id, channel_id)
		)`,
		`CREATE TABLE notes (
			note_id TEXT PRIMARY KEY,
			channel_id TEXT NOT NULL,
			author TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`INSERT INTO channels VALUES ('chan-1', 'ops', NULL, 100, NULL)`,
		`INSERT INTO messages (channel_id, agent_id, content, priority, created_at)
			VALUES ('chan-1', 'zealot-1', 'first', 'normal', 101),
			       ('chan-1', 'zealot-1', 'second', 'normal', 102),
			       ('chan-1', 'oracle-1', 'third', 'alert', 103)`,
		`INSERT INTO bookmarks VALUES ('oracle-1', 'chan-1', '2', 104)`,
	}
	for _, stmt := range stmts {
		if _, err := raw.Exec(stmt); err != nil {
			t.Fatalf("seed legacy: %v", err)
		}
	}
	if err := raw.Close(); err != nil {
		t.Fatalf("close raw: %v", err)
	}

	db, err := store.Open(ws, DBName)
	if err != nil {
		t.Fatalf("open migrated: %v", err)
	}
	defer db.Close()

	messages, err := GetAllMessages(db, "chan-1")
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(messages))
	}
	for i, want := range []string{"first", "second", "third"} {
		if messages[i].Content != want {
			t.Fatalf("order lost: position %d is %q", i, messages[i].Content)
		}
		if len(messages[i].MessageID) != 36 {
			t.Fatalf("id not a uuid: %q", messages[i].MessageID)
		}
	}

	// The bookmark follows its message to the new id, so the unread set
	// is unchanged: only "third" is new for oracle-1.
	bm, err := GetBookmark(db, "oracle-1", "chan-1")
	if err != nil || bm == nil {
		t.Fatalf("bookmark: %v %v", bm, err)
	}
	if bm.LastSeenID != messages[1].MessageID {
		t.Fatalf("bookmark not rewritten: %s", bm.LastSeenID)
	}
	unread, err := GetNewMessages(db, "chan-1", "oracle-1", 0)
	if err != nil || len(unread) != 1 || unread[0].Content != "third" {
		t.Fatalf("unread after migration: %v %v", unread, err)
	}
}
