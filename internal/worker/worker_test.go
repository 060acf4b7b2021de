package worker

import (
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spacehq/space/internal/bridge"
	"github.com/spacehq/space/internal/core"
	"github.com/spacehq/space/internal/events"
	"github.com/spacehq/space/internal/registry"
	"github.com/spacehq/space/internal/store"
)

func openTest(t *testing.T) (*sql.DB, *sql.DB, *events.Journal) {
	t.Helper()
	ws, err := core.InitWorkspace(t.TempDir())
	if err != nil {
		t.Fatalf("init workspace: %v", err)
	}
	db, err := store.Open(ws, bridge.DBName)
	if err != nil {
		t.Fatalf("open bridge db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	registryDB, err := store.Open(ws, registry.DBName)
	if err != nil {
		t.Fatalf("open registry db: %v", err)
	}
	t.Cleanup(func() { _ = registryDB.Close() })

	eventsDB, err := store.Open(ws, events.DBName)
	if err != nil {
		t.Fatalf("open events db: %v", err)
	}
	t.Cleanup(func() { _ = eventsDB.Close() })

	return db, registryDB, events.NewJournal(eventsDB)
}

func mustChannel(t *testing.T, db *sql.DB, journal *events.Journal, name string) string {
	t.Helper()
	id, err := bridge.CreateChannel(db, journal, name, nil)
	if err != nil {
		t.Fatalf("create channel %s: %v", name, err)
	}
	return id
}

// writeStub writes an executable shell script acting as the spawn command.
func writeStub(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "spawn-stub")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

func TestShouldDispatch(t *testing.T) {
	if !ShouldDispatch("zealot-1", "ping @oracle-1") {
		t.Fatal("mention from agent should dispatch")
	}
	if ShouldDispatch("system", "ping @oracle-1") {
		t.Fatal("system sender must never dispatch")
	}
	if ShouldDispatch("zealot-1", "no mentions here") {
		t.Fatal("mention-free content should not dispatch")
	}
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt("oracle-1", "space-dev", "Found a bug. @oracle-1 please review")
	if !strings.Contains(prompt, "#space-dev") {
		t.Fatal("prompt missing channel")
	}
	if !strings.Contains(prompt, "@oracle-1 please review") {
		t.Fatal("prompt missing message content")
	}
}

func TestRunPostsReplyAsMentionedIdentity(t *testing.T) {
	db, registryDB, journal := openTest(t)
	channelID := mustChannel(t, db, journal, "space-dev")

	stub := writeStub(t, `echo "on it"`)
	Run(db, registryDB, journal, zap.NewNop(), channelID, "review this @oracle-1", Options{
		SpawnCommand: stub,
		Timeout:      5 * time.Second,
	})

	messages, err := bridge.GetAllMessages(db, channelID)
	if err != nil || len(messages) != 1 {
		t.Fatalf("expected one reply, got %d %v", len(messages), err)
	}
	if messages[0].AgentID != "oracle-1" || messages[0].Content != "on it" {
		t.Fatalf("bad reply attribution: %+v", messages[0])
	}

	// The replying identity exists in the registry afterwards.
	id, err := registry.GetAgentID(registryDB, "oracle-1")
	if err != nil || id == "" {
		t.Fatalf("reply author not registered: %q %v", id, err)
	}

	replies, err := journal.CountByType("oracle-1", "worker.reply")
	if err != nil || replies != 1 {
		t.Fatalf("expected one reply event, got %d %v", replies, err)
	}
}

func TestRunFansOutToEveryMention(t *testing.T) {
	db, registryDB, journal := openTest(t)
	channelID := mustChannel(t, db, journal, "ops")

	stub := writeStub(t, `echo "ack from $1"`)
	Run(db, registryDB, journal, zap.NewNop(), channelID, "@zealot-1 @zealot-2 status?", Options{
		SpawnCommand: stub,
		Timeout:      5 * time.Second,
	})

	messages, _ := bridge.GetAllMessages(db, channelID)
	if len(messages) != 2 {
		t.Fatalf("expected 2 replies, got %d", len(messages))
	}
	if messages[0].AgentID != "zealot-1" || messages[1].AgentID != "zealot-2" {
		t.Fatalf("mention order lost: %s then %s", messages[0].AgentID, messages[1].AgentID)
	}
}

func TestRunFollowsChannelAcrossRename(t *testing.T) {
	db, registryDB, journal := openTest(t)
	channelID := mustChannel(t, db, journal, "ops")

	// The channel moves between dispatch and the detached run.
	if result, err := bridge.RenameChannel(db, journal, "ops", "ops-infra"); err != nil || result != bridge.RenameOK {
		t.Fatalf("rename: %v %v", result, err)
	}

	stub := writeStub(t, `echo "still here"`)
	Run(db, registryDB, journal, zap.NewNop(), channelID, "@oracle-1 status?", Options{
		SpawnCommand: stub,
		Timeout:      5 * time.Second,
	})

	messages, err := bridge.GetAllMessages(db, channelID)
	if err != nil || len(messages) != 1 {
		t.Fatalf("expected reply in renamed channel, got %d %v", len(messages), err)
	}
	// The stale name must not reappear as a fresh channel.
	if _, err := bridge.LookupChannel(db, "ops"); err == nil {
		t.Fatal("reply recreated the old channel name")
	}
}

func TestRunSkipsEmptyOutput(t *testing.T) {
	db, registryDB, journal := openTest(t)
	channelID := mustChannel(t, db, journal, "ops")

	stub := writeStub(t, `echo "   "`)
	Run(db, registryDB, journal, zap.NewNop(), channelID, "@oracle-1 hello", Options{
		SpawnCommand: stub,
		Timeout:      5 * time.Second,
	})

	// Whitespace-only output posts nothing.
	messages, _ := bridge.GetAllMessages(db, channelID)
	if len(messages) != 0 {
		t.Fatalf("empty reply posted %d messages", len(messages))
	}
	empty, _ := journal.CountByType("oracle-1", "worker.empty")
	if empty != 1 {
		t.Fatalf("expected empty event, got %d", empty)
	}
}

func TestRunTimeoutIsLoggedNotFatal(t *testing.T) {
	db, registryDB, journal := openTest(t)
	channelID := mustChannel(t, db, journal, "ops")

	stub := writeStub(t, `sleep 5; echo late`)
	Run(db, registryDB, journal, zap.NewNop(), channelID, "@oracle-1 hello", Options{
		SpawnCommand: stub,
		Timeout:      200 * time.Millisecond,
	})

	errored, _ := journal.CountByType("oracle-1", "worker.error")
	if errored != 1 {
		t.Fatalf("expected error event on timeout, got %d", errored)
	}
	if messages, _ := bridge.GetAllMessages(db, channelID); len(messages) != 0 {
		t.Fatal("timed-out run must not post")
	}
}

func TestRunSpawnFailure(t *testing.T) {
	db, registryDB, journal := openTest(t)
	channelID := mustChannel(t, db, journal, "ops")

	stub := writeStub(t, `exit 3`)
	Run(db, registryDB, journal, zap.NewNop(), channelID, "@oracle-1 hello", Options{
		SpawnCommand: stub,
		Timeout:      5 * time.Second,
	})

	errored, _ := journal.CountByType("oracle-1", "worker.error")
	if errored != 1 {
		t.Fatalf("expected error event on exit 3, got %d", errored)
	}
}
