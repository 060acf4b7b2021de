package registry

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spacehq/space/internal/core"
	"github.com/spacehq/space/internal/events"
	"github.com/spacehq/space/internal/store"
)

func openTest(t *testing.T) (core.Workspace, *sql.DB, *events.Journal) {
	t.Helper()
	ws, err := core.InitWorkspace(t.TempDir())
	if err != nil {
		t.Fatalf("init workspace: %v", err)
	}
	db, err := store.Open(ws, DBName)
	if err != nil {
		t.Fatalf("open registry db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	eventsDB, err := store.Open(ws, events.DBName)
	if err != nil {
		t.Fatalf("open events db: %v", err)
	}
	t.Cleanup(func() { _ = eventsDB.Close() })

	return ws, db, events.NewJournal(eventsDB)
}

func TestEnsureAgentIdempotent(t *testing.T) {
	_, db, journal := openTest(t)

	id1, err := EnsureAgent(db, journal, "zealot-1")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	id2, err := EnsureAgent(db, journal, "zealot-1")
	if err != nil {
		t.Fatalf("ensure again: %v", err)
	}
	if id1 != id2 {
		t.Fatalf("ensure not idempotent: %s vs %s", id1, id2)
	}

	created, err := journal.CountByType(id1, "agent.create")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if created != 1 {
		t.Fatalf("expected one create event, got %d", created)
	}
}

func TestAliasAndCanonicalResolution(t *testing.T) {
	_, db, journal := openTest(t)

	rootID, _ := EnsureAgent(db, journal, "zealot-1")
	forkID, _ := EnsureAgent(db, journal, "zealot-1b")

	if err := AddAlias(db, journal, rootID, "z1"); err != nil {
		t.Fatalf("alias: %v", err)
	}
	got, err := GetAgentID(db, "z1")
	if err != nil || got != rootID {
		t.Fatalf("alias lookup: %s %v", got, err)
	}

	if err := SetCanonical(db, journal, forkID, rootID); err != nil {
		t.Fatalf("canonical: %v", err)
	}
	got, err = GetAgentID(db, "zealot-1b")
	if err != nil || got != rootID {
		t.Fatalf("canonical lookup: %s %v", got, err)
	}

	if err := SetCanonical(db, journal, rootID, rootID); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("self canonical should fail, got %v", err)
	}
}

func TestRenameConflict(t *testing.T) {
	_, db, journal := openTest(t)

	_, _ = EnsureAgent(db, journal, "alpha")
	_, _ = EnsureAgent(db, journal, "beta")

	if err := RenameAgent(db, journal, "alpha", "beta"); !errors.Is(err, core.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if err := RenameAgent(db, journal, "ghost", "gamma"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := RenameAgent(db, journal, "alpha", "gamma"); err != nil {
		t.Fatalf("rename: %v", err)
	}

	// Old records still resolve through the alias left behind at creation.
	id, err := GetAgentID(db, "alpha")
	if err != nil || id == "" {
		t.Fatalf("old name should still alias: %s %v", id, err)
	}
}

func TestSelfDescription(t *testing.T) {
	_, db, journal := openTest(t)

	if err := SetSelfDescription(db, journal, "oracle-1", "keeper of the event journal"); err != nil {
		t.Fatalf("set: %v", err)
	}
	text, err := GetSelfDescription(db, "oracle-1")
	if err != nil || text == nil || *text != "keeper of the event journal" {
		t.Fatalf("get: %v %v", text, err)
	}

	if err := SetSelfDescription(db, journal, "oracle-1", "rewritten"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	text, _ = GetSelfDescription(db, "oracle-1")
	if *text != "rewritten" {
		t.Fatalf("expected overwrite, got %s", *text)
	}
}

func TestConstitutionContentAddressing(t *testing.T) {
	_, db, _ := openTest(t)

	hash := core.HashContent([]byte("X"))
	if err := SaveConstitution(db, hash, "X"); err != nil {
		t.Fatalf("save: %v", err)
	}
	// Second put under the same hash is a no-op; first write wins.
	if err := SaveConstitution(db, hash, "Y"); err != nil {
		t.Fatalf("save dup: %v", err)
	}

	content, err := GetConstitution(db, hash)
	if err != nil || content == nil {
		t.Fatalf("get: %v %v", content, err)
	}
	if *content != "X" {
		t.Fatalf("expected first write to win, got %q", *content)
	}

	missing, err := GetConstitution(db, core.HashContent([]byte("other")))
	if err != nil || missing != nil {
		t.Fatalf("expected nil for unknown hash: %v %v", missing, err)
	}
}

func TestInjectIdentityAssembly(t *testing.T) {
	ws, _, _ := openTest(t)

	canonDir := ws.CanonDir()
	if err := os.MkdirAll(canonDir, 0o755); err != nil {
		t.Fatalf("mkdir canon: %v", err)
	}
	_ = os.WriteFile(filepath.Join(canonDir, "b-protocol.md"), []byte("second doc\n"), 0o644)
	_ = os.WriteFile(filepath.Join(canonDir, "a-values.md"), []byte("first doc\n"), 0o644)

	text, err := InjectIdentity(ws, "Base constitution body.", "zealot", "zealot-2", "opus")
	if err != nil {
		t.Fatalf("inject: %v", err)
	}

	if !strings.HasPrefix(text, "# ZEALOT CONSTITUTION\n") {
		t.Fatalf("missing header: %q", text[:40])
	}
	if !strings.Contains(text, "Self: You are zealot-2. Your model is opus.") {
		t.Fatal("missing self line")
	}
	first := strings.Index(text, "first doc")
	second := strings.Index(text, "second doc")
	if first < 0 || second < 0 || first > second {
		t.Fatalf("canon not in sorted order: %d %d", first, second)
	}
	if !strings.Contains(text, "Base constitution body.") {
		t.Fatal("missing base constitution")
	}
	if !strings.Contains(text, "space memory --as zealot-2") {
		t.Fatal("missing orientation footer")
	}
}

func TestRoleAndIdentityFile(t *testing.T) {
	if role := RoleOf("zealot-2"); role != "zealot" {
		t.Fatalf("role: %s", role)
	}
	if role := RoleOf("oracle"); role != "oracle" {
		t.Fatalf("role without hyphen: %s", role)
	}
	if file := IdentityFile("claude"); file != "CLAUDE.md" {
		t.Fatalf("claude file: %s", file)
	}
	if file := IdentityFile("gemini"); file != "GEMINI.md" {
		t.Fatalf("gemini file: %s", file)
	}
	if file := IdentityFile("codex"); file != "AGENTS.md" {
		t.Fatalf("default file: %s", file)
	}
}
