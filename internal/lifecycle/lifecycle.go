// Package lifecycle manages agent session boundaries: identify
// materialises a run's constitution, wake opens a session and assembles
// orientation, sleep checkpoints context before the agent's context
// window ends.
package lifecycle

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/spacehq/space/internal/core"
	"github.com/spacehq/space/internal/events"
	"github.com/spacehq/space/internal/registry"
)

// Source is the journal source for session events.
const Source = "session"

// IdentitySource is the journal source for identify events.
const IdentitySource = "identity"

// ConstitutionsDirName holds per-role base constitutions under the
// workspace root.
const ConstitutionsDirName = "constitutions"

// Stores bundles the databases lifecycle operations touch.
type Stores struct {
	Registry  *sql.DB
	Bridge    *sql.DB
	Memory    *sql.DB
	Journal   *events.Journal
	Logger    *zap.Logger
	Workspace core.Workspace
}

func (s Stores) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

// IdentifyOptions parameterises an identify run.
type IdentifyOptions struct {
	Command  string // the verb that triggered identification
	Identity string // e.g. zealot-2
	Base     string // base family: claude, gemini, ...; default claude
	Model    string // optional model note for the self line
}

// IdentifyResult reports what identify materialised.
type IdentifyResult struct {
	Role string `json:"role"`
	Hash string `json:"hash"`
	File string `json:"file"`
}

// ConstitutionPath returns the base constitution file for a role.
func ConstitutionPath(ws core.Workspace, role string) string {
	return filepath.Join(ws.Root, ConstitutionsDirName, role+".md")
}

// Identify is the provenance hook every identity-bearing command calls:
// it assembles the full constitution for the identity, writes the base
// family's identity file, and records the content hash.
func Identify(s Stores, opts IdentifyOptions) (*IdentifyResult, error) {
	if opts.Identity == "" {
		return nil, fmt.Errorf("%w: identity required", core.ErrValidation)
	}
	if opts.Base == "" {
		opts.Base = "claude"
	}

	role := registry.RoleOf(opts.Identity)
	base, err := os.ReadFile(ConstitutionPath(s.Workspace, role))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &core.NotFoundError{Kind: "constitution", Ref: role}
		}
		return nil, fmt.Errorf("read constitution for %s: %w", role, err)
	}

	text, err := registry.InjectIdentity(s.Workspace, string(base), role, opts.Identity, opts.Model)
	if err != nil {
		return nil, err
	}
	hash, err := registry.WriteIdentityFile(s.Workspace, opts.Base, text)
	if err != nil {
		return nil, err
	}
	if err := registry.SaveConstitution(s.Registry, hash, text); err != nil {
		return nil, err
	}

	agentID, err := registry.EnsureAgent(s.Registry, s.Journal, opts.Identity)
	if err != nil {
		return nil, err
	}

	eventType := opts.Command
	if eventType == "" {
		eventType = "identify"
	}
	data := fmt.Sprintf("hash=%s role=%s", core.ShortHash(hash), role)
	if opts.Model != "" {
		data += " model=" + opts.Model
	}
	if s.Journal != nil {
		_, _ = s.Journal.Emit(IdentitySource, eventType, agentID, data)
	}

	s.logger().Info("identified",
		zap.String("identity", opts.Identity),
		zap.String("role", role),
		zap.String("hash", core.ShortHash(hash)),
	)
	return &IdentifyResult{
		Role: role,
		Hash: hash,
		File: registry.IdentityFile(opts.Base),
	}, nil
}

// gitPorcelain returns `git status --porcelain` output for the workspace
// root, or empty when the root is not a repository or git is missing.
func gitPorcelain(ws core.Workspace) string {
	out, err := runGit(ws.Root, "status", "--porcelain")
	if err != nil {
		return ""
	}
	return strings.TrimRight(out, "\n")
}
