// Package command is the space CLI: one file per verb, a shared Context
// carrying the open stores, and uniform pretty/JSON/quiet output modes.
package command

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spacehq/space/internal/core"
	"github.com/spacehq/space/internal/events"
	"github.com/spacehq/space/internal/logging"
	"github.com/spacehq/space/internal/registry"
	"github.com/spacehq/space/internal/store"
	"github.com/spacehq/space/internal/types"
)

// Context carries everything a verb needs: the resolved workspace, every
// open store, the journal, and the output mode flags.
type Context struct {
	Workspace core.Workspace
	DBs       map[string]*sql.DB
	Journal   *events.Journal
	Logger    *zap.Logger
	JSONMode  bool
	Quiet     bool
	Identity  string
}

// GetContext resolves the workspace and opens every registered store.
// Identity comes from --as, falling back to SPACE_AGENT.
func GetContext(cmd *cobra.Command) (*Context, error) {
	jsonMode, _ := cmd.Flags().GetBool("json")
	quiet, _ := cmd.Flags().GetBool("quiet")
	identity, _ := cmd.Flags().GetString("as")
	if identity == "" {
		identity = os.Getenv("SPACE_AGENT")
	}

	ws, err := core.DiscoverWorkspace("")
	if err != nil {
		return nil, err
	}
	dbs, err := store.OpenAll(ws)
	if err != nil {
		return nil, err
	}

	return &Context{
		Workspace: ws,
		DBs:       dbs,
		Journal:   events.NewJournal(dbs[events.DBName]),
		Logger:    logging.New(ws),
		JSONMode:  jsonMode,
		Quiet:     quiet,
		Identity:  identity,
	}, nil
}

// DB returns the named store. Every registered name is present after
// GetContext succeeds.
func (c *Context) DB(name string) *sql.DB {
	return c.DBs[name]
}

// RequireIdentity returns the acting identity or a validation error for
// verbs that cannot run anonymously.
func (c *Context) RequireIdentity() (string, error) {
	if c.Identity == "" {
		return "", fmt.Errorf("%w: identity required (use --as or set SPACE_AGENT)", core.ErrValidation)
	}
	return c.Identity, nil
}

// EnsureIdentity resolves the acting identity and guarantees it has a
// registry row. Verbs that write rows attributed to the identity go
// through this, so agents come into existence on first reference. The
// system identity is the one name that never gets a row.
func (c *Context) EnsureIdentity() (string, error) {
	identity, err := c.RequireIdentity()
	if err != nil {
		return "", err
	}
	if identity != types.SystemAgent {
		if _, err := registry.EnsureAgent(c.DB(registry.DBName), c.Journal, identity); err != nil {
			return "", err
		}
	}
	return identity, nil
}

// Close releases every store connection and flushes the log.
func (c *Context) Close() {
	if c.Logger != nil {
		_ = c.Logger.Sync()
	}
	_ = store.CloseAll(c.DBs)
}
