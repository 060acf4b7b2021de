package command

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spacehq/space/internal/core"
)

// writeCommandError reports a failed verb in the active output mode and
// journals it as a cli error. Returns err so RunE bodies can end with
// `return writeCommandError(cmd, ctx, err)`.
func writeCommandError(cmd *cobra.Command, ctx *Context, err error) error {
	if ctx != nil && ctx.Journal != nil {
		_, _ = ctx.Journal.Emit("cli", "error", identityOf(ctx), err.Error())
	}
	if ctx != nil && ctx.Quiet {
		return err
	}
	if ctx != nil && ctx.JSONMode {
		_ = json.NewEncoder(cmd.ErrOrStderr()).Encode(map[string]string{
			"status":  "error",
			"message": err.Error(),
		})
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s\n", err.Error())
	return err
}

func identityOf(ctx *Context) string {
	if ctx == nil {
		return ""
	}
	return ctx.Identity
}

// ExitCode maps a verb error to the process exit code: 0 on success,
// 124 on timeout, 1 for everything else.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if errors.Is(err, core.ErrTimeout) {
		return 124
	}
	return 1
}
