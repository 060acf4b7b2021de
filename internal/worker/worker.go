// Package worker fans a mention-bearing message out to the named agents.
// Each @identity in the message gets one bounded subprocess run of the
// external spawn command; non-empty output is posted back into the
// channel as that identity. The worker runs detached from the sending
// process so sends never block on agent runtimes.
package worker

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spacehq/space/internal/bridge"
	"github.com/spacehq/space/internal/core"
	"github.com/spacehq/space/internal/events"
	"github.com/spacehq/space/internal/registry"
	"github.com/spacehq/space/internal/types"
)

// Source is the journal source for worker outcomes.
const Source = "worker"

const (
	// DefaultTimeout bounds each mentioned agent's run.
	DefaultTimeout = 10 * time.Second
	// DefaultMaxOutput bounds captured stdout per run.
	DefaultMaxOutput = 1 << 20
	// defaultSpawnCommand is the external agent launcher on PATH.
	defaultSpawnCommand = "spawn"
)

// Options configures a worker run.
type Options struct {
	SpawnCommand string        // external launcher; SPACE_SPAWN env, else "spawn"
	Timeout      time.Duration // per-mention wall clock
	MaxOutput    int64         // stdout byte cap per run
}

func (o *Options) fill() {
	if o.SpawnCommand == "" {
		o.SpawnCommand = os.Getenv("SPACE_SPAWN")
	}
	if o.SpawnCommand == "" {
		o.SpawnCommand = defaultSpawnCommand
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.MaxOutput <= 0 {
		o.MaxOutput = DefaultMaxOutput
	}
}

// ShouldDispatch reports whether a committed send warrants a worker:
// the content carries mentions and the sender is not the system
// identity, which never triggers workers so replies cannot loop.
func ShouldDispatch(sender, content string) bool {
	return sender != types.SystemAgent && core.HasMentions(content)
}

// Dispatch re-execs the current binary as a detached worker process and
// returns immediately. The child outlives the caller. The channel id is
// what the worker trusts; the name rides along for process listings, so
// a rename after dispatch cannot fork a channel under the stale name.
func Dispatch(channelID, channelName, content string) error {
	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("%w: locate executable: %v", core.ErrWorker, err)
	}

	cmd := exec.Command(self, "worker",
		"--channel-id", channelID,
		"--channel", channelName,
		"--content", content)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: start worker: %v", core.ErrWorker, err)
	}
	return cmd.Process.Release()
}

// BuildPrompt assembles the prompt handed to a mentioned agent.
func BuildPrompt(identity, channelName, content string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You were mentioned in #%s:\n\n%s\n\n", channelName, content)
	fmt.Fprintf(&b, "Reply with your response for #%s. Output only the message body.\n", channelName)
	return b.String()
}

// Run handles one mention-bearing message: every mentioned identity is
// spawned with a bounded timeout, and non-empty replies are posted back
// into the channel attributed to that identity. The channel is addressed
// by id so replies land in the right place even after a rename. Failures
// are logged and journaled, never returned to the sender.
func Run(db, registryDB *sql.DB, journal *events.Journal, logger *zap.Logger, channelID, content string, opts Options) {
	opts.fill()
	if logger == nil {
		logger = zap.NewNop()
	}

	channelName, err := bridge.GetChannelName(db, channelID)
	if err != nil {
		logger.Warn("channel lookup failed", zap.String("channel_id", channelID), zap.Error(err))
		if journal != nil {
			_, _ = journal.Emit(Source, "worker.error", "", err.Error())
		}
		return
	}

	for _, identity := range core.ParseMentions(content) {
		runOne(db, registryDB, journal, logger, channelID, channelName, content, identity, opts)
	}
}

func runOne(db, registryDB *sql.DB, journal *events.Journal, logger *zap.Logger, channelID, channelName, content, identity string, opts Options) {
	start := time.Now()
	prompt := BuildPrompt(identity, channelName, content)

	reply, err := invoke(identity, prompt, channelName, opts)
	elapsed := time.Since(start)

	log := logger.With(
		zap.String("identity", identity),
		zap.String("channel", channelName),
		zap.Duration("elapsed", elapsed),
	)

	switch {
	case err != nil:
		log.Warn("spawn failed", zap.Error(err))
		if journal != nil {
			_, _ = journal.Emit(Source, "worker.error", identity, err.Error())
		}
	case reply == "":
		log.Info("spawn returned no output")
		if journal != nil {
			_, _ = journal.Emit(Source, "worker.empty", identity, channelName)
		}
	default:
		// The replying identity may never have run a verb itself; give it
		// a registry row before attributing a message to it.
		if _, err := registry.EnsureAgent(registryDB, journal, identity); err != nil {
			log.Warn("register identity failed", zap.Error(err))
			if journal != nil {
				_, _ = journal.Emit(Source, "worker.error", identity, err.Error())
			}
			return
		}
		if _, err := bridge.CreateMessageInChannel(db, journal, channelID, identity, reply, types.PriorityNormal); err != nil {
			log.Warn("post reply failed", zap.Error(err))
			if journal != nil {
				_, _ = journal.Emit(Source, "worker.error", identity, err.Error())
			}
			return
		}
		log.Info("posted reply", zap.Int("bytes", len(reply)))
		if journal != nil {
			_, _ = journal.Emit(Source, "worker.reply", identity, channelName)
		}
	}
}

// invoke runs the spawn command for one identity and returns trimmed
// stdout. stdin is closed; stdout is capped at MaxOutput bytes.
func invoke(identity, prompt, channelName string, opts Options) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, opts.SpawnCommand, identity, prompt, "--channel", channelName)
	cmd.Stdin = nil

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrWorker, err)
	}
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrWorker, err)
	}

	var buf bytes.Buffer
	_, copyErr := io.Copy(&buf, io.LimitReader(stdout, opts.MaxOutput))
	// Drain anything past the cap so the child does not block on a full
	// pipe before exiting.
	_, _ = io.Copy(io.Discard, stdout)
	waitErr := cmd.Wait()

	if ctx.Err() == context.DeadlineExceeded {
		return "", fmt.Errorf("%w: spawn exceeded %s", core.ErrTimeout, opts.Timeout)
	}
	if copyErr != nil {
		return "", fmt.Errorf("%w: read output: %v", core.ErrWorker, copyErr)
	}
	if waitErr != nil {
		return "", fmt.Errorf("%w: %v", core.ErrWorker, waitErr)
	}
	return strings.TrimSpace(buf.String()), nil
}
