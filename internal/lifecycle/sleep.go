package lifecycle

import (
	"fmt"
	"os/exec"

	"go.uber.org/zap"

	"github.com/spacehq/space/internal/bridge"
	"github.com/spacehq/space/internal/memory"
	"github.com/spacehq/space/internal/registry"
	"github.com/spacehq/space/internal/types"
)

// SleepSummary reports what sleep checkpointed, or would checkpoint in
// check mode.
type SleepSummary struct {
	Identity       string         `json:"identity"`
	CheckOnly      bool           `json:"check_only"`
	Checkpoints    []types.Memory `json:"checkpoints"`
	UnreadChannels []string       `json:"unread_channels"`
	DirtyFiles     string         `json:"dirty_files,omitempty"`
	MemoryGap      bool           `json:"memory_gap"`
}

// Sleep checkpoints an agent's working context before the run ends:
// one memory per channel with unreads, one for uncommitted workspace
// changes, and one when the agent has no memories at all. In check mode
// nothing persists and no events are emitted; the summary is a preview.
func Sleep(s Stores, identity string, check bool) (*SleepSummary, error) {
	agentID, err := registry.EnsureAgent(s.Registry, s.Journal, identity)
	if err != nil {
		return nil, err
	}

	summary := &SleepSummary{Identity: identity, CheckOnly: check}

	unread, err := bridge.FetchChannels(s.Bridge, bridge.FetchOptions{
		AgentID:    identity,
		UnreadOnly: true,
	})
	if err != nil {
		return nil, err
	}
	for _, view := range unread {
		summary.UnreadChannels = append(summary.UnreadChannels, view.Name)
		entry := memory.AddOptions{
			AgentID:       identity,
			Topic:         "checkpoint",
			Message:       fmt.Sprintf("%d unread messages waiting in #%s", view.UnreadCount, view.Name),
			Source:        types.MemorySourceCheckpoint,
			BridgeChannel: view.Name,
		}
		if err := summary.checkpoint(s, entry, check); err != nil {
			return nil, err
		}
	}

	if dirty := gitPorcelain(s.Workspace); dirty != "" {
		summary.DirtyFiles = dirty
		entry := memory.AddOptions{
			AgentID:     identity,
			Topic:       "checkpoint",
			Message:     "uncommitted workspace changes at sleep",
			Source:      types.MemorySourceCheckpoint,
			CodeAnchors: dirty,
		}
		if err := summary.checkpoint(s, entry, check); err != nil {
			return nil, err
		}
	}

	existing, err := memory.GetMemories(s.Memory, identity, "", true, 1)
	if err != nil {
		return nil, err
	}
	if len(existing) == 0 {
		summary.MemoryGap = true
		entry := memory.AddOptions{
			AgentID: identity,
			Topic:   "checkpoint",
			Message: "no memories recorded this session; next wake starts cold",
			Source:  types.MemorySourceCheckpoint,
		}
		if err := summary.checkpoint(s, entry, check); err != nil {
			return nil, err
		}
	}

	if !check {
		_, _ = s.Journal.Emit(Source, "sleep", agentID, identity)
		_, _ = s.Journal.Emit(Source, "session_end", agentID, "sleep")
	}

	s.logger().Info("slept",
		zap.String("identity", identity),
		zap.Bool("check", check),
		zap.Int("checkpoints", len(summary.Checkpoints)),
	)
	return summary, nil
}

// checkpoint persists the entry unless previewing; previewed entries are
// still reported in the summary with empty ids.
func (summary *SleepSummary) checkpoint(s Stores, opts memory.AddOptions, check bool) error {
	if check {
		preview := types.Memory{
			AgentID: opts.AgentID,
			Topic:   opts.Topic,
			Message: opts.Message,
			Source:  opts.Source,
		}
		if opts.BridgeChannel != "" {
			preview.BridgeChannel = &opts.BridgeChannel
		}
		if opts.CodeAnchors != "" {
			preview.CodeAnchors = &opts.CodeAnchors
		}
		summary.Checkpoints = append(summary.Checkpoints, preview)
		return nil
	}

	entry, err := memory.AddEntry(s.Memory, s.Journal, opts)
	if err != nil {
		return err
	}
	summary.Checkpoints = append(summary.Checkpoints, *entry)
	return nil
}

// runGit executes git in dir and returns stdout.
func runGit(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	return string(out), err
}
