package lifecycle

import (
	"go.uber.org/zap"

	"github.com/spacehq/space/internal/bridge"
	"github.com/spacehq/space/internal/memory"
	"github.com/spacehq/space/internal/registry"
	"github.com/spacehq/space/internal/types"
)

// Orientation is the payload shown to a freshly woken agent.
type Orientation struct {
	Identity       string              `json:"identity"`
	AgentID        string              `json:"agent_id"`
	FirstBoot      bool                `json:"first_boot"`
	SleepCount     int64               `json:"sleep_count"`
	LastCheckpoint *types.Memory       `json:"last_checkpoint,omitempty"`
	UnreadChannels []types.ChannelView `json:"unread_channels"`
	CoreMemories   []types.Memory      `json:"core_memories"`
	RecentEntries  []types.Memory      `json:"recent_entries"`
	LastSent       []types.Message     `json:"last_sent"`
}

const (
	recentDays     = 7
	recentLimit    = 5
	sentHistoryLen = 5
)

// Wake opens a session for the identity: any session left open by a
// previous run is auto-closed first, then orientation is assembled from
// every store. The first wake ever is flagged so the caller can show a
// first-boot greeting instead of the standard orientation.
func Wake(s Stores, identity string) (*Orientation, error) {
	agentID, err := registry.EnsureAgent(s.Registry, s.Journal, identity)
	if err != nil {
		return nil, err
	}

	priorWakes, err := s.Journal.CountByType(agentID, "session_start")
	if err != nil {
		return nil, err
	}
	priorEnds, err := s.Journal.CountByType(agentID, "session_end")
	if err != nil {
		return nil, err
	}
	if priorWakes > priorEnds {
		// The previous run died without sleeping.
		_, _ = s.Journal.Emit(Source, "session_end", agentID, "auto_closed")
	}
	if _, err := s.Journal.Emit(Source, "session_start", agentID, identity); err != nil {
		return nil, err
	}

	orientation := &Orientation{
		Identity:  identity,
		AgentID:   agentID,
		FirstBoot: priorWakes == 0,
	}

	orientation.SleepCount, err = s.Journal.CountByType(agentID, "sleep")
	if err != nil {
		return nil, err
	}

	checkpoints, err := memory.GetMemories(s.Memory, identity, "", false, 0)
	if err != nil {
		return nil, err
	}
	for i := range checkpoints {
		if checkpoints[i].Source == types.MemorySourceCheckpoint {
			orientation.LastCheckpoint = &checkpoints[i]
			break
		}
	}

	orientation.UnreadChannels, err = bridge.FetchChannels(s.Bridge, bridge.FetchOptions{
		AgentID:    identity,
		UnreadOnly: true,
	})
	if err != nil {
		return nil, err
	}

	orientation.CoreMemories, err = memory.GetCoreEntries(s.Memory, identity)
	if err != nil {
		return nil, err
	}

	recent, err := memory.GetRecentEntries(s.Memory, identity, recentDays, 0)
	if err != nil {
		return nil, err
	}
	for _, entry := range recent {
		if entry.Core {
			continue
		}
		orientation.RecentEntries = append(orientation.RecentEntries, entry)
		if len(orientation.RecentEntries) == recentLimit {
			break
		}
	}

	orientation.LastSent, err = bridge.GetSenderHistory(s.Bridge, identity, sentHistoryLen)
	if err != nil {
		return nil, err
	}

	s.logger().Info("woke",
		zap.String("identity", identity),
		zap.Bool("first_boot", orientation.FirstBoot),
		zap.Int("unread_channels", len(orientation.UnreadChannels)),
	)
	return orientation, nil
}
