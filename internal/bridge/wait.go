package bridge

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/spacehq/space/internal/core"
	"github.com/spacehq/space/internal/events"
	"github.com/spacehq/space/internal/types"
)

// WaitForMessages blocks until the agent has unread messages in the
// channel, then consumes them like RecvUpdates. It watches the bridge
// database files for writes rather than polling hot; a slow fallback
// tick covers writers on filesystems where fsnotify misses events.
// Returns ErrTimeout when ctx expires first.
func WaitForMessages(ctx context.Context, ws core.Workspace, db *sql.DB, journal *events.Journal, channelName, agentID string, limit int) ([]types.Message, error) {
	messages, err := RecvUpdates(db, journal, channelName, agentID, limit)
	if err != nil {
		return nil, err
	}
	if len(messages) > 0 {
		return messages, nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: watch bridge: %v", core.ErrStorage, err)
	}
	defer watcher.Close()

	// Watch the directory: the -wal file appears and disappears across
	// checkpoints, so watching it directly would drop the watch.
	if err := watcher.Add(ws.SpaceDir); err != nil {
		return nil, fmt.Errorf("%w: watch %s: %v", core.ErrStorage, ws.SpaceDir, err)
	}

	fallback := time.NewTicker(2 * time.Second)
	defer fallback.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: no new messages in #%s", core.ErrTimeout, channelName)
		case event := <-watcher.Events:
			if !strings.Contains(event.Name, "bridge.db") {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
		case err := <-watcher.Errors:
			if err != nil {
				return nil, fmt.Errorf("%w: watch bridge: %v", core.ErrStorage, err)
			}
			continue
		case <-fallback.C:
		}

		messages, err := RecvUpdates(db, journal, channelName, agentID, limit)
		if err != nil {
			return nil, err
		}
		if len(messages) > 0 {
			return messages, nil
		}
	}
}
