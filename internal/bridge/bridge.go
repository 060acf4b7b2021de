// Package bridge is the durable channel message bus: named channels,
// messages with alert priority, per-agent bookmarks, notes, archival,
// and export. All coordination between agent processes goes through
// this store; there is no in-process broker.
package bridge

import (
	"github.com/spacehq/space/internal/store"
)

// DBName is the logical database name.
const DBName = "bridge"

// Source is the journal source for bridge mutations.
const Source = "bridge"

// SummaryChannelName is special-cased by GetNewMessages: it returns only
// the latest message ever, regardless of bookmarks. Sleep summaries rely
// on this.
const SummaryChannelName = "summary"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS channels (
  channel_id TEXT PRIMARY KEY,         -- uuid7
  name TEXT NOT NULL,
  topic TEXT,
  created_at INTEGER NOT NULL,
  archived_at INTEGER                  -- soft archive; active iff null
);

CREATE INDEX IF NOT EXISTS idx_channels_name ON channels(name);

CREATE TABLE IF NOT EXISTS messages (
  message_id TEXT PRIMARY KEY,         -- uuid7; id order is insertion order
  channel_id TEXT NOT NULL,
  agent_id TEXT NOT NULL,              -- sender agent_id or 'system'
  content TEXT NOT NULL,
  priority TEXT NOT NULL DEFAULT 'normal',  -- 'normal' or 'alert'
  created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_channel ON messages(channel_id);
CREATE INDEX IF NOT EXISTS idx_messages_agent ON messages(agent_id);
CREATE INDEX IF NOT EXISTS idx_messages_priority ON messages(priority);

CREATE TABLE IF NOT EXISTS bookmarks (
  agent_id TEXT NOT NULL,
  channel_id TEXT NOT NULL,
  last_seen_id TEXT NOT NULL,          -- most recent observed message_id
  updated_at INTEGER NOT NULL,
  PRIMARY KEY (agent_id, channel_id)
);

CREATE TABLE IF NOT EXISTS notes (
  note_id TEXT PRIMARY KEY,
  channel_id TEXT NOT NULL,
  author TEXT NOT NULL,
  content TEXT NOT NULL,
  created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_notes_channel ON notes(channel_id);
`

func init() {
	store.Register(store.Definition{
		Name:   DBName,
		File:   "bridge.db",
		Schema: schemaSQL,
		Migrations: []store.Migration{
			{Name: "0001_message_text_ids", Fn: migrateMessageTextIDs},
		},
	})
}

const messageColumns = "message_id, channel_id, agent_id, content, priority, created_at"
const channelColumns = "channel_id, name, topic, created_at, archived_at"
