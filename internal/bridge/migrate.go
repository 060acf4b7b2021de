package bridge

import (
	"database/sql"
	"fmt"

	"github.com/spacehq/space/internal/core"
)

// migrateMessageTextIDs converts a legacy messages table keyed by an
// autoincrement integer into text UUIDv7 ids, preserving insertion order
// and rewriting bookmark pointers. No-op on current schemas.
func migrateMessageTextIDs(tx *sql.Tx) error {
	legacy, err := hasIntegerMessageIDs(tx)
	if err != nil {
		return err
	}
	if !legacy {
		return nil
	}

	rows, err := tx.Query(`
		SELECT id, channel_id, agent_id, content, priority, created_at
		FROM messages
		ORDER BY id ASC
	`)
	if err != nil {
		return err
	}
	defer rows.Close()

	type legacyMessage struct {
		ID        int64
		ChannelID string
		AgentID   string
		Content   string
		Priority  string
		CreatedAt int64
	}
	var messages []legacyMessage
	for rows.Next() {
		var msg legacyMessage
		if err := rows.Scan(&msg.ID, &msg.ChannelID, &msg.AgentID, &msg.Content, &msg.Priority, &msg.CreatedAt); err != nil {
			return err
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if _, err := tx.Exec(`
		CREATE TABLE messages_new (
			message_id TEXT PRIMARY KEY,
			channel_id TEXT NOT NULL,
			agent_id TEXT NOT NULL,
			content TEXT NOT NULL,
			priority TEXT NOT NULL DEFAULT 'normal',
			created_at INTEGER NOT NULL
		);
	`); err != nil {
		return err
	}

	// UUIDv7s are generated in id order, so lexicographic order of the new
	// ids preserves the old insertion order.
	idMap := make(map[int64]string, len(messages))
	for _, msg := range messages {
		newID, err := core.NewID()
		if err != nil {
			return err
		}
		idMap[msg.ID] = newID
		if _, err := tx.Exec(
			"INSERT INTO messages_new (message_id, channel_id, agent_id, content, priority, created_at) VALUES (?, ?, ?, ?, ?, ?)",
			newID, msg.ChannelID, msg.AgentID, msg.Content, msg.Priority, msg.CreatedAt,
		); err != nil {
			return err
		}
	}

	if _, err := tx.Exec("DROP TABLE messages"); err != nil {
		return err
	}
	if _, err := tx.Exec("ALTER TABLE messages_new RENAME TO messages"); err != nil {
		return err
	}
	for _, stmt := range []string{
		"CREATE INDEX IF NOT EXISTS idx_messages_channel ON messages(channel_id)",
		"CREATE INDEX IF NOT EXISTS idx_messages_agent ON messages(agent_id)",
		"CREATE INDEX IF NOT EXISTS idx_messages_priority ON messages(priority)",
	} {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}

	return rewriteBookmarks(tx, idMap)
}

// hasIntegerMessageIDs reports whether messages still uses the legacy
// integer primary key.
func hasIntegerMessageIDs(tx *sql.Tx) (bool, error) {
	rows, err := tx.Query("PRAGMA table_info(messages)")
	if err != nil {
		return false, err
	}
	defer rows.Close()

	hasLegacyID := false
	hasTextID := false
	for rows.Next() {
		var cid, notNull, pk int
		var name, colType string
		var defaultValue sql.NullString
		if err := rows.Scan(&cid, &name, &colType, &notNull, &defaultValue, &pk); err != nil {
			return false, err
		}
		switch name {
		case "id":
			hasLegacyID = pk > 0
		case "message_id":
			hasTextID = true
		}
	}
	if err := rows.Err(); err != nil {
		return false, err
	}
	return hasLegacyID && !hasTextID, nil
}

// rewriteBookmarks repoints last_seen_id values at the new text ids.
func rewriteBookmarks(tx *sql.Tx, idMap map[int64]string) error {
	rows, err := tx.Query("SELECT agent_id, channel_id, last_seen_id FROM bookmarks")
	if err != nil {
		return err
	}
	defer rows.Close()

	type legacyBookmark struct {
		AgentID    string
		ChannelID  string
		LastSeenID string
	}
	var bookmarks []legacyBookmark
	for rows.Next() {
		var bm legacyBookmark
		if err := rows.Scan(&bm.AgentID, &bm.ChannelID, &bm.LastSeenID); err != nil {
			return err
		}
		bookmarks = append(bookmarks, bm)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, bm := range bookmarks {
		var legacyID int64
		if _, err := fmt.Sscanf(bm.LastSeenID, "%d", &legacyID); err != nil {
			continue
		}
		newID, ok := idMap[legacyID]
		if !ok {
			continue
		}
		if _, err := tx.Exec(
			"UPDATE bookmarks SET last_seen_id = ? WHERE agent_id = ? AND channel_id = ?",
			newID, bm.AgentID, bm.ChannelID,
		); err != nil {
			return err
		}
	}
	return nil
}
