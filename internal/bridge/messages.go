package bridge

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/spacehq/space/internal/core"
	"github.com/spacehq/space/internal/events"
	"github.com/spacehq/space/internal/types"
)

// CreateMessage appends a message to the active channel with this name,
// creating the channel on first reference. A send under an archived
// channel's name starts a fresh channel: name uniqueness covers only
// active channels.
func CreateMessage(db *sql.DB, journal *events.Journal, channelName, agentID, content, priority string) (*types.Message, error) {
	priority, err := checkSend(content, priority)
	if err != nil {
		return nil, err
	}
	channelID, err := ResolveChannelID(db, journal, channelName)
	if err != nil {
		return nil, err
	}
	return insertMessage(db, journal, channelID, channelName, agentID, content, priority)
}

// CreateMessageInChannel appends a message to a channel known by id.
// The detached worker posts through this so a rename between dispatch
// and run cannot fork a new channel under the stale name.
func CreateMessageInChannel(db *sql.DB, journal *events.Journal, channelID, agentID, content, priority string) (*types.Message, error) {
	priority, err := checkSend(content, priority)
	if err != nil {
		return nil, err
	}
	channel, err := GetChannel(db, channelID)
	if err != nil {
		return nil, err
	}
	if channel == nil {
		return nil, &core.NotFoundError{Kind: "channel", Ref: channelID}
	}
	if channel.ArchivedAt != nil {
		return nil, fmt.Errorf("%w: channel %s is archived", core.ErrConflict, channel.Name)
	}
	return insertMessage(db, journal, channel.ChannelID, channel.Name, agentID, content, priority)
}

func checkSend(content, priority string) (string, error) {
	if content == "" {
		return "", fmt.Errorf("%w: message content required", core.ErrValidation)
	}
	switch priority {
	case "":
		return types.PriorityNormal, nil
	case types.PriorityNormal, types.PriorityAlert:
		return priority, nil
	default:
		return "", fmt.Errorf("%w: unknown priority %q", core.ErrValidation, priority)
	}
}

func insertMessage(db *sql.DB, journal *events.Journal, channelID, channelName, agentID, content, priority string) (*types.Message, error) {
	id, err := core.NewID()
	if err != nil {
		return nil, err
	}
	msg := types.Message{
		MessageID: id,
		ChannelID: channelID,
		AgentID:   agentID,
		Content:   content,
		Priority:  priority,
		CreatedAt: time.Now().Unix(),
	}
	if _, err := db.Exec(
		"INSERT INTO messages ("+messageColumns+") VALUES (?, ?, ?, ?, ?, ?)",
		msg.MessageID, msg.ChannelID, msg.AgentID, msg.Content, msg.Priority, msg.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("%w: create message: %v", core.ErrStorage, err)
	}

	if journal != nil {
		_, _ = journal.Emit(Source, "message.send", agentID, channelName)
	}
	return &msg, nil
}

// GetMessage returns one message by id, or nil.
func GetMessage(db *sql.DB, messageID string) (*types.Message, error) {
	row := db.QueryRow("SELECT "+messageColumns+" FROM messages WHERE message_id = ?", messageID)
	msg, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get message: %v", core.ErrStorage, err)
	}
	return &msg, nil
}

// GetNewMessages returns messages in a channel past the agent's bookmark,
// oldest first, without advancing the bookmark. Archived channels have no
// new messages; their backlog stays reachable through export. The summary
// channel is special: it always yields just the latest message ever, so
// readers see the current summary rather than a backlog.
func GetNewMessages(db *sql.DB, channelID, agentID string, limit int) ([]types.Message, error) {
	channel, err := GetChannel(db, channelID)
	if err != nil {
		return nil, err
	}
	if channel == nil {
		return nil, &core.NotFoundError{Kind: "channel", Ref: channelID}
	}
	if channel.ArchivedAt != nil {
		return nil, nil
	}
	if channel.Name == SummaryChannelName {
		return latestMessage(db, channelID)
	}

	bookmark, err := GetBookmark(db, agentID, channelID)
	if err != nil {
		return nil, err
	}

	query := "SELECT " + messageColumns + " FROM messages WHERE channel_id = ?"
	params := []any{channelID}
	if bookmark != nil {
		query += " AND message_id > ?"
		params = append(params, bookmark.LastSeenID)
	}
	query += " ORDER BY message_id ASC"
	if limit > 0 {
		query += " LIMIT ?"
		params = append(params, limit)
	}
	return queryMessages(db, query, params...)
}

func latestMessage(db *sql.DB, channelID string) ([]types.Message, error) {
	return queryMessages(db,
		"SELECT "+messageColumns+" FROM messages WHERE channel_id = ? ORDER BY message_id DESC LIMIT 1",
		channelID)
}

// GetAllMessages returns the full channel history oldest first.
func GetAllMessages(db *sql.DB, channelID string) ([]types.Message, error) {
	return queryMessages(db,
		"SELECT "+messageColumns+" FROM messages WHERE channel_id = ? ORDER BY message_id ASC",
		channelID)
}

// GetSenderHistory returns an agent's most recent messages across all
// channels, newest first.
func GetSenderHistory(db *sql.DB, agentID string, limit int) ([]types.Message, error) {
	query := "SELECT " + messageColumns + " FROM messages WHERE agent_id = ? ORDER BY message_id DESC"
	params := []any{agentID}
	if limit > 0 {
		query += " LIMIT ?"
		params = append(params, limit)
	}
	return queryMessages(db, query, params...)
}

// GetBookmark returns the agent's cursor for a channel, or nil when the
// agent has never read it.
func GetBookmark(db *sql.DB, agentID, channelID string) (*types.Bookmark, error) {
	var bm types.Bookmark
	err := db.QueryRow(
		"SELECT agent_id, channel_id, last_seen_id, updated_at FROM bookmarks WHERE agent_id = ? AND channel_id = ?",
		agentID, channelID,
	).Scan(&bm.AgentID, &bm.ChannelID, &bm.LastSeenID, &bm.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get bookmark: %v", core.ErrStorage, err)
	}
	return &bm, nil
}

// SetBookmark advances the agent's cursor to lastSeenID. Advancement is
// monotonic: a stale pointer never moves the cursor backwards.
func SetBookmark(db *sql.DB, agentID, channelID, lastSeenID string) error {
	return setBookmark(db, db.Exec, agentID, channelID, lastSeenID)
}

type execFunc func(query string, args ...any) (sql.Result, error)

func setBookmark(db *sql.DB, exec execFunc, agentID, channelID, lastSeenID string) error {
	_, err := exec(`
		INSERT INTO bookmarks (agent_id, channel_id, last_seen_id, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(agent_id, channel_id) DO UPDATE SET
			last_seen_id = excluded.last_seen_id,
			updated_at = excluded.updated_at
		WHERE excluded.last_seen_id > bookmarks.last_seen_id
	`, agentID, channelID, lastSeenID, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("%w: set bookmark: %v", core.ErrStorage, err)
	}
	return nil
}

// RecvUpdates reads an agent's unread messages in a channel and advances
// the bookmark in the same transaction, so two concurrent receivers never
// both consume the same batch.
func RecvUpdates(db *sql.DB, journal *events.Journal, channelName, agentID string, limit int) ([]types.Message, error) {
	channel, err := LookupChannel(db, channelName)
	if err != nil {
		return nil, err
	}
	if channel.Name == SummaryChannelName {
		return latestMessage(db, channel.ChannelID)
	}

	tx, err := db.Begin()
	if err != nil {
		return nil, fmt.Errorf("%w: begin recv: %v", core.ErrStorage, err)
	}
	defer tx.Rollback()

	var lastSeen string
	err = tx.QueryRow(
		"SELECT last_seen_id FROM bookmarks WHERE agent_id = ? AND channel_id = ?",
		agentID, channel.ChannelID,
	).Scan(&lastSeen)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("%w: recv bookmark: %v", core.ErrStorage, err)
	}

	query := "SELECT " + messageColumns + " FROM messages WHERE channel_id = ?"
	params := []any{channel.ChannelID}
	if lastSeen != "" {
		query += " AND message_id > ?"
		params = append(params, lastSeen)
	}
	query += " ORDER BY message_id ASC"
	if limit > 0 {
		query += " LIMIT ?"
		params = append(params, limit)
	}

	rows, err := tx.Query(query, params...)
	if err != nil {
		return nil, fmt.Errorf("%w: recv messages: %v", core.ErrStorage, err)
	}
	messages, err := collectMessages(rows)
	if err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return nil, nil
	}

	last := messages[len(messages)-1].MessageID
	if err := setBookmark(db, tx.Exec, agentID, channel.ChannelID, last); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit recv: %v", core.ErrStorage, err)
	}

	if journal != nil {
		_, _ = journal.Emit(Source, "message.recv", agentID, channelName)
	}
	return messages, nil
}

// GetAlerts returns unread alert-priority messages for an agent across
// every active channel, oldest first, tagged with channel names. Reading
// alerts does not advance bookmarks.
func GetAlerts(db *sql.DB, agentID string) ([]types.Alert, error) {
	rows, err := db.Query(`
		SELECT `+messageColumns+` FROM messages m
		WHERE m.priority = ?
		  AND m.agent_id != ?
		  AND m.channel_id IN (SELECT channel_id FROM channels WHERE archived_at IS NULL)
		  AND m.message_id > COALESCE(
		        (SELECT last_seen_id FROM bookmarks b
		         WHERE b.agent_id = ? AND b.channel_id = m.channel_id), '')
		ORDER BY m.message_id ASC
	`, types.PriorityAlert, agentID, agentID)
	if err != nil {
		return nil, fmt.Errorf("%w: get alerts: %v", core.ErrStorage, err)
	}
	messages, err := collectMessages(rows)
	if err != nil {
		return nil, err
	}

	names := map[string]string{}
	var alerts []types.Alert
	for _, msg := range messages {
		name, err := channelName(db, names, msg.ChannelID)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, types.Alert{Message: msg, ChannelName: name})
	}
	return alerts, nil
}

func queryMessages(db *sql.DB, query string, params ...any) ([]types.Message, error) {
	rows, err := db.Query(query, params...)
	if err != nil {
		return nil, fmt.Errorf("%w: query messages: %v", core.ErrStorage, err)
	}
	return collectMessages(rows)
}

func collectMessages(rows *sql.Rows) ([]types.Message, error) {
	defer rows.Close()
	var messages []types.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func scanMessage(scanner interface{ Scan(dest ...any) error }) (types.Message, error) {
	var msg types.Message
	err := scanner.Scan(&msg.MessageID, &msg.ChannelID, &msg.AgentID, &msg.Content, &msg.Priority, &msg.CreatedAt)
	return msg, err
}
