package bridge

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/gobwas/glob"
	"github.com/spacehq/space/internal/core"
	"github.com/spacehq/space/internal/events"
	"github.com/spacehq/space/internal/types"
)

// RenameResult distinguishes the rename outcomes callers report.
type RenameResult int

const (
	RenameOK RenameResult = iota
	RenameNotFound
	RenameConflict
	RenameArchived
)

// ResolveChannelID returns the id of the active channel with name,
// creating the channel on first reference.
func ResolveChannelID(db *sql.DB, journal *events.Journal, name string) (string, error) {
	id, err := activeChannelID(db, name)
	if err != nil {
		return "", err
	}
	if id != "" {
		return id, nil
	}
	return CreateChannel(db, journal, name, nil)
}

// CreateChannel creates a channel. Conflict when an active channel
// already has the name.
func CreateChannel(db *sql.DB, journal *events.Journal, name string, topic *string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: channel name required", core.ErrValidation)
	}

	existing, err := activeChannelID(db, name)
	if err != nil {
		return "", err
	}
	if existing != "" {
		return "", &core.ConflictError{Kind: "channel", Name: name}
	}

	id, err := core.NewID()
	if err != nil {
		return "", err
	}
	var topicValue any
	if topic != nil && *topic != "" {
		topicValue = *topic
	}
	if _, err := db.Exec(
		"INSERT INTO channels (channel_id, name, topic, created_at) VALUES (?, ?, ?, ?)",
		id, name, topicValue, time.Now().Unix(),
	); err != nil {
		return "", fmt.Errorf("%w: create channel: %v", core.ErrStorage, err)
	}

	if journal != nil {
		_, _ = journal.Emit(Source, "channel.create", "", name)
	}
	return id, nil
}

func activeChannelID(db *sql.DB, name string) (string, error) {
	var id string
	err := db.QueryRow(
		"SELECT channel_id FROM channels WHERE name = ? AND archived_at IS NULL", name,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: look up channel: %v", core.ErrStorage, err)
	}
	return id, nil
}

// GetChannel returns a channel row by id, or nil.
func GetChannel(db *sql.DB, channelID string) (*types.Channel, error) {
	row := db.QueryRow("SELECT "+channelColumns+" FROM channels WHERE channel_id = ?", channelID)
	channel, err := scanChannel(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get channel: %v", core.ErrStorage, err)
	}
	return &channel, nil
}

// LookupChannel returns the active channel by name, or NotFound. Unlike
// ResolveChannelID it never creates.
func LookupChannel(db *sql.DB, name string) (*types.Channel, error) {
	row := db.QueryRow(
		"SELECT "+channelColumns+" FROM channels WHERE name = ? AND archived_at IS NULL", name,
	)
	channel, err := scanChannel(row)
	if err == sql.ErrNoRows {
		return nil, &core.NotFoundError{Kind: "channel", Ref: name}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: look up channel: %v", core.ErrStorage, err)
	}
	return &channel, nil
}

// GetChannelName returns the name for a channel id.
func GetChannelName(db *sql.DB, channelID string) (string, error) {
	channel, err := GetChannel(db, channelID)
	if err != nil {
		return "", err
	}
	if channel == nil {
		return "", &core.NotFoundError{Kind: "channel", Ref: channelID}
	}
	return channel.Name, nil
}

// GetChannelTopic returns the topic, or nil when unset.
func GetChannelTopic(db *sql.DB, channelID string) (*string, error) {
	channel, err := GetChannel(db, channelID)
	if err != nil {
		return nil, err
	}
	if channel == nil {
		return nil, &core.NotFoundError{Kind: "channel", Ref: channelID}
	}
	return channel.Topic, nil
}

// SetTopic sets a channel topic only when currently unset. Returns true
// when the topic was written.
func SetTopic(db *sql.DB, journal *events.Journal, channelID, topic string) (bool, error) {
	result, err := db.Exec(
		"UPDATE channels SET topic = ? WHERE channel_id = ? AND (topic IS NULL OR topic = '')",
		topic, channelID,
	)
	if err != nil {
		return false, fmt.Errorf("%w: set topic: %v", core.ErrStorage, err)
	}
	n, _ := result.RowsAffected()
	if n > 0 && journal != nil {
		_, _ = journal.Emit(Source, "channel.topic", "", topic)
	}
	return n > 0, nil
}

// RenameChannel renames old to new, preserving channel_id and everything
// keyed by it. Refuses archived sources and active-name conflicts.
func RenameChannel(db *sql.DB, journal *events.Journal, old, new string) (RenameResult, error) {
	var id string
	var archivedAt sql.NullInt64
	err := db.QueryRow(
		"SELECT channel_id, archived_at FROM channels WHERE name = ? ORDER BY created_at DESC LIMIT 1", old,
	).Scan(&id, &archivedAt)
	if err == sql.ErrNoRows {
		return RenameNotFound, nil
	}
	if err != nil {
		return RenameNotFound, fmt.Errorf("%w: rename lookup: %v", core.ErrStorage, err)
	}
	if archivedAt.Valid {
		return RenameArchived, nil
	}

	existing, err := activeChannelID(db, new)
	if err != nil {
		return RenameNotFound, err
	}
	if existing != "" {
		return RenameConflict, nil
	}

	if _, err := db.Exec("UPDATE channels SET name = ? WHERE channel_id = ?", new, id); err != nil {
		return RenameNotFound, fmt.Errorf("%w: rename channel: %v", core.ErrStorage, err)
	}
	if journal != nil {
		_, _ = journal.Emit(Source, "channel.rename", "", fmt.Sprintf("%s -> %s", old, new))
	}
	return RenameOK, nil
}

// ArchiveChannel soft-archives a channel. Archived channels drop out of
// recv, alerts, and default listings.
func ArchiveChannel(db *sql.DB, journal *events.Journal, channelID string) error {
	result, err := db.Exec(
		"UPDATE channels SET archived_at = ? WHERE channel_id = ? AND archived_at IS NULL",
		time.Now().Unix(), channelID,
	)
	if err != nil {
		return fmt.Errorf("%w: archive channel: %v", core.ErrStorage, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return &core.NotFoundError{Kind: "channel", Ref: channelID}
	}
	if journal != nil {
		_, _ = journal.Emit(Source, "channel.archive", "", channelID)
	}
	return nil
}

// DeleteChannel hard-deletes a channel and cascades to its messages,
// bookmarks, and notes in one transaction. The administrative path;
// archival is the normal deletion.
func DeleteChannel(db *sql.DB, journal *events.Journal, channelID string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("%w: begin delete: %v", core.ErrStorage, err)
	}

	result, err := tx.Exec("DELETE FROM channels WHERE channel_id = ?", channelID)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("%w: delete channel: %v", core.ErrStorage, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		_ = tx.Rollback()
		return &core.NotFoundError{Kind: "channel", Ref: channelID}
	}

	for _, stmt := range []string{
		"DELETE FROM messages WHERE channel_id = ?",
		"DELETE FROM bookmarks WHERE channel_id = ?",
		"DELETE FROM notes WHERE channel_id = ?",
	} {
		if _, err := tx.Exec(stmt, channelID); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("%w: cascade delete: %v", core.ErrStorage, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit delete: %v", core.ErrStorage, err)
	}
	if journal != nil {
		_, _ = journal.Emit(Source, "channel.delete", "", channelID)
	}
	return nil
}

// FetchOptions narrows FetchChannels.
type FetchOptions struct {
	AgentID         string // unread counts are computed for this agent
	Since           int64  // only channels with activity at/after this time
	IncludeArchived bool
	UnreadOnly      bool
	NamePattern     string // glob over channel names
}

// FetchChannels returns channel views ordered by created_at descending.
func FetchChannels(db *sql.DB, opts FetchOptions) ([]types.ChannelView, error) {
	query := "SELECT " + channelColumns + " FROM channels"
	if !opts.IncludeArchived {
		query += " WHERE archived_at IS NULL"
	}
	query += " ORDER BY created_at DESC"

	rows, err := db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch channels: %v", core.ErrStorage, err)
	}
	defer rows.Close()

	var channels []types.Channel
	for rows.Next() {
		channel, err := scanChannel(rows)
		if err != nil {
			return nil, err
		}
		channels = append(channels, channel)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var matcher glob.Glob
	if opts.NamePattern != "" {
		matcher, err = glob.Compile(opts.NamePattern)
		if err != nil {
			return nil, fmt.Errorf("%w: bad name pattern %q: %v", core.ErrValidation, opts.NamePattern, err)
		}
	}

	var views []types.ChannelView
	for _, channel := range channels {
		if matcher != nil && !matcher.Match(channel.Name) {
			continue
		}

		view, err := buildChannelView(db, channel, opts.AgentID)
		if err != nil {
			return nil, err
		}
		if opts.Since > 0 {
			if view.LastActivity == nil || *view.LastActivity < opts.Since {
				continue
			}
		}
		if opts.UnreadOnly && view.UnreadCount == 0 {
			continue
		}
		views = append(views, view)
	}
	return views, nil
}

func buildChannelView(db *sql.DB, channel types.Channel, agentID string) (types.ChannelView, error) {
	view := types.ChannelView{Channel: channel}

	rows, err := db.Query(
		"SELECT DISTINCT agent_id FROM messages WHERE channel_id = ? ORDER BY agent_id",
		channel.ChannelID,
	)
	if err != nil {
		return view, fmt.Errorf("%w: channel participants: %v", core.ErrStorage, err)
	}
	for rows.Next() {
		var participant string
		if err := rows.Scan(&participant); err != nil {
			rows.Close()
			return view, err
		}
		view.Participants = append(view.Participants, participant)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return view, err
	}
	rows.Close()

	var lastActivity sql.NullInt64
	err = db.QueryRow(
		"SELECT COUNT(*), MAX(created_at) FROM messages WHERE channel_id = ?",
		channel.ChannelID,
	).Scan(&view.MessageCount, &lastActivity)
	if err != nil {
		return view, fmt.Errorf("%w: channel activity: %v", core.ErrStorage, err)
	}
	if lastActivity.Valid {
		view.LastActivity = &lastActivity.Int64
	}

	if err := db.QueryRow(
		"SELECT COUNT(*) FROM notes WHERE channel_id = ?", channel.ChannelID,
	).Scan(&view.NotesCount); err != nil {
		return view, fmt.Errorf("%w: channel notes: %v", core.ErrStorage, err)
	}

	// Archived channels hide unread counts.
	if agentID != "" && channel.ArchivedAt == nil {
		unread, err := unreadCount(db, channel.ChannelID, agentID)
		if err != nil {
			return view, err
		}
		view.UnreadCount = unread
	}
	return view, nil
}

func unreadCount(db *sql.DB, channelID, agentID string) (int64, error) {
	bookmark, err := GetBookmark(db, agentID, channelID)
	if err != nil {
		return 0, err
	}

	query := "SELECT COUNT(*) FROM messages WHERE channel_id = ?"
	params := []any{channelID}
	if bookmark != nil {
		query += " AND message_id > ?"
		params = append(params, bookmark.LastSeenID)
	}

	var count int64
	if err := db.QueryRow(query, params...).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: unread count: %v", core.ErrStorage, err)
	}
	return count, nil
}

func scanChannel(scanner interface{ Scan(dest ...any) error }) (types.Channel, error) {
	var channel types.Channel
	var topic sql.NullString
	var archivedAt sql.NullInt64
	if err := scanner.Scan(&channel.ChannelID, &channel.Name, &topic, &channel.CreatedAt, &archivedAt); err != nil {
		return types.Channel{}, err
	}
	if topic.Valid && topic.String != "" {
		channel.Topic = &topic.String
	}
	if archivedAt.Valid {
		channel.ArchivedAt = &archivedAt.Int64
	}
	return channel, nil
}

// channelName resolves a channel id to its name through a small cache,
// used by alert listings that touch many channels.
func channelName(db *sql.DB, cache map[string]string, channelID string) (string, error) {
	if name, ok := cache[channelID]; ok {
		return name, nil
	}
	name, err := GetChannelName(db, channelID)
	if err != nil {
		return "", err
	}
	cache[channelID] = name
	return name, nil
}
