package bridge

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/spacehq/space/internal/core"
	"github.com/spacehq/space/internal/events"
	"github.com/spacehq/space/internal/store"
	"github.com/spacehq/space/internal/types"
)

// AddNote attaches an annotation to a channel outside the message stream.
// Notes never move bookmarks or trigger workers.
func AddNote(db *sql.DB, journal *events.Journal, channelName, author, content string) (*types.Note, error) {
	if content == "" {
		return nil, fmt.Errorf("%w: note content required", core.ErrValidation)
	}

	channelID, err := ResolveChannelID(db, journal, channelName)
	if err != nil {
		return nil, err
	}
	id, err := core.NewID()
	if err != nil {
		return nil, err
	}

	note := types.Note{
		NoteID:    id,
		ChannelID: channelID,
		Author:    author,
		Content:   content,
		CreatedAt: time.Now().Unix(),
	}
	if _, err := db.Exec(
		"INSERT INTO notes (note_id, channel_id, author, content, created_at) VALUES (?, ?, ?, ?, ?)",
		note.NoteID, note.ChannelID, note.Author, note.Content, note.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("%w: add note: %v", core.ErrStorage, err)
	}

	if journal != nil {
		_, _ = journal.Emit(Source, "note.add", author, channelName)
	}
	return &note, nil
}

// GetNotes returns a channel's notes oldest first.
func GetNotes(db *sql.DB, channelID string) ([]types.Note, error) {
	rows, err := db.Query(
		"SELECT note_id, channel_id, author, content, created_at FROM notes WHERE channel_id = ? ORDER BY note_id ASC",
		channelID,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: get notes: %v", core.ErrStorage, err)
	}
	defer rows.Close()

	var notes []types.Note
	for rows.Next() {
		var note types.Note
		if err := rows.Scan(&note.NoteID, &note.ChannelID, &note.Author, &note.Content, &note.CreatedAt); err != nil {
			return nil, err
		}
		notes = append(notes, note)
	}
	return notes, rows.Err()
}

// DeleteNote removes one note by full or short id.
func DeleteNote(db *sql.DB, journal *events.Journal, noteRef string) error {
	noteID, err := store.ResolveShort(db, "notes", "note_id", "note", noteRef)
	if err != nil {
		return err
	}
	if _, err := db.Exec("DELETE FROM notes WHERE note_id = ?", noteID); err != nil {
		return fmt.Errorf("%w: delete note: %v", core.ErrStorage, err)
	}
	if journal != nil {
		_, _ = journal.Emit(Source, "note.delete", "", noteID)
	}
	return nil
}
