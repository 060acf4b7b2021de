package bridge

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spacehq/space/internal/types"
)

// ExportChannel gathers everything needed to render a channel: metadata,
// full message history, and notes.
func ExportChannel(db *sql.DB, channelName string) (*types.Export, error) {
	channel, err := LookupChannel(db, channelName)
	if err != nil {
		return nil, err
	}
	messages, err := GetAllMessages(db, channel.ChannelID)
	if err != nil {
		return nil, err
	}
	notes, err := GetNotes(db, channel.ChannelID)
	if err != nil {
		return nil, err
	}
	return &types.Export{Channel: *channel, Messages: messages, Notes: notes}, nil
}

// RenderExport renders an export as markdown: a header, then messages and
// notes interleaved by created_at. Ties sort messages before notes so the
// note lands next to what it annotates. Deterministic for identical data.
func RenderExport(export *types.Export) string {
	type line struct {
		at     int64
		isNote bool
		text   string
	}

	var lines []line
	for _, msg := range export.Messages {
		text := fmt.Sprintf("**%s** (%s):\n%s\n", msg.AgentID, formatStamp(msg.CreatedAt), msg.Content)
		if msg.Priority == types.PriorityAlert {
			text = fmt.Sprintf("**%s** (%s) [ALERT]:\n%s\n", msg.AgentID, formatStamp(msg.CreatedAt), msg.Content)
		}
		lines = append(lines, line{at: msg.CreatedAt, text: text})
	}
	for _, note := range export.Notes {
		lines = append(lines, line{
			at:     note.CreatedAt,
			isNote: true,
			text:   fmt.Sprintf("> note from %s (%s): %s\n", note.Author, formatStamp(note.CreatedAt), note.Content),
		})
	}
	sort.SliceStable(lines, func(i, j int) bool {
		if lines[i].at != lines[j].at {
			return lines[i].at < lines[j].at
		}
		return !lines[i].isNote && lines[j].isNote
	})

	var b strings.Builder
	fmt.Fprintf(&b, "# #%s\n\n", export.Channel.Name)
	if export.Channel.Topic != nil {
		fmt.Fprintf(&b, "Topic: %s\n\n", *export.Channel.Topic)
	}
	for _, l := range lines {
		b.WriteString(l.text)
		b.WriteString("\n")
	}
	return b.String()
}

func formatStamp(unix int64) string {
	return time.Unix(unix, 0).UTC().Format("2006-01-02 15:04:05")
}
