// Package types holds the records shared across the space subsystems.
package types

// SystemAgent is the reserved sender identity that never triggers workers.
const SystemAgent = "system"

// Agent is a registered identity. Name is not unique; aliases map extra
// names onto the same agent_id, and CanonicalID merges identities.
type Agent struct {
	AgentID         string  `json:"agent_id"`
	Name            *string `json:"name,omitempty"`
	SelfDescription *string `json:"self_description,omitempty"`
	CanonicalID     *string `json:"canonical_id,omitempty"`
	CreatedAt       int64   `json:"created_at"`
	ArchivedAt      *int64  `json:"archived_at,omitempty"`
}

// Constitution is content-addressed identity text.
type Constitution struct {
	Hash      string `json:"hash"`
	Content   string `json:"content"`
	CreatedAt int64  `json:"created_at"`
}

// Channel is a named message stream. Active iff ArchivedAt is nil.
type Channel struct {
	ChannelID  string  `json:"channel_id"`
	Name       string  `json:"name"`
	Topic      *string `json:"topic,omitempty"`
	CreatedAt  int64   `json:"created_at"`
	ArchivedAt *int64  `json:"archived_at,omitempty"`
}

// ChannelView is a channel plus per-agent aggregates for listings.
type ChannelView struct {
	Channel
	Participants []string `json:"participants"`
	MessageCount int64    `json:"message_count"`
	LastActivity *int64   `json:"last_activity,omitempty"`
	UnreadCount  int64    `json:"unread_count"`
	NotesCount   int64    `json:"notes_count"`
}

// Message priorities.
const (
	PriorityNormal = "normal"
	PriorityAlert  = "alert"
)

// Message is one channel entry. MessageID is a UUIDv7, so id order is
// insertion order.
type Message struct {
	MessageID string `json:"message_id"`
	ChannelID string `json:"channel_id"`
	AgentID   string `json:"agent_id"`
	Content   string `json:"content"`
	Priority  string `json:"priority"`
	CreatedAt int64  `json:"created_at"`
}

// Alert is an unread alert-priority message with its channel name.
type Alert struct {
	Message
	ChannelName string `json:"channel_name"`
}

// Bookmark is a per-agent read cursor into a channel.
type Bookmark struct {
	AgentID    string `json:"agent_id"`
	ChannelID  string `json:"channel_id"`
	LastSeenID string `json:"last_seen_id"`
	UpdatedAt  int64  `json:"updated_at"`
}

// Note is a channel annotation outside the message stream.
type Note struct {
	NoteID    string `json:"note_id"`
	ChannelID string `json:"channel_id"`
	Author    string `json:"author"`
	Content   string `json:"content"`
	CreatedAt int64  `json:"created_at"`
}

// Event is one append-only journal row.
type Event struct {
	EventID   string  `json:"event_id"`
	Source    string  `json:"source"`
	EventType string  `json:"event_type"`
	AgentID   *string `json:"agent_id,omitempty"`
	Data      *string `json:"data,omitempty"`
	Timestamp int64   `json:"timestamp"`
}

// Memory sources.
const (
	MemorySourceManual     = "manual"
	MemorySourceCheckpoint = "checkpoint"
)

// Memory is a per-agent entry with supersession links. Supersedes holds
// comma-joined predecessor ids; SupersededBy the single successor.
type Memory struct {
	MemoryID      string  `json:"memory_id"`
	AgentID       string  `json:"agent_id"`
	Topic         string  `json:"topic"`
	Message       string  `json:"message"`
	Timestamp     int64   `json:"timestamp"`
	CreatedAt     int64   `json:"created_at"`
	ArchivedAt    *int64  `json:"archived_at,omitempty"`
	Core          bool    `json:"core"`
	Source        string  `json:"source"`
	BridgeChannel *string `json:"bridge_channel,omitempty"`
	CodeAnchors   *string `json:"code_anchors,omitempty"`
	SynthesisNote *string `json:"synthesis_note,omitempty"`
	Supersedes    string  `json:"supersedes"`
	SupersededBy  *string `json:"superseded_by,omitempty"`
}

// Knowledge is a shared, domain-scoped, contributor-attributed entry.
type Knowledge struct {
	KnowledgeID string   `json:"knowledge_id"`
	Domain      string   `json:"domain"`
	AgentID     string   `json:"agent_id"`
	Content     string   `json:"content"`
	Confidence  *float64 `json:"confidence,omitempty"`
	CreatedAt   int64    `json:"created_at"`
	ArchivedAt  *int64   `json:"archived_at,omitempty"`
}

// Task statuses.
const (
	TaskOpen     = "open"
	TaskClaimed  = "claimed"
	TaskComplete = "complete"
	TaskBlocked  = "blocked"
)

// Task is one node of the ops task tree.
type Task struct {
	TaskID      string  `json:"task_id"`
	ParentID    *string `json:"parent_id,omitempty"`
	Description string  `json:"description"`
	Status      string  `json:"status"`
	AssignedTo  *string `json:"assigned_to,omitempty"`
	Handover    *string `json:"handover,omitempty"`
	ChannelID   *string `json:"channel_id,omitempty"`
	CreatedAt   int64   `json:"created_at"`
}

// Export is a deterministic channel rendering input: channel metadata plus
// messages and notes interleaved by created_at.
type Export struct {
	Channel  Channel   `json:"channel"`
	Messages []Message `json:"messages"`
	Notes    []Note    `json:"notes"`
}
