// Package ops is the task tree: hierarchical work items agents create,
// claim, and complete, with blocked state and parent reduction. It
// follows the same store discipline as the channel bus.
package ops

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/spacehq/space/internal/core"
	"github.com/spacehq/space/internal/events"
	"github.com/spacehq/space/internal/store"
	"github.com/spacehq/space/internal/types"
)

// DBName is the logical database name.
const DBName = "ops"

// Source is the journal source for task transitions.
const Source = "ops"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS tasks (
  task_id TEXT PRIMARY KEY,            -- uuid7
  parent_id TEXT,                      -- null for roots
  description TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'open', -- open, claimed, complete, blocked
  assigned_to TEXT,                    -- claiming identity
  handover TEXT,                       -- notes left on completion or block
  channel_id TEXT,                     -- optional bridge channel link
  created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tasks_parent ON tasks(parent_id);
CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
`

func init() {
	store.Register(store.Definition{
		Name:   DBName,
		File:   "ops.db",
		Schema: schemaSQL,
	})
}

const taskColumns = "task_id, parent_id, description, status, assigned_to, handover, channel_id, created_at"

// CreateTask adds a task, optionally under a parent and linked to a
// channel.
func CreateTask(db *sql.DB, journal *events.Journal, description, parentRef, channelID string) (*types.Task, error) {
	if description == "" {
		return nil, fmt.Errorf("%w: task description required", core.ErrValidation)
	}

	var parentID *string
	if parentRef != "" {
		full, err := ResolveID(db, parentRef)
		if err != nil {
			return nil, err
		}
		parentID = &full
	}

	id, err := core.NewID()
	if err != nil {
		return nil, err
	}
	task := types.Task{
		TaskID:      id,
		ParentID:    parentID,
		Description: description,
		Status:      types.TaskOpen,
		CreatedAt:   time.Now().Unix(),
	}
	if channelID != "" {
		task.ChannelID = &channelID
	}

	var parentValue, channelValue any
	if task.ParentID != nil {
		parentValue = *task.ParentID
	}
	if task.ChannelID != nil {
		channelValue = *task.ChannelID
	}
	if _, err := db.Exec(
		"INSERT INTO tasks ("+taskColumns+") VALUES (?, ?, ?, ?, NULL, NULL, ?, ?)",
		task.TaskID, parentValue, task.Description, task.Status, channelValue, task.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("%w: create task: %v", core.ErrStorage, err)
	}

	if journal != nil {
		_, _ = journal.Emit(Source, "task.create", "", core.ShortID(id))
	}
	return &task, nil
}

// ResolveID expands a short task id to the full id.
func ResolveID(db *sql.DB, ref string) (string, error) {
	return store.ResolveShort(db, "tasks", "task_id", "task", ref)
}

// GetTask returns one task by full or short id.
func GetTask(db *sql.DB, ref string) (*types.Task, error) {
	id, err := ResolveID(db, ref)
	if err != nil {
		return nil, err
	}
	row := db.QueryRow("SELECT "+taskColumns+" FROM tasks WHERE task_id = ?", id)
	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, &core.NotFoundError{Kind: "task", Ref: ref}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get task: %v", core.ErrStorage, err)
	}
	return &task, nil
}

// ListTasks returns tasks, optionally filtered by status, roots first by
// creation order.
func ListTasks(db *sql.DB, status string) ([]types.Task, error) {
	query := "SELECT " + taskColumns + " FROM tasks"
	var params []any
	if status != "" {
		query += " WHERE status = ?"
		params = append(params, status)
	}
	query += " ORDER BY parent_id IS NOT NULL, task_id ASC"
	return queryTasks(db, query, params...)
}

// Children returns a task's direct children in creation order.
func Children(db *sql.DB, taskID string) ([]types.Task, error) {
	return queryTasks(db,
		"SELECT "+taskColumns+" FROM tasks WHERE parent_id = ? ORDER BY task_id ASC", taskID)
}

// ClaimTask assigns an open or blocked task to an identity.
func ClaimTask(db *sql.DB, journal *events.Journal, ref, identity string) (*types.Task, error) {
	if identity == "" {
		return nil, fmt.Errorf("%w: identity required", core.ErrValidation)
	}
	task, err := GetTask(db, ref)
	if err != nil {
		return nil, err
	}
	if task.Status == types.TaskComplete {
		return nil, fmt.Errorf("%w: task %s is complete", core.ErrConflict, core.ShortID(task.TaskID))
	}
	if task.Status == types.TaskClaimed {
		return nil, fmt.Errorf("%w: task %s already claimed by %s",
			core.ErrConflict, core.ShortID(task.TaskID), *task.AssignedTo)
	}

	if _, err := db.Exec(
		"UPDATE tasks SET status = ?, assigned_to = ? WHERE task_id = ?",
		types.TaskClaimed, identity, task.TaskID,
	); err != nil {
		return nil, fmt.Errorf("%w: claim task: %v", core.ErrStorage, err)
	}
	if journal != nil {
		_, _ = journal.Emit(Source, "task.claim", identity, core.ShortID(task.TaskID))
	}
	return GetTask(db, task.TaskID)
}

// CompleteTask finishes a task, optionally leaving handover notes.
func CompleteTask(db *sql.DB, journal *events.Journal, ref, identity, handover string) (*types.Task, error) {
	task, err := GetTask(db, ref)
	if err != nil {
		return nil, err
	}
	var handoverValue any
	if handover != "" {
		handoverValue = handover
	}
	if _, err := db.Exec(
		"UPDATE tasks SET status = ?, handover = COALESCE(?, handover) WHERE task_id = ?",
		types.TaskComplete, handoverValue, task.TaskID,
	); err != nil {
		return nil, fmt.Errorf("%w: complete task: %v", core.ErrStorage, err)
	}
	if journal != nil {
		_, _ = journal.Emit(Source, "task.complete", identity, core.ShortID(task.TaskID))
	}
	return GetTask(db, task.TaskID)
}

// BlockTask marks a task blocked with a reason in handover.
func BlockTask(db *sql.DB, journal *events.Journal, ref, identity, reason string) (*types.Task, error) {
	task, err := GetTask(db, ref)
	if err != nil {
		return nil, err
	}
	if task.Status == types.TaskComplete {
		return nil, fmt.Errorf("%w: task %s is complete", core.ErrConflict, core.ShortID(task.TaskID))
	}
	var reasonValue any
	if reason != "" {
		reasonValue = reason
	}
	if _, err := db.Exec(
		"UPDATE tasks SET status = ?, handover = COALESCE(?, handover) WHERE task_id = ?",
		types.TaskBlocked, reasonValue, task.TaskID,
	); err != nil {
		return nil, fmt.Errorf("%w: block task: %v", core.ErrStorage, err)
	}
	if journal != nil {
		_, _ = journal.Emit(Source, "task.block", identity, core.ShortID(task.TaskID))
	}
	return GetTask(db, task.TaskID)
}

// ReduceTask folds a parent to complete once every child is complete.
// Any incomplete child makes the reduction fail without changes.
func ReduceTask(db *sql.DB, journal *events.Journal, ref, identity, handover string) (*types.Task, error) {
	task, err := GetTask(db, ref)
	if err != nil {
		return nil, err
	}

	children, err := Children(db, task.TaskID)
	if err != nil {
		return nil, err
	}
	if len(children) == 0 {
		return nil, fmt.Errorf("%w: task %s has no children to reduce",
			core.ErrValidation, core.ShortID(task.TaskID))
	}
	for _, child := range children {
		if child.Status != types.TaskComplete {
			return nil, fmt.Errorf("%w: child %s is %s, not complete",
				core.ErrConflict, core.ShortID(child.TaskID), child.Status)
		}
	}

	var handoverValue any
	if handover != "" {
		handoverValue = handover
	}
	if _, err := db.Exec(
		"UPDATE tasks SET status = ?, handover = COALESCE(?, handover) WHERE task_id = ?",
		types.TaskComplete, handoverValue, task.TaskID,
	); err != nil {
		return nil, fmt.Errorf("%w: reduce task: %v", core.ErrStorage, err)
	}
	if journal != nil {
		_, _ = journal.Emit(Source, "task.reduce", identity, core.ShortID(task.TaskID))
	}
	return GetTask(db, task.TaskID)
}

func queryTasks(db *sql.DB, query string, params ...any) ([]types.Task, error) {
	rows, err := db.Query(query, params...)
	if err != nil {
		return nil, fmt.Errorf("%w: query tasks: %v", core.ErrStorage, err)
	}
	defer rows.Close()

	var tasks []types.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func scanTask(scanner interface{ Scan(dest ...any) error }) (types.Task, error) {
	var task types.Task
	var parentID, assignedTo, handover, channelID sql.NullString
	err := scanner.Scan(
		&task.TaskID, &parentID, &task.Description, &task.Status,
		&assignedTo, &handover, &channelID, &task.CreatedAt,
	)
	if err != nil {
		return types.Task{}, err
	}
	if parentID.Valid {
		task.ParentID = &parentID.String
	}
	if assignedTo.Valid {
		task.AssignedTo = &assignedTo.String
	}
	if handover.Valid {
		task.Handover = &handover.String
	}
	if channelID.Valid {
		task.ChannelID = &channelID.String
	}
	return task, nil
}
