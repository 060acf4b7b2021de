package registry

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/spacehq/space/internal/core"
)

// SaveConstitution stores content under its hash. Content-addressed:
// duplicate puts are no-ops, so the first write wins.
func SaveConstitution(db *sql.DB, hash, content string) error {
	if hash == "" {
		return fmt.Errorf("%w: constitution hash required", core.ErrValidation)
	}
	_, err := db.Exec(
		"INSERT OR IGNORE INTO constitutions (hash, content, created_at) VALUES (?, ?, ?)",
		hash, content, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("%w: save constitution: %v", core.ErrStorage, err)
	}
	return nil
}

// GetConstitution returns the content stored under hash, or nil.
func GetConstitution(db *sql.DB, hash string) (*string, error) {
	var content string
	err := db.QueryRow("SELECT content FROM constitutions WHERE hash = ?", hash).Scan(&content)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get constitution: %v", core.ErrStorage, err)
	}
	return &content, nil
}

// ResolveConstitutionHash expands an 8-char display prefix to the full
// hash. Unlike ids, hashes abbreviate from the front.
func ResolveConstitutionHash(db *sql.DB, short string) (string, error) {
	var exact string
	err := db.QueryRow("SELECT hash FROM constitutions WHERE hash = ?", short).Scan(&exact)
	if err == nil {
		return exact, nil
	}
	if err != sql.ErrNoRows {
		return "", fmt.Errorf("%w: resolve constitution: %v", core.ErrStorage, err)
	}

	rows, err := db.Query("SELECT hash FROM constitutions WHERE hash LIKE ? ORDER BY hash", short+"%")
	if err != nil {
		return "", fmt.Errorf("%w: resolve constitution: %v", core.ErrStorage, err)
	}
	defer rows.Close()

	var candidates []string
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return "", err
		}
		candidates = append(candidates, hash)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	switch len(candidates) {
	case 0:
		return "", &core.NotFoundError{Kind: "constitution", Ref: short}
	case 1:
		return candidates[0], nil
	default:
		return "", &core.AmbiguousError{Ref: short, Candidates: candidates}
	}
}
