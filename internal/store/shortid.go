package store

import (
	"database/sql"
	"fmt"

	"github.com/spacehq/space/internal/core"
)

// ResolveShort expands a short id (suffix abbreviation) to the full id in
// the given table. A full id passes through when it exists. Zero matches
// return NotFound; multiple matches return Ambiguous with the candidates.
func ResolveShort(db *sql.DB, table, column, kind, short string) (string, error) {
	if short == "" {
		return "", fmt.Errorf("%w: empty %s id", core.ErrValidation, kind)
	}

	var exact string
	err := db.QueryRow(
		fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?", column, table, column), short,
	).Scan(&exact)
	if err == nil {
		return exact, nil
	}
	if err != sql.ErrNoRows {
		return "", fmt.Errorf("%w: resolve %s id: %v", core.ErrStorage, kind, err)
	}

	rows, err := db.Query(
		fmt.Sprintf("SELECT %s FROM %s WHERE %s LIKE ? ORDER BY %s", column, table, column, column),
		"%"+short,
	)
	if err != nil {
		return "", fmt.Errorf("%w: resolve %s id: %v", core.ErrStorage, kind, err)
	}
	defer rows.Close()

	var candidates []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", err
		}
		candidates = append(candidates, id)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	switch len(candidates) {
	case 0:
		return "", &core.NotFoundError{Kind: kind, Ref: short}
	case 1:
		return candidates[0], nil
	default:
		return "", &core.AmbiguousError{Ref: short, Candidates: candidates}
	}
}
