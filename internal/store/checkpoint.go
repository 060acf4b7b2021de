package store

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spacehq/space/internal/core"
)

// LockFileName is the advisory writer lock under .space/.
const LockFileName = "space.lock"

// AcquireLock takes the workspace advisory lock. Checkpoint and backup
// refuse to run while another process holds it.
func AcquireLock(ws core.Workspace) (release func(), err error) {
	path := filepath.Join(ws.SpaceDir, LockFileName)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("%w: workspace lock held (%s)", core.ErrConflict, path)
		}
		return nil, fmt.Errorf("%w: acquire lock: %v", core.ErrStorage, err)
	}
	fmt.Fprintf(file, "%d\n", os.Getpid())
	_ = file.Close()

	return func() { _ = os.Remove(path) }, nil
}

// Checkpoint folds the write-ahead log of every registered database into
// its main file and removes residual side files. Runs under the advisory
// lock; callers must have no open writers.
func Checkpoint(ws core.Workspace) error {
	release, err := AcquireLock(ws)
	if err != nil {
		return err
	}
	defer release()

	for _, def := range Definitions() {
		path := ws.DBPath(def.File)
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := checkpointFile(path); err != nil {
			return fmt.Errorf("%w: checkpoint %s: %v", core.ErrStorage, def.File, err)
		}
	}
	return nil
}

func checkpointFile(path string) error {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return err
	}
	if _, err := conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		_ = conn.Close()
		return err
	}
	if err := conn.Close(); err != nil {
		return err
	}

	for _, suffix := range []string{"-wal", "-shm"} {
		if err := os.Remove(path + suffix); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}

// Backup checkpoints every database, then copies the main files into
// .space/backups/<YYYYMMDD_HHMMSS>/. Returns the backup directory.
func Backup(ws core.Workspace) (string, error) {
	if err := Checkpoint(ws); err != nil {
		return "", err
	}

	dir := filepath.Join(ws.BackupsDir(), time.Now().Format("20060102_150405"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: create backup dir: %v", core.ErrStorage, err)
	}

	for _, def := range Definitions() {
		src := ws.DBPath(def.File)
		if _, err := os.Stat(src); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := copyFile(src, filepath.Join(dir, def.File)); err != nil {
			return "", fmt.Errorf("%w: back up %s: %v", core.ErrStorage, def.File, err)
		}
	}
	return dir, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
