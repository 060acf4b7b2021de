package core

import (
	"fmt"
	"os"
	"path/filepath"
)

// Workspace represents a space workspace root.
type Workspace struct {
	Root     string
	SpaceDir string
}

// SpaceDirName is the workspace marker directory.
const SpaceDirName = ".space"

// CanonDirName holds the shared markdown corpus injected into identities.
const CanonDirName = "canon"

// DBPath returns the path of a logical database file.
func (ws Workspace) DBPath(file string) string {
	return filepath.Join(ws.SpaceDir, file)
}

// CanonDir returns the canon directory path.
func (ws Workspace) CanonDir() string {
	return filepath.Join(ws.Root, CanonDirName)
}

// LogsDir returns the workspace log directory.
func (ws Workspace) LogsDir() string {
	return filepath.Join(ws.SpaceDir, "logs")
}

// BackupsDir returns the workspace backup directory.
func (ws Workspace) BackupsDir() string {
	return filepath.Join(ws.SpaceDir, "backups")
}

// DiscoverWorkspace resolves the workspace root.
// SPACE_HOME wins; otherwise walk up from startDir for a .space directory;
// otherwise fall back to startDir itself.
func DiscoverWorkspace(startDir string) (Workspace, error) {
	if home := os.Getenv("SPACE_HOME"); home != "" {
		root, err := filepath.Abs(home)
		if err != nil {
			return Workspace{}, err
		}
		return Workspace{Root: root, SpaceDir: filepath.Join(root, SpaceDirName)}, nil
	}

	current := startDir
	if current == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return Workspace{}, err
		}
		current = cwd
	}
	current, err := filepath.Abs(current)
	if err != nil {
		return Workspace{}, err
	}
	fallback := current

	for {
		spaceDir := filepath.Join(current, SpaceDirName)
		info, err := os.Stat(spaceDir)
		if err == nil && info.IsDir() {
			return Workspace{Root: current, SpaceDir: spaceDir}, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			return Workspace{Root: fallback, SpaceDir: filepath.Join(fallback, SpaceDirName)}, nil
		}
		current = parent
	}
}

// InitWorkspace creates the .space directory at dir.
func InitWorkspace(dir string) (Workspace, error) {
	root := dir
	if root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return Workspace{}, err
		}
		root = cwd
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return Workspace{}, err
	}

	spaceDir := filepath.Join(root, SpaceDirName)
	if err := os.MkdirAll(spaceDir, 0o755); err != nil {
		return Workspace{}, fmt.Errorf("init workspace: %w", err)
	}
	EnsureSpaceGitignore(spaceDir)

	return Workspace{Root: root, SpaceDir: spaceDir}, nil
}

// Exists reports whether the workspace marker directory is present.
func (ws Workspace) Exists() bool {
	info, err := os.Stat(ws.SpaceDir)
	return err == nil && info.IsDir()
}

// EnsureSpaceGitignore ensures .space/.gitignore covers sqlite side files.
func EnsureSpaceGitignore(spaceDir string) {
	gitignore := filepath.Join(spaceDir, ".gitignore")
	entries := []string{"*.db", "*.db-wal", "*.db-shm", "logs/", "backups/", "space.lock"}

	data, err := os.ReadFile(gitignore)
	if err != nil {
		content := ""
		for _, entry := range entries {
			content += entry + "\n"
		}
		_ = os.WriteFile(gitignore, []byte(content), 0o644)
		return
	}

	content := string(data)
	present := map[string]bool{}
	start := 0
	for i := 0; i <= len(content); i++ {
		if i == len(content) || content[i] == '\n' {
			present[content[start:i]] = true
			start = i + 1
		}
	}

	missing := ""
	for _, entry := range entries {
		if !present[entry] {
			missing += entry + "\n"
		}
	}
	if missing == "" {
		return
	}
	if len(content) > 0 && content[len(content)-1] != '\n' {
		content += "\n"
	}
	_ = os.WriteFile(gitignore, []byte(content+missing), 0o644)
}
