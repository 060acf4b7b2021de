package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spacehq/space/internal/core"
)

// Base-identity families map to the identity file each agent CLI reads.
var identityFiles = map[string]string{
	"claude": "CLAUDE.md",
	"gemini": "GEMINI.md",
}

// defaultIdentityFile serves every other family (codex and friends).
const defaultIdentityFile = "AGENTS.md"

// IdentityFile returns the materialised identity filename for a base
// family.
func IdentityFile(base string) string {
	if file, ok := identityFiles[strings.ToLower(base)]; ok {
		return file
	}
	return defaultIdentityFile
}

// RoleOf extracts the role from an identity: the prefix before the last
// hyphen, else the whole string. "zealot-2" -> "zealot".
func RoleOf(identity string) string {
	if idx := strings.LastIndex(identity, "-"); idx > 0 {
		return identity[:idx]
	}
	return identity
}

// InjectIdentity assembles the full constitution text for one agent run:
// header, self line, the sorted canon corpus, the base constitution, and
// a fixed orientation footer. The returned bytes are exactly what gets
// written to the identity file and hashed for provenance.
func InjectIdentity(ws core.Workspace, base, role, identity, model string) (string, error) {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s CONSTITUTION\n\n", strings.ToUpper(role))

	if model != "" {
		fmt.Fprintf(&b, "Self: You are %s. Your model is %s.\n\n", identity, model)
	} else {
		fmt.Fprintf(&b, "Self: You are %s.\n\n", identity)
	}

	canon, err := readCanon(ws)
	if err != nil {
		return "", err
	}
	if canon != "" {
		b.WriteString(canon)
		b.WriteString("\n")
	}

	b.WriteString(strings.TrimRight(base, "\n"))
	b.WriteString("\n\n")

	fmt.Fprintf(&b,
		"Run `space` to orient yourself, and `space memory --as %s` to recall your memories.\n",
		identity)

	return b.String(), nil
}

// readCanon concatenates every canon/*.md file in sorted path order.
// An absent canon directory is an empty corpus, not an error.
func readCanon(ws core.Workspace) (string, error) {
	entries, err := os.ReadDir(ws.CanonDir())
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read canon: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(ws.CanonDir(), name))
		if err != nil {
			return "", fmt.Errorf("read canon %s: %w", name, err)
		}
		b.Write(data)
		if len(data) > 0 && data[len(data)-1] != '\n' {
			b.WriteByte('\n')
		}
	}
	return b.String(), nil
}

// WriteIdentityFile materialises assembled identity text for a base
// family and returns its content hash.
func WriteIdentityFile(ws core.Workspace, base, content string) (string, error) {
	path := filepath.Join(ws.Root, IdentityFile(base))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write identity file: %w", err)
	}
	return core.HashContent([]byte(content)), nil
}

// CanonDocs returns canon filename -> content for files whose content
// contains topic (case-insensitive). Empty topic matches everything.
func CanonDocs(ws core.Workspace, topic string) (map[string]string, error) {
	entries, err := os.ReadDir(ws.CanonDir())
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("read canon: %w", err)
	}

	needle := strings.ToLower(topic)
	docs := map[string]string{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(ws.CanonDir(), entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read canon %s: %w", entry.Name(), err)
		}
		if needle == "" || strings.Contains(strings.ToLower(string(data)), needle) {
			docs[entry.Name()] = string(data)
		}
	}
	return docs, nil
}
