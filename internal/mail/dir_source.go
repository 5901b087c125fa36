package mail

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DirSource reads raw messages from a maildir-like layout: one subdirectory
// per folder, one RFC 5322 file per message. A mail gateway (fetchmail,
// getmail, an MDA) drops files here; this process never speaks the mailbox
// protocol itself.
type DirSource struct {
	root string
}

func NewDirSource(root string) *DirSource {
	return &DirSource{root: root}
}

func (s *DirSource) Folders(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("failed to list mail folders in %s: %w", s.root, err)
	}

	var folders []string
	for _, e := range entries {
		if e.IsDir() {
			folders = append(folders, e.Name())
		}
	}
	return folders, nil
}

// Fetch returns up to limit messages from the folder, newest last. File
// names sort lexicographically; gateways name files by timestamp so the
// tail of the sorted listing is the most recent mail. The UID is the
// position in the sorted listing, stable as long as files are not removed.
func (s *DirSource) Fetch(ctx context.Context, folder string, limit int) ([]RawMessage, error) {
	dir := filepath.Join(s.root, folder)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list mail folder %s: %w", folder, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	start := 0
	if limit > 0 && len(names) > limit {
		start = len(names) - limit
	}

	messages := make([]RawMessage, 0, len(names)-start)
	for i := start; i < len(names); i++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		data, err := os.ReadFile(filepath.Join(dir, names[i]))
		if err != nil {
			return nil, fmt.Errorf("failed to read message %s/%s: %w", folder, names[i], err)
		}
		messages = append(messages, RawMessage{
			Folder: folder,
			UID:    uint32(i + 1),
			Data:   data,
		})
	}

	return messages, nil
}
