package mail

import (
	"context"
	"strings"
)

// RawMessage is one message as handed over by the mailbox provider. UID is
// the provider-assigned sequence number, unique per folder only.
type RawMessage struct {
	Folder string
	UID    uint32
	Data   []byte
}

// Source is the mailbox boundary. Implementations own connection handling;
// the pipeline only lists folders and fetches the most recent messages.
type Source interface {
	Folders(ctx context.Context) ([]string, error)
	Fetch(ctx context.Context, folder string, limit int) ([]RawMessage, error)
}

// SelectFolders keeps INBOX and any folder whose name contains "contact".
// Everything else (sent mail, spam, archives) is noise for booking intake.
func SelectFolders(folders []string) []string {
	selected := make([]string, 0, len(folders))
	for _, f := range folders {
		lower := strings.ToLower(f)
		if lower == "inbox" || strings.Contains(lower, "contact") {
			selected = append(selected, f)
		}
	}
	return selected
}
