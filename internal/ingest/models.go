package ingest

import "time"

// Message is one normalized mailbox message. ID is the Message-Id header
// when the message carries one, otherwise "{folder}-{uid}". The composite
// form is not stable across folder moves; a moved message without a
// Message-Id header will be ingested again under a new identity.
type Message struct {
	ID            string     `json:"id"`
	Subject       string     `json:"subject"`
	Sender        string     `json:"sender"`
	SenderAddress string     `json:"sender_address"`
	Body          string     `json:"body"`
	Folder        string     `json:"folder"`
	ReceivedAt    time.Time  `json:"received_at"`
	Processed     bool       `json:"processed"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`
}

// SyncSummary reports one mailbox sync pass.
type SyncSummary struct {
	Synced  int      `json:"synced"`
	Skipped int      `json:"skipped"`
	Folders []string `json:"folders"`
}
