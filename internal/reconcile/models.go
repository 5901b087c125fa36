package reconcile

// Summary reports what one batch run did. Partial success is still
// success: per-message failures are counted, not propagated.
type Summary struct {
	ProcessedCount   int `json:"processed_count"`
	FilteredCount    int `json:"filtered_count"`
	DraftsCreated    int `json:"drafts_created"`
	ProposalsWritten int `json:"proposals_written"`
	Failures         int `json:"failures"`
}
