package models

// SyncResult is the adapter's report of one execution. It is transient: the
// orchestrator folds it into the persisted run row and never stores it as is.
type SyncResult struct {
	Success bool
	Status  RunStatus

	Processed  int
	Created    int
	Updated    int
	Skipped    int
	Failed     int
	Conflicted int

	Message string
	Errors  []string
}

// Merge folds an entity-routine result into the adapter-level aggregate.
func (r *SyncResult) Merge(other *SyncResult) {
	if other == nil {
		return
	}
	r.Processed += other.Processed
	r.Created += other.Created
	r.Updated += other.Updated
	r.Skipped += other.Skipped
	r.Failed += other.Failed
	r.Conflicted += other.Conflicted
	r.Errors = append(r.Errors, other.Errors...)
}

// Finalize derives the terminal status from the accumulated counters:
// success iff nothing failed and no errors were collected, partial when some
// records made it through, failed when none did.
func (r *SyncResult) Finalize() {
	switch {
	case r.Failed == 0 && len(r.Errors) == 0:
		r.Status = RunStatusSuccess
	case r.Processed > 0:
		r.Status = RunStatusPartial
	default:
		r.Status = RunStatusFailed
	}
	r.Success = r.Status == RunStatusSuccess
}

// SkippedResult reports a routine short-circuited by delta detection: the
// fetched records are counted as skipped and nothing else happened.
func SkippedResult(fetched int, message string) *SyncResult {
	return &SyncResult{
		Success: true,
		Status:  RunStatusSuccess,
		Skipped: fetched,
		Message: message,
	}
}

// NotImplementedResult reports an entity routine the adapter does not support
// yet. Processed stays zero and the explanation is carried as an error string
// so the run completes as failed rather than raising.
func NotImplementedResult(message string) *SyncResult {
	return &SyncResult{
		Success: false,
		Status:  RunStatusFailed,
		Message: message,
		Errors:  []string{message},
	}
}
