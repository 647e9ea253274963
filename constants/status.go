package constants

// TaskStatus is the canonical status of a conversion task within a batch run.
type TaskStatus string

// Stable values (the journal stores these exact strings).
const (
	TaskPending   TaskStatus = "PENDING"   // discovered, not yet examined
	TaskSkipped   TaskStatus = "SKIPPED"   // output already exists, conversion not invoked
	TaskSucceeded TaskStatus = "SUCCEEDED" // conversion OK and output is non-empty
	TaskFailed    TaskStatus = "FAILED"    // terminal failure, partial output removed
)
