package models

import "time"

type ConflictStatus string

const (
	ConflictUnresolved ConflictStatus = "unresolved"
	ConflictResolved   ConflictStatus = "resolved"
)

func (s ConflictStatus) String() string {
	return string(s)
}

type ConflictSeverity string

const (
	SeverityLow      ConflictSeverity = "low"
	SeverityMedium   ConflictSeverity = "medium"
	SeverityHigh     ConflictSeverity = "high"
	SeverityCritical ConflictSeverity = "critical"
)

func (s ConflictSeverity) String() string {
	return string(s)
}

// SyncConflict records a disagreement between the QMS value and the external
// system's value for one field of one record. Conflicts belong to the
// configuration, not the run, so they survive retries.
type SyncConflict struct {
	ID              int64            `db:"id"`
	ConfigurationID int64            `db:"configuration_id"`
	EntityType      EntityType       `db:"entity_type"`
	EntityID        string           `db:"entity_id"`
	FieldName       string           `db:"field_name"`
	SourceValue     *string          `db:"source_value"`
	TargetValue     *string          `db:"target_value"`
	Severity        ConflictSeverity `db:"severity"`
	Status          ConflictStatus   `db:"status"`

	RequiresManualReview bool `db:"requires_manual_review"`

	Resolution      *string    `db:"resolution"`
	ResolvedValue   *string    `db:"resolved_value"`
	ResolvedBy      *string    `db:"resolved_by"`
	ResolutionNotes *string    `db:"resolution_notes"`
	ResolvedAt      *time.Time `db:"resolved_at"`

	CreatedAt time.Time `db:"created_at"`
}

// ConflictResolution is the operator input applied when resolving a conflict.
type ConflictResolution struct {
	Resolution      string
	ResolvedValue   *string
	ResolvedBy      string
	ResolutionNotes *string
}
