package models

import "time"

// GateDecision is the plagiarism gate outcome derived from the latest scan.
type GateDecision string

const (
	DecisionClear           GateDecision = "CLEAR"
	DecisionNeedsValidation GateDecision = "NEEDS_VALIDATION"
	DecisionMustRevise      GateDecision = "MUST_REVISE"
)

// ScanRecord stores one similarity-check result. Records are append-only;
// the gate's current decision always derives from the most recent one.
type ScanRecord struct {
	ID            string       `db:"id" json:"id"`
	SubmissionID  string       `db:"submission_id" json:"submission_id"`
	Score         float64      `db:"score" json:"score"`
	SourceMatches []byte       `db:"source_matches" json:"source_matches,omitempty"`
	Decision      GateDecision `db:"decision" json:"decision"`
	RecordedBy    string       `db:"recorded_by" json:"recorded_by"`
	CreatedAt     time.Time    `db:"created_at" json:"created_at"`
}
