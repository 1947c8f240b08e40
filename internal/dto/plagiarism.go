package dto

import "encoding/json"

// RecordScanRequest stores a similarity-check result for a submission.
// Score is a percentage in [0,100].
type RecordScanRequest struct {
	Score           float64         `json:"score" validate:"gte=0,lte=100"`
	SourceMatches   json.RawMessage `json:"sourceMatches"`
	ExpectedVersion int64           `json:"expectedVersion" validate:"gte=0"`
}

// VerifyScanRequest confirms a NEEDS_VALIDATION result as acceptable.
type VerifyScanRequest struct {
	Note            string `json:"note"`
	ExpectedVersion int64  `json:"expectedVersion" validate:"gte=0"`
}
