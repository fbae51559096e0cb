package common

import (
	"github.com/google/uuid"
)

// NewReportID generates a unique report ID with the "rpt_" prefix
// Format: rpt_<uuid>
func NewReportID() string {
	return "rpt_" + uuid.New().String()
}

// NewSetID generates a unique recommendation set ID with the "set_" prefix
func NewSetID() string {
	return "set_" + uuid.New().String()
}

// NewWorkerID generates a unique worker identity used as lease owner
func NewWorkerID() string {
	return "wrk_" + uuid.New().String()
}
