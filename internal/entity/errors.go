package entity

import "errors"

// Domain-specific sentinel errors
var (
	ErrInvalidDateRange       = errors.New("invalid date range: end date must be after start date")
	ErrUnknownJobStatus       = errors.New("unknown job status")
	ErrUnknownServiceCategory = errors.New("unknown service category")
	ErrJobAlreadyFinal        = errors.New("job is already in a final scheduling state")
)

// ValidateJobStatus validates a job status string
func ValidateJobStatus(status string) bool {
	switch JobStatus(status) {
	case JobStatusQueued, JobStatusEnRoute, JobStatusInProgress, JobStatusFixedTime, JobStatusPendingReview:
		return true
	default:
		return false
	}
}

// ValidateServiceCategory validates a service category string
func ValidateServiceCategory(category string) bool {
	switch ServiceCategory(category) {
	case CategoryADAS, CategoryAirbag, CategoryImmo, CategoryProg, CategoryDiag:
		return true
	default:
		return false
	}
}
