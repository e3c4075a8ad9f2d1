package billing

import "github.com/sitekit/backend/internal/domain/shared"

// Billing domain errors
var (
	// ErrQuotaKeyUnknown is returned for quota keys outside the metered set
	ErrQuotaKeyUnknown = &shared.DomainError{
		Code:    "QUOTA_KEY_UNKNOWN",
		Message: "unknown quota key",
	}

	// ErrUsageCommitFailed is returned when the atomic usage increment could
	// not be persisted. Callers must fail the guarded operation: usage that
	// was not durably counted must not be served.
	ErrUsageCommitFailed = &shared.DomainError{
		Code:    "USAGE_COMMIT_FAILED",
		Message: "failed to record usage for the operation",
	}
)
