package evaluation

const (
	StatusDraft     = "draft"
	StatusReopened  = "reopened"
	StatusSubmitted = "submitted"
	StatusReviewed  = "reviewed"
	StatusSigned    = "signed"
)

// ScoreMin and ScoreMax bound every numeric rating; a nil score means
// "not applicable" rather than zero.
const (
	ScoreMin = 1
	ScoreMax = 5
)
