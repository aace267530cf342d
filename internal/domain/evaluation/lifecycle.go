package evaluation

import (
	"errors"
	"time"
)

var (
	ErrReadOnly       = errors.New("evaluation is read-only")
	ErrAlreadyOpen    = errors.New("evaluation is not submitted")
	ErrReasonRequired = errors.New("reopen reason is required")
	ErrNotManager     = errors.New("only the direct manager may reopen")
	ErrBadTransition  = errors.New("illegal status transition")
)

// IsReadOnly reports whether the record is frozen from the employee's
// perspective. Reviewed and signed are downstream HR states; this subsystem
// only ever reads them.
func IsReadOnly(status string) bool {
	switch status {
	case StatusSubmitted, StatusReviewed, StatusSigned:
		return true
	}
	return false
}

// CanTransition encodes the full state table: forward-only, plus the single
// submitted -> reopened -> submitted loop. Everything else is illegal.
func CanTransition(from, to string) bool {
	switch from {
	case StatusDraft:
		return to == StatusSubmitted
	case StatusReopened:
		return to == StatusSubmitted
	case StatusSubmitted:
		return to == StatusReviewed || to == StatusReopened
	case StatusReviewed:
		return to == StatusSigned || to == StatusReopened
	case StatusSigned:
		return to == StatusReopened
	}
	return false
}

// ApplySubmit moves the record to submitted and stamps the audit fields.
// The caller resolves pdfURL first (reuse or fresh generation); an empty
// URL is allowed because a failed generation does not block submission.
func (r *Record) ApplySubmit(now time.Time, pdfURL string) error {
	if !CanTransition(r.Status, StatusSubmitted) {
		if IsReadOnly(r.Status) {
			return ErrReadOnly
		}
		return ErrBadTransition
	}
	r.Status = StatusSubmitted
	at := now
	r.SubmittedAt = &at
	if pdfURL != "" {
		r.PDFURL = pdfURL
		gen := now
		r.PDFGeneratedAt = &gen
	}
	return nil
}

// ApplyReopen moves a read-only record back into the editable loop.
// Authorization against the reporting line is the caller's job; this only
// enforces the state table and the non-empty reason.
func (r *Record) ApplyReopen(now time.Time, reviewerID, reason string) error {
	if reason == "" {
		return ErrReasonRequired
	}
	if !IsReadOnly(r.Status) {
		return ErrAlreadyOpen
	}
	r.Status = StatusReopened
	at := now
	r.ReopenedAt = &at
	r.ReopenedBy = reviewerID
	r.ReopenReason = reason
	return nil
}

// IsDirectManager is the reopen authorization predicate: exactly one level
// up the reporting line, never the full chain and never the subject
// themselves. The self check matters for the root employee, whose reportsTo
// points at their own id.
func IsDirectManager(reviewerID, subjectID, subjectReportsTo string) bool {
	return reviewerID != "" && reviewerID != subjectID && reviewerID == subjectReportsTo
}
