package engine

import (
	"context"

	"evalportal/internal/document"
	"evalportal/internal/domain/evaluation"
)

// DirectoryRecord is the slice of the employee directory the engine needs:
// identity prefill for fresh drafts and the reporting line for reopen
// authorization.
type DirectoryRecord struct {
	EmployeeID string `json:"employeeId"`
	Name       string `json:"name"`
	JobTitle   string `json:"jobTitle"`
	Department string `json:"department"`
	Email      string `json:"email"`
	ReportsTo  string `json:"reportsTo"`
}

// RemoteStore is the narrow, identity-checked surface of the durable store.
// The engine never touches tables directly; every mutation goes through one
// of these procedures so the server can enforce ownership.
type RemoteStore interface {
	// FetchEvaluation returns the caller's record for the period, or
	// (nil, nil) when none exists yet.
	FetchEvaluation(ctx context.Context, periodYear int) (*evaluation.Record, error)

	// SaveEvaluation creates the record when it carries no id and returns
	// the assigned identifier; otherwise it updates in place.
	SaveEvaluation(ctx context.Context, rec *evaluation.Record) (string, error)

	// SubmitEvaluation atomically flips the record to submitted.
	SubmitEvaluation(ctx context.Context, evaluationID string, rec *evaluation.Record, pdfURL string) error

	// ReopenEvaluation moves a submitted record back into the editable
	// loop; the server re-checks the direct-manager rule.
	ReopenEvaluation(ctx context.Context, evaluationID, reason string) error

	FetchDirectoryRecord(ctx context.Context, employeeID string) (*DirectoryRecord, error)
}

// DocumentSource renders and best-effort persists the submission artifact.
type DocumentSource interface {
	Generate(ctx context.Context, rec *evaluation.Record) (document.Result, error)
}
