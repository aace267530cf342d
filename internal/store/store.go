// Package store is the durable side of the portal: the evaluations table
// and the employee directory, reachable only through the narrow procedures
// the HTTP handlers expose.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"evalportal/internal/domain/evaluation"
	"evalportal/internal/domain/hierarchy"
)

var (
	ErrNotFound   = errors.New("record not found")
	ErrNotAllowed = errors.New("record not owned by caller or not in a valid state")
)

type Store struct {
	DB *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

type Employee struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	JobTitle     string `json:"jobTitle"`
	Department   string `json:"department"`
	ReportsTo    string `json:"reportsTo"`
	IsManager    bool   `json:"isManager"`
	IsHR         bool   `json:"isHr"`
	PasswordHash string `json:"-"`
}

func (s *Store) GetEmployee(ctx context.Context, employeeID string) (*Employee, error) {
	return s.getEmployee(ctx, "id = $1", employeeID)
}

func (s *Store) GetEmployeeByEmail(ctx context.Context, email string) (*Employee, error) {
	return s.getEmployee(ctx, "email = $1", email)
}

func (s *Store) getEmployee(ctx context.Context, where string, arg any) (*Employee, error) {
	row := s.DB.QueryRow(ctx, `
    SELECT id::text, name, email, job_title, department, reports_to::text, is_manager, is_hr, password_hash
    FROM employees
    WHERE `+where, arg)

	var emp Employee
	err := row.Scan(&emp.ID, &emp.Name, &emp.Email, &emp.JobTitle, &emp.Department,
		&emp.ReportsTo, &emp.IsManager, &emp.IsHR, &emp.PasswordHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &emp, nil
}

// ListDirectory returns the flat reporting-line rows the hierarchy builder
// consumes, with each employee's evaluation status for the period joined in.
func (s *Store) ListDirectory(ctx context.Context, periodYear int) ([]hierarchy.FlatRecord, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT e.id::text, e.reports_to::text, e.name, e.job_title, e.department, e.email,
           COALESCE(ev.status, ''), ev.submitted_at, COALESCE(ev.pdf_url, '')
    FROM employees e
    LEFT JOIN evaluations ev ON ev.employee_id = e.id AND ev.period_year = $1
  `, periodYear)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []hierarchy.FlatRecord
	for rows.Next() {
		var rec hierarchy.FlatRecord
		var submittedAt *time.Time
		if err := rows.Scan(&rec.ID, &rec.ReportsTo, &rec.Name, &rec.JobTitle, &rec.Department,
			&rec.Email, &rec.EvaluationStatus, &submittedAt, &rec.PDFURL); err != nil {
			return nil, err
		}
		rec.SubmittedAt = submittedAt
		// The self-referential sentinel stays as-is; the builder treats it
		// as a root.
		records = append(records, rec)
	}
	return records, rows.Err()
}

const evaluationColumns = `
    id::text, employee_id::text, period_year, status,
    employee_info, quantitative, qualitative, summary,
    submitted_at, reopened_at, COALESCE(reopened_by::text, ''), COALESCE(reopen_reason, ''),
    COALESCE(pdf_url, ''), pdf_generated_at, last_saved_at`

// GetEvaluation returns the employee's record for the period, or (nil, nil)
// when none exists.
func (s *Store) GetEvaluation(ctx context.Context, employeeID string, periodYear int) (*evaluation.Record, error) {
	row := s.DB.QueryRow(ctx, `
    SELECT `+evaluationColumns+`
    FROM evaluations
    WHERE employee_id = $1 AND period_year = $2
  `, employeeID, periodYear)

	rec, err := scanEvaluation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

func (s *Store) GetEvaluationByID(ctx context.Context, evaluationID string) (*evaluation.Record, error) {
	row := s.DB.QueryRow(ctx, `
    SELECT `+evaluationColumns+`
    FROM evaluations
    WHERE id = $1
  `, evaluationID)

	rec, err := scanEvaluation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

func scanEvaluation(row pgx.Row) (*evaluation.Record, error) {
	var rec evaluation.Record
	var info, quant, qual, summary []byte
	err := row.Scan(&rec.ID, &rec.EmployeeID, &rec.PeriodYear, &rec.Status,
		&info, &quant, &qual, &summary,
		&rec.SubmittedAt, &rec.ReopenedAt, &rec.ReopenedBy, &rec.ReopenReason,
		&rec.PDFURL, &rec.PDFGeneratedAt, &rec.LastSavedAt)
	if err != nil {
		return nil, err
	}
	if err := unmarshalSection(info, &rec.EmployeeInfo); err != nil {
		return nil, err
	}
	if err := unmarshalSection(quant, &rec.Quantitative); err != nil {
		return nil, err
	}
	if err := unmarshalSection(qual, &rec.Qualitative); err != nil {
		return nil, err
	}
	if err := unmarshalSection(summary, &rec.Summary); err != nil {
		return nil, err
	}
	return &rec, nil
}

func unmarshalSection[T any](data []byte, target **T) error {
	if len(data) == 0 {
		return nil
	}
	value := new(T)
	if err := json.Unmarshal(data, value); err != nil {
		return fmt.Errorf("decode section: %w", err)
	}
	*target = value
	return nil
}

func marshalSection(section any) ([]byte, error) {
	if section == nil {
		return nil, nil
	}
	return json.Marshal(section)
}

// SaveEvaluation creates the record when evaluationID is empty and returns
// the assigned id; otherwise it updates the caller's own row. The unique
// constraint on (employee_id, period_year) keeps one live record per
// employee and period. Saves never touch status.
func (s *Store) SaveEvaluation(ctx context.Context, employeeID string, rec *evaluation.Record) (string, error) {
	info, err := marshalSection(rec.EmployeeInfo)
	if err != nil {
		return "", err
	}
	quant, err := marshalSection(rec.Quantitative)
	if err != nil {
		return "", err
	}
	qual, err := marshalSection(rec.Qualitative)
	if err != nil {
		return "", err
	}
	summary, err := marshalSection(rec.Summary)
	if err != nil {
		return "", err
	}

	if rec.ID == "" {
		var id string
		err := s.DB.QueryRow(ctx, `
      INSERT INTO evaluations (employee_id, period_year, status, employee_info, quantitative, qualitative, summary, last_saved_at)
      VALUES ($1, $2, $3, $4, $5, $6, $7, now())
      ON CONFLICT (employee_id, period_year) DO UPDATE SET
        employee_info = EXCLUDED.employee_info,
        quantitative = EXCLUDED.quantitative,
        qualitative = EXCLUDED.qualitative,
        summary = EXCLUDED.summary,
        last_saved_at = now(),
        updated_at = now()
      WHERE evaluations.status IN ($8, $9)
      RETURNING id::text
    `, employeeID, rec.PeriodYear, evaluation.StatusDraft, info, quant, qual, summary,
			evaluation.StatusDraft, evaluation.StatusReopened).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			// The row exists but is read-only; a blind create from a second
			// device must not clobber a submitted record.
			return "", ErrNotAllowed
		}
		if err != nil {
			return "", err
		}
		return id, nil
	}

	tag, err := s.DB.Exec(ctx, `
    UPDATE evaluations
    SET employee_info = $3, quantitative = $4, qualitative = $5, summary = $6,
        last_saved_at = now(), updated_at = now()
    WHERE id = $1 AND employee_id = $2 AND status IN ($7, $8)
  `, rec.ID, employeeID, info, quant, qual, summary, evaluation.StatusDraft, evaluation.StatusReopened)
	if err != nil {
		return "", err
	}
	if tag.RowsAffected() == 0 {
		return "", ErrNotAllowed
	}
	return rec.ID, nil
}

// SubmitEvaluation is the atomic status flip: the guard on owner and on an
// editable status makes a double submit or a foreign submit affect zero rows.
func (s *Store) SubmitEvaluation(ctx context.Context, evaluationID, employeeID string, rec *evaluation.Record, pdfURL string) error {
	info, err := marshalSection(rec.EmployeeInfo)
	if err != nil {
		return err
	}
	quant, err := marshalSection(rec.Quantitative)
	if err != nil {
		return err
	}
	qual, err := marshalSection(rec.Qualitative)
	if err != nil {
		return err
	}
	summary, err := marshalSection(rec.Summary)
	if err != nil {
		return err
	}

	tag, err := s.DB.Exec(ctx, `
    UPDATE evaluations
    SET status = $3, submitted_at = now(),
        employee_info = $4, quantitative = $5, qualitative = $6, summary = $7,
        pdf_url = CASE WHEN $8 <> '' THEN $8 ELSE pdf_url END,
        pdf_generated_at = CASE WHEN $8 <> '' THEN now() ELSE pdf_generated_at END,
        last_saved_at = now(), updated_at = now()
    WHERE id = $1 AND employee_id = $2 AND status IN ($9, $10)
  `, evaluationID, employeeID, evaluation.StatusSubmitted, info, quant, qual, summary, pdfURL,
		evaluation.StatusDraft, evaluation.StatusReopened)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotAllowed
	}
	return nil
}

// ReopenEvaluation moves a read-only record back to reopened and stamps the
// audit trail. The caller has already checked the direct-manager rule.
func (s *Store) ReopenEvaluation(ctx context.Context, evaluationID, reviewerID, reason string) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE evaluations
    SET status = $2, reopened_at = now(), reopened_by = $3, reopen_reason = $4, updated_at = now()
    WHERE id = $1 AND status IN ($5, $6, $7)
  `, evaluationID, evaluation.StatusReopened, reviewerID, reason,
		evaluation.StatusSubmitted, evaluation.StatusReviewed, evaluation.StatusSigned)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotAllowed
	}
	return nil
}
