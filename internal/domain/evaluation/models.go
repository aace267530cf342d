package evaluation

import "time"

// Record is the aggregate root for one employee's self-assessment in one
// period. ID stays empty until the durable store assigns one on first save.
type Record struct {
	ID         string `json:"id,omitempty"`
	EmployeeID string `json:"employeeId"`
	PeriodYear int    `json:"periodYear"`
	Status     string `json:"status"`

	EmployeeInfo *EmployeeInfo `json:"employeeInfo,omitempty"`
	Quantitative *Quantitative `json:"quantitative,omitempty"`
	Qualitative  *Qualitative  `json:"qualitative,omitempty"`
	Summary      *Summary      `json:"summary,omitempty"`

	SubmittedAt    *time.Time `json:"submittedAt,omitempty"`
	ReopenedAt     *time.Time `json:"reopenedAt,omitempty"`
	ReopenedBy     string     `json:"reopenedBy,omitempty"`
	ReopenReason   string     `json:"reopenReason,omitempty"`
	PDFURL         string     `json:"pdfUrl,omitempty"`
	PDFGeneratedAt *time.Time `json:"pdfGeneratedAt,omitempty"`

	// LastSavedAt is advisory, used only to pick between the local cache
	// and the durable record at load time. It never decides status.
	LastSavedAt *time.Time `json:"lastSavedAt,omitempty"`
}

type EmployeeInfo struct {
	FullName    string `json:"fullName"`
	JobTitle    string `json:"jobTitle"`
	Department  string `json:"department"`
	ManagerName string `json:"managerName"`
	Email       string `json:"email"`
}

// CompetencyRating is one row of the quantitative grid. Score is nil when
// the competency does not apply to the role.
type CompetencyRating struct {
	Name    string `json:"name"`
	Score   *int   `json:"score"`
	Comment string `json:"comment"`
}

type Quantitative struct {
	OverallScore *int               `json:"overallScore"`
	Competencies []CompetencyRating `json:"competencies"`
}

type Qualitative struct {
	Achievements string `json:"achievements"`
	Challenges   string `json:"challenges"`
	Improvements string `json:"improvements"`
}

type Summary struct {
	SelfAssessment string `json:"selfAssessment"`
	GoalsNextYear  string `json:"goalsNextYear"`
	TrainingNeeds  string `json:"trainingNeeds"`
	Comments       string `json:"comments"`
}

// NewDraft synthesizes the fresh in-memory record used when neither the
// durable store nor the local cache holds anything for this employee/period.
func NewDraft(employeeID string, periodYear int, info *EmployeeInfo) *Record {
	rec := &Record{
		EmployeeID:   employeeID,
		PeriodYear:   periodYear,
		Status:       StatusDraft,
		EmployeeInfo: info,
	}
	rec.EnsureSections()
	return rec
}

// EnsureSections replaces nil sections with explicit empty values so that
// "never touched" and "explicitly empty" stay distinguishable up to the
// moment the record is first handed to an editor.
func (r *Record) EnsureSections() {
	if r.EmployeeInfo == nil {
		r.EmployeeInfo = &EmployeeInfo{}
	}
	if r.Quantitative == nil {
		r.Quantitative = &Quantitative{Competencies: []CompetencyRating{}}
	}
	if r.Qualitative == nil {
		r.Qualitative = &Qualitative{}
	}
	if r.Summary == nil {
		r.Summary = &Summary{}
	}
}

// Clone returns a deep copy so the engine can hand snapshots to the cache
// without sharing slices with the live record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	if r.EmployeeInfo != nil {
		info := *r.EmployeeInfo
		out.EmployeeInfo = &info
	}
	if r.Quantitative != nil {
		quant := *r.Quantitative
		quant.Competencies = make([]CompetencyRating, len(r.Quantitative.Competencies))
		copy(quant.Competencies, r.Quantitative.Competencies)
		for i, c := range r.Quantitative.Competencies {
			if c.Score != nil {
				score := *c.Score
				quant.Competencies[i].Score = &score
			}
		}
		if r.Quantitative.OverallScore != nil {
			overall := *r.Quantitative.OverallScore
			quant.OverallScore = &overall
		}
		out.Quantitative = &quant
	}
	if r.Qualitative != nil {
		qual := *r.Qualitative
		out.Qualitative = &qual
	}
	if r.Summary != nil {
		sum := *r.Summary
		out.Summary = &sum
	}
	copyTime := func(t *time.Time) *time.Time {
		if t == nil {
			return nil
		}
		v := *t
		return &v
	}
	out.SubmittedAt = copyTime(r.SubmittedAt)
	out.ReopenedAt = copyTime(r.ReopenedAt)
	out.PDFGeneratedAt = copyTime(r.PDFGeneratedAt)
	out.LastSavedAt = copyTime(r.LastSavedAt)
	return &out
}
