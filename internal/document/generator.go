// Package document renders an evaluation into a paginated, fixed-layout PDF
// and decides when a previously generated artifact can be reused.
package document

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"evalportal/internal/domain/evaluation"
)

const (
	pageWidth  = 210.0 // A4 portrait, mm
	pageHeight = 297.0
	marginLeft = 15.0
	marginTop  = 15.0
	lineHeight = 6.0
	bodySize   = 11.0
	headSize   = 13.0
	titleSize  = 16.0
)

// Result carries the rendered bytes plus the durable URL if blob persistence
// succeeded. Bytes are always present so the caller can offer a download
// even when storage is unavailable.
type Result struct {
	Bytes []byte
	URL   string
}

type Generator struct {
	storage BlobStorage
}

func NewGenerator(storage BlobStorage) *Generator {
	return &Generator{storage: storage}
}

// Generate renders the record and then best-effort persists the artifact.
// A storage failure is returned alongside the local bytes, never instead of
// them. Records without a durable id skip persistence entirely.
func (g *Generator) Generate(ctx context.Context, rec *evaluation.Record) (Result, error) {
	data, err := Render(rec)
	if err != nil {
		return Result{}, err
	}

	result := Result{Bytes: data}
	if g.storage == nil || rec.ID == "" {
		return result, nil
	}

	name := fmt.Sprintf("evaluation-%s-%d.pdf", rec.ID, rec.PeriodYear)
	url, err := g.storage.Put(ctx, name, data)
	if err != nil {
		return result, fmt.Errorf("persist artifact: %w", err)
	}
	result.URL = url
	return result, nil
}

// Render lays the four sections out on fixed A4 pages. A vertical cursor
// flows down the page; each block's wrapped height is measured first and a
// new page is allocated when the block would overflow. Blocks are measured
// whole, so a very long block can still straddle a page.
func Render(rec *evaluation.Record) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(false, 0)
	layout := &pageLayout{pdf: pdf}
	layout.newPage()

	pdf.SetFont("Helvetica", "B", titleSize)
	layout.drawLines([]string{fmt.Sprintf("Performance Evaluation %d", rec.PeriodYear)})
	layout.cursor += lineHeight / 2

	info := rec.EmployeeInfo
	if info == nil {
		info = &evaluation.EmployeeInfo{}
	}
	layout.block("Employee", []string{
		"Name: " + info.FullName,
		"Job title: " + info.JobTitle,
		"Department: " + info.Department,
		"Manager: " + info.ManagerName,
	})

	if rec.Quantitative != nil {
		lines := make([]string, 0, len(rec.Quantitative.Competencies)+1)
		lines = append(lines, "Overall score: "+formatScore(rec.Quantitative.OverallScore))
		for _, comp := range rec.Quantitative.Competencies {
			line := fmt.Sprintf("%s: %s", comp.Name, formatScore(comp.Score))
			if comp.Comment != "" {
				line += " - " + comp.Comment
			}
			lines = append(lines, line)
		}
		layout.block("Quantitative Assessment", lines)
	}

	if rec.Qualitative != nil {
		layout.block("Achievements", []string{rec.Qualitative.Achievements})
		layout.block("Challenges", []string{rec.Qualitative.Challenges})
		layout.block("Areas for Improvement", []string{rec.Qualitative.Improvements})
	}

	if rec.Summary != nil {
		layout.block("Self-Assessment", []string{rec.Summary.SelfAssessment})
		layout.block("Goals for Next Year", []string{rec.Summary.GoalsNextYear})
		layout.block("Training Needs", []string{rec.Summary.TrainingNeeds})
		layout.block("Additional Comments", []string{rec.Summary.Comments})
	}

	if rec.SubmittedAt != nil {
		layout.block("Submission", []string{"Submitted at: " + rec.SubmittedAt.Format("2006-01-02 15:04 MST")})
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatScore(score *int) string {
	if score == nil {
		return "n/a"
	}
	return fmt.Sprintf("%d / %d", *score, evaluation.ScoreMax)
}

type pageLayout struct {
	pdf    *gofpdf.Fpdf
	cursor float64
}

func (l *pageLayout) newPage() {
	l.pdf.AddPage()
	l.cursor = marginTop
}

// block writes a heading plus wrapped body lines, allocating a new page
// first if the whole block no longer fits below the cursor.
func (l *pageLayout) block(title string, paragraphs []string) {
	width := pageWidth - 2*marginLeft

	l.pdf.SetFont("Helvetica", "", bodySize)
	var wrapped []string
	for _, p := range paragraphs {
		if strings.TrimSpace(p) == "" {
			continue
		}
		wrapped = append(wrapped, wrapLines(l.pdf, p, width)...)
	}
	if len(wrapped) == 0 {
		wrapped = []string{"-"}
	}

	needed := lineHeight*float64(len(wrapped)+1) + lineHeight/2
	if l.cursor+needed > pageHeight-marginTop {
		l.newPage()
	}

	l.pdf.SetFont("Helvetica", "B", headSize)
	l.drawLines([]string{title})
	l.pdf.SetFont("Helvetica", "", bodySize)
	l.drawLines(wrapped)
	l.cursor += lineHeight / 2
}

func (l *pageLayout) drawLines(lines []string) {
	for _, line := range lines {
		if l.cursor+lineHeight > pageHeight-marginTop {
			l.newPage()
		}
		l.pdf.Text(marginLeft, l.cursor+lineHeight*0.75, line)
		l.cursor += lineHeight
	}
}

// wrapLines breaks text at word boundaries to fit width, hard-breaking at
// character level when a single token is wider than the whole line.
func wrapLines(pdf *gofpdf.Fpdf, text string, width float64) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var lines []string
	current := ""
	for _, word := range words {
		candidate := word
		if current != "" {
			candidate = current + " " + word
		}
		if pdf.GetStringWidth(candidate) <= width {
			current = candidate
			continue
		}
		if current != "" {
			lines = append(lines, current)
		}
		if pdf.GetStringWidth(word) <= width {
			current = word
			continue
		}
		// Unbreakable token, split by characters.
		var parts []string
		parts, current = hardBreak(pdf, word, width)
		lines = append(lines, parts...)
	}
	if current != "" {
		lines = append(lines, current)
	}
	return lines
}

func hardBreak(pdf *gofpdf.Fpdf, word string, width float64) (full []string, rest string) {
	runes := []rune(word)
	current := ""
	for _, r := range runes {
		candidate := current + string(r)
		if pdf.GetStringWidth(candidate) > width && current != "" {
			full = append(full, current)
			current = string(r)
			continue
		}
		current = candidate
	}
	return full, current
}
