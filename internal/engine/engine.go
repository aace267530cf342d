// Package engine owns the in-memory evaluation record for one client
// instance. Every edit is mirrored synchronously to the local cache and
// written through to the durable store with best effort; the cache is the
// safety net when the network is not. Auto-save failures stay silent,
// lifecycle failures (submit, reopen) surface.
package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"evalportal/internal/document"
	"evalportal/internal/domain/evaluation"
	"evalportal/internal/errlog"
	"evalportal/internal/identity"
)

// IdentitySource yields the current bearer credential, if any. Its absence
// degrades writes to local-only and blocks submit and reopen.
type IdentitySource interface {
	Current() (identity.Identity, bool)
}

const unloadFlushTimeout = 5 * time.Second

type Engine struct {
	remote RemoteStore
	cache  Cache
	ids    IdentitySource
	docs   DocumentSource
	errs   *errlog.Log
	now    func() time.Time

	mu        sync.Mutex
	record    *evaluation.Record
	directory *DirectoryRecord
}

func New(remote RemoteStore, cache Cache, ids IdentitySource, docs DocumentSource, errs *errlog.Log) *Engine {
	if errs == nil {
		errs = errlog.New(50)
	}
	return &Engine{
		remote: remote,
		cache:  cache,
		ids:    ids,
		docs:   docs,
		errs:   errs,
		now:    time.Now,
	}
}

// Record returns a copy of the current in-memory record, nil before the
// first LoadAndReconcile.
func (e *Engine) Record() *evaluation.Record {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.record.Clone()
}

func (e *Engine) Errors() []errlog.Entry {
	return e.errs.Entries()
}

// LoadAndReconcile fetches the durable record and the cached snapshot and
// picks the most correct one. A load failure is recorded and the engine
// falls back to cache-or-fresh-draft; the returned record is always usable.
func (e *Engine) LoadAndReconcile(ctx context.Context, employeeID string, periodYear int) (*evaluation.Record, error) {
	dir, err := e.remote.FetchDirectoryRecord(ctx, employeeID)
	if err != nil {
		e.errs.Record(errlog.KindNetwork, "directory load failed: %v", err)
	}

	durable, fetchErr := e.remote.FetchEvaluation(ctx, periodYear)
	if fetchErr != nil {
		e.errs.Record(errlog.KindNetwork, "evaluation load failed: %v", fetchErr)
		durable = nil
	}

	snap := e.loadTrustedSnapshot(employeeID, durable)
	rec := reconcile(durable, snap)
	if rec == nil {
		rec = freshDraft(employeeID, periodYear, dir)
	}
	rec.EnsureSections()

	if snap != nil && rec != snap.Record {
		// Durable record won; the stale mirror is no longer a safety net.
		if err := e.cache.Clear(); err != nil {
			e.errs.Record(errlog.KindSave, "cache clear failed: %v", err)
		}
	}

	e.mu.Lock()
	e.record = rec
	e.directory = dir
	e.mu.Unlock()
	return rec.Clone(), nil
}

// loadTrustedSnapshot reads the cache and discards it when its embedded
// identity does not match the authenticated employee, or when it mirrors a
// different durable row than the one just fetched.
func (e *Engine) loadTrustedSnapshot(employeeID string, durable *evaluation.Record) *Snapshot {
	snap, err := e.cache.Load()
	if err != nil {
		e.errs.Record(errlog.KindSave, "cache read failed: %v", err)
		return nil
	}
	if snap == nil || snap.Record == nil {
		return nil
	}
	if snap.Record.EmployeeID != employeeID {
		return nil
	}
	if durable != nil && snap.Record.ID != "" && snap.Record.ID != durable.ID {
		return nil
	}
	return snap
}

// reconcile applies the cache-vs-durable rule: the cache wins only when the
// durable record is not submitted and the cached copy is strictly newer.
// Returns nil when neither side has anything.
func reconcile(durable *evaluation.Record, snap *Snapshot) *evaluation.Record {
	switch {
	case durable == nil && snap == nil:
		return nil
	case durable == nil:
		return snap.Record
	case snap == nil:
		return durable
	}

	if durable.Status != evaluation.StatusSubmitted &&
		durable.LastSavedAt != nil &&
		!snap.LastSavedAt.IsZero() &&
		snap.LastSavedAt.After(*durable.LastSavedAt) {
		// Cache is authoritative, but future writes must hit the same row.
		snap.Record.ID = durable.ID
		return snap.Record
	}
	return durable
}

func freshDraft(employeeID string, periodYear int, dir *DirectoryRecord) *evaluation.Record {
	var info *evaluation.EmployeeInfo
	if dir != nil {
		info = &evaluation.EmployeeInfo{
			FullName:   dir.Name,
			JobTitle:   dir.JobTitle,
			Department: dir.Department,
			Email:      dir.Email,
		}
	}
	return evaluation.NewDraft(employeeID, periodYear, info)
}

// UpdateSection applies a field edit and mirrors it locally. Edits against
// a read-only record are rejected without touching it.
func (e *Engine) UpdateSection(mutate func(*evaluation.Record)) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.record == nil {
		return fmt.Errorf("no evaluation loaded")
	}
	if evaluation.IsReadOnly(e.record.Status) {
		return evaluation.ErrReadOnly
	}
	mutate(e.record)
	e.mirrorLocked()
	return nil
}

// Edit is the everyday save path: apply the edit, mirror it synchronously,
// then fire an independent write-through. A burst of edits produces a burst
// of write-throughs; nothing is queued or coalesced. The write-through keeps
// the caller's values but not its cancellation, so a request that finishes
// right after Edit returns cannot abort the durable save.
func (e *Engine) Edit(ctx context.Context, mutate func(*evaluation.Record)) error {
	if err := e.UpdateSection(mutate); err != nil {
		return err
	}
	go e.WriteThrough(context.WithoutCancel(ctx))
	return nil
}

// MirrorLocally writes the full record plus a fresh lastSavedAt to the
// cache. It never fails the caller; cache errors are logged and swallowed.
func (e *Engine) MirrorLocally() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mirrorLocked()
}

func (e *Engine) mirrorLocked() {
	if e.record == nil {
		return
	}
	now := e.now().UTC()
	e.record.LastSavedAt = &now
	snap := &Snapshot{Record: e.record.Clone(), LastSavedAt: now}
	if err := e.cache.Store(snap); err != nil {
		e.errs.Record(errlog.KindSave, "local mirror failed: %v", err)
	}
}

// WriteThrough pushes the current record to the durable store. Without a
// credential it degrades to the local mirror; a remote failure is logged
// and silently retried on the next edit. Concurrent calls are neither
// queued nor coalesced, the last response to land wins at the store.
func (e *Engine) WriteThrough(ctx context.Context) {
	e.mu.Lock()
	if e.record == nil || evaluation.IsReadOnly(e.record.Status) || e.directory == nil {
		e.mu.Unlock()
		return
	}
	if _, ok := e.ids.Current(); !ok {
		e.mirrorLocked()
		e.mu.Unlock()
		return
	}
	payload := e.record.Clone()
	e.mu.Unlock()

	id, err := e.remote.SaveEvaluation(ctx, payload)
	if err != nil {
		e.errs.Record(errlog.KindSave, "write-through failed: %v", err)
		return
	}

	e.mu.Lock()
	if e.record != nil && e.record.ID == "" && id != "" {
		e.record.ID = id
	}
	e.mirrorLocked()
	e.mu.Unlock()
}

// FlushOnUnload is the page-close path: a guaranteed synchronous local
// mirror, then a detached best-effort durable write whose result nobody
// can await. Submitted records skip the durable write.
func (e *Engine) FlushOnUnload() {
	e.mu.Lock()
	e.mirrorLocked()
	rec := e.record.Clone()
	e.mu.Unlock()

	if rec == nil || rec.ID == "" || rec.Status == evaluation.StatusSubmitted {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), unloadFlushTimeout)
		defer cancel()
		if _, err := e.remote.SaveEvaluation(ctx, rec); err != nil {
			e.errs.Record(errlog.KindSave, "unload flush failed: %v", err)
		}
	}()
}

// Submit runs the lifecycle transition to submitted: create the durable row
// if missing, resolve the document (reuse or regenerate), then flip status
// through the atomic remote procedure. Unlike auto-save, every failure here
// surfaces, with the one exception of document generation.
func (e *Engine) Submit(ctx context.Context) error {
	if _, ok := e.ids.Current(); !ok {
		return identity.ErrNoCredential
	}

	e.mu.Lock()
	if e.record == nil || e.directory == nil {
		e.mu.Unlock()
		return fmt.Errorf("evaluation not loaded")
	}
	if evaluation.IsReadOnly(e.record.Status) {
		e.mu.Unlock()
		return evaluation.ErrReadOnly
	}
	if err := validateForSubmit(e.record); err != nil {
		e.mu.Unlock()
		e.errs.Record(errlog.KindValidation, "submit blocked: %v", err)
		return err
	}
	payload := e.record.Clone()
	e.mu.Unlock()

	if payload.ID == "" {
		id, err := e.remote.SaveEvaluation(ctx, payload)
		if err != nil {
			e.errs.Record(errlog.KindSubmit, "create before submit failed: %v", err)
			return fmt.Errorf("create evaluation: %w", err)
		}
		payload.ID = id
		e.mu.Lock()
		if e.record != nil && e.record.ID == "" {
			e.record.ID = id
		}
		e.mu.Unlock()
	}

	pdfURL := e.resolveDocument(ctx, payload)

	if err := e.remote.SubmitEvaluation(ctx, payload.ID, payload, pdfURL); err != nil {
		e.errs.Record(errlog.KindSubmit, "submit failed: %v", err)
		return fmt.Errorf("submit evaluation: %w", err)
	}

	e.mu.Lock()
	if err := e.record.ApplySubmit(e.now().UTC(), pdfURL); err != nil {
		// The store accepted the submit; the local copy must follow suit.
		e.record.Status = evaluation.StatusSubmitted
	}
	e.mirrorLocked()
	e.mu.Unlock()
	return nil
}

// resolveDocument re-checks the durable store's pdfUrl rather than trusting
// the in-memory copy, because the two may diverge across a reopen window.
// Reuse requires an absolute URL; anything else regenerates. A failure to
// render or to store the artifact is logged under its own kind and
// submission proceeds without one.
func (e *Engine) resolveDocument(ctx context.Context, rec *evaluation.Record) string {
	durable, err := e.remote.FetchEvaluation(ctx, rec.PeriodYear)
	if err != nil {
		e.errs.Record(errlog.KindNetwork, "artifact check failed: %v", err)
	} else if durable != nil && document.CanReuse(durable.PDFURL) {
		return durable.PDFURL
	}

	if e.docs == nil {
		return ""
	}
	result, err := e.docs.Generate(ctx, rec)
	if err != nil {
		if len(result.Bytes) > 0 {
			// Rendering succeeded; only blob persistence failed.
			e.errs.Record(errlog.KindSave, "artifact storage failed, submitting without artifact: %v", err)
		} else {
			e.errs.Record(errlog.KindDocument, "document generation failed, submitting without artifact: %v", err)
		}
		return ""
	}
	return result.URL
}

// Reopen is the reviewer-side transition: only the subject's direct manager
// may move a read-only record back into the editable loop, and a non-empty
// reason is required. Skip-level managers are rejected.
func (e *Engine) Reopen(ctx context.Context, subject *evaluation.Record, reason string) error {
	reviewer, ok := e.ids.Current()
	if !ok {
		return identity.ErrNoCredential
	}
	if strings.TrimSpace(reason) == "" {
		e.errs.Record(errlog.KindValidation, "reopen blocked: empty reason")
		return evaluation.ErrReasonRequired
	}
	if !evaluation.IsReadOnly(subject.Status) {
		return evaluation.ErrAlreadyOpen
	}

	dir, err := e.remote.FetchDirectoryRecord(ctx, subject.EmployeeID)
	if err != nil {
		e.errs.Record(errlog.KindNetwork, "reopen directory check failed: %v", err)
		return fmt.Errorf("resolve reporting line: %w", err)
	}
	if !evaluation.IsDirectManager(reviewer.EmployeeID, subject.EmployeeID, dir.ReportsTo) {
		return evaluation.ErrNotManager
	}

	if err := e.remote.ReopenEvaluation(ctx, subject.ID, reason); err != nil {
		e.errs.Record(errlog.KindSubmit, "reopen failed: %v", err)
		return fmt.Errorf("reopen evaluation: %w", err)
	}
	return subject.ApplyReopen(e.now().UTC(), reviewer.EmployeeID, reason)
}

// Reset drops the in-memory record and the cached snapshot, the explicit
// "start new evaluation" action.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record = nil
	if err := e.cache.Clear(); err != nil {
		e.errs.Record(errlog.KindSave, "cache clear failed: %v", err)
	}
}

func validateForSubmit(rec *evaluation.Record) error {
	if rec.EmployeeInfo == nil || strings.TrimSpace(rec.EmployeeInfo.FullName) == "" {
		return fmt.Errorf("employee name is required")
	}
	if rec.Summary == nil || strings.TrimSpace(rec.Summary.SelfAssessment) == "" {
		return fmt.Errorf("self-assessment is required")
	}
	if rec.Quantitative != nil {
		for _, comp := range rec.Quantitative.Competencies {
			if comp.Score != nil && (*comp.Score < evaluation.ScoreMin || *comp.Score > evaluation.ScoreMax) {
				return fmt.Errorf("score for %q out of range", comp.Name)
			}
		}
	}
	return nil
}
