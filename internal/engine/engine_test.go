package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"evalportal/internal/document"
	"evalportal/internal/domain/evaluation"
	"evalportal/internal/errlog"
	"evalportal/internal/identity"
)

type fakeRemote struct {
	mu        sync.Mutex
	durable   *evaluation.Record
	directory map[string]*DirectoryRecord

	fetchErr  error
	saveErr   error
	submitErr error
	reopenErr error

	saveCalls   int
	submitCalls int
	submitURL   string
	saved       chan struct{}
}

func (f *fakeRemote) FetchEvaluation(ctx context.Context, periodYear int) (*evaluation.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.durable.Clone(), nil
}

func (f *fakeRemote) SaveEvaluation(ctx context.Context, rec *evaluation.Record) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.saveCalls++
	if f.saved != nil {
		f.saved <- struct{}{}
	}
	if f.saveErr != nil {
		return "", f.saveErr
	}
	stored := rec.Clone()
	if stored.ID == "" {
		stored.ID = "assigned-1"
	}
	f.durable = stored
	return stored.ID, nil
}

func (f *fakeRemote) SubmitEvaluation(ctx context.Context, evaluationID string, rec *evaluation.Record, pdfURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitCalls++
	if f.submitErr != nil {
		return f.submitErr
	}
	f.submitURL = pdfURL
	stored := rec.Clone()
	stored.ID = evaluationID
	stored.Status = evaluation.StatusSubmitted
	stored.PDFURL = pdfURL
	f.durable = stored
	return nil
}

func (f *fakeRemote) ReopenEvaluation(ctx context.Context, evaluationID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reopenErr != nil {
		return f.reopenErr
	}
	if f.durable != nil {
		f.durable.Status = evaluation.StatusReopened
	}
	return nil
}

func (f *fakeRemote) FetchDirectoryRecord(ctx context.Context, employeeID string) (*DirectoryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.directory[employeeID]
	if !ok {
		return nil, errors.New("employee not found")
	}
	return rec, nil
}

type memCache struct {
	mu       sync.Mutex
	snap     *Snapshot
	storeErr error
	stores   int
	clears   int
}

func (c *memCache) Load() (*Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap, nil
}

func (c *memCache) Store(snap *Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stores++
	if c.storeErr != nil {
		return c.storeErr
	}
	c.snap = snap
	return nil
}

func (c *memCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clears++
	c.snap = nil
	return nil
}

type fakeIDs struct {
	id identity.Identity
	ok bool
}

func (f *fakeIDs) Current() (identity.Identity, bool) { return f.id, f.ok }

type fakeDocs struct {
	url   string
	bytes []byte // returned alongside err to model a storage-only failure
	err   error
	calls int
}

func (f *fakeDocs) Generate(ctx context.Context, rec *evaluation.Record) (document.Result, error) {
	f.calls++
	if f.err != nil {
		return document.Result{Bytes: f.bytes}, f.err
	}
	return document.Result{Bytes: []byte("%PDF"), URL: f.url}, nil
}

func newTestEngine(remote *fakeRemote, cache *memCache, ids *fakeIDs, docs *fakeDocs) *Engine {
	if remote.directory == nil {
		remote.directory = map[string]*DirectoryRecord{
			"emp-1": {EmployeeID: "emp-1", Name: "Ada Lovelace", JobTitle: "Engineer", ReportsTo: "mgr-1", Email: "ada@example.com"},
		}
	}
	eng := New(remote, cache, ids, docs, errlog.New(20))
	eng.now = func() time.Time { return time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC) }
	return eng
}

func employeeIdentity() *fakeIDs {
	return &fakeIDs{id: identity.Identity{EmployeeID: "emp-1", ReportsTo: "mgr-1", Token: "tok"}, ok: true}
}

func timePtr(t time.Time) *time.Time { return &t }

func TestLoadSynthesizesFreshDraft(t *testing.T) {
	remote := &fakeRemote{}
	eng := newTestEngine(remote, &memCache{}, employeeIdentity(), &fakeDocs{})

	rec, err := eng.LoadAndReconcile(context.Background(), "emp-1", 2025)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if rec.ID != "" {
		t.Fatal("fresh draft must have no durable id")
	}
	if rec.Status != evaluation.StatusDraft {
		t.Fatalf("expected draft, got %s", rec.Status)
	}
	if rec.EmployeeInfo == nil || rec.EmployeeInfo.FullName != "Ada Lovelace" {
		t.Fatal("identity fields not prefilled from directory snapshot")
	}
}

func TestReconcileCacheWinsWhenStrictlyNewer(t *testing.T) {
	t1 := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	remote := &fakeRemote{durable: &evaluation.Record{
		ID: "rec-1", EmployeeID: "emp-1", PeriodYear: 2025,
		Status: evaluation.StatusDraft, LastSavedAt: timePtr(t1),
	}}
	cached := evaluation.NewDraft("emp-1", 2025, nil)
	cached.Summary.SelfAssessment = "unsynced local edit"
	cache := &memCache{snap: &Snapshot{Record: cached, LastSavedAt: t2}}

	eng := newTestEngine(remote, cache, employeeIdentity(), &fakeDocs{})
	rec, err := eng.LoadAndReconcile(context.Background(), "emp-1", 2025)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if rec.Summary.SelfAssessment != "unsynced local edit" {
		t.Fatal("newer cache should win over older durable draft")
	}
	if rec.ID != "rec-1" {
		t.Fatal("winning cache must carry over the durable identifier")
	}
	if cache.clears != 0 {
		t.Fatal("winning cache must not be cleared")
	}
}

func TestReconcileDurableWinsWhenCacheOlder(t *testing.T) {
	t1 := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

	remote := &fakeRemote{durable: &evaluation.Record{
		ID: "rec-1", EmployeeID: "emp-1", PeriodYear: 2025,
		Status: evaluation.StatusDraft, LastSavedAt: timePtr(t1),
	}}
	cached := evaluation.NewDraft("emp-1", 2025, nil)
	cache := &memCache{snap: &Snapshot{Record: cached, LastSavedAt: t1.Add(-time.Hour)}}

	eng := newTestEngine(remote, cache, employeeIdentity(), &fakeDocs{})
	rec, err := eng.LoadAndReconcile(context.Background(), "emp-1", 2025)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if rec.ID != "rec-1" {
		t.Fatal("durable record should win")
	}
	if cache.clears == 0 {
		t.Fatal("losing cache must be cleared")
	}
}

func TestReconcileSubmittedDurableAlwaysWins(t *testing.T) {
	t1 := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

	remote := &fakeRemote{durable: &evaluation.Record{
		ID: "rec-1", EmployeeID: "emp-1", PeriodYear: 2025,
		Status: evaluation.StatusSubmitted, LastSavedAt: timePtr(t1),
	}}
	cached := evaluation.NewDraft("emp-1", 2025, nil)
	cached.Summary.SelfAssessment = "late local edit"
	cache := &memCache{snap: &Snapshot{Record: cached, LastSavedAt: t1.Add(time.Hour)}}

	eng := newTestEngine(remote, cache, employeeIdentity(), &fakeDocs{})
	rec, err := eng.LoadAndReconcile(context.Background(), "emp-1", 2025)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if rec.Status != evaluation.StatusSubmitted {
		t.Fatal("submitted durable record must always win, regardless of cache time")
	}
}

func TestReconcileIgnoresForeignCache(t *testing.T) {
	cached := evaluation.NewDraft("someone-else", 2025, nil)
	cache := &memCache{snap: &Snapshot{Record: cached, LastSavedAt: time.Now()}}

	eng := newTestEngine(&fakeRemote{}, cache, employeeIdentity(), &fakeDocs{})
	rec, err := eng.LoadAndReconcile(context.Background(), "emp-1", 2025)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if rec.EmployeeID != "emp-1" {
		t.Fatal("cache for another employee must not be trusted")
	}
}

func TestReconcileCacheWinsWhenNoDurable(t *testing.T) {
	cached := evaluation.NewDraft("emp-1", 2025, nil)
	cached.Qualitative.Achievements = "offline work"
	cache := &memCache{snap: &Snapshot{Record: cached, LastSavedAt: time.Now()}}

	eng := newTestEngine(&fakeRemote{}, cache, employeeIdentity(), &fakeDocs{})
	rec, err := eng.LoadAndReconcile(context.Background(), "emp-1", 2025)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if rec.Qualitative.Achievements != "offline work" {
		t.Fatal("cache-only state must be adopted")
	}
}

func TestLoadFailureFallsBackToCache(t *testing.T) {
	cached := evaluation.NewDraft("emp-1", 2025, nil)
	cached.Qualitative.Achievements = "offline work"
	cache := &memCache{snap: &Snapshot{Record: cached, LastSavedAt: time.Now()}}
	remote := &fakeRemote{fetchErr: errors.New("network down")}

	eng := newTestEngine(remote, cache, employeeIdentity(), &fakeDocs{})
	rec, err := eng.LoadAndReconcile(context.Background(), "emp-1", 2025)
	if err != nil {
		t.Fatalf("load should fall back, got %v", err)
	}
	if rec.Qualitative.Achievements != "offline work" {
		t.Fatal("cache must back a failed initial load")
	}
	if len(eng.Errors()) == 0 {
		t.Fatal("load failure must be recorded in the error log")
	}
}

func TestUpdateSectionMirrorsLocally(t *testing.T) {
	cache := &memCache{}
	eng := newTestEngine(&fakeRemote{}, cache, employeeIdentity(), &fakeDocs{})
	if _, err := eng.LoadAndReconcile(context.Background(), "emp-1", 2025); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	err := eng.UpdateSection(func(rec *evaluation.Record) {
		rec.Summary.GoalsNextYear = "ship the thing"
	})
	if err != nil {
		t.Fatalf("edit failed: %v", err)
	}
	if cache.snap == nil || cache.snap.Record.Summary.GoalsNextYear != "ship the thing" {
		t.Fatal("edit not mirrored to local cache")
	}
	if cache.snap.LastSavedAt.IsZero() {
		t.Fatal("mirror must stamp lastSavedAt")
	}
}

func TestUpdateSectionRejectedWhenReadOnly(t *testing.T) {
	remote := &fakeRemote{durable: &evaluation.Record{
		ID: "rec-1", EmployeeID: "emp-1", PeriodYear: 2025, Status: evaluation.StatusSubmitted,
	}}
	eng := newTestEngine(remote, &memCache{}, employeeIdentity(), &fakeDocs{})
	if _, err := eng.LoadAndReconcile(context.Background(), "emp-1", 2025); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	err := eng.UpdateSection(func(rec *evaluation.Record) {
		rec.Summary.Comments = "sneaky edit"
	})
	if !errors.Is(err, evaluation.ErrReadOnly) {
		t.Fatalf("expected ErrReadOnly, got %v", err)
	}
	if eng.Record().Summary.Comments != "" {
		t.Fatal("read-only record must stay unchanged")
	}
}

func TestWriteThroughDegradesWithoutCredential(t *testing.T) {
	remote := &fakeRemote{}
	cache := &memCache{}
	ids := &fakeIDs{ok: true, id: identity.Identity{EmployeeID: "emp-1", Token: "tok"}}
	eng := newTestEngine(remote, cache, ids, &fakeDocs{})
	if _, err := eng.LoadAndReconcile(context.Background(), "emp-1", 2025); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	ids.ok = false
	eng.WriteThrough(context.Background())
	if remote.saveCalls != 0 {
		t.Fatal("no durable write without a credential")
	}
	if cache.stores == 0 {
		t.Fatal("credential-less write-through must still mirror locally")
	}
}

func TestWriteThroughAdoptsAssignedID(t *testing.T) {
	remote := &fakeRemote{}
	eng := newTestEngine(remote, &memCache{}, employeeIdentity(), &fakeDocs{})
	if _, err := eng.LoadAndReconcile(context.Background(), "emp-1", 2025); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	eng.WriteThrough(context.Background())
	if remote.saveCalls != 1 {
		t.Fatalf("expected one durable write, got %d", remote.saveCalls)
	}
	if eng.Record().ID != "assigned-1" {
		t.Fatal("engine must adopt the identifier assigned on first create")
	}
}

func TestWriteThroughFailureIsSilent(t *testing.T) {
	remote := &fakeRemote{saveErr: errors.New("store down")}
	eng := newTestEngine(remote, &memCache{}, employeeIdentity(), &fakeDocs{})
	if _, err := eng.LoadAndReconcile(context.Background(), "emp-1", 2025); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	eng.WriteThrough(context.Background())
	found := false
	for _, entry := range eng.Errors() {
		if entry.Kind == errlog.KindSave {
			found = true
		}
	}
	if !found {
		t.Fatal("silent save failure must still be recorded")
	}
}

func TestWriteThroughSkipsReadOnlyRecord(t *testing.T) {
	remote := &fakeRemote{durable: &evaluation.Record{
		ID: "rec-1", EmployeeID: "emp-1", PeriodYear: 2025, Status: evaluation.StatusSubmitted,
	}}
	eng := newTestEngine(remote, &memCache{}, employeeIdentity(), &fakeDocs{})
	if _, err := eng.LoadAndReconcile(context.Background(), "emp-1", 2025); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	eng.WriteThrough(context.Background())
	if remote.saveCalls != 0 {
		t.Fatal("read-only records must not be written through")
	}
}

func TestEditMirrorsThenWritesThrough(t *testing.T) {
	remote := &fakeRemote{saved: make(chan struct{}, 1)}
	cache := &memCache{}
	eng := newTestEngine(remote, cache, employeeIdentity(), &fakeDocs{})
	if _, err := eng.LoadAndReconcile(context.Background(), "emp-1", 2025); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	err := eng.Edit(context.Background(), func(rec *evaluation.Record) {
		rec.Qualitative.Achievements = "typed a sentence"
	})
	if err != nil {
		t.Fatalf("edit failed: %v", err)
	}
	if cache.stores == 0 {
		t.Fatal("edit must mirror locally before the durable write")
	}
	select {
	case <-remote.saved:
	case <-time.After(2 * time.Second):
		t.Fatal("edit never reached the durable store")
	}
}

func TestEditWriteThroughOutlivesCallerCancel(t *testing.T) {
	remote := &fakeRemote{saved: make(chan struct{}, 1)}
	eng := newTestEngine(remote, &memCache{}, employeeIdentity(), &fakeDocs{})
	if _, err := eng.LoadAndReconcile(context.Background(), "emp-1", 2025); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := eng.Edit(ctx, func(rec *evaluation.Record) {
		rec.Qualitative.Achievements = "final keystroke"
	})
	if err != nil {
		t.Fatalf("edit failed: %v", err)
	}
	select {
	case <-remote.saved:
	case <-time.After(2 * time.Second):
		t.Fatal("durable write must not die with the caller's context")
	}
}

func TestFlushOnUnloadMirrorsAndFires(t *testing.T) {
	remote := &fakeRemote{durable: &evaluation.Record{
		ID: "rec-1", EmployeeID: "emp-1", PeriodYear: 2025,
		Status: evaluation.StatusDraft, LastSavedAt: timePtr(time.Now()),
	}, saved: make(chan struct{}, 1)}
	cache := &memCache{}
	eng := newTestEngine(remote, cache, employeeIdentity(), &fakeDocs{})
	if _, err := eng.LoadAndReconcile(context.Background(), "emp-1", 2025); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	eng.FlushOnUnload()
	if cache.stores == 0 {
		t.Fatal("unload must mirror locally first")
	}
	select {
	case <-remote.saved:
	case <-time.After(2 * time.Second):
		t.Fatal("detached durable write never fired")
	}
}

func TestFlushOnUnloadSkipsSubmitted(t *testing.T) {
	remote := &fakeRemote{durable: &evaluation.Record{
		ID: "rec-1", EmployeeID: "emp-1", PeriodYear: 2025, Status: evaluation.StatusSubmitted,
	}, saved: make(chan struct{}, 1)}
	cache := &memCache{}
	eng := newTestEngine(remote, cache, employeeIdentity(), &fakeDocs{})
	if _, err := eng.LoadAndReconcile(context.Background(), "emp-1", 2025); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	eng.FlushOnUnload()
	if cache.stores == 0 {
		t.Fatal("unload must always mirror locally")
	}
	select {
	case <-remote.saved:
		t.Fatal("submitted record must not be flushed durably")
	case <-time.After(100 * time.Millisecond):
	}
}

func loadedEngineForSubmit(t *testing.T, remote *fakeRemote, docs *fakeDocs) *Engine {
	t.Helper()
	eng := newTestEngine(remote, &memCache{}, employeeIdentity(), docs)
	if _, err := eng.LoadAndReconcile(context.Background(), "emp-1", 2025); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	err := eng.UpdateSection(func(rec *evaluation.Record) {
		rec.EmployeeInfo.FullName = "Ada Lovelace"
		rec.Summary.SelfAssessment = "a solid year"
	})
	if err != nil {
		t.Fatalf("edit failed: %v", err)
	}
	return eng
}

func TestSubmitCreatesRecordBeforeTransition(t *testing.T) {
	remote := &fakeRemote{}
	docs := &fakeDocs{url: "https://files.example.com/doc.pdf"}
	eng := loadedEngineForSubmit(t, remote, docs)

	if err := eng.Submit(context.Background()); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if remote.saveCalls != 1 {
		t.Fatal("record without id must be created before submitting")
	}
	rec := eng.Record()
	if rec.ID != "assigned-1" || rec.Status != evaluation.StatusSubmitted {
		t.Fatalf("unexpected post-submit record: id=%s status=%s", rec.ID, rec.Status)
	}
	if rec.SubmittedAt == nil {
		t.Fatal("submittedAt not stamped")
	}
	if remote.submitURL != "https://files.example.com/doc.pdf" {
		t.Fatal("generated artifact url not attached")
	}
}

func TestSubmitReusesAbsoluteArtifactURL(t *testing.T) {
	remote := &fakeRemote{durable: &evaluation.Record{
		ID: "rec-1", EmployeeID: "emp-1", PeriodYear: 2025,
		Status: evaluation.StatusReopened,
		PDFURL: "https://files.example.com/existing.pdf",
	}}
	docs := &fakeDocs{url: "https://files.example.com/new.pdf"}
	eng := loadedEngineForSubmit(t, remote, docs)

	if err := eng.Submit(context.Background()); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if docs.calls != 0 {
		t.Fatal("absolute stored url must be reused, not regenerated")
	}
	if remote.submitURL != "https://files.example.com/existing.pdf" {
		t.Fatalf("expected reuse of stored url, got %s", remote.submitURL)
	}
}

func TestSubmitRechecksStoreNotMemory(t *testing.T) {
	// The in-memory copy still points at an artifact the reopen cycle made
	// stale; the store has none, so a fresh document is generated.
	remote := &fakeRemote{durable: &evaluation.Record{
		ID: "rec-1", EmployeeID: "emp-1", PeriodYear: 2025,
		Status: evaluation.StatusReopened,
		PDFURL: "/storage/stale-local.pdf",
	}}
	docs := &fakeDocs{url: "https://files.example.com/regenerated.pdf"}
	eng := loadedEngineForSubmit(t, remote, docs)

	if err := eng.Submit(context.Background()); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if docs.calls != 1 {
		t.Fatal("non-absolute stored url must force regeneration")
	}
	if remote.submitURL != "https://files.example.com/regenerated.pdf" {
		t.Fatalf("expected regenerated url, got %s", remote.submitURL)
	}
}

func TestSubmitProceedsWhenGenerationFails(t *testing.T) {
	remote := &fakeRemote{}
	docs := &fakeDocs{err: errors.New("renderer crashed")}
	eng := loadedEngineForSubmit(t, remote, docs)

	if err := eng.Submit(context.Background()); err != nil {
		t.Fatalf("generation failure must not block submission: %v", err)
	}
	if remote.submitURL != "" {
		t.Fatal("failed generation must submit without an artifact url")
	}
	found := false
	for _, entry := range eng.Errors() {
		if entry.Kind == errlog.KindDocument {
			found = true
		}
	}
	if !found {
		t.Fatal("generation failure must be logged as a distinct condition")
	}
}

func TestSubmitProceedsWhenArtifactStorageFails(t *testing.T) {
	remote := &fakeRemote{}
	docs := &fakeDocs{bytes: []byte("%PDF"), err: errors.New("blob store unavailable")}
	eng := loadedEngineForSubmit(t, remote, docs)

	if err := eng.Submit(context.Background()); err != nil {
		t.Fatalf("storage failure must not block submission: %v", err)
	}
	if remote.submitURL != "" {
		t.Fatal("unstored artifact must submit without a url")
	}
	var sawSave, sawDocument bool
	for _, entry := range eng.Errors() {
		switch entry.Kind {
		case errlog.KindSave:
			sawSave = true
		case errlog.KindDocument:
			sawDocument = true
		}
	}
	if !sawSave {
		t.Fatal("storage failure must be logged as a save error")
	}
	if sawDocument {
		t.Fatal("storage failure must not read as a rendering failure")
	}
}

func TestSubmitAbortsWhenTransitionFails(t *testing.T) {
	remote := &fakeRemote{submitErr: errors.New("store rejected submit")}
	docs := &fakeDocs{url: "https://files.example.com/doc.pdf"}
	eng := loadedEngineForSubmit(t, remote, docs)

	if err := eng.Submit(context.Background()); err == nil {
		t.Fatal("submit failure must surface")
	}
	if eng.Record().Status != evaluation.StatusDraft {
		t.Fatal("aborted submit must leave status unchanged")
	}
}

func TestSubmitRequiresCredential(t *testing.T) {
	eng := newTestEngine(&fakeRemote{}, &memCache{}, &fakeIDs{}, &fakeDocs{})
	if err := eng.Submit(context.Background()); !errors.Is(err, identity.ErrNoCredential) {
		t.Fatalf("expected ErrNoCredential, got %v", err)
	}
}

func TestSubmitBlockedByValidation(t *testing.T) {
	remote := &fakeRemote{}
	eng := newTestEngine(remote, &memCache{}, employeeIdentity(), &fakeDocs{})
	if _, err := eng.LoadAndReconcile(context.Background(), "emp-1", 2025); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if err := eng.Submit(context.Background()); err == nil {
		t.Fatal("submit without self-assessment must be blocked")
	}
	if remote.submitCalls != 0 {
		t.Fatal("validation failure must not reach the store")
	}
}

func TestSubmitTwiceIsRejected(t *testing.T) {
	remote := &fakeRemote{}
	docs := &fakeDocs{url: "https://files.example.com/doc.pdf"}
	eng := loadedEngineForSubmit(t, remote, docs)

	if err := eng.Submit(context.Background()); err != nil {
		t.Fatalf("first submit failed: %v", err)
	}
	if err := eng.Submit(context.Background()); !errors.Is(err, evaluation.ErrReadOnly) {
		t.Fatalf("second submit must hit the read-only guard, got %v", err)
	}
	if docs.calls != 1 {
		t.Fatal("a second submit must never produce a second artifact")
	}
}

func managerEngine(remote *fakeRemote) *Engine {
	ids := &fakeIDs{id: identity.Identity{EmployeeID: "mgr-1", Token: "tok"}, ok: true}
	eng := New(remote, &memCache{}, ids, &fakeDocs{}, errlog.New(20))
	eng.now = func() time.Time { return time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC) }
	return eng
}

func submittedSubject() *evaluation.Record {
	return &evaluation.Record{
		ID: "rec-1", EmployeeID: "emp-1", PeriodYear: 2025,
		Status: evaluation.StatusSubmitted,
	}
}

func TestReopenByDirectManager(t *testing.T) {
	remote := &fakeRemote{directory: map[string]*DirectoryRecord{
		"emp-1": {EmployeeID: "emp-1", ReportsTo: "mgr-1"},
	}}
	eng := managerEngine(remote)
	subject := submittedSubject()

	if err := eng.Reopen(context.Background(), subject, "missing Q3 numbers"); err != nil {
		t.Fatalf("direct manager reopen failed: %v", err)
	}
	if subject.Status != evaluation.StatusReopened {
		t.Fatalf("expected reopened, got %s", subject.Status)
	}
	if subject.ReopenedBy != "mgr-1" || subject.ReopenReason != "missing Q3 numbers" {
		t.Fatal("reopen audit fields not stamped")
	}
}

func TestReopenRejectsSkipLevelManager(t *testing.T) {
	remote := &fakeRemote{directory: map[string]*DirectoryRecord{
		"emp-1": {EmployeeID: "emp-1", ReportsTo: "mgr-1"},
	}}
	ids := &fakeIDs{id: identity.Identity{EmployeeID: "director-1", Token: "tok"}, ok: true}
	eng := New(remote, &memCache{}, ids, &fakeDocs{}, errlog.New(20))

	err := eng.Reopen(context.Background(), submittedSubject(), "overriding")
	if !errors.Is(err, evaluation.ErrNotManager) {
		t.Fatalf("skip-level reviewer must be rejected, got %v", err)
	}
}

func TestReopenRejectsSelfViaRootSentinel(t *testing.T) {
	remote := &fakeRemote{directory: map[string]*DirectoryRecord{
		"root-1": {EmployeeID: "root-1", ReportsTo: "root-1"},
	}}
	ids := &fakeIDs{id: identity.Identity{EmployeeID: "root-1", Token: "tok"}, ok: true}
	eng := New(remote, &memCache{}, ids, &fakeDocs{}, errlog.New(20))

	subject := &evaluation.Record{
		ID: "rec-9", EmployeeID: "root-1", PeriodYear: 2025,
		Status: evaluation.StatusSubmitted,
	}
	err := eng.Reopen(context.Background(), subject, "second thoughts")
	if !errors.Is(err, evaluation.ErrNotManager) {
		t.Fatalf("self reopen through the reports-to sentinel must be rejected, got %v", err)
	}
}

func TestReopenRequiresReason(t *testing.T) {
	eng := managerEngine(&fakeRemote{})
	err := eng.Reopen(context.Background(), submittedSubject(), "   ")
	if !errors.Is(err, evaluation.ErrReasonRequired) {
		t.Fatalf("expected ErrReasonRequired, got %v", err)
	}
}

func TestReopenRejectsEditableRecord(t *testing.T) {
	eng := managerEngine(&fakeRemote{})
	subject := submittedSubject()
	subject.Status = evaluation.StatusDraft
	err := eng.Reopen(context.Background(), subject, "reason")
	if !errors.Is(err, evaluation.ErrAlreadyOpen) {
		t.Fatalf("expected ErrAlreadyOpen, got %v", err)
	}
}

func TestReopenSurfacesRemoteFailure(t *testing.T) {
	remote := &fakeRemote{
		directory: map[string]*DirectoryRecord{"emp-1": {EmployeeID: "emp-1", ReportsTo: "mgr-1"}},
		reopenErr: errors.New("store rejected reopen"),
	}
	eng := managerEngine(remote)
	subject := submittedSubject()

	if err := eng.Reopen(context.Background(), subject, "reason"); err == nil {
		t.Fatal("reopen failure must surface")
	}
	if subject.Status != evaluation.StatusSubmitted {
		t.Fatal("failed reopen must leave status unchanged")
	}
}

func TestResetClearsCache(t *testing.T) {
	cache := &memCache{snap: &Snapshot{Record: evaluation.NewDraft("emp-1", 2025, nil), LastSavedAt: time.Now()}}
	eng := newTestEngine(&fakeRemote{}, cache, employeeIdentity(), &fakeDocs{})
	eng.Reset()
	if cache.snap != nil {
		t.Fatal("reset must clear the cached snapshot")
	}
	if eng.Record() != nil {
		t.Fatal("reset must drop the in-memory record")
	}
}
