package mapview

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwise1/hazard_map/internal/model"
	"github.com/google/uuid"
	"github.com/paulmach/orb"
)

type controllerFixture struct {
	*submitFixture
	mapp     *fakeMap
	renderer *fakeRenderer
	ctrl     *Controller

	mu      sync.Mutex
	notices []Notice
}

func newControllerFixture(sess Session) *controllerFixture {
	f := &controllerFixture{
		submitFixture: newSubmitFixture(),
		mapp:          newFakeMap(),
		renderer:      &fakeRenderer{},
	}
	f.ctrl = NewController(Options{
		Session:  sess,
		API:      f.api,
		Uploader: f.uploader,
		Analyzer: f.analyzer,
		Points:   f.points,
		Map:      f.mapp,
		Renderer: f.renderer,
		Device:   DevicePointer,
		Now:      func() time.Time { return fixedNow },
		OnNotice: func(n Notice) {
			f.mu.Lock()
			f.notices = append(f.notices, n)
			f.mu.Unlock()
		},
	})
	return f
}

func (f *controllerFixture) noticesAt(level NoticeLevel) []Notice {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Notice
	for _, n := range f.notices {
		if n.Level == level {
			out = append(out, n)
		}
	}
	return out
}

func (f *controllerFixture) seed(t *testing.T, approved, pending []model.Report) {
	t.Helper()
	f.api.listFn = func(q model.ReportQuery) ([]model.Report, error) {
		if q.Status == model.StatusPending {
			return pending, nil
		}
		return approved, nil
	}
	if err := f.ctrl.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestControllerSubmitScenario(t *testing.T) {
	user := uuid.New()
	f := newControllerFixture(Session{UserID: user})
	earlier := report(model.CategoryTraffic, 2, model.StatusPending)
	f.seed(t, nil, []model.Report{earlier})

	f.ctrl.Surface().StartReport()
	out, err := f.ctrl.Submit(context.Background(), ReportDraft{
		Title:    "崩れかけた塀",
		Category: model.CategoryDisaster,
		Severity: 4,
		Position: ptrPoint(139.70, 35.69),
	})
	if err != nil {
		t.Fatal(err)
	}

	r := out.Report
	if r.Status != model.StatusPending || r.Severity != 4 || len(r.ProcessedImageURLs) != 0 || r.ProcessedImageURLs == nil {
		t.Errorf("report = %+v", r)
	}
	if r.Longitude != 139.70 || r.Latitude != 35.69 {
		t.Errorf("position = %v,%v", r.Longitude, r.Latitude)
	}

	pending := f.ctrl.Pending()
	if len(pending) != 2 || pending[0].ID != r.ID || pending[1].ID != earlier.ID {
		t.Errorf("pending head = %+v", pending)
	}
	if f.ctrl.Surface().Mode() != ModePreviewingSubmission {
		t.Errorf("mode = %s", f.ctrl.Surface().Mode())
	}
	if _, ok := f.ctrl.markers.Lookup(r.ID); !ok {
		t.Error("no marker for the new report")
	}
	if out.Analysis != nil {
		t.Error("analysis started without an image")
	}
	if _, err := out.Points.Wait(waitFor(t)); err != nil {
		t.Fatal(err)
	}
	if got := f.points.all(); len(got) != 1 || got[0] != (award{user, r.ID, 20}) {
		t.Errorf("awards = %+v", got)
	}
}

func TestControllerSubmitUsesSelectedLocation(t *testing.T) {
	f := newControllerFixture(Session{UserID: uuid.New()})
	f.ctrl.Surface().StartReport()
	_ = f.ctrl.Surface().DragMarker(orb.Point{135.50, 34.69})

	out, err := f.ctrl.Submit(context.Background(), ReportDraft{Title: "Loose signboard", Category: model.CategoryOther, Severity: 2})
	if err != nil {
		t.Fatal(err)
	}
	if out.Report.Longitude != 135.50 || out.Report.Latitude != 34.69 {
		t.Errorf("position = %v,%v", out.Report.Longitude, out.Report.Latitude)
	}
}

func TestControllerSubmitWithoutLocation(t *testing.T) {
	f := newControllerFixture(Session{UserID: uuid.New()})

	_, err := f.ctrl.Submit(context.Background(), ReportDraft{Title: "No place", Category: model.CategoryCrime, Severity: 1})
	if r, ok := ReasonOf(err); !ok || r != ReasonMissingLocation {
		t.Fatalf("err = %v", err)
	}
	if n := f.networkCalls(); n != 0 {
		t.Errorf("%d network calls", n)
	}
}

func TestControllerSubmitSignedOut(t *testing.T) {
	f := newControllerFixture(Session{})
	_, err := f.ctrl.Submit(context.Background(), validDraft())
	if !errors.Is(err, ErrNotSignedIn) {
		t.Fatalf("err = %v", err)
	}
	if n := f.networkCalls(); n != 0 {
		t.Errorf("%d network calls", n)
	}
}

func TestControllerAnalysisFailure(t *testing.T) {
	f := newControllerFixture(Session{UserID: uuid.New()})
	f.analyzer.err = errors.New("timeout")
	f.ctrl.Surface().StartReport()

	d := validDraft()
	orig := pngImage("wall.png")
	d.OriginalImage = &orig
	out, err := f.ctrl.Submit(context.Background(), d)
	if err != nil {
		t.Fatal(err)
	}
	<-out.Analysis.Done()

	got := f.ctrl.Pending()
	if len(got) != 1 || got[0].ID != out.Report.ID {
		t.Fatalf("pending = %+v", got)
	}
	if got[0].Status != model.StatusPending || len(got[0].ProcessedImageURLs) != 0 {
		t.Errorf("report after failed analysis = %+v", got[0])
	}
	var ae *AnalysisError
	warned := false
	for _, n := range f.noticesAt(NoticeWarning) {
		if errors.As(n.Err, &ae) {
			warned = true
		}
	}
	if !warned {
		t.Error("no analysis warning surfaced")
	}
}

func TestControllerAnalysisMerge(t *testing.T) {
	f := newControllerFixture(Session{UserID: uuid.New()})
	f.analyzer.result = model.AnalysisResult{
		Risks:              []model.RiskFinding{{Category: "structure", Risk: "wall may collapse", Mitigation: "keep distance"}},
		ProcessedImageURLs: []string{"https://cdn.test/processed/manual.png?t=1", "https://cdn.test/processed/ai.png?t=2"},
	}
	f.ctrl.Surface().StartReport()

	d := validDraft()
	orig := pngImage("wall.png")
	d.OriginalImage = &orig
	d.ProcessedImages = []model.Image{pngImage("manual.png")}
	out, err := f.ctrl.Submit(context.Background(), d)
	if err != nil {
		t.Fatal(err)
	}
	<-out.Analysis.Done()

	got := f.ctrl.Pending()[0].ProcessedImageURLs
	want := []string{"https://cdn.test/processed/manual.png?t=1", "https://cdn.test/processed/ai.png?t=2"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("processed = %v; want %v", got, want)
	}
	preview := f.ctrl.Surface().State().Preview
	if preview == nil || len(preview.ProcessedImageURLs) != 2 {
		t.Errorf("preview = %+v", preview)
	}
}

func TestControllerPersistenceFailure(t *testing.T) {
	f := newControllerFixture(Session{UserID: uuid.New()})
	f.api.createErr = errors.New("insert failed")
	f.ctrl.Surface().StartReport()

	_, err := f.ctrl.Submit(context.Background(), validDraft())
	var pe *PersistenceError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v", err)
	}
	if len(f.ctrl.Pending()) != 0 || f.ctrl.Surface().Mode() != ModeFormOpen {
		t.Errorf("state changed after failed create: mode=%s", f.ctrl.Surface().Mode())
	}
	if len(f.noticesAt(NoticeError)) != 1 {
		t.Error("failure not surfaced")
	}
}

func TestControllerDelete(t *testing.T) {
	a := report(model.CategoryCrime, 3, model.StatusApproved)
	p := report(model.CategoryTraffic, 1, model.StatusPending)

	t.Run("unknown report is a no-op", func(t *testing.T) {
		f := newControllerFixture(Session{UserID: uuid.New(), IsAdmin: true})
		f.seed(t, []model.Report{a}, []model.Report{p})
		clears := f.renderer.clears

		if err := f.ctrl.Delete(context.Background(), uuid.New()); err != nil {
			t.Fatal(err)
		}
		if len(f.api.deleted) != 0 {
			t.Error("delete request sent")
		}
		if len(f.ctrl.Approved()) != 1 || len(f.ctrl.Pending()) != 1 || f.renderer.clears != clears {
			t.Error("state mutated")
		}
	})

	t.Run("non-admin", func(t *testing.T) {
		f := newControllerFixture(Session{UserID: uuid.New()})
		f.seed(t, []model.Report{a}, nil)

		var pe *PermissionError
		if err := f.ctrl.Delete(context.Background(), a.ID); !errors.As(err, &pe) {
			t.Fatalf("err = %v", err)
		}
		if len(f.api.deleted) != 0 || len(f.ctrl.Approved()) != 1 {
			t.Error("non-admin delete went through")
		}
	})

	t.Run("admin removes from both collections", func(t *testing.T) {
		f := newControllerFixture(Session{UserID: uuid.New(), IsAdmin: true})
		f.seed(t, []model.Report{a}, []model.Report{p})
		if _, err := f.ctrl.SelectReport(p.ID); err != nil {
			t.Fatal(err)
		}

		if err := f.ctrl.Delete(context.Background(), p.ID); err != nil {
			t.Fatal(err)
		}
		if len(f.api.deleted) != 1 || f.api.deleted[0] != p.ID {
			t.Errorf("deleted = %v", f.api.deleted)
		}
		if len(f.ctrl.Pending()) != 0 || len(f.ctrl.Approved()) != 1 {
			t.Error("report still listed")
		}
		if _, ok := f.ctrl.Selected(); ok {
			t.Error("selection survived delete")
		}
		if len(f.renderer.drawn) != 1 {
			t.Errorf("drawn = %d markers", len(f.renderer.drawn))
		}
	})

	t.Run("api failure keeps state", func(t *testing.T) {
		f := newControllerFixture(Session{UserID: uuid.New(), IsAdmin: true})
		f.seed(t, []model.Report{a}, nil)
		f.api.deleteErr = errors.New("forbidden")

		if err := f.ctrl.Delete(context.Background(), a.ID); err == nil {
			t.Fatal("want error")
		}
		if len(f.ctrl.Approved()) != 1 {
			t.Error("report removed locally after failed delete")
		}
	})
}

func TestControllerRefresh(t *testing.T) {
	user := uuid.New()
	a := report(model.CategoryDisaster, 5, model.StatusApproved)
	p := report(model.CategoryDisaster, 2, model.StatusPending)

	t.Run("pending fetched for signed in user", func(t *testing.T) {
		f := newControllerFixture(Session{UserID: user})
		f.seed(t, []model.Report{a}, []model.Report{p})

		if len(f.api.queries) != 2 || f.api.queries[1].UserID == nil || *f.api.queries[1].UserID != user {
			t.Errorf("queries = %+v", f.api.queries)
		}
		if len(f.renderer.drawn) != 2 {
			t.Errorf("drawn = %d", len(f.renderer.drawn))
		}
	})

	t.Run("signed out skips pending", func(t *testing.T) {
		f := newControllerFixture(Session{})
		f.seed(t, []model.Report{a}, []model.Report{p})
		if len(f.api.queries) != 1 || len(f.ctrl.Pending()) != 0 {
			t.Errorf("queries = %+v", f.api.queries)
		}
	})

	t.Run("hiding pending redraws and refetches", func(t *testing.T) {
		f := newControllerFixture(Session{UserID: user})
		f.seed(t, []model.Report{a}, []model.Report{p})
		off := false

		if err := f.ctrl.SetFilters(context.Background(), FilterPatch{ShowPending: &off}); err != nil {
			t.Fatal(err)
		}
		if len(f.renderer.drawn) != 1 || len(f.api.queries) != 3 {
			t.Errorf("drawn=%d queries=%d", len(f.renderer.drawn), len(f.api.queries))
		}
	})

	t.Run("unchanged filters do not refetch", func(t *testing.T) {
		f := newControllerFixture(Session{})
		f.seed(t, nil, nil)
		all := FilterAll
		if err := f.ctrl.SetFilters(context.Background(), FilterPatch{Category: &all}); err != nil {
			t.Fatal(err)
		}
		if len(f.api.queries) != 1 {
			t.Errorf("queries = %d", len(f.api.queries))
		}
	})

	t.Run("failure clears collections", func(t *testing.T) {
		f := newControllerFixture(Session{UserID: user})
		f.seed(t, []model.Report{a}, []model.Report{p})
		f.api.listFn = func(model.ReportQuery) ([]model.Report, error) { return nil, errors.New("503") }

		if err := f.ctrl.Refresh(context.Background()); err == nil {
			t.Fatal("want error")
		}
		if len(f.ctrl.Approved()) != 0 || len(f.ctrl.Pending()) != 0 || len(f.renderer.drawn) != 0 {
			t.Error("stale data kept after failure")
		}
		if f.ctrl.LastError() == nil {
			t.Error("LastError not set")
		}
	})
}

func TestControllerDiscardsStaleRefresh(t *testing.T) {
	f := newControllerFixture(Session{})
	slow := report(model.CategoryCrime, 1, model.StatusApproved)
	fast := report(model.CategoryTraffic, 1, model.StatusApproved)

	started := make(chan struct{})
	release := make(chan struct{})
	f.api.listFn = func(q model.ReportQuery) ([]model.Report, error) {
		if q.Category == model.CategoryCrime {
			close(started)
			<-release
			return []model.Report{slow}, nil
		}
		return []model.Report{fast}, nil
	}

	crime, traffic := model.CategoryCrime, model.CategoryTraffic
	done := make(chan error, 1)
	go func() { done <- f.ctrl.SetFilters(context.Background(), FilterPatch{Category: &crime}) }()
	<-started

	if err := f.ctrl.SetFilters(context.Background(), FilterPatch{Category: &traffic}); err != nil {
		t.Fatal(err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatal(err)
	}

	got := f.ctrl.Approved()
	if len(got) != 1 || got[0].ID != fast.ID {
		t.Errorf("approved = %+v; want the newer response", got)
	}
}

func TestControllerRefreshKeepsLocalChanges(t *testing.T) {
	user := uuid.New()
	f := newControllerFixture(Session{UserID: user, IsAdmin: true})
	gone := report(model.CategoryCrime, 2, model.StatusApproved)
	f.seed(t, []model.Report{gone}, nil)

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	f.api.listFn = func(q model.ReportQuery) ([]model.Report, error) {
		if q.Status == model.StatusPending {
			return nil, nil
		}
		once.Do(func() {
			close(started)
			<-release
		})
		return []model.Report{gone}, nil
	}

	done := make(chan error, 1)
	go func() { done <- f.ctrl.Refresh(context.Background()) }()
	<-started

	f.ctrl.Surface().StartReport()
	out, err := f.ctrl.Submit(context.Background(), validDraft())
	if err != nil {
		t.Fatal(err)
	}
	if err := f.ctrl.Delete(context.Background(), gone.ID); err != nil {
		t.Fatal(err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatal(err)
	}

	if pending := f.ctrl.Pending(); len(pending) != 1 || pending[0].ID != out.Report.ID {
		t.Errorf("pending = %+v; want the submitted report", pending)
	}
	if approved := f.ctrl.Approved(); len(approved) != 0 {
		t.Errorf("approved = %+v; want the deleted report gone", approved)
	}
	if _, ok := f.ctrl.markers.Lookup(out.Report.ID); !ok {
		t.Error("marker for the submitted report was dropped")
	}
	if _, ok := f.ctrl.markers.Lookup(gone.ID); ok {
		t.Error("marker for the deleted report came back")
	}
	if f.ctrl.journal != nil {
		t.Errorf("journal = %+v; want it cleared", f.ctrl.journal)
	}
}

func TestControllerClickMarker(t *testing.T) {
	a := report(model.CategoryTraffic, 3, model.StatusApproved)
	f := newControllerFixture(Session{UserID: uuid.New()})
	f.seed(t, []model.Report{a}, nil)

	r, points, err := f.ctrl.ClickMarker(context.Background(), a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if r.ID != a.ID {
		t.Errorf("opened %s", r.ID)
	}
	if sel, ok := f.ctrl.Selected(); !ok || sel.ID != a.ID {
		t.Error("detail view not opened")
	}
	if _, err := points.Wait(waitFor(t)); err != nil {
		t.Fatal(err)
	}
	if got := f.points.all(); len(got) != 1 || got[0] != (award{a.UserID, a.ID, 5}) {
		t.Errorf("awards = %+v", got)
	}

	if _, _, err := f.ctrl.ClickMarker(context.Background(), uuid.New()); !errors.Is(err, ErrReportNotFound) {
		t.Errorf("unknown marker err = %v", err)
	}
}

func TestControllerSelectReportFlies(t *testing.T) {
	a := report(model.CategoryCrime, 2, model.StatusApproved)
	f := newControllerFixture(Session{})
	f.seed(t, []model.Report{a}, nil)

	if _, err := f.ctrl.SelectReport(a.ID); err != nil {
		t.Fatal(err)
	}
	if len(f.mapp.flyTo) != 1 || f.mapp.flyTo[0] != a.Point() {
		t.Errorf("flyTo = %v", f.mapp.flyTo)
	}
}

func TestControllerApplyEvent(t *testing.T) {
	a := report(model.CategoryCrime, 2, model.StatusApproved)
	f := newControllerFixture(Session{})
	f.seed(t, []model.Report{a}, nil)

	err := f.ctrl.ApplyEvent(context.Background(), model.ReportEvent{
		Type:               model.EventReportImages,
		ReportID:           a.ID,
		ProcessedImageURLs: []string{"https://cdn.test/processed/x.png"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := f.ctrl.Approved()[0].ProcessedImageURLs; len(got) != 1 {
		t.Errorf("processed = %v", got)
	}

	if err := f.ctrl.ApplyEvent(context.Background(), model.ReportEvent{Type: model.EventReportDeleted, ReportID: a.ID}); err != nil {
		t.Fatal(err)
	}
	if len(f.ctrl.Approved()) != 0 || len(f.renderer.drawn) != 0 {
		t.Error("deleted report still shown")
	}
}
