package mapview

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bwise1/hazard_map/internal/logger"
	"github.com/bwise1/hazard_map/internal/model"
	"github.com/bwise1/hazard_map/internal/task"
	"github.com/google/uuid"
	"github.com/paulmach/orb"
)

var (
	ErrNotSignedIn    = errors.New("sign in required")
	ErrReportNotFound = errors.New("report not loaded")
)

type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)

// Notice is a user-facing message such as a toast.
type Notice struct {
	Level   NoticeLevel
	Message string
	Err     error
}

// Options wires a Controller to its collaborators. Map and Renderer may be
// nil for a headless controller.
type Options struct {
	Session       Session
	API           ReportAPI
	Uploader      ImageUploader
	Analyzer      Analyzer
	Points        PointAwarder
	Map           MapProvider
	Renderer      MarkerRenderer
	Device        Device
	MaxImageBytes int64
	SubmitPoints  int
	ViewPoints    int
	OnNotice      func(Notice)
	Logger        *logger.Logger
	Now           func() time.Time
}

// Controller composes the map surface, marker layer, filters and the
// submission flow. Every state mutation happens under one lock.
type Controller struct {
	mu       sync.Mutex
	session  Session
	filters  FilterSet
	approved []model.Report
	pending  []model.Report
	selected *model.Report
	issued   uint64
	lastErr  error

	// Local changes made while a refresh is in flight are replayed onto
	// its response so it cannot resurrect or drop them.
	local    uint64
	inflight int
	journal  []localChange

	api        ReportAPI
	mapp       MapProvider
	submitter  *Submitter
	surface    *Surface
	terrain    *Terrain
	markers    *MarkerLayer
	viewPoints int
	onNotice   func(Notice)
	now        func() time.Time
	log        *logger.Logger
}

func NewController(opts Options) *Controller {
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	viewPoints := opts.ViewPoints
	if viewPoints == 0 {
		viewPoints = DefaultViewPoints
	}

	var center func() orb.Point
	var terrain *Terrain
	if opts.Map != nil {
		center = opts.Map.Center
		terrain = NewTerrain(opts.Map)
	}

	return &Controller{
		session: opts.Session,
		filters: DefaultFilters(),
		api:     opts.API,
		mapp:    opts.Map,
		submitter: NewSubmitter(opts.API, opts.Uploader, opts.Analyzer, opts.Points, SubmitterConfig{
			MaxImageBytes: opts.MaxImageBytes,
			SubmitPoints:  opts.SubmitPoints,
		}, log),
		surface:    NewSurface(opts.Device, center),
		terrain:    terrain,
		markers:    NewMarkerLayer(opts.Renderer),
		viewPoints: viewPoints,
		onNotice:   opts.OnNotice,
		now:        now,
		log:        log.WithComponent("map_controller"),
	}
}

func (c *Controller) Surface() *Surface { return c.surface }

// Terrain is nil when the controller has no map provider.
func (c *Controller) Terrain() *Terrain { return c.terrain }

func (c *Controller) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// SetSession replaces the signed-in user. Call Refresh afterwards to load
// the new user's pending reports.
func (c *Controller) SetSession(s Session) {
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()
}

func (c *Controller) Filters() FilterSet {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filters
}

func (c *Controller) Approved() []model.Report {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneReports(c.approved)
}

func (c *Controller) Pending() []model.Report {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneReports(c.pending)
}

// Selected returns the report open in the detail view.
func (c *Controller) Selected() (model.Report, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selected == nil {
		return model.Report{}, false
	}
	return cloneReport(*c.selected), true
}

func (c *Controller) Markers() []Marker {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.markers.Markers()
}

// LastError is the error of the most recent applied refresh.
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

type changeKind int

const (
	changeAdded changeKind = iota
	changeRemoved
	changeImages
)

type localChange struct {
	seq    uint64
	kind   changeKind
	report model.Report
	id     uuid.UUID
	urls   []string
}

// recordLocked notes a local mutation for refreshes still in flight.
func (c *Controller) recordLocked(ch localChange) {
	c.local++
	if c.inflight == 0 {
		return
	}
	ch.seq = c.local
	c.journal = append(c.journal, ch)
}

// replayLocked applies the journal entries newer than base to the
// collections just loaded.
func (c *Controller) replayLocked(base uint64) {
	for _, ch := range c.journal {
		if ch.seq <= base {
			continue
		}
		switch ch.kind {
		case changeAdded:
			if _, ok := c.findLocked(ch.report.ID); !ok {
				c.pending = prependReport(c.pending, ch.report)
			}
		case changeRemoved:
			c.approved = removeReport(c.approved, ch.id)
			c.pending = removeReport(c.pending, ch.id)
		case changeImages:
			for _, list := range [][]model.Report{c.pending, c.approved} {
				for i := range list {
					if list[i].ID == ch.id {
						list[i].ProcessedImageURLs = appendMissing(list[i].ProcessedImageURLs, ch.urls)
					}
				}
			}
		}
	}
}

// SetFilters applies patch and refetches when any predicate changed.
func (c *Controller) SetFilters(ctx context.Context, patch FilterPatch) error {
	c.mu.Lock()
	next := c.filters.Apply(patch)
	if err := next.Validate(); err != nil {
		c.mu.Unlock()
		return err
	}
	changed := next != c.filters
	c.filters = next
	if changed && patch.ShowPending != nil {
		c.resyncLocked()
	}
	c.mu.Unlock()

	if !changed {
		return nil
	}
	return c.Refresh(ctx)
}

// Refresh refetches the approved reports and, when shown, the user's own
// pending reports. A response is dropped if a newer refresh was issued
// while it was in flight.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	c.issued++
	seq := c.issued
	base := c.local
	c.inflight++
	f := c.filters
	sess := c.session
	now := c.now()
	c.mu.Unlock()

	approved, err := c.api.ListReports(ctx, f.ApprovedQuery(now))
	pending := []model.Report{}
	if err == nil {
		if q, ok := f.PendingQuery(sess); ok {
			pending, err = c.api.ListReports(ctx, q)
		}
	}

	c.mu.Lock()
	c.inflight--
	if seq != c.issued {
		if c.inflight == 0 {
			c.journal = nil
		}
		c.mu.Unlock()
		c.log.Debug("discarding stale refresh", "seq", seq)
		return nil
	}
	c.lastErr = err
	if err != nil {
		c.approved, c.pending = nil, nil
	} else {
		c.approved, c.pending = approved, pending
		c.replayLocked(base)
	}
	if c.inflight == 0 {
		c.journal = nil
	}
	c.resyncLocked()
	c.mu.Unlock()

	if err != nil {
		err = fmt.Errorf("fetch reports: %w", err)
		c.log.LogError(ctx, err, "refresh failed")
		c.notify(Notice{Level: NoticeError, Message: "Failed to load reports", Err: err})
		return err
	}
	return nil
}

// Submit runs the submission flow. A draft without a position takes the
// location selected on the surface.
func (c *Controller) Submit(ctx context.Context, d ReportDraft) (Outcome, error) {
	if d.Position == nil {
		d.Position = c.surface.Selected()
	}
	if err := ValidateDraft(d, c.submitter.cfg.MaxImageBytes); err != nil {
		return Outcome{}, err
	}
	sess := c.Session()
	if !sess.SignedIn() {
		return Outcome{}, ErrNotSignedIn
	}

	out, err := c.submitter.Submit(ctx, sess, d)
	if err != nil {
		c.notify(Notice{Level: NoticeError, Message: "Failed to submit report", Err: err})
		return Outcome{}, err
	}

	c.mu.Lock()
	c.pending = prependReport(c.pending, out.Report)
	c.recordLocked(localChange{kind: changeAdded, report: cloneReport(out.Report)})
	c.resyncLocked()
	c.mu.Unlock()

	if err := c.surface.SubmissionSucceeded(out.Report); err != nil {
		c.log.Debug("submission finished outside the form", "mode", c.surface.Mode().String())
	}

	for _, w := range out.Warnings {
		c.notify(Notice{Level: NoticeWarning, Message: "An image could not be uploaded", Err: w})
	}
	c.notify(Notice{Level: NoticeInfo, Message: "Report submitted"})

	id := out.Report.ID
	if out.Analysis != nil {
		out.Analysis.
			OnSuccess(func(res model.AnalysisResult) {
				c.mergeProcessedImages(id, res.ProcessedImageURLs)
				c.notify(Notice{Level: NoticeInfo, Message: "Image processed"})
			}).
			OnError(func(err error) {
				c.notify(Notice{Level: NoticeWarning, Message: "Report saved but image processing failed", Err: err})
			})
	}
	out.Points.OnSuccess(func(struct{}) {
		c.notify(Notice{Level: NoticeInfo, Message: fmt.Sprintf("+%d points for reporting", c.submitter.cfg.SubmitPoints)})
	})

	return out, nil
}

// mergeProcessedImages appends urls the local copy of the report does not
// have yet, keeping their order.
func (c *Controller) mergeProcessedImages(id uuid.UUID, urls []string) {
	c.mu.Lock()
	var merged []string
	for _, list := range [][]model.Report{c.pending, c.approved} {
		for i := range list {
			if list[i].ID != id {
				continue
			}
			list[i].ProcessedImageURLs = appendMissing(list[i].ProcessedImageURLs, urls)
			merged = list[i].ProcessedImageURLs
		}
	}
	if c.selected != nil && c.selected.ID == id {
		c.selected.ProcessedImageURLs = appendMissing(c.selected.ProcessedImageURLs, urls)
	}
	c.recordLocked(localChange{kind: changeImages, id: id, urls: append([]string{}, urls...)})
	c.mu.Unlock()

	if merged != nil {
		c.surface.UpdatePreviewImages(id, merged)
	}
}

// ClickMarker opens the detail view of the report and awards view points
// to its owner. The award is not awaited.
func (c *Controller) ClickMarker(ctx context.Context, id uuid.UUID) (model.Report, *task.Task[struct{}], error) {
	c.mu.Lock()
	if _, ok := c.markers.Lookup(id); !ok {
		c.mu.Unlock()
		return model.Report{}, nil, ErrReportNotFound
	}
	r, ok := c.findLocked(id)
	if !ok {
		c.mu.Unlock()
		return model.Report{}, nil, ErrReportNotFound
	}
	c.selected = &r
	c.mu.Unlock()

	points := c.submitter.award(context.WithoutCancel(ctx), r.UserID, r.ID, c.viewPoints)
	return cloneReport(r), points, nil
}

// SelectReport opens the detail view of a listed report and centres the
// map on it.
func (c *Controller) SelectReport(id uuid.UUID) (model.Report, error) {
	c.mu.Lock()
	r, ok := c.findLocked(id)
	if !ok {
		c.mu.Unlock()
		return model.Report{}, ErrReportNotFound
	}
	c.selected = &r
	c.mu.Unlock()

	if c.mapp != nil {
		if err := c.mapp.FlyTo(r.Point()); err != nil {
			c.log.Warn("fly to report failed", "report_id", id.String(), "error", err)
		}
	}
	return cloneReport(r), nil
}

func (c *Controller) CloseDetail() {
	c.mu.Lock()
	c.selected = nil
	c.mu.Unlock()
}

// Delete removes a report as an administrator. A report missing from both
// local collections is left alone and no request is made.
func (c *Controller) Delete(ctx context.Context, id uuid.UUID) error {
	c.mu.Lock()
	if !c.session.IsAdmin {
		c.mu.Unlock()
		return &PermissionError{Action: "delete report"}
	}
	if _, ok := c.findLocked(id); !ok {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	if err := c.api.DeleteReport(ctx, id); err != nil {
		c.notify(Notice{Level: NoticeError, Message: "Failed to delete report", Err: err})
		return fmt.Errorf("delete report %s: %w", id, err)
	}

	c.mu.Lock()
	c.approved = removeReport(c.approved, id)
	c.pending = removeReport(c.pending, id)
	if c.selected != nil && c.selected.ID == id {
		c.selected = nil
	}
	c.recordLocked(localChange{kind: changeRemoved, id: id})
	c.resyncLocked()
	c.mu.Unlock()

	c.notify(Notice{Level: NoticeInfo, Message: "Report deleted"})
	return nil
}

// ApplyEvent folds a server push into the local collections. Creation and
// approval events trigger a refresh since they may change filter results.
func (c *Controller) ApplyEvent(ctx context.Context, ev model.ReportEvent) error {
	switch ev.Type {
	case model.EventReportDeleted:
		c.mu.Lock()
		c.approved = removeReport(c.approved, ev.ReportID)
		c.pending = removeReport(c.pending, ev.ReportID)
		if c.selected != nil && c.selected.ID == ev.ReportID {
			c.selected = nil
		}
		c.recordLocked(localChange{kind: changeRemoved, id: ev.ReportID})
		c.resyncLocked()
		c.mu.Unlock()
		return nil
	case model.EventReportImages:
		c.mergeProcessedImages(ev.ReportID, ev.ProcessedImageURLs)
		return nil
	case model.EventReportCreated, model.EventReportApproved:
		return c.Refresh(ctx)
	default:
		return nil
	}
}

func (c *Controller) findLocked(id uuid.UUID) (model.Report, bool) {
	for _, list := range [][]model.Report{c.approved, c.pending} {
		for _, r := range list {
			if r.ID == id {
				return r, true
			}
		}
	}
	return model.Report{}, false
}

func (c *Controller) resyncLocked() {
	c.markers.Sync(c.approved, c.pending, c.filters.ShowPending)
}

func (c *Controller) notify(n Notice) {
	if c.onNotice != nil {
		c.onNotice(n)
	}
}

func prependReport(list []model.Report, r model.Report) []model.Report {
	out := make([]model.Report, 0, len(list)+1)
	out = append(out, r)
	for _, existing := range list {
		if existing.ID != r.ID {
			out = append(out, existing)
		}
	}
	return out
}

func removeReport(list []model.Report, id uuid.UUID) []model.Report {
	out := list[:0:0]
	for _, r := range list {
		if r.ID != id {
			out = append(out, r)
		}
	}
	return out
}

func appendMissing(dst, urls []string) []string {
	out := append([]string{}, dst...)
	for _, u := range urls {
		found := false
		for _, have := range out {
			if have == u {
				found = true
				break
			}
		}
		if !found {
			out = append(out, u)
		}
	}
	return out
}

func cloneReport(r model.Report) model.Report {
	r.ProcessedImageURLs = append([]string{}, r.ProcessedImageURLs...)
	return r
}

func cloneReports(list []model.Report) []model.Report {
	out := make([]model.Report, len(list))
	for i, r := range list {
		out[i] = cloneReport(r)
	}
	return out
}
