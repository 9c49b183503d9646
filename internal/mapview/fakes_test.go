package mapview

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bwise1/hazard_map/internal/model"
	"github.com/google/uuid"
	"github.com/paulmach/orb"
)

var (
	pngBytes  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00\x1f\x15\xc4\x89")
	jpegBytes = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00\x01\x01\x00\x00\x01\x00\x01\x00\x00")
	fixedNow  = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
)

func pngImage(name string) model.Image {
	return model.Image{Name: name, ContentType: "image/png", Data: pngBytes}
}

func ptrPoint(lon, lat float64) *orb.Point {
	p := orb.Point{lon, lat}
	return &p
}

// fakeAPI is an in-memory ReportAPI.
type fakeAPI struct {
	mu        sync.Mutex
	reports   map[uuid.UUID]model.Report
	queries   []model.ReportQuery
	created   []model.CreateReportRequest
	deleted   []uuid.UUID
	listFn    func(q model.ReportQuery) ([]model.Report, error)
	createErr error
	deleteErr error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{reports: map[uuid.UUID]model.Report{}}
}

func (f *fakeAPI) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries) + len(f.created) + len(f.deleted)
}

func (f *fakeAPI) ListReports(_ context.Context, q model.ReportQuery) ([]model.Report, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	fn := f.listFn
	f.mu.Unlock()
	if fn != nil {
		return fn(q)
	}
	return nil, nil
}

func (f *fakeAPI) CreateReport(_ context.Context, req model.CreateReportRequest) (model.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, req)
	if f.createErr != nil {
		return model.Report{}, f.createErr
	}
	r := model.Report{
		ID:                 uuid.New(),
		UserID:             req.UserID,
		Title:              req.Title,
		Description:        req.Description,
		Category:           req.Category,
		Severity:           req.Severity,
		Latitude:           req.Latitude,
		Longitude:          req.Longitude,
		Status:             model.StatusPending,
		ImageURL:           req.ImageURL,
		ProcessedImageURLs: append([]string{}, req.ProcessedImageURLs...),
		CreatedAt:          fixedNow,
	}
	f.reports[r.ID] = r
	return r, nil
}

func (f *fakeAPI) DeleteReport(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.reports, id)
	return nil
}

// fakeUploader fails for every image whose name is in fail.
type fakeUploader struct {
	mu    sync.Mutex
	fail  map[string]bool
	calls []string
}

func (f *fakeUploader) UploadImage(_ context.Context, img model.Image, kind model.ImageKind) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, img.Name)
	if f.fail[img.Name] {
		return "", errors.New("storage unavailable")
	}
	return fmt.Sprintf("https://cdn.test/%s/%s?t=1", kind, img.Name), nil
}

func (f *fakeUploader) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeAnalyzer struct {
	mu     sync.Mutex
	result model.AnalysisResult
	err    error
	calls  []uuid.UUID
}

func (f *fakeAnalyzer) AnalyzeReportImage(_ context.Context, id uuid.UUID, _ model.Image) (model.AnalysisResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, id)
	return f.result, f.err
}

type award struct {
	UserID   uuid.UUID
	ReportID uuid.UUID
	Delta    int
}

type fakePoints struct {
	mu     sync.Mutex
	err    error
	awards []award
}

func (f *fakePoints) AwardPoints(_ context.Context, userID, reportID uuid.UUID, delta int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.awards = append(f.awards, award{userID, reportID, delta})
	return f.err
}

func (f *fakePoints) all() []award {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]award(nil), f.awards...)
}

// fakeMap records provider calls. A style change drops sources and layers
// like the real renderer does.
type fakeMap struct {
	loaded   bool
	center   orb.Point
	sources  map[string]Source
	layers   map[string]Layer
	terrain  *TerrainSpec
	pitch    float64
	bearing  float64
	style    string
	flyTo    []orb.Point
	addCalls int

	terrainErr error
}

func newFakeMap() *fakeMap {
	return &fakeMap{
		loaded:  true,
		center:  orb.Point{139.767, 35.681},
		sources: map[string]Source{},
		layers:  map[string]Layer{},
	}
}

func (m *fakeMap) Loaded() bool             { return m.loaded }
func (m *fakeMap) Center() orb.Point        { return m.center }
func (m *fakeMap) HasSource(id string) bool { _, ok := m.sources[id]; return ok }
func (m *fakeMap) HasLayer(id string) bool  { _, ok := m.layers[id]; return ok }

func (m *fakeMap) AddSource(id string, src Source) error {
	if _, ok := m.sources[id]; ok {
		return fmt.Errorf("source %s already exists", id)
	}
	m.addCalls++
	m.sources[id] = src
	return nil
}

func (m *fakeMap) AddLayer(l Layer) error {
	if _, ok := m.layers[l.ID]; ok {
		return fmt.Errorf("layer %s already exists", l.ID)
	}
	m.addCalls++
	m.layers[l.ID] = l
	return nil
}

func (m *fakeMap) RemoveLayer(id string) error {
	if _, ok := m.layers[id]; !ok {
		return fmt.Errorf("layer %s does not exist", id)
	}
	delete(m.layers, id)
	return nil
}

func (m *fakeMap) SetTerrain(t *TerrainSpec) error {
	if t != nil && m.terrainErr != nil {
		return m.terrainErr
	}
	m.terrain = t
	return nil
}

func (m *fakeMap) SetCamera(pitch, bearing float64) error {
	m.pitch, m.bearing = pitch, bearing
	return nil
}

func (m *fakeMap) SetStyle(style string) error {
	m.style = style
	m.sources = map[string]Source{}
	m.layers = map[string]Layer{}
	m.terrain = nil
	return nil
}

func (m *fakeMap) FlyTo(p orb.Point) error {
	m.flyTo = append(m.flyTo, p)
	return nil
}

type fakeRenderer struct {
	clears int
	drawn  []Marker
}

func (r *fakeRenderer) Clear() {
	r.clears++
	r.drawn = nil
}

func (r *fakeRenderer) Draw(m Marker) {
	r.drawn = append(r.drawn, m)
}
