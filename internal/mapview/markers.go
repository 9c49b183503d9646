package mapview

import (
	"github.com/bwise1/hazard_map/internal/model"
	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

type Variant string

const (
	VariantApproved Variant = "approved"
	VariantPending  Variant = "pending"
)

// Marker is the visual encoding of one report.
type Marker struct {
	ReportID      uuid.UUID
	OwnerID       uuid.UUID
	Title         string
	Category      string
	Severity      int
	Position      orb.Point
	Color         string
	SeverityColor string
	Icon          string
	Variant       Variant
	Opacity       float64
}

// MarkerRenderer draws markers on the map. Sync always clears before it
// draws, so implementations need no diffing.
type MarkerRenderer interface {
	Clear()
	Draw(m Marker)
}

func CategoryColor(category string) string {
	switch category {
	case model.CategoryTraffic:
		return "#3b82f6"
	case model.CategoryCrime:
		return "#ef4444"
	case model.CategoryDisaster:
		return "#facc15"
	default:
		return "#6b7280"
	}
}

func CategoryIcon(category string) string {
	switch category {
	case model.CategoryTraffic:
		return "car"
	case model.CategoryCrime:
		return "shield"
	case model.CategoryDisaster:
		return "alert-triangle"
	default:
		return "help-circle"
	}
}

func SeverityColor(severity int) string {
	switch severity {
	case 1:
		return "#4ade80"
	case 2:
		return "#a3e635"
	case 3:
		return "#facc15"
	case 4:
		return "#fb923c"
	case 5:
		return "#f87171"
	default:
		return "#94a3b8"
	}
}

func NewMarker(r model.Report, pending bool) Marker {
	m := Marker{
		ReportID:      r.ID,
		OwnerID:       r.UserID,
		Title:         r.Title,
		Category:      r.Category,
		Severity:      r.Severity,
		Position:      r.Point(),
		Color:         CategoryColor(r.Category),
		SeverityColor: SeverityColor(r.Severity),
		Icon:          CategoryIcon(r.Category),
		Variant:       VariantApproved,
		Opacity:       1,
	}
	if pending {
		m.Variant = VariantPending
		m.Opacity = 0.6
	}
	return m
}

// BuildMarkers derives markers from the loaded collections, one per
// report ID. Approved reports take precedence over a pending duplicate.
func BuildMarkers(approved, pending []model.Report, showPending bool) []Marker {
	seen := make(map[uuid.UUID]struct{}, len(approved)+len(pending))
	markers := make([]Marker, 0, len(approved)+len(pending))

	for _, r := range approved {
		if _, ok := seen[r.ID]; ok {
			continue
		}
		seen[r.ID] = struct{}{}
		markers = append(markers, NewMarker(r, false))
	}
	if !showPending {
		return markers
	}
	for _, r := range pending {
		if _, ok := seen[r.ID]; ok {
			continue
		}
		seen[r.ID] = struct{}{}
		markers = append(markers, NewMarker(r, true))
	}
	return markers
}

// MarkerLayer keeps the rendered markers in step with the collections.
// It is not safe for concurrent use; Controller serialises access.
type MarkerLayer struct {
	renderer MarkerRenderer
	markers  []Marker
	index    map[uuid.UUID]int
}

func NewMarkerLayer(r MarkerRenderer) *MarkerLayer {
	if r == nil {
		r = nopRenderer{}
	}
	return &MarkerLayer{renderer: r, index: map[uuid.UUID]int{}}
}

// Sync clears every marker and redraws from the given collections.
func (l *MarkerLayer) Sync(approved, pending []model.Report, showPending bool) {
	l.markers = BuildMarkers(approved, pending, showPending)
	l.index = make(map[uuid.UUID]int, len(l.markers))

	l.renderer.Clear()
	for i, m := range l.markers {
		l.index[m.ReportID] = i
		l.renderer.Draw(m)
	}
}

func (l *MarkerLayer) Lookup(id uuid.UUID) (Marker, bool) {
	i, ok := l.index[id]
	if !ok {
		return Marker{}, false
	}
	return l.markers[i], true
}

func (l *MarkerLayer) Markers() []Marker {
	return append([]Marker(nil), l.markers...)
}

// FeatureCollection renders the current markers as GeoJSON.
func (l *MarkerLayer) FeatureCollection() *geojson.FeatureCollection {
	return FeatureCollection(l.markers)
}

func FeatureCollection(markers []Marker) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, m := range markers {
		f := geojson.NewFeature(m.Position)
		f.ID = m.ReportID.String()
		f.Properties = geojson.Properties{
			"title":          m.Title,
			"category":       m.Category,
			"severity":       m.Severity,
			"color":          m.Color,
			"severity_color": m.SeverityColor,
			"icon":           m.Icon,
			"variant":        string(m.Variant),
			"opacity":        m.Opacity,
		}
		fc.Append(f)
	}
	return fc
}

type nopRenderer struct{}

func (nopRenderer) Clear()      {}
func (nopRenderer) Draw(Marker) {}
