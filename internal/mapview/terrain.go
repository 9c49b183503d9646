package mapview

import (
	"errors"
	"fmt"
	"sync"

	"github.com/paulmach/orb"
)

// Source is a map data source definition.
type Source struct {
	Type     string
	URL      string
	TileSize int
	MaxZoom  int
}

// Layer is a map style layer definition.
type Layer struct {
	ID    string
	Type  string
	Paint map[string]any
}

// TerrainSpec enables elevation rendering from a raster-dem source.
type TerrainSpec struct {
	Source       string
	Exaggeration float64
}

// MapProvider is the imperative API of the map renderer.
type MapProvider interface {
	Loaded() bool
	Center() orb.Point
	HasSource(id string) bool
	AddSource(id string, src Source) error
	HasLayer(id string) bool
	AddLayer(layer Layer) error
	RemoveLayer(id string) error
	SetTerrain(t *TerrainSpec) error
	SetCamera(pitch, bearing float64) error
	SetStyle(style string) error
	FlyTo(center orb.Point) error
}

const (
	demSourceID = "mapbox-dem"
	skyLayerID  = "sky"

	DefaultStyle = "streets-v12"
)

var (
	demSource = Source{
		Type:     "raster-dem",
		URL:      "mapbox://mapbox.mapbox-terrain-dem-v1",
		TileSize: 512,
		MaxZoom:  14,
	}
	skyLayer = Layer{
		ID:   skyLayerID,
		Type: "sky",
		Paint: map[string]any{
			"sky-type":                      "atmosphere",
			"sky-atmosphere-sun":            []float64{0, 0},
			"sky-atmosphere-sun-intensity": 15,
		},
	}
)

// EnsureSource adds the source unless the provider already has it.
func EnsureSource(p MapProvider, id string, src Source) (bool, error) {
	if p.HasSource(id) {
		return false, nil
	}
	if err := p.AddSource(id, src); err != nil {
		return false, fmt.Errorf("add source %s: %w", id, err)
	}
	return true, nil
}

// EnsureLayer adds the layer unless the provider already has it.
func EnsureLayer(p MapProvider, layer Layer) (bool, error) {
	if p.HasLayer(layer.ID) {
		return false, nil
	}
	if err := p.AddLayer(layer); err != nil {
		return false, fmt.Errorf("add layer %s: %w", layer.ID, err)
	}
	return true, nil
}

// RemoveLayer removes the layer if present.
func RemoveLayer(p MapProvider, id string) (bool, error) {
	if !p.HasLayer(id) {
		return false, nil
	}
	if err := p.RemoveLayer(id); err != nil {
		return false, fmt.Errorf("remove layer %s: %w", id, err)
	}
	return true, nil
}

// Terrain owns the 3D toggle and the base style of the map.
type Terrain struct {
	mu            sync.Mutex
	provider      MapProvider
	enabled       bool
	deferred      bool
	styleChanging bool
	style         string
}

func NewTerrain(p MapProvider) *Terrain {
	return &Terrain{provider: p, style: DefaultStyle}
}

func (t *Terrain) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

func (t *Terrain) Style() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.style
}

// Toggle3D flips terrain rendering. On failure the flag is restored and
// the error returned. Toggling during a style change is ignored.
func (t *Terrain) Toggle3D() (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.styleChanging {
		return t.enabled, nil
	}
	want := !t.enabled
	t.enabled = want

	var err error
	switch {
	case want && !t.provider.Loaded():
		t.deferred = true
	case want:
		err = t.enable()
	default:
		t.deferred = false
		err = t.disable()
	}
	if err != nil {
		t.enabled = !want
		return t.enabled, err
	}
	return t.enabled, nil
}

// MapLoaded applies a 3D enable that was requested before the map loaded.
func (t *Terrain) MapLoaded() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.deferred || t.styleChanging {
		return nil
	}
	t.deferred = false
	if !t.enabled {
		return nil
	}
	if err := t.enable(); err != nil {
		t.enabled = false
		return err
	}
	return nil
}

// ErrStyleChanging is returned when a style swap is requested while
// another one is still loading.
var ErrStyleChanging = errors.New("style change in progress")

// SetStyle swaps the base style, carrying 3D mode across the swap. The
// lock is not held while the provider loads the style.
func (t *Terrain) SetStyle(style string) error {
	t.mu.Lock()
	if style == "" || style == t.style {
		t.mu.Unlock()
		return nil
	}
	if t.styleChanging {
		t.mu.Unlock()
		return ErrStyleChanging
	}
	was3D := t.enabled
	if was3D {
		if err := t.disable(); err != nil {
			t.mu.Unlock()
			return err
		}
	}
	t.styleChanging = true
	t.mu.Unlock()

	err := t.provider.SetStyle("mapbox://styles/mapbox/" + style)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.styleChanging = false
	if err != nil {
		if was3D {
			if rerr := t.enable(); rerr != nil {
				t.enabled = false
			}
		}
		return fmt.Errorf("set style %s: %w", style, err)
	}
	t.style = style
	if was3D {
		if err := t.enable(); err != nil {
			t.enabled = false
			return err
		}
	}
	return nil
}

func (t *Terrain) enable() error {
	if _, err := EnsureSource(t.provider, demSourceID, demSource); err != nil {
		return err
	}
	if err := t.provider.SetTerrain(&TerrainSpec{Source: demSourceID, Exaggeration: 1.5}); err != nil {
		return fmt.Errorf("set terrain: %w", err)
	}
	if _, err := EnsureLayer(t.provider, skyLayer); err != nil {
		return err
	}
	return t.provider.SetCamera(60, 30)
}

func (t *Terrain) disable() error {
	if err := t.provider.SetTerrain(nil); err != nil {
		return fmt.Errorf("clear terrain: %w", err)
	}
	if _, err := RemoveLayer(t.provider, skyLayerID); err != nil {
		return err
	}
	return t.provider.SetCamera(0, 0)
}
