package mapview

import (
	"fmt"
	"sync"

	"github.com/bwise1/hazard_map/internal/model"
	"github.com/google/uuid"
	"github.com/paulmach/orb"
)

// Mode is the exclusive interaction state of the map surface.
type Mode int

const (
	ModeIdle Mode = iota
	ModeAwaitingLocation
	ModeFormOpen
	ModePreviewingSubmission
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeAwaitingLocation:
		return "awaiting_location"
	case ModeFormOpen:
		return "form_open"
	case ModePreviewingSubmission:
		return "previewing_submission"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// selecting reports whether map clicks pick a report location.
func (m Mode) selecting() bool {
	return m == ModeAwaitingLocation || m == ModeFormOpen
}

// Device is the primary input of the client. Touch devices select the
// location before the form opens; pointer devices open the form directly.
type Device int

const (
	DevicePointer Device = iota
	DeviceTouch
)

type Cursor string

const (
	CursorDefault   Cursor = ""
	CursorCrosshair Cursor = "crosshair"
)

// Event names used in transitions.
const (
	EventStartReport    = "start_report"
	EventTap            = "tap"
	EventDragMarker     = "drag_marker"
	EventCancel         = "cancel"
	EventSubmitted      = "submitted"
	EventDismissPreview = "dismiss_preview"
)

// Transition describes one accepted event.
type Transition struct {
	Event    string
	From     Mode
	To       Mode
	Location *orb.Point
}

// Preview is the just-submitted report shown after a successful submission.
type Preview struct {
	ReportID           uuid.UUID
	Location           orb.Point
	OriginalImage      *string
	ProcessedImageURLs []string
}

func (p Preview) HasImages() bool {
	return p.OriginalImage != nil || len(p.ProcessedImageURLs) > 0
}

// SurfaceState is a point-in-time copy of the surface.
type SurfaceState struct {
	Mode            Mode
	Device          Device
	Selected        *orb.Point
	Cursor          Cursor
	HelpVisible     bool
	MarkerDraggable bool
	Preview         *Preview
}

// Surface is the interaction mode state machine of the map.
type Surface struct {
	mu            sync.Mutex
	device        Device
	mode          Mode
	selected      *orb.Point
	preview       *Preview
	helpHidden    bool
	helpDismissed bool
	center        func() orb.Point
	observers     []func(Transition)
}

// NewSurface returns an idle surface. center supplies the viewport centre
// used as the default location when a pointer device opens the form.
func NewSurface(device Device, center func() orb.Point) *Surface {
	if center == nil {
		center = func() orb.Point { return orb.Point{} }
	}
	return &Surface{device: device, center: center}
}

// OnTransition registers fn to be told about every accepted transition.
func (s *Surface) OnTransition(fn func(Transition)) {
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
}

func (s *Surface) SetDevice(d Device) {
	s.mu.Lock()
	s.device = d
	s.mu.Unlock()
}

func (s *Surface) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Selected returns a copy of the selected location, or nil.
func (s *Surface) Selected() *orb.Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyPoint(s.selected)
}

func (s *Surface) State() SurfaceState {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := SurfaceState{
		Mode:            s.mode,
		Device:          s.device,
		Selected:        copyPoint(s.selected),
		Cursor:          CursorDefault,
		HelpVisible:     s.mode.selecting() && !s.helpHidden,
		MarkerDraggable: s.mode == ModeFormOpen,
	}
	if s.mode.selecting() {
		st.Cursor = CursorCrosshair
	}
	if s.preview != nil {
		p := *s.preview
		p.ProcessedImageURLs = append([]string(nil), s.preview.ProcessedImageURLs...)
		st.Preview = &p
	}
	return st
}

// StartReport handles the "report" action. Any flow in progress is reset
// first. On touch devices a second press while awaiting a location
// cancels the selection.
func (s *Surface) StartReport() Mode {
	s.mu.Lock()
	from := s.mode
	s.selected = nil
	s.preview = nil

	var to Mode
	switch {
	case s.device == DeviceTouch && from == ModeAwaitingLocation:
		to = ModeIdle
	case s.device == DeviceTouch:
		to = ModeAwaitingLocation
	default:
		to = ModeFormOpen
		c := s.center()
		s.selected = &c
	}
	if to.selecting() && !s.helpDismissed {
		s.helpHidden = false
	}
	s.mode = to
	t := Transition{Event: EventStartReport, From: from, To: to, Location: copyPoint(s.selected)}
	obs := s.observers
	s.mu.Unlock()

	notify(obs, t)
	return to
}

// Tap handles a click or tap on the map. It returns false when the tap is
// plain map interaction and the surface ignored it.
func (s *Surface) Tap(p orb.Point) bool {
	s.mu.Lock()
	from := s.mode
	switch from {
	case ModeAwaitingLocation:
		s.mode = ModeFormOpen
	case ModeFormOpen:
	default:
		s.mu.Unlock()
		return false
	}
	s.selected = &p
	t := Transition{Event: EventTap, From: from, To: s.mode, Location: copyPoint(&p)}
	obs := s.observers
	s.mu.Unlock()

	notify(obs, t)
	return true
}

// DragMarker moves the location marker. Only the open form has a
// draggable marker.
func (s *Surface) DragMarker(p orb.Point) error {
	s.mu.Lock()
	if s.mode != ModeFormOpen {
		mode := s.mode
		s.mu.Unlock()
		return fmt.Errorf("%w: drag in %s", ErrInvalidTransition, mode)
	}
	s.selected = &p
	t := Transition{Event: EventDragMarker, From: ModeFormOpen, To: ModeFormOpen, Location: copyPoint(&p)}
	obs := s.observers
	s.mu.Unlock()

	notify(obs, t)
	return nil
}

// Cancel closes the form without submitting and forgets the location.
func (s *Surface) Cancel() error {
	return s.move(EventCancel, ModeFormOpen, ModeIdle, func() {
		s.selected = nil
	})
}

// SubmissionSucceeded moves the open form into the preview of report.
func (s *Surface) SubmissionSucceeded(report model.Report) error {
	return s.move(EventSubmitted, ModeFormOpen, ModePreviewingSubmission, func() {
		loc := report.Point()
		if s.selected != nil {
			loc = *s.selected
		}
		s.preview = &Preview{
			ReportID:           report.ID,
			Location:           loc,
			OriginalImage:      report.ImageURL,
			ProcessedImageURLs: append([]string(nil), report.ProcessedImageURLs...),
		}
	})
}

// DismissPreview closes the submitted report preview.
func (s *Surface) DismissPreview() error {
	return s.move(EventDismissPreview, ModePreviewingSubmission, ModeIdle, func() {
		s.preview = nil
		s.selected = nil
	})
}

// UpdatePreviewImages replaces the processed images of the preview if it
// still shows reportID.
func (s *Surface) UpdatePreviewImages(reportID uuid.UUID, urls []string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.preview == nil || s.preview.ReportID != reportID {
		return false
	}
	s.preview.ProcessedImageURLs = append([]string(nil), urls...)
	return true
}

// DismissHelp hides the advisory banner. A permanent dismissal survives
// new reporting flows.
func (s *Surface) DismissHelp(permanent bool) {
	s.mu.Lock()
	s.helpHidden = true
	if permanent {
		s.helpDismissed = true
	}
	s.mu.Unlock()
}

func (s *Surface) move(event string, from, to Mode, apply func()) error {
	s.mu.Lock()
	if s.mode != from {
		mode := s.mode
		s.mu.Unlock()
		return fmt.Errorf("%w: %s in %s", ErrInvalidTransition, event, mode)
	}
	apply()
	s.mode = to
	t := Transition{Event: event, From: from, To: to, Location: copyPoint(s.selected)}
	obs := s.observers
	s.mu.Unlock()

	notify(obs, t)
	return nil
}

func notify(obs []func(Transition), t Transition) {
	for _, fn := range obs {
		fn(t)
	}
}

func copyPoint(p *orb.Point) *orb.Point {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
