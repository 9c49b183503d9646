package mapview

import (
	"fmt"
	"time"

	"github.com/bwise1/hazard_map/internal/model"
	"github.com/bwise1/hazard_map/util"
)

const (
	FilterAll = "all"

	RangeWeek  = "week"
	RangeMonth = "month"
	RangeYear  = "year"
)

// FilterSet holds the four independent predicates of the map. A Severity
// of zero means every severity.
type FilterSet struct {
	Category    string
	Severity    int
	DateRange   string
	ShowPending bool
}

func DefaultFilters() FilterSet {
	return FilterSet{
		Category:    FilterAll,
		Severity:    0,
		DateRange:   FilterAll,
		ShowPending: true,
	}
}

// FilterPatch changes only the predicates that are set.
type FilterPatch struct {
	Category    *string
	Severity    *int
	DateRange   *string
	ShowPending *bool
}

func (f FilterSet) Apply(p FilterPatch) FilterSet {
	if p.Category != nil {
		f.Category = *p.Category
	}
	if p.Severity != nil {
		f.Severity = *p.Severity
	}
	if p.DateRange != nil {
		f.DateRange = *p.DateRange
	}
	if p.ShowPending != nil {
		f.ShowPending = *p.ShowPending
	}
	return f
}

func (f FilterSet) Validate() error {
	switch f.Category {
	case FilterAll, model.CategoryTraffic, model.CategoryCrime, model.CategoryDisaster, model.CategoryOther:
	default:
		return fmt.Errorf("unknown category filter %q", f.Category)
	}
	if f.Severity != 0 && (f.Severity < model.MinSeverity || f.Severity > model.MaxSeverity) {
		return fmt.Errorf("severity filter %d out of range", f.Severity)
	}
	switch f.DateRange {
	case FilterAll, RangeWeek, RangeMonth, RangeYear:
	default:
		return fmt.Errorf("unknown date range %q", f.DateRange)
	}
	return nil
}

// ApprovedQuery is the server-side filtered query for approved reports.
func (f FilterSet) ApprovedQuery(now time.Time) model.ReportQuery {
	q := model.ReportQuery{Status: model.StatusApproved}
	if f.Category != FilterAll {
		q.Category = f.Category
	}
	q.Severity = f.Severity
	q.Since = util.SinceForRange(f.DateRange, now)
	return q
}

// PendingQuery selects the signed-in user's own pending reports. The
// other predicates do not apply to them.
func (f FilterSet) PendingQuery(s Session) (model.ReportQuery, bool) {
	if !f.ShowPending || !s.SignedIn() {
		return model.ReportQuery{}, false
	}
	uid := s.UserID
	return model.ReportQuery{Status: model.StatusPending, UserID: &uid}, true
}
