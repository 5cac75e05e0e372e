package scheduling

import (
	"sort"
	"strings"

	"github.com/clinicdesk/frontdesk/internal/platform/apperr"
)

// FilterAll keeps every appointment.
const FilterAll = "All"

// Sort keys.
const (
	SortTime   = "time"
	SortStatus = "status"
)

// View selects and orders appointments for display.
type View struct {
	// Status is empty for FilterAll.
	Status Status
	Sort   string
}

// ParseView validates the filter and sort query values. Empty values mean
// FilterAll and SortTime.
func ParseView(filter, sortKey string) (View, error) {
	v := View{Sort: SortTime}
	filter = strings.TrimSpace(filter)
	if filter != "" && !strings.EqualFold(filter, FilterAll) {
		st, ok := ParseStatus(filter)
		if !ok {
			return View{}, apperr.Validation("status", "status filter must be All, Waiting, Confirmed or Cancelled")
		}
		v.Status = st
	}
	switch key := strings.ToLower(strings.TrimSpace(sortKey)); key {
	case "", SortTime:
	case SortStatus:
		v.Sort = SortStatus
	default:
		return View{}, apperr.Validation("sort", "sort must be time or status")
	}
	return v, nil
}

// Apply filters appts and returns them in view order. The input slice is
// not modified. Ordering is stable.
func (v View) Apply(appts []*Appointment) []*Appointment {
	out := make([]*Appointment, 0, len(appts))
	for _, a := range appts {
		if v.Status == "" || a.Status == v.Status {
			out = append(out, a)
		}
	}
	switch v.Sort {
	case SortStatus:
		sort.SliceStable(out, func(i, j int) bool {
			ri, rj := out[i].Status.rank(), out[j].Status.rank()
			if ri != rj {
				return ri < rj
			}
			return out[i].StartsAt.Before(out[j].StartsAt)
		})
	default:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].StartsAt.Before(out[j].StartsAt)
		})
	}
	return out
}
