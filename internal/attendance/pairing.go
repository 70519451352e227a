package attendance

import (
	"fmt"
	"sort"
	"time"

	"timetrack/internal/model"
)

// PairedSessions holds one student's check-ins and check-outs for a scope,
// with the summed duration of the matched pairs.
type PairedSessions struct {
	CheckIns  []model.TimeRecord `json:"check_ins"`
	CheckOuts []model.TimeRecord `json:"check_outs"`
	Total     time.Duration      `json:"-"`
}

// TotalFormatted renders the summed duration as whole hours and remaining
// minutes, e.g. "4h 0m". Partial minutes are floored, not rounded.
func (p PairedSessions) TotalFormatted() string {
	return FormatDuration(p.Total)
}

// FormatDuration renders d as "Nh Mm" with floor semantics.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hours := int(d / time.Hour)
	minutes := int((d % time.Hour) / time.Minute)
	return fmt.Sprintf("%dh %dm", hours, minutes)
}

// PairSessions matches each check-in with the earliest not-yet-consumed
// check-out strictly after it, in chronological order. Unterminated check-ins
// and stray check-outs are still listed but contribute no duration. A
// check-out is consumed at most once, so the total is never negative.
// The operation is per student; callers group records by student first.
func PairSessions(records []model.TimeRecord) PairedSessions {
	var out PairedSessions
	for _, rec := range records {
		if rec.Type == model.RecordIn {
			out.CheckIns = append(out.CheckIns, rec)
		} else {
			out.CheckOuts = append(out.CheckOuts, rec)
		}
	}
	sort.SliceStable(out.CheckIns, func(i, j int) bool {
		return out.CheckIns[i].Timestamp.Before(out.CheckIns[j].Timestamp)
	})
	sort.SliceStable(out.CheckOuts, func(i, j int) bool {
		return out.CheckOuts[i].Timestamp.Before(out.CheckOuts[j].Timestamp)
	})

	consumed := make([]bool, len(out.CheckOuts))
	for _, in := range out.CheckIns {
		for i, outRec := range out.CheckOuts {
			if consumed[i] || !outRec.Timestamp.After(in.Timestamp) {
				continue
			}
			out.Total += outRec.Timestamp.Sub(in.Timestamp)
			consumed[i] = true
			break
		}
	}
	return out
}
