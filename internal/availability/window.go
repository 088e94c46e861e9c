// Package availability implements pure interval arithmetic over half-open
// [start,end) time-of-day windows, expressed as integer minutes since
// midnight. Integers keep the comparisons exact; nothing here touches the
// clock or any store.
package availability

import "sort"

// Window is a half-open [Start,End) interval in minutes since midnight.
type Window struct {
	Start int
	End   int
}

func (w Window) Empty() bool {
	return w.End <= w.Start
}

func (w Window) Duration() int {
	return w.End - w.Start
}

// Contains reports whether o lies fully inside w. An empty o is never
// contained.
func (w Window) Contains(o Window) bool {
	return !o.Empty() && o.Start >= w.Start && o.End <= w.End
}

func Overlaps(a, b Window) bool {
	return a.Start < b.End && b.Start < a.End
}

// Intersect returns the overlap of a and b, if any.
func Intersect(a, b Window) (Window, bool) {
	w := Window{Start: max(a.Start, b.Start), End: min(a.End, b.End)}
	if w.Empty() {
		return Window{}, false
	}
	return w, true
}

// Sort orders windows by start minute, then end minute.
func Sort(ws []Window) {
	sort.Slice(ws, func(i, j int) bool {
		if ws[i].Start != ws[j].Start {
			return ws[i].Start < ws[j].Start
		}
		return ws[i].End < ws[j].End
	})
}

// Merge sorts the given windows and coalesces overlapping or touching ones.
// Used to normalize removal sets before subtraction; empty windows are
// dropped. The input slice is not modified.
func Merge(ws []Window) []Window {
	var in []Window
	for _, w := range ws {
		if !w.Empty() {
			in = append(in, w)
		}
	}
	if len(in) == 0 {
		return nil
	}
	Sort(in)

	merged := in[:1]
	for _, cur := range in[1:] {
		last := &merged[len(merged)-1]
		if cur.Start > last.End {
			merged = append(merged, cur)
			continue
		}
		if cur.End > last.End {
			last.End = cur.End
		}
	}
	return merged
}

// Subtract removes every removal window from every base window, splitting a
// base window in two when a removal falls strictly inside it. Results are
// sorted by start, zero-length leftovers are dropped, and windows stemming
// from distinct base windows are never merged: the sources are disjoint, so
// outputs stay disjoint.
func Subtract(base, removals []Window) []Window {
	cleaned := Merge(removals)

	var work []Window
	for _, b := range base {
		if !b.Empty() {
			work = append(work, b)
		}
	}
	Sort(work)

	var out []Window
	for _, b := range work {
		cursor := b.Start
		for _, r := range cleaned {
			if r.End <= cursor || r.Start >= b.End {
				continue
			}
			if r.Start > cursor {
				out = append(out, Window{Start: cursor, End: r.Start})
			}
			if r.End > cursor {
				cursor = r.End
			}
		}
		if cursor < b.End {
			out = append(out, Window{Start: cursor, End: b.End})
		}
	}
	return out
}
