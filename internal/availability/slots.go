package availability

// SlotStarts enumerates candidate slot start minutes inside a single free
// window: successive starts at a fixed step from the window start, keeping
// only starts where the whole duration fits before the window end. A slot
// can therefore never span a window boundary.
func SlotStarts(free Window, duration, step int) []int {
	if duration <= 0 || step <= 0 || free.Empty() {
		return nil
	}

	var starts []int
	for s := free.Start; s+duration <= free.End; s += step {
		starts = append(starts, s)
	}
	return starts
}
