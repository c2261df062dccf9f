package input

// EdgeTracker turns held buttons and keys into one-shot actions. Each
// tracked control fires on its released-to-pressed transition only and
// re-arms once the control is observed released again.
type EdgeTracker struct {
	last map[string]bool
}

func NewEdgeTracker() *EdgeTracker {
	return &EdgeTracker{last: make(map[string]bool)}
}

// Rising records the current level of the named control and reports whether
// this observation is a rising edge.
func (t *EdgeTracker) Rising(control string, level bool) bool {
	prev := t.last[control]
	t.last[control] = level
	return level && !prev
}
