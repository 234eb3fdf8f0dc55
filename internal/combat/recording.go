package combat

import "battlesim/internal/timeline"

// record appends ev under whatever cause is on top of the stack.
func (c *BattleCore) record(timeMs uint64, ev timeline.Event) uint64 {
	var cause *uint64
	if n := len(c.causeStack); n > 0 {
		cause = &c.causeStack[n-1]
	}
	return c.timeline.Append(timeMs, cause, ev)
}

// withRecordingParent runs fn with parent pushed, when there is one.
func (c *BattleCore) withRecordingParent(parent *uint64, fn func()) {
	n := len(c.causeStack)
	if parent != nil {
		c.causeStack = append(c.causeStack, *parent)
	}
	fn()
	c.causeStack = c.causeStack[:n]
}

func (c *BattleCore) withRecordingCause(seq uint64, fn func()) {
	c.withRecordingParent(&seq, fn)
}

func seqPtr(seq uint64) *uint64 { return &seq }
