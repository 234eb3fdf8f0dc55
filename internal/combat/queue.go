package combat

import (
	"container/heap"

	"github.com/google/uuid"

	"battlesim/internal/game"
)

// EventKind doubles as the tie-break priority between events at the same
// time: lower kinds run first.
type EventKind uint8

const (
	EventApplyBuff EventKind = iota
	EventBuffTick
	EventAttack
	EventBuffExpire
	EventAutoCastStart
	EventAutoCastEnd
)

func (k EventKind) String() string {
	switch k {
	case EventApplyBuff:
		return "ApplyBuff"
	case EventBuffTick:
		return "BuffTick"
	case EventAttack:
		return "Attack"
	case EventBuffExpire:
		return "BuffExpire"
	case EventAutoCastStart:
		return "AutoCastStart"
	case EventAutoCastEnd:
		return "AutoCastEnd"
	}
	return "Unknown"
}

// BattleEvent is one scheduled queue element. UnitID is the attacker, caster
// or buff caster; TargetID is the hinted attack target or the buff target.
type BattleEvent struct {
	Kind         EventKind
	TimeMs       uint64
	CauseSeq     *uint64
	UnitID       uuid.UUID
	TargetID     uuid.NullUUID
	ScheduleNext bool
	BuffID       game.BuffID
	DurationMs   uint64

	order uint64
}

func (e *BattleEvent) less(o *BattleEvent) bool {
	if e.TimeMs != o.TimeMs {
		return e.TimeMs < o.TimeMs
	}
	if e.Kind != o.Kind {
		return e.Kind < o.Kind
	}
	if c := compareIDs(e.UnitID, o.UnitID); c != 0 {
		return c < 0
	}
	if e.TargetID.Valid != o.TargetID.Valid {
		return !e.TargetID.Valid
	}
	if c := compareIDs(e.TargetID.UUID, o.TargetID.UUID); c != 0 {
		return c < 0
	}
	return e.order < o.order
}

type eventHeap []*BattleEvent

func (h eventHeap) Len() int           { return len(h) }
func (h eventHeap) Less(i, j int) bool { return h[i].less(h[j]) }
func (h eventHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x any) { *h = append(*h, x.(*BattleEvent)) }

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// EventQueue is a min-queue with a total order.
type EventQueue struct {
	h    eventHeap
	next uint64
}

func (q *EventQueue) Push(ev BattleEvent) {
	ev.order = q.next
	q.next++
	heap.Push(&q.h, &ev)
}

func (q *EventQueue) Pop() (BattleEvent, bool) {
	if len(q.h) == 0 {
		return BattleEvent{}, false
	}
	return *heap.Pop(&q.h).(*BattleEvent), true
}

func (q *EventQueue) Len() int { return len(q.h) }

func (q *EventQueue) Clear() {
	q.h = nil
	q.next = 0
}
