// Package timeline holds the battle log: an append-only list of causally
// annotated entries and its JSON form.
package timeline

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Version is bumped whenever the entry or event layout changes.
const Version uint32 = 2

var ErrUnknownEventType = errors.New("unknown timeline event type")

type Timeline struct {
	Version uint32  `json:"version"`
	Entries []Entry `json:"entries"`
}

type Entry struct {
	TimeMs   uint64
	Seq      uint64
	CauseSeq *uint64
	Event    Event
}

func New() Timeline {
	return Timeline{Version: Version, Entries: []Entry{}}
}

// Append adds an entry whose seq is its index and returns that seq.
func (t *Timeline) Append(timeMs uint64, causeSeq *uint64, ev Event) uint64 {
	seq := uint64(len(t.Entries))
	var cause *uint64
	if causeSeq != nil {
		c := *causeSeq
		cause = &c
	}
	t.Entries = append(t.Entries, Entry{TimeMs: timeMs, Seq: seq, CauseSeq: cause, Event: ev})
	return seq
}

func (t Timeline) Len() int { return len(t.Entries) }

// Last returns the final entry, if any.
func (t Timeline) Last() (Entry, bool) {
	if len(t.Entries) == 0 {
		return Entry{}, false
	}
	return t.Entries[len(t.Entries)-1], true
}

// Cause returns the entry's cause seq and whether it is set.
func (e Entry) Cause() (uint64, bool) {
	if e.CauseSeq == nil {
		return 0, false
	}
	return *e.CauseSeq, true
}

type entryJSON struct {
	TimeMs   uint64          `json:"time_ms"`
	Seq      uint64          `json:"seq"`
	CauseSeq *uint64         `json:"cause_seq,omitempty"`
	Event    json.RawMessage `json:"event"`
}

func (e Entry) MarshalJSON() ([]byte, error) {
	ev, err := encodeEvent(e.Event)
	if err != nil {
		return nil, err
	}
	return json.Marshal(entryJSON{TimeMs: e.TimeMs, Seq: e.Seq, CauseSeq: e.CauseSeq, Event: ev})
}

func (e *Entry) UnmarshalJSON(b []byte) error {
	var raw entryJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	ev, err := decodeEvent(raw.Event)
	if err != nil {
		return fmt.Errorf("entry seq %d: %w", raw.Seq, err)
	}
	*e = Entry{TimeMs: raw.TimeMs, Seq: raw.Seq, CauseSeq: raw.CauseSeq, Event: ev}
	return nil
}

// encodeEvent writes the payload as an object whose first key is "type".
func encodeEvent(ev Event) ([]byte, error) {
	if ev == nil {
		return nil, errors.New("timeline entry without event")
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	typ, err := json.Marshal(string(ev.EventType()))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.Grow(len(body) + len(typ) + 10)
	buf.WriteString(`{"type":`)
	buf.Write(typ)
	if len(body) > 2 {
		buf.WriteByte(',')
		buf.Write(body[1:])
	} else {
		buf.WriteByte('}')
	}
	return buf.Bytes(), nil
}

func decodeEvent(raw json.RawMessage) (Event, error) {
	var head struct {
		Type EventType `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, err
	}
	switch head.Type {
	case TypeBattleStart:
		return decodeAs[BattleStart](raw)
	case TypeArtifactSpawned:
		return decodeAs[ArtifactSpawned](raw)
	case TypeItemSpawned:
		return decodeAs[ItemSpawned](raw)
	case TypeUnitSpawned:
		return decodeAs[UnitSpawned](raw)
	case TypeAttack:
		return decodeAs[Attack](raw)
	case TypeAutoCastStart:
		return decodeAs[AutoCastStart](raw)
	case TypeAutoCastEnd:
		return decodeAs[AutoCastEnd](raw)
	case TypeAbilityCast:
		return decodeAs[AbilityCast](raw)
	case TypeBuffApplied:
		return decodeAs[BuffApplied](raw)
	case TypeBuffTick:
		return decodeAs[BuffTick](raw)
	case TypeBuffExpired:
		return decodeAs[BuffExpired](raw)
	case TypeHpChanged:
		return decodeAs[HpChanged](raw)
	case TypeStatChanged:
		return decodeAs[StatChanged](raw)
	case TypeUnitDied:
		return decodeAs[UnitDied](raw)
	case TypeBattleEnd:
		return decodeAs[BattleEnd](raw)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, head.Type)
}

func decodeAs[T Event](raw json.RawMessage) (Event, error) {
	var ev T
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// Encode returns the compact JSON form. Equal timelines encode to equal bytes.
func Encode(t Timeline) ([]byte, error) {
	return json.Marshal(t)
}

func Decode(b []byte) (Timeline, error) {
	var t Timeline
	if err := json.Unmarshal(b, &t); err != nil {
		return Timeline{}, fmt.Errorf("decode timeline: %w", err)
	}
	return t, nil
}

func MarshalPretty(t Timeline) ([]byte, error) {
	return json.MarshalIndent(t, "", "  ")
}

// Checksum is the hex sha256 of the compact encoding.
func Checksum(t Timeline) (string, error) {
	b, err := Encode(t)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

func ReadFile(path string) (Timeline, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Timeline{}, err
	}
	t, err := Decode(b)
	if err != nil {
		return Timeline{}, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

func WriteFile(path string, t Timeline, pretty bool) error {
	var (
		b   []byte
		err error
	)
	if pretty {
		b, err = MarshalPretty(t)
	} else {
		b, err = Encode(t)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}
