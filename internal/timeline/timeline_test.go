package timeline

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"

	"battlesim/internal/game"
)

func sampleTimeline() Timeline {
	a := uuid.MustParse("00000000-0000-0000-0000-0000000003e9")
	b := uuid.MustParse("00000000-0000-0000-0000-0000000003ea")
	tl := New()
	tl.Append(0, nil, BattleStart{Width: 8, Height: 8})
	tl.Append(0, nil, UnitSpawned{
		UnitInstanceID: a, Owner: game.SidePlayer, BaseUUID: a,
		Position: game.Position{X: 0, Y: 0},
		Stats:    game.NewUnitStats(10, 10, 100, 0, 1),
	})
	tl.Append(0, nil, UnitSpawned{
		UnitInstanceID: b, Owner: game.SideOpponent, BaseUUID: b,
		Position: game.Position{X: 1, Y: 0},
		Stats:    game.NewUnitStats(50, 50, 0, 0, 1000),
	})
	attack := tl.Append(1, nil, Attack{AttackerInstanceID: a, TargetInstanceID: b, Kind: AttackAuto})
	tl.Append(1, &attack, HpChanged{
		SourceInstanceID: SomeID(a), TargetInstanceID: b,
		Delta: -50, HpBefore: 50, HpAfter: 0, Reason: ReasonBasicAttack,
	})
	tl.Append(1, &attack, UnitDied{UnitInstanceID: b, Owner: game.SideOpponent, KillerInstanceID: SomeID(a)})
	tl.Append(1, nil, AutoCastStart{CasterInstanceID: a})
	tl.Append(1, nil, BuffApplied{CasterInstanceID: a, TargetInstanceID: b, BuffID: game.BuffIDFromName("poison"), DurationMs: 3500})
	tl.Append(1, nil, BattleEnd{Winner: game.WinnerPlayer})
	return tl
}

func TestRoundTripIsByteStable(t *testing.T) {
	tl := sampleTimeline()
	first, err := Encode(tl)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := Decode(first)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	second, err := Encode(decoded)
	if err != nil {
		t.Fatalf("re-encode: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("expected identical bytes\nfirst:  %s\nsecond: %s", first, second)
	}
	if len(decoded.Entries) != len(tl.Entries) {
		t.Fatalf("expected %d entries, got %d", len(tl.Entries), len(decoded.Entries))
	}
	for i := range tl.Entries {
		if decoded.Entries[i].Event != tl.Entries[i].Event {
			t.Fatalf("entry %d: expected %#v, got %#v", i, tl.Entries[i].Event, decoded.Entries[i].Event)
		}
	}
}

func TestEncodeTagsEventsAndOmitsMissingCause(t *testing.T) {
	tl := sampleTimeline()
	b, err := Encode(tl)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	s := string(b)
	if !strings.HasPrefix(s, `{"version":2,"entries":[{"time_ms":0,"seq":0,"event":{"type":"BattleStart","width":8,"height":8}}`) {
		t.Fatalf("unexpected prefix: %s", s[:120])
	}
	if !strings.Contains(s, `"seq":4,"cause_seq":3,"event":{"type":"HpChanged"`) {
		t.Fatalf("expected cause_seq on outcome entry, got %s", s)
	}
	if !strings.Contains(s, `"type":"AutoCastStart","caster_instance_id":"00000000-0000-0000-0000-0000000003e9","target_instance_id":null`) {
		t.Fatalf("expected null optional target and omitted ability, got %s", s)
	}
}

func TestDecodeRejectsUnknownType(t *testing.T) {
	_, err := Decode([]byte(`{"version":2,"entries":[{"time_ms":0,"seq":0,"event":{"type":"Teleport"}}]}`))
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, ErrUnknownEventType) {
		t.Fatalf("expected ErrUnknownEventType, got %v", err)
	}
}

func TestChecksumAndFiles(t *testing.T) {
	tl := sampleTimeline()
	sum1, err := Checksum(tl)
	if err != nil {
		t.Fatalf("checksum: %v", err)
	}
	path := filepath.Join(t.TempDir(), "timeline.json")
	if err := WriteFile(path, tl, true); err != nil {
		t.Fatalf("write: %v", err)
	}
	loaded, err := ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	sum2, err := Checksum(loaded)
	if err != nil {
		t.Fatalf("checksum: %v", err)
	}
	if sum1 != sum2 {
		t.Fatalf("expected checksum %s after pretty round trip, got %s", sum1, sum2)
	}
	if len(sum1) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(sum1))
	}
}

func TestReferencedUnits(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	got := ReferencedUnits(UnitDied{UnitInstanceID: a, KillerInstanceID: SomeID(b)})
	if len(got) != 2 || got[0] != a || got[1] != b {
		t.Fatalf("expected [dead killer], got %v", got)
	}
	if got := ReferencedUnits(BattleEnd{Winner: game.WinnerDraw}); len(got) != 0 {
		t.Fatalf("expected no references, got %v", got)
	}
	if !IsOutcome(HpChanged{}) || IsOutcome(Attack{}) {
		t.Fatal("outcome classification wrong")
	}
	if !IsDecision(BuffTick{}) || IsDecision(BuffApplied{}) {
		t.Fatal("decision classification wrong")
	}
}
