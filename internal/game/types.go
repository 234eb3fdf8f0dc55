package game

import "math"

type Side string

const (
	SidePlayer   Side = "Player"
	SideOpponent Side = "Opponent"
)

func (s Side) Opposite() Side {
	if s == SidePlayer {
		return SideOpponent
	}
	return SidePlayer
}

type Winner string

const (
	WinnerPlayer   Winner = "Player"
	WinnerOpponent Winner = "Opponent"
	WinnerDraw     Winner = "Draw"
)

// Position is a cell on the battle field grid.
type Position struct {
	X int32 `json:"x"`
	Y int32 `json:"y"`
}

func (p Position) Manhattan(o Position) uint32 {
	return absDiff(p.X, o.X) + absDiff(p.Y, o.Y)
}

func absDiff(a, b int32) uint32 {
	d := int64(a) - int64(b)
	if d < 0 {
		d = -d
	}
	return uint32(d)
}

type StatID string

const (
	StatMaxHealth        StatID = "MaxHealth"
	StatAttack           StatID = "Attack"
	StatDefense          StatID = "Defense"
	StatAttackIntervalMs StatID = "AttackIntervalMs"
)

type ModifierKind string

const (
	ModifierFlat    ModifierKind = "Flat"
	ModifierPercent ModifierKind = "Percent"
)

type StatModifier struct {
	Stat  StatID       `json:"stat"`
	Kind  ModifierKind `json:"kind"`
	Value int32        `json:"value"`
}

// delta resolves the modifier against a base value. Percent deltas are
// computed in 64 bits and clamped to the int32 range.
func (m StatModifier) delta(base int64) int64 {
	if m.Kind != ModifierPercent {
		return int64(m.Value)
	}
	d := base * int64(m.Value) / 100
	if d > math.MaxInt32 {
		return math.MaxInt32
	}
	if d < math.MinInt32 {
		return math.MinInt32
	}
	return d
}

type UnitStats struct {
	MaxHealth        uint32 `json:"max_health"`
	CurrentHealth    uint32 `json:"current_health"`
	Attack           uint32 `json:"attack"`
	Defense          uint32 `json:"defense"`
	AttackIntervalMs uint64 `json:"attack_interval_ms"`
}

func NewUnitStats(maxHealth, currentHealth, attack, defense uint32, attackIntervalMs uint64) UnitStats {
	return UnitStats{
		MaxHealth:        maxHealth,
		CurrentHealth:    currentHealth,
		Attack:           attack,
		Defense:          defense,
		AttackIntervalMs: attackIntervalMs,
	}
}

func (s UnitStats) Alive() bool { return s.CurrentHealth > 0 }

func (s *UnitStats) AddMaxHealth(delta int64) {
	s.MaxHealth = addClamped(s.MaxHealth, delta)
	if s.CurrentHealth > s.MaxHealth {
		s.CurrentHealth = s.MaxHealth
	}
}

func (s *UnitStats) AddAttack(delta int64)  { s.Attack = addClamped(s.Attack, delta) }
func (s *UnitStats) AddDefense(delta int64) { s.Defense = addClamped(s.Defense, delta) }

// AddAttackIntervalMs never lets the interval reach zero.
func (s *UnitStats) AddAttackIntervalMs(delta int64) {
	v := int64(s.AttackIntervalMs) + delta
	if v < 1 {
		v = 1
	}
	s.AttackIntervalMs = uint64(v)
}

func (s *UnitStats) ApplyModifier(m StatModifier) {
	switch m.Stat {
	case StatMaxHealth:
		s.AddMaxHealth(m.delta(int64(s.MaxHealth)))
	case StatAttack:
		s.AddAttack(m.delta(int64(s.Attack)))
	case StatDefense:
		s.AddDefense(m.delta(int64(s.Defense)))
	case StatAttackIntervalMs:
		s.AddAttackIntervalMs(m.delta(int64(s.AttackIntervalMs)))
	}
}

func (s *UnitStats) ApplyModifiers(mods []StatModifier) {
	for _, m := range mods {
		s.ApplyModifier(m)
	}
}

func addClamped(v uint32, delta int64) uint32 {
	r := int64(v) + delta
	if r < 0 {
		return 0
	}
	if r > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(r)
}
