package combat

import (
	"math"

	"github.com/google/uuid"

	"battlesim/internal/game"
	"battlesim/internal/timeline"
)

// Command is an intent produced by combat math, triggers or abilities. Only
// BattleCore.processCommands turns commands into state changes.
type Command interface {
	isCommand()
}

type UnitDiedCommand struct {
	UnitID   uuid.UUID
	KillerID uuid.NullUUID
}

type ExecuteAbilityCommand struct {
	AbilityID game.AbilityID
	CasterID  uuid.UUID
	TargetID  uuid.NullUUID
}

type ApplyModifierCommand struct {
	TargetID uuid.UUID
	Modifier game.StatModifier
}

// ApplyHealCommand carries damage as a negative Flat.
type ApplyHealCommand struct {
	TargetID uuid.UUID
	Flat     int32
	Percent  int32
	SourceID uuid.NullUUID
}

type ScheduleAttackCommand struct {
	AttackerID uuid.UUID
	TargetID   uuid.NullUUID
	DelayMs    uint64
}

type ApplyBuffCommand struct {
	CasterID   uuid.UUID
	TargetID   uuid.UUID
	BuffID     game.BuffID
	DurationMs uint64
}

func (UnitDiedCommand) isCommand()       {}
func (ExecuteAbilityCommand) isCommand() {}
func (ApplyModifierCommand) isCommand()  {}
func (ApplyHealCommand) isCommand()      {}
func (ScheduleAttackCommand) isCommand() {}
func (ApplyBuffCommand) isCommand()      {}

type DamageSource int

const (
	DamageBasicAttack DamageSource = iota
	DamageAbility
)

type DamageRequest struct {
	Source     DamageSource
	AttackerID uuid.UUID
	TargetID   uuid.UUID
	BaseDamage uint32
	TimeMs     uint64
}

type DamageContext struct {
	AttackerSide    game.Side
	TargetSide      game.Side
	AttackerAttack  uint32
	TargetDefense   uint32
	TargetCurrentHP uint32
	TargetMaxHP     uint32
	OnAttackEffects []game.Effect
	OnHitEffects    []game.Effect
}

type DamageResult struct {
	FinalDamage       uint32
	TargetKilled      bool
	TargetRemainingHP uint32
	TriggeredCommands []Command
}

// CalculateDamage resolves one basic hit without touching any state.
func CalculateDamage(req DamageRequest, ctx DamageContext) DamageResult {
	var commands []Command

	base := uint32(1)
	if ctx.AttackerAttack > ctx.TargetDefense && ctx.AttackerAttack-ctx.TargetDefense > 1 {
		base = ctx.AttackerAttack - ctx.TargetDefense
	}
	damage := int64(base)

	for _, fx := range ctx.OnAttackEffects {
		switch fx.Kind {
		case game.EffectBonusDamage:
			damage = bonusDamage(damage, fx)
		case game.EffectApplyBuff:
			commands = append(commands, ApplyBuffCommand{
				CasterID:   req.AttackerID,
				TargetID:   req.TargetID,
				BuffID:     game.BuffIDFromName(fx.BuffName),
				DurationMs: fx.DurationMs,
			})
		case game.EffectAbility:
			commands = append(commands, ExecuteAbilityCommand{
				AbilityID: fx.Ability,
				CasterID:  req.AttackerID,
				TargetID:  timeline.SomeID(req.TargetID),
			})
		}
	}

	for _, fx := range ctx.OnHitEffects {
		switch fx.Kind {
		case game.EffectBonusDamage:
			damage = bonusDamage(damage, fx)
		case game.EffectHeal:
			commands = append(commands, ApplyHealCommand{
				TargetID: req.TargetID,
				Flat:     fx.Flat,
				Percent:  fx.Percent,
				SourceID: timeline.SomeID(req.TargetID),
			})
		case game.EffectApplyBuff:
			commands = append(commands, ApplyBuffCommand{
				CasterID:   req.TargetID,
				TargetID:   req.AttackerID,
				BuffID:     game.BuffIDFromName(fx.BuffName),
				DurationMs: fx.DurationMs,
			})
		case game.EffectAbility:
			commands = append(commands, ExecuteAbilityCommand{
				AbilityID: fx.Ability,
				CasterID:  req.TargetID,
				TargetID:  timeline.SomeID(req.AttackerID),
			})
		}
	}

	final := clampU32(damage)
	remaining := saturatingSub(ctx.TargetCurrentHP, final)
	killed := remaining == 0
	if killed {
		commands = append(commands, UnitDiedCommand{
			UnitID:   req.TargetID,
			KillerID: timeline.SomeID(req.AttackerID),
		})
	}

	return DamageResult{
		FinalDamage:       final,
		TargetKilled:      killed,
		TargetRemainingHP: remaining,
		TriggeredCommands: commands,
	}
}

func bonusDamage(damage int64, fx game.Effect) int64 {
	damage += int64(fx.Flat)
	damage += damage * int64(fx.Percent) / 100
	return damage
}

// ApplyDamageToUnit subtracts damage from current health, never below zero.
func ApplyDamageToUnit(stats *game.UnitStats, damage uint32) (uint32, bool) {
	stats.CurrentHealth = saturatingSub(stats.CurrentHealth, damage)
	return stats.CurrentHealth, stats.CurrentHealth == 0
}

// HealResult computes the health after a heal command: flat plus a percent
// of max health, clamped to [0, max].
func HealResult(stats game.UnitStats, flat, percent int32) uint32 {
	delta := int64(flat) + int64(stats.MaxHealth)*int64(percent)/100
	hp := int64(stats.CurrentHealth) + delta
	if hp < 0 {
		return 0
	}
	if hp > int64(stats.MaxHealth) {
		return stats.MaxHealth
	}
	return uint32(hp)
}

func clampU32(v int64) uint32 {
	if v < 0 {
		return 0
	}
	if v > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(v)
}

func saturatingSub(a, b uint32) uint32 {
	if b >= a {
		return 0
	}
	return a - b
}
