package combat

import (
	"slices"

	"github.com/google/uuid"

	"battlesim/internal/game"
)

type AbilityRequest struct {
	AbilityID game.AbilityID
	CasterID  uuid.UUID
	TargetID  uuid.NullUUID
	TimeMs    uint64
}

type AbilityResult struct {
	Executed bool
	Commands []Command
}

// UnitSnapshot is the read-only view of a unit the executor and the
// graveyard work with.
type UnitSnapshot struct {
	ID       uuid.UUID
	Owner    game.Side
	BaseUUID uuid.UUID
	Position game.Position
	Stats    game.UnitStats
}

// AbilityExecutor turns an ability request into commands. It owns the
// per-battle cooldown state.
type AbilityExecutor struct {
	book      *SkillBook
	cooldowns *Cooldowns
}

func NewAbilityExecutor(book *SkillBook) *AbilityExecutor {
	if book == nil {
		book = NewSkillBook()
	}
	return &AbilityExecutor{book: book, cooldowns: NewCooldowns()}
}

func (e *AbilityExecutor) ResetCooldowns() { e.cooldowns.Reset() }

// Execute decides whether the ability fires. units must hold every living
// unit; a caster missing from it never executes.
func (e *AbilityExecutor) Execute(req AbilityRequest, caster UnitSnapshot, units []UnitSnapshot) AbilityResult {
	present := slices.ContainsFunc(units, func(u UnitSnapshot) bool {
		return u.ID == req.CasterID && u.Stats.Alive()
	})
	if !present || caster.ID != req.CasterID || !caster.Stats.Alive() {
		return AbilityResult{}
	}

	tpl, ok := e.book.Template(req.AbilityID)
	if !ok {
		return AbilityResult{Executed: true}
	}

	if tpl.CooldownMs > 0 {
		if !e.cooldowns.Ready(req.CasterID, req.AbilityID, req.TimeMs) {
			return AbilityResult{}
		}
		e.cooldowns.Trigger(req.CasterID, req.AbilityID, req.TimeMs, tpl.CooldownMs)
	}

	var commands []Command
	for _, fx := range tpl.Effects {
		commands = append(commands, effectCommands(fx, caster, req.TargetID, units)...)
	}
	return AbilityResult{Executed: true, Commands: commands}
}

func effectCommands(fx SkillEffect, caster UnitSnapshot, hint uuid.NullUUID, units []UnitSnapshot) []Command {
	targets := resolveTargets(fx.Target, caster, hint, units)
	source := uuid.NullUUID{UUID: caster.ID, Valid: true}
	var out []Command
	switch fx.Kind {
	case SkillDirectDamage:
		for _, id := range targets {
			out = append(out, ApplyHealCommand{TargetID: id, Flat: -fx.Amount, SourceID: source})
		}
	case SkillHeal:
		for _, id := range targets {
			out = append(out, ApplyHealCommand{TargetID: id, Flat: fx.Amount, SourceID: source})
		}
	case SkillExtraAttack:
		for range fx.Count {
			for _, id := range targets {
				out = append(out, ScheduleAttackCommand{
					AttackerID: caster.ID,
					TargetID:   uuid.NullUUID{UUID: id, Valid: true},
				})
			}
		}
	case SkillStatModifiers:
		for _, id := range targets {
			for _, m := range fx.Modifiers {
				out = append(out, ApplyModifierCommand{TargetID: id, Modifier: m})
			}
		}
	}
	return out
}

func resolveTargets(scope TargetScope, caster UnitSnapshot, hint uuid.NullUUID, units []UnitSnapshot) []uuid.UUID {
	isHinted := func(u UnitSnapshot) bool { return hint.Valid && u.ID == hint.UUID }
	switch scope {
	case ScopeSelf:
		return []uuid.UUID{caster.ID}
	case ScopeAllySingle:
		if slices.ContainsFunc(units, func(u UnitSnapshot) bool { return isHinted(u) && u.Owner == caster.Owner }) {
			return []uuid.UUID{hint.UUID}
		}
		return []uuid.UUID{caster.ID}
	case ScopeAllyAll:
		var out []uuid.UUID
		for _, u := range units {
			if u.Owner == caster.Owner {
				out = append(out, u.ID)
			}
		}
		return out
	case ScopeEnemySingle:
		if slices.ContainsFunc(units, func(u UnitSnapshot) bool { return isHinted(u) && u.Owner != caster.Owner }) {
			return []uuid.UUID{hint.UUID}
		}
		var best *UnitSnapshot
		for i := range units {
			u := &units[i]
			if u.Owner == caster.Owner {
				continue
			}
			if best == nil || compareIDs(u.ID, best.ID) < 0 {
				best = u
			}
		}
		if best == nil {
			return nil
		}
		return []uuid.UUID{best.ID}
	case ScopeEnemyAll:
		var out []uuid.UUID
		for _, u := range units {
			if u.Owner != caster.Owner {
				out = append(out, u.ID)
			}
		}
		return out
	}
	return nil
}
