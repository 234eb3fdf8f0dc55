package combat

import (
	"github.com/google/uuid"

	"battlesim/internal/game"
)

type cooldownKey struct {
	caster  uuid.UUID
	ability game.AbilityID
}

// Cooldowns tracks the next ready time per (caster, ability).
type Cooldowns struct {
	nextReady map[cooldownKey]uint64
}

func NewCooldowns() *Cooldowns {
	return &Cooldowns{nextReady: map[cooldownKey]uint64{}}
}

func (c *Cooldowns) Ready(caster uuid.UUID, ability game.AbilityID, nowMs uint64) bool {
	ready, ok := c.nextReady[cooldownKey{caster, ability}]
	return !ok || nowMs >= ready
}

func (c *Cooldowns) Trigger(caster uuid.UUID, ability game.AbilityID, nowMs, cooldownMs uint64) {
	c.nextReady[cooldownKey{caster, ability}] = nowMs + cooldownMs
}

func (c *Cooldowns) Reset() { clear(c.nextReady) }
