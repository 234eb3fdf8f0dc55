package combat

import (
	"bytes"
	"encoding/binary"

	"github.com/google/uuid"

	"battlesim/internal/game"
)

const (
	artifactTagMask byte = 0x80
	// item tags live in the high nibble so they survive folding in the
	// owner's id, whose low nibble already carries the side tag
	itemTagShift = 4
	// itemSaltStep moves a colliding item id into the salt's upper bytes,
	// clear of the per-unit equipment index.
	itemSaltStep uint32 = 1 << 16
)

func sideTag(side game.Side) byte {
	if side == game.SidePlayer {
		return 1
	}
	return 2
}

func xorSalt(b *uuid.UUID, salt uint32) {
	var s [4]byte
	binary.LittleEndian.PutUint32(s[:], salt)
	for i := range s {
		b[1+i] ^= s[i]
	}
}

// MakeInstanceID derives a per-battle unit id from its content uuid.
func MakeInstanceID(base uuid.UUID, side game.Side, salt uint32) uuid.UUID {
	id := base
	id[0] ^= sideTag(side)
	xorSalt(&id, salt)
	return id
}

func MakeArtifactInstanceID(base uuid.UUID, side game.Side, salt uint32) uuid.UUID {
	id := base
	id[0] ^= sideTag(side) ^ artifactTagMask
	xorSalt(&id, salt)
	return id
}

// MakeItemInstanceID folds the owning unit's instance id into the item id so
// the same equipment on two units never collides.
func MakeItemInstanceID(base uuid.UUID, side game.Side, ownerUnit uuid.UUID, salt uint32) uuid.UUID {
	id := base
	for i := range id {
		id[i] ^= ownerUnit[i]
	}
	id[0] ^= sideTag(side) << itemTagShift
	xorSalt(&id, salt)
	return id
}

func compareIDs(a, b uuid.UUID) int { return bytes.Compare(a[:], b[:]) }
