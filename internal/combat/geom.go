package combat

import (
	"fmt"

	"github.com/google/uuid"

	"battlesim/internal/game"
)

// Field is the battle grid: one unit per cell.
type Field struct {
	Width, Height uint8
	cells         map[game.Position]uuid.UUID
	positions     map[uuid.UUID]game.Position
}

func NewField(width, height uint8) *Field {
	return &Field{
		Width:     width,
		Height:    height,
		cells:     map[game.Position]uuid.UUID{},
		positions: map[uuid.UUID]game.Position{},
	}
}

func (f *Field) InBounds(p game.Position) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < int32(f.Width) && p.Y < int32(f.Height)
}

func (f *Field) Place(id uuid.UUID, p game.Position) error {
	if !f.InBounds(p) {
		return fmt.Errorf("position (%d,%d) outside %dx%d field: %w", p.X, p.Y, f.Width, f.Height, game.ErrInvalidAction)
	}
	if other, ok := f.cells[p]; ok {
		return fmt.Errorf("position (%d,%d) already holds %s: %w", p.X, p.Y, other, game.ErrInvalidAction)
	}
	f.cells[p] = id
	f.positions[id] = p
	return nil
}

func (f *Field) Remove(id uuid.UUID) {
	if p, ok := f.positions[id]; ok {
		delete(f.cells, p)
		delete(f.positions, id)
	}
}

func (f *Field) Position(id uuid.UUID) (game.Position, bool) {
	p, ok := f.positions[id]
	return p, ok
}

// nearest picks the candidate closest to from by Manhattan distance, ties
// going to the smallest id bytes.
func nearest(from game.Position, candidates []UnitSnapshot) (uuid.UUID, bool) {
	var (
		best     uuid.UUID
		bestDist uint32
		found    bool
	)
	for _, c := range candidates {
		d := from.Manhattan(c.Position)
		if !found || d < bestDist || (d == bestDist && compareIDs(c.ID, best) < 0) {
			best, bestDist, found = c.ID, d, true
		}
	}
	return best, found
}
