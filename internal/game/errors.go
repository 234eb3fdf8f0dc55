package game

import "errors"

var (
	ErrMissingResource  = errors.New("missing resource")
	ErrInvalidUnitStats = errors.New("invalid unit stats")
	ErrInvalidAction    = errors.New("invalid action")
	ErrUnitNotFound     = errors.New("unit not found")
)
