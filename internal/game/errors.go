package game

import "errors"

var (
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrOutOfBounds          = errors.New("coordinate out of bounds")
	ErrIllegalPlacement     = errors.New("illegal ship placement")
	ErrPlacementFailed      = errors.New("ship placement failed")
)
