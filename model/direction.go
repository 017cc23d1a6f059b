package model

// Direction is the kind of navigation that triggered a transition.
type Direction string

const (
	DirectionInitial  Direction = "initial"
	DirectionNext     Direction = "next"
	DirectionPrevious Direction = "previous"
	DirectionSkip     Direction = "skip"
	DirectionGoTo     Direction = "goto"
)

// IsBackward reports whether d walks the step list backwards.
func (d Direction) IsBackward() bool { return d == DirectionPrevious }
