package goicon

import (
	"fmt"
	"strings"
)

// Shape is the mask applied to the composited icon.
type Shape int

const (
	ShapeCircle Shape = iota
	ShapeRoundedSquare
)

// String returns the wire name of the shape.
func (s Shape) String() string {
	switch s {
	case ShapeCircle:
		return "circle"
	case ShapeRoundedSquare:
		return "square"
	default:
		return fmt.Sprintf("Shape(%d)", int(s))
	}
}

// ParseShape accepts "circle" and "square" (or "rounded-square").
func ParseShape(s string) (Shape, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "circle", "round":
		return ShapeCircle, nil
	case "square", "rounded-square", "roundedsquare":
		return ShapeRoundedSquare, nil
	default:
		return ShapeCircle, fmt.Errorf("unknown shape %q: must be circle or square", s)
	}
}

// IsValid reports whether s is a known shape.
func (s Shape) IsValid() bool {
	return s == ShapeCircle || s == ShapeRoundedSquare
}

func (s Shape) MarshalText() ([]byte, error) {
	if !s.IsValid() {
		return nil, fmt.Errorf("invalid shape %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *Shape) UnmarshalText(b []byte) error {
	v, err := ParseShape(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
