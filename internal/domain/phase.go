package domain

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownPhase = errors.New("unknown phase")

type Phase string

const (
	PhaseArterial Phase = "arterial"
	PhaseVenous   Phase = "venous"
)

const DefaultPhase = PhaseArterial

// Phases lists the selectable phases in display order.
var Phases = []Phase{PhaseArterial, PhaseVenous}

func ParsePhase(s string) (Phase, error) {
	p := Phase(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownPhase, s)
	}
	return p, nil
}

func (p Phase) Valid() bool {
	switch p {
	case PhaseArterial, PhaseVenous:
		return true
	default:
		return false
	}
}

func (p Phase) String() string {
	return string(p)
}

// Label is the heading shown above a processed image.
func (p Phase) Label() string {
	switch p {
	case PhaseArterial:
		return "Arterial Phase"
	case PhaseVenous:
		return "Venous Phase"
	default:
		return ""
	}
}

func (p Phase) Description() string {
	switch p {
	case PhaseArterial:
		return "Increased Contrast"
	case PhaseVenous:
		return "Gaussian Smoothing"
	default:
		return ""
	}
}
