package tour

import "github.com/campustour/campustour/internal/core/domain"

// NoDirections is shown when no instruction exists for a step.
const NoDirections = "No directions available"

// OffsetForStep returns how many maneuver steps precede leg `step` in the flattened
// instruction list. Steps at or below zero, or an empty route, give 0. Steps past the
// available legs clamp to the total of the legs present.
func OffsetForStep(legs []domain.RouteLeg, step int) int {
	if step <= 0 {
		return 0
	}
	n := min(step, len(legs))

	offset := 0
	for i := 0; i < n; i++ {
		offset += len(legs[i].Steps)
	}
	return offset
}

// Flatten concatenates every leg's maneuver steps in route order.
func Flatten(legs []domain.RouteLeg) []domain.ManeuverStep {
	total := OffsetForStep(legs, len(legs))
	out := make([]domain.ManeuverStep, 0, total)
	for _, leg := range legs {
		out = append(out, leg.Steps...)
	}
	return out
}

// StepInstructions slices the directions from waypoint `step` to the next one
// out of the flattened list. It returns nil when that leg is not available.
func StepInstructions(legs []domain.RouteLeg, step int) []domain.ManeuverStep {
	if step < 0 || step >= len(legs) {
		return nil
	}
	flat := Flatten(legs)
	start := OffsetForStep(legs, step)
	return flat[start : start+len(legs[step].Steps)]
}

// InstructionFor returns the first instruction of the leg leaving waypoint `step`,
// or NoDirections.
func InstructionFor(legs []domain.RouteLeg, step int) string {
	steps := StepInstructions(legs, step)
	if len(steps) == 0 || steps[0].Instruction == "" {
		return NoDirections
	}
	return steps[0].Instruction
}
