package stock

import (
	"context"
	"errors"
)

// Validator checks a proposed consumption plan against current stock.
type Validator struct {
	store Store
}

// NewValidator builds a Validator.
func NewValidator(store Store) *Validator {
	return &Validator{store: store}
}

// Validate classifies every line as sufficient, insufficient or unlimited.
// Reads are point reads only; the result is advisory because the eventual
// apply is guarded again at the mutation primitive.
func (v *Validator) Validate(ctx context.Context, lines []ConsumptionLine, mode ValidationMode) (ValidationResult, error) {
	result := ValidationResult{OK: true, Lines: make([]LineAvailability, 0, len(lines))}
	for _, line := range lines {
		availability, err := v.checkLine(ctx, line)
		if err != nil {
			return ValidationResult{}, err
		}
		if !availability.Sufficient {
			result.OK = false
		}
		result.Lines = append(result.Lines, availability)
	}
	_ = mode // preview and commit share the math; the caller decides refusal
	return result, nil
}

func (v *Validator) checkLine(ctx context.Context, line ConsumptionLine) (LineAvailability, error) {
	if line.Unlimited || nameLooksUnlimited(line.Name) {
		return LineAvailability{Line: line, Sufficient: true, Unlimited: true}, nil
	}
	available := 0.0
	record, err := v.store.Get(ctx, line.Ref)
	switch {
	case err == nil:
		available = record.Quantity
	case errors.Is(err, ErrRecordNotFound):
		// No record yet means nothing in stock.
	default:
		return LineAvailability{}, err
	}
	shortfall := line.Required - available
	if shortfall < 0 {
		shortfall = 0
	}
	availability := LineAvailability{
		Line:       line,
		Available:  available,
		Shortfall:  shortfall,
		Sufficient: shortfall == 0,
	}
	// Fewer than two more production runs left after this one is a warning,
	// never a refusal.
	if availability.Sufficient && line.PerUnit > 0 && available-line.Required < 2*line.PerUnit {
		availability.Critical = true
	}
	return availability, nil
}

// Shortfalls extracts the failing lines of a validation result.
func (r ValidationResult) Shortfalls() []Shortfall {
	var out []Shortfall
	for _, l := range r.Lines {
		if l.Sufficient {
			continue
		}
		out = append(out, Shortfall{
			Ref:       l.Line.Ref,
			Name:      l.Line.Name,
			Unit:      l.Line.Unit,
			Required:  l.Line.Required,
			Available: l.Available,
			Missing:   l.Shortfall,
		})
	}
	return out
}
