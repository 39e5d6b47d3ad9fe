package grading

import (
	"strings"

	"github.com/trezcool/gradebook/core"
)

// scaleTolerance absorbs float drift when scales are summed.
const scaleTolerance = 1e-9

var (
	scaleNotPositiveText = "scale must be greater than 0"
	scaleExceededText    = "total scale of a course cannot exceed 100"
	nameExistsText       = "a grade composition with this name already exists"
)

// ValidateComposition checks that a composition named `name` of scale `scale` can join the
// `existing` compositions of a course: the course's total scale stays <= MaxCourseScale and
// no other composition has the same case-insensitive name.
// Compositions listed in `exclude` are left out of both checks (the composition being updated).
func ValidateComposition(existing []Composition, name string, scale float64, exclude ...Composition) error {
	name = core.CleanString(name)
	if name == "" {
		return core.NewValidationError(ErrInvalidComposition, core.FieldError{Field: "name", Error: core.NotBlankText})
	}
	if scale <= 0 {
		return core.NewValidationError(ErrInvalidComposition, core.FieldError{Field: "scale", Error: scaleNotPositiveText})
	}

	total := scale
	for _, comp := range existing {
		if isExcluded(comp, exclude) {
			continue
		}
		if strings.EqualFold(comp.Name, name) {
			return core.NewValidationError(ErrInvalidComposition, core.FieldError{Field: "name", Error: nameExistsText})
		}
		total += comp.Scale
	}
	if total > MaxCourseScale+scaleTolerance {
		return core.NewValidationError(ErrInvalidComposition, core.FieldError{Field: "scale", Error: scaleExceededText})
	}
	return nil
}

func isExcluded(comp Composition, exclude []Composition) bool {
	for _, excl := range exclude {
		if comp.ID == excl.ID {
			return true
		}
	}
	return false
}
