package grading

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/gradebook/core"
)

// MaxCourseScale is the maximum sum of composition scales within a course.
const MaxCourseScale = 100

type Course struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	CreatedByID int    `json:"created_by_id"`
}

// Composition is a named, weighted grading component of a Course.
// Indices of a course's compositions always form the dense sequence 1..N.
type Composition struct {
	ID          int       `json:"id"`
	CourseID    int       `json:"course_id"`
	Name        string    `json:"name"`
	Scale       float64   `json:"scale"`
	Index       int       `json:"index"` // 0 only while a move is in flight
	IsFinalized bool      `json:"is_finalized"`
	CreatedByID int       `json:"created_by_id"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

type Grade struct {
	ID            int          `json:"id"`
	StudentID     string       `json:"student_id"`
	CompositionID int          `json:"grade_composition_id"`
	Grade         null.Float64 `json:"grade"` // null: not entered yet
}

type Enrollment struct {
	CourseID  int      `json:"course_id"`
	StudentID string   `json:"student_id"`
	FullName  string   `json:"full_name"`
	UserID    null.Int `json:"user_id"`
	Email     string   `json:"-"`
}

// NewComposition contains information needed to create a new Composition.
type NewComposition struct {
	Name  string  `json:"name" validate:"required,notblank,max=255"`
	Scale float64 `json:"scale" validate:"required,gt=0,lte=100"`
}

func (nc *NewComposition) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	return validate.Struct(nc)
}

// UpdateComposition defines what information may be provided to modify an existing Composition.
// Zero fields keep their current value.
type UpdateComposition struct {
	Name  string   `json:"name" validate:"omitempty,notblank,max=255"`
	Scale *float64 `json:"scale" validate:"omitempty,gt=0,lte=100"`
}

func (uc *UpdateComposition) Validate(validate *validator.Validate) error {
	uc.Name = core.CleanString(uc.Name)
	return validate.Struct(uc)
}

type MoveComposition struct {
	SwitchedID int `json:"switched_id" validate:"required,gt=0"`
	SwitchToID int `json:"switch_to_id" validate:"required,gt=0"`
}

func (mc MoveComposition) Validate(validate *validator.Validate) error { return validate.Struct(mc) }

type FinalizeComposition struct {
	IsFinalized *bool `json:"is_finalized" validate:"required"`
}

func (fc FinalizeComposition) Validate(validate *validator.Validate) error {
	return validate.Struct(fc)
}

type EnrollmentFilter struct {
	CourseID     int
	StudentIDs   []string // any of
	HasStudentID bool     // only enrollments mapped to a student ID
}

type GradeFilter struct {
	CompositionIDs []int    // any of
	StudentIDs     []string // any of
}
