package grading

import (
	"context"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/gradebook/core"
)

type (
	// Reader holds the read operations available both in and out of a transaction.
	Reader interface {
		GetCourse(ctx context.Context, id int) (Course, error)
		GetComposition(ctx context.Context, id int) (Composition, error)
		// QueryCompositions returns all compositions of a course ordered by index ASC (NULLs last), then ID.
		QueryCompositions(ctx context.Context, courseID int) ([]Composition, error)
	}

	Repository interface {
		Reader

		// QueryEnrollments returns enrollments ordered by student ID ASC.
		QueryEnrollments(ctx context.Context, filter EnrollmentFilter) ([]Enrollment, error)
		QueryGrades(ctx context.Context, filter GradeFilter) ([]Grade, error)

		// BeginTx opens a transaction scope. Compositions are only ever mutated through a Tx.
		BeginTx(ctx context.Context) (Tx, error)
	}

	// Tx is a transaction scope over the composition store.
	// Nothing done through it is visible to others until Commit; Rollback discards all of it.
	Tx interface {
		Reader
		core.DBTransactor

		// LockCourse takes the course's write lock for the rest of the transaction,
		// serializing concurrent mutations of the course's compositions.
		LockCourse(ctx context.Context, courseID int) error
		CreateComposition(ctx context.Context, comp Composition) (Composition, error)
		// UpdateComposition persists Name, Scale and UpdatedAt.
		UpdateComposition(ctx context.Context, comp Composition) (Composition, error)
		// SetCompositionIndex sets the index; an invalid index clears it.
		SetCompositionIndex(ctx context.Context, id int, index null.Int) error
		SetCompositionFinalized(ctx context.Context, id int, finalized bool) (Composition, error)
		DeleteComposition(ctx context.Context, id int) error
	}
)
