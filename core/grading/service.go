package grading

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/gradebook/core"
)

var (
	// errors
	ErrNotFound           = errors.New("grade composition not found")
	ErrCourseNotFound     = errors.New("course not found")
	ErrInvalidComposition = errors.New("invalid grade composition")

	invalidSwitchText = "invalid switch to index"
)

const (
	// messages
	MsgListed         = "Get list grade composition successfully"
	MsgRetrieved      = "Get grade composition successfully"
	MsgCreated        = "Create grade composition successfully"
	MsgUpdated        = "Update grade composition successfully"
	MsgDeleted        = "Delete grade composition successfully"
	MsgSwitched       = "Switch grade composition index successfully"
	MsgReindexed      = "Reindex grade compositions successfully"
	MsgFinalized      = "Mark as finalized successfully"
	MsgUnFinalized    = "Mark as un finalized successfully"
	MsgTemplateBoard  = "Get grade board template for course successfully"
	MsgFinalBoard     = "Get final grade board successfully"
	MsgStudentBoard   = "Get my grade board successfully"
	MsgNoStudentIDSet = "StudentID has not been entered"
)

type (
	ServiceInterface interface {
		Create(ctx context.Context, actor core.Actor, courseID int, nc NewComposition) (Composition, error)
		QueryByCourse(ctx context.Context, courseID int) ([]Composition, error)
		GetByID(ctx context.Context, id int) (Composition, error)
		GetCourse(ctx context.Context, id int) (Course, error)
		Update(ctx context.Context, id int, uc UpdateComposition) (Composition, error)
		Delete(ctx context.Context, id int) error
		Move(ctx context.Context, switchedID, switchToID int) ([]Composition, error)
		MarkFinalized(ctx context.Context, id int, course Course, finalize bool) (Composition, error)
		Reindex(ctx context.Context, courseID int) ([]Composition, error)
		TemplateBoard(ctx context.Context, courseID int) (Board, error)
		FinalBoard(ctx context.Context, courseID int) (Board, error)
		StudentBoard(ctx context.Context, courseID int, studentID string) (StudentBoard, error)
	}

	Service struct {
		repo     Repository
		notifSvc core.NotificationService
		logger   core.Logger
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(repo Repository, notifSvc core.NotificationService, logger core.Logger) *Service {
	return &Service{repo: repo, notifSvc: notifSvc, logger: logger}
}

// inTx runs fn in a new transaction, committing when fn succeeds and rolling back otherwise.
// Store failures are reported as *core.TransactionError; domain errors are returned as is.
func (svc *Service) inTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := svc.repo.BeginTx(ctx)
	if err != nil {
		return core.NewTransactionError(err, "beginning transaction")
	}

	if err = fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			svc.logger.Error("rolling back transaction: "+rbErr.Error(), rbErr)
		}
		if isDomainError(err) {
			return err
		}
		return core.NewTransactionError(err, "transaction aborted")
	}

	if err = tx.Commit(); err != nil {
		return core.NewTransactionError(err, "committing transaction")
	}
	return nil
}

func isDomainError(err error) bool {
	switch cause := errors.Cause(err).(type) {
	case *core.ValidationError, *core.ArgumentError, *core.TransactionError:
		return true
	default:
		return cause == ErrNotFound || cause == ErrCourseNotFound
	}
}

// lockComposition locks the course of composition `id` and returns the composition as seen under that lock.
func lockComposition(ctx context.Context, tx Tx, id int) (Composition, error) {
	comp, err := tx.GetComposition(ctx, id)
	if err != nil {
		return Composition{}, err
	}
	if err = tx.LockCourse(ctx, comp.CourseID); err != nil {
		return Composition{}, err
	}
	return tx.GetComposition(ctx, id)
}

func (svc *Service) Create(ctx context.Context, actor core.Actor, courseID int, nc NewComposition) (Composition, error) {
	var comp Composition
	err := svc.inTx(ctx, func(tx Tx) error {
		if err := tx.LockCourse(ctx, courseID); err != nil {
			return err
		}
		existing, err := tx.QueryCompositions(ctx, courseID)
		if err != nil {
			return errors.Wrap(err, "querying grade compositions")
		}
		if err = ValidateComposition(existing, nc.Name, nc.Scale); err != nil {
			return err
		}

		now := time.Now().UTC()
		comp, err = tx.CreateComposition(ctx, Composition{
			CourseID:    courseID,
			Name:        core.CleanString(nc.Name),
			Scale:       nc.Scale,
			Index:       nextIndex(existing),
			CreatedByID: actor.ID,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		return errors.Wrap(err, "creating grade composition")
	})
	return comp, err
}

func (svc *Service) QueryByCourse(ctx context.Context, courseID int) ([]Composition, error) {
	if _, err := svc.repo.GetCourse(ctx, courseID); err != nil {
		return nil, err
	}
	return svc.repo.QueryCompositions(ctx, courseID)
}

func (svc *Service) GetByID(ctx context.Context, id int) (Composition, error) {
	return svc.repo.GetComposition(ctx, id)
}

func (svc *Service) GetCourse(ctx context.Context, id int) (Course, error) {
	return svc.repo.GetCourse(ctx, id)
}

func (svc *Service) Update(ctx context.Context, id int, uc UpdateComposition) (Composition, error) {
	var comp Composition
	err := svc.inTx(ctx, func(tx Tx) (err error) {
		if comp, err = lockComposition(ctx, tx, id); err != nil {
			return err
		}
		existing, err := tx.QueryCompositions(ctx, comp.CourseID)
		if err != nil {
			return errors.Wrap(err, "querying grade compositions")
		}

		if name := core.CleanString(uc.Name); name != "" {
			comp.Name = name
		}
		if uc.Scale != nil {
			comp.Scale = *uc.Scale
		}
		if err = ValidateComposition(existing, comp.Name, comp.Scale, comp); err != nil {
			return err
		}

		comp.UpdatedAt = time.Now().UTC()
		comp, err = tx.UpdateComposition(ctx, comp)
		return errors.Wrap(err, "updating grade composition")
	})
	return comp, err
}

func (svc *Service) Delete(ctx context.Context, id int) error {
	return svc.inTx(ctx, func(tx Tx) error {
		comp, err := lockComposition(ctx, tx, id)
		if err != nil {
			return err
		}
		comps, err := tx.QueryCompositions(ctx, comp.CourseID)
		if err != nil {
			return errors.Wrap(err, "querying grade compositions")
		}
		if err = tx.DeleteComposition(ctx, id); err != nil {
			return errors.Wrap(err, "deleting grade composition")
		}
		return compactAfter(ctx, tx, comps, comp.Index)
	})
}

// Move puts composition `switchedID` at the index of `switchToID` and returns the course's compositions in their new order.
func (svc *Service) Move(ctx context.Context, switchedID, switchToID int) ([]Composition, error) {
	if switchedID == switchToID {
		return nil, core.NewArgumentError(invalidSwitchText)
	}

	var comps []Composition
	err := svc.inTx(ctx, func(tx Tx) error {
		switched, err := lockComposition(ctx, tx, switchedID)
		if err != nil {
			return err
		}
		switchTo, err := tx.GetComposition(ctx, switchToID)
		if err != nil {
			return err
		}
		if switchTo.CourseID != switched.CourseID {
			return core.NewArgumentError(invalidSwitchText)
		}

		if err = move(ctx, tx, switched, switchTo); err != nil {
			return err
		}
		comps, err = tx.QueryCompositions(ctx, switched.CourseID)
		return errors.Wrap(err, "querying grade compositions")
	})
	return comps, err
}

// MarkFinalized moves composition `id` of `course` to the finalized or draft state.
// An actual draft -> finalized transition notifies every enrolled student once committed.
func (svc *Service) MarkFinalized(ctx context.Context, id int, course Course, finalize bool) (Composition, error) {
	var (
		comp    Composition
		changed bool
	)
	err := svc.inTx(ctx, func(tx Tx) (err error) {
		if comp, err = lockComposition(ctx, tx, id); err != nil {
			return err
		}
		if comp.CourseID != course.ID {
			return ErrNotFound
		}
		if comp.IsFinalized == finalize {
			return nil
		}
		comp, err = tx.SetCompositionFinalized(ctx, id, finalize)
		changed = err == nil
		return errors.Wrap(err, "setting grade composition state")
	})
	if err != nil {
		return Composition{}, err
	}

	if changed && comp.State() == StateFinalized {
		svc.notifyFinalized(ctx, comp, course)
	}
	return comp, nil
}

// Reindex rewrites the indices of a course's compositions to 1..N, keeping their order.
func (svc *Service) Reindex(ctx context.Context, courseID int) ([]Composition, error) {
	var comps []Composition
	err := svc.inTx(ctx, func(tx Tx) error {
		if err := tx.LockCourse(ctx, courseID); err != nil {
			return err
		}
		current, err := tx.QueryCompositions(ctx, courseID)
		if err != nil {
			return errors.Wrap(err, "querying grade compositions")
		}
		comps, err = reindex(ctx, tx, current)
		return err
	})
	return comps, err
}
