package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/gradebook/core/grading"
)

const (
	contextCourseKey      = "course"
	contextCompositionKey = "composition"

	invalidCourseIDText      = "invalid course id"
	invalidCompositionIDText = "invalid grade composition id"
)

var errObjNotFoundInCtx = errors.New("object not found in echo.Context")

// courseMiddleware loads the course named by the `:id` path parameter.
func courseMiddleware(svc grading.ServiceInterface) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			id, err := paramID(ctx, "id", invalidCourseIDText)
			if err != nil {
				return err
			}
			course, err := svc.GetCourse(ctx.Request().Context(), id)
			if err != nil {
				return errors.Wrap(err, "finding course by ID")
			}
			ctx.Set(contextCourseKey, course)
			return next(ctx)
		}
	}
}

// ownerMiddleware only lets the course's creator through. It runs after courseMiddleware.
func ownerMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		actor, err := contextActor(ctx)
		if err != nil {
			return err
		}
		course, err := contextCourse(ctx)
		if err != nil {
			return err
		}
		if course.CreatedByID != actor.ID {
			return errHttpForbidden
		}
		return next(ctx)
	}
}

// compositionMiddleware loads the composition named by the `:compositionId` path parameter.
// Compositions of another course are not found.
func compositionMiddleware(svc grading.ServiceInterface) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			id, err := paramID(ctx, "compositionId", invalidCompositionIDText)
			if err != nil {
				return err
			}
			course, err := contextCourse(ctx)
			if err != nil {
				return err
			}
			comp, err := svc.GetByID(ctx.Request().Context(), id)
			if err != nil {
				return errors.Wrap(err, "finding grade composition by ID")
			}
			if comp.CourseID != course.ID {
				return grading.ErrNotFound
			}
			ctx.Set(contextCompositionKey, comp)
			return next(ctx)
		}
	}
}

func contextCourse(ctx echo.Context) (grading.Course, error) {
	if course, ok := ctx.Get(contextCourseKey).(grading.Course); ok {
		return course, nil
	}
	return grading.Course{}, errors.Wrap(errObjNotFoundInCtx, "retrieving course from context")
}

func contextComposition(ctx echo.Context) (grading.Composition, error) {
	if comp, ok := ctx.Get(contextCompositionKey).(grading.Composition); ok {
		return comp, nil
	}
	return grading.Composition{}, errors.Wrap(errObjNotFoundInCtx, "retrieving grade composition from context")
}
