package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/gradebook/core/grading"
)

type gradingApi struct {
	svc      grading.ServiceInterface
	validate *validator.Validate
}

func registerGradingAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc grading.ServiceInterface, validate *validator.Validate) {
	api := gradingApi{svc: svc, validate: validate}

	cg := g.Group("/courses/:id", jwt, courseMiddleware(svc))

	gcg := cg.Group("/grade-compositions")
	gcg.GET("", api.query)
	gcg.POST("", api.create, ownerMiddleware)
	gcg.PUT("/switch", api.move, ownerMiddleware)
	gcg.POST("/reindex", api.reindex, ownerMiddleware)

	// detail endpoints
	dg := gcg.Group("/:compositionId", compositionMiddleware(svc))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, ownerMiddleware)
	dg.DELETE("", api.destroy, ownerMiddleware)
	dg.PUT("/finalize", api.finalize, ownerMiddleware)

	bg := cg.Group("/grade-board")
	bg.GET("/template", api.templateBoard, ownerMiddleware)
	bg.GET("/final", api.finalBoard, ownerMiddleware)
	bg.GET("/students", api.studentBoard)
	bg.GET("/students/:studentId", api.studentBoard)
}

// Handlers

func (api *gradingApi) query(ctx echo.Context) error {
	course, err := contextCourse(ctx)
	if err != nil {
		return err
	}
	comps, err := api.svc.QueryByCourse(ctx.Request().Context(), course.ID)
	if err != nil {
		return errors.Wrap(err, "querying grade compositions")
	}
	if comps == nil {
		comps = []grading.Composition{}
	}
	return ctx.JSON(http.StatusOK, Response{Message: grading.MsgListed, Data: comps})
}

func (api *gradingApi) create(ctx echo.Context) error {
	course, err := contextCourse(ctx)
	if err != nil {
		return err
	}
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}

	var data grading.NewComposition
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewComposition")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	comp, err := api.svc.Create(ctx.Request().Context(), actor, course.ID, data)
	if err != nil {
		return errors.Wrap(err, "creating grade composition")
	}
	return ctx.JSON(http.StatusCreated, Response{Message: grading.MsgCreated, Data: comp})
}

func (api *gradingApi) retrieve(ctx echo.Context) error {
	comp, err := contextComposition(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, Response{Message: grading.MsgRetrieved, Data: comp})
}

func (api *gradingApi) update(ctx echo.Context) error {
	comp, err := contextComposition(ctx)
	if err != nil {
		return err
	}

	var data grading.UpdateComposition
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateComposition")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	comp, err = api.svc.Update(ctx.Request().Context(), comp.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating grade composition")
	}
	return ctx.JSON(http.StatusOK, Response{Message: grading.MsgUpdated, Data: comp})
}

func (api *gradingApi) destroy(ctx echo.Context) error {
	comp, err := contextComposition(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ctx.Request().Context(), comp.ID); err != nil {
		return errors.Wrap(err, "deleting grade composition")
	}
	return ctx.JSON(http.StatusOK, Response{Message: grading.MsgDeleted, Data: comp})
}

func (api *gradingApi) move(ctx echo.Context) error {
	course, err := contextCourse(ctx)
	if err != nil {
		return err
	}

	var data grading.MoveComposition
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to MoveComposition")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	// the switched composition must belong to the course in the path
	switched, err := api.svc.GetByID(ctx.Request().Context(), data.SwitchedID)
	if err != nil {
		return errors.Wrap(err, "finding switched grade composition")
	}
	if switched.CourseID != course.ID {
		return grading.ErrNotFound
	}

	comps, err := api.svc.Move(ctx.Request().Context(), data.SwitchedID, data.SwitchToID)
	if err != nil {
		return errors.Wrap(err, "switching grade composition index")
	}
	return ctx.JSON(http.StatusOK, Response{Message: grading.MsgSwitched, Data: comps})
}

func (api *gradingApi) reindex(ctx echo.Context) error {
	course, err := contextCourse(ctx)
	if err != nil {
		return err
	}
	comps, err := api.svc.Reindex(ctx.Request().Context(), course.ID)
	if err != nil {
		return errors.Wrap(err, "reindexing grade compositions")
	}
	return ctx.JSON(http.StatusOK, Response{Message: grading.MsgReindexed, Data: comps})
}

func (api *gradingApi) finalize(ctx echo.Context) error {
	course, err := contextCourse(ctx)
	if err != nil {
		return err
	}
	comp, err := contextComposition(ctx)
	if err != nil {
		return err
	}

	var data grading.FinalizeComposition
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to FinalizeComposition")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	comp, err = api.svc.MarkFinalized(ctx.Request().Context(), comp.ID, course, *data.IsFinalized)
	if err != nil {
		return errors.Wrap(err, "marking grade composition")
	}

	msg := grading.MsgUnFinalized
	if comp.State() == grading.StateFinalized {
		msg = grading.MsgFinalized
	}
	return ctx.JSON(http.StatusOK, Response{Message: msg, Data: comp})
}

func (api *gradingApi) templateBoard(ctx echo.Context) error {
	course, err := contextCourse(ctx)
	if err != nil {
		return err
	}
	board, err := api.svc.TemplateBoard(ctx.Request().Context(), course.ID)
	if err != nil {
		return errors.Wrap(err, "building grade board template")
	}
	return ctx.JSON(http.StatusOK, Response{Message: grading.MsgTemplateBoard, Data: board})
}

func (api *gradingApi) finalBoard(ctx echo.Context) error {
	course, err := contextCourse(ctx)
	if err != nil {
		return err
	}
	board, err := api.svc.FinalBoard(ctx.Request().Context(), course.ID)
	if err != nil {
		return errors.Wrap(err, "building final grade board")
	}
	return ctx.JSON(http.StatusOK, Response{Message: grading.MsgFinalBoard, Data: board})
}

func (api *gradingApi) studentBoard(ctx echo.Context) error {
	course, err := contextCourse(ctx)
	if err != nil {
		return err
	}
	board, err := api.svc.StudentBoard(ctx.Request().Context(), course.ID, ctx.Param("studentId"))
	if err != nil {
		return errors.Wrap(err, "building student grade board")
	}
	return ctx.JSON(http.StatusOK, Response{Message: board.Message(), Data: board})
}
