package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/gradebook/core"
)

const msgNotificationsListed = "Get notifications successfully"

type notificationApi struct {
	repo core.NotificationRepository
}

func registerNotificationAPI(g *echo.Group, jwt echo.MiddlewareFunc, repo core.NotificationRepository) {
	api := notificationApi{repo: repo}
	g.GET("/notifications", api.query, jwt)
}

// query lists the caller's notifications, newest first.
func (api *notificationApi) query(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	notifications, err := api.repo.QueryNotifications(ctx.Request().Context(), actor.ID)
	if err != nil {
		return errors.Wrap(err, "querying notifications")
	}
	return ctx.JSON(http.StatusOK, Response{Message: msgNotificationsListed, Data: notifications})
}
