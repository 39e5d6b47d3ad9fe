package echoapi

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/gradebook/core"
)

type (
	Response struct {
		Message string      `json:"message"`
		Data    interface{} `json:"data"`
	}

	TokenResponse struct {
		Token string `json:"token"`
	}
)

// paramID parses the positive integer path parameter `name`.
func paramID(ctx echo.Context, name, errMsg string) (int, error) {
	id, err := strconv.Atoi(ctx.Param(name))
	if err != nil || id <= 0 {
		return 0, core.NewArgumentError(errMsg)
	}
	return id, nil
}
