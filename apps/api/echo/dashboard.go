package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/quizforge/core/stats"
)

type dashboardApi struct {
	auth *authenticator
	svc  stats.Service
}

func registerDashboardAPI(g *echo.Group, jwt echo.MiddlewareFunc, auth *authenticator, svc stats.Service) {
	api := dashboardApi{auth: auth, svc: svc}
	g.GET("/dashboard", api.retrieve, jwt)
}

func (api *dashboardApi) retrieve(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.auth.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	dash, err := api.svc.Dashboard(ctx.Request().Context(), ctxUsr)
	if err != nil {
		return errors.Wrap(err, "computing dashboard")
	}
	return ctx.JSON(http.StatusOK, dash)
}
