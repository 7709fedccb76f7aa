package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/nyxmentor/portal/core/evaluation"
)

type evaluationApi struct {
	ServerDeps
}

func registerEvaluationAPI(g *echo.Group, jwt echo.MiddlewareFunc, _ *jwtAuth, deps ServerDeps) {
	api := evaluationApi{ServerDeps: deps}

	eg := g.Group("/evaluations", jwt)
	eg.POST("/submit", api.submit)
	eg.POST("/retry", api.retry)
	eg.GET("/status", api.status)
	eg.GET("/assigned", api.assigned)
}

func (api *evaluationApi) submit(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	var data evaluation.Submission
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Submission")
	}

	res, err := api.EvaluationSvc.Submit(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "submitting evaluation")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *evaluationApi) retry(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	res, err := api.EvaluationSvc.Retry(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "retrying evaluation")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *evaluationApi) status(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	ev, err := api.EvaluationSvc.Status(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "getting evaluation status")
	}
	return ctx.JSON(http.StatusOK, ev)
}

func (api *evaluationApi) assigned(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	view, err := api.EvaluationSvc.Assigned(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "getting assigned evaluation")
	}
	return ctx.JSON(http.StatusOK, view)
}
