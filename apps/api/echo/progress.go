package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/nyxmentor/portal/core/progress"
)

const (
	msgProgressStarted  = "Training started."
	msgProgressRecorded = "Progress saved."
)

type progressApi struct {
	ServerDeps
}

func registerProgressAPI(g *echo.Group, jwt echo.MiddlewareFunc, _ *jwtAuth, deps ServerDeps) {
	api := progressApi{ServerDeps: deps}

	pg := g.Group("/progress", jwt)
	pg.GET("/view/:userId", api.list, selfOrAdminMiddleware("userId"))
	pg.GET("/completed/:userId", api.completed, selfOrAdminMiddleware("userId"))
	pg.POST("/start", api.start)
	pg.POST("/progress", api.record)
}

func (api *progressApi) list(ctx echo.Context) error {
	records, err := api.ProgressSvc.ListForUser(ctx.Request().Context(), ctx.Param("userId"))
	if err != nil {
		return errors.Wrap(err, "listing progress")
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api *progressApi) completed(ctx echo.Context) error {
	rctx := ctx.Request().Context()
	usr, err := api.UserSvc.GetByID(rctx, ctx.Param("userId"))
	if err != nil {
		return errors.Wrap(err, "finding user by ID")
	}
	done, err := api.ProgressSvc.AllCompleted(rctx, usr.ID, usr.Role)
	if err != nil {
		return errors.Wrap(err, "checking completion")
	}
	return ctx.JSON(http.StatusOK, CompletedResponse{AllCompleted: done})
}

func (api *progressApi) start(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	var data progress.StartProgress
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StartProgress")
	}
	if err = data.Validate(api.Validate); err != nil {
		return err
	}

	p, err := api.ProgressSvc.Start(ctx.Request().Context(), claims.Subject, claims.Role, data)
	if err != nil {
		return errors.Wrap(err, "starting training")
	}
	return ctx.JSON(http.StatusCreated, ProgressResponse{Message: msgProgressStarted, Progress: p.Progress, Completed: p.Completed})
}

func (api *progressApi) record(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	var data progress.RecordProgress
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RecordProgress")
	}
	if err = data.Validate(api.Validate); err != nil {
		return err
	}

	p, err := api.ProgressSvc.Record(ctx.Request().Context(), claims.Subject, claims.Role, data)
	if err != nil {
		return errors.Wrap(err, "recording progress")
	}
	return ctx.JSON(http.StatusOK, ProgressResponse{Message: msgProgressRecorded, Progress: p.Progress, Completed: p.Completed})
}

type (
	CompletedResponse struct {
		AllCompleted bool `json:"allCompleted"`
	}

	ProgressResponse struct {
		Message   string `json:"message"`
		Progress  int    `json:"progress"`
		Completed bool   `json:"completed"`
	}
)
