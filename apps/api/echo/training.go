package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/nyxmentor/portal/core/training"
)

const msgTrainingDeleted = "Training deleted successfully."

type trainingApi struct {
	ServerDeps
}

func registerTrainingAPI(g *echo.Group, jwt echo.MiddlewareFunc, _ *jwtAuth, deps ServerDeps) {
	api := trainingApi{ServerDeps: deps}

	tg := g.Group("/trainings", jwt)
	tg.GET("", api.query)
	tg.GET("/:id", api.retrieve)
	tg.POST("", api.create, adminMiddleware())
	tg.PUT("/:id", api.update, adminMiddleware())
	tg.DELETE("/:id", api.destroy, adminMiddleware())
}

func (api *trainingApi) create(ctx echo.Context) error {
	var data training.NewTraining
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTraining")
	}
	rctx := ctx.Request().Context()
	if err := data.Validate(rctx, api.Validate, api.TrainingSvc); err != nil {
		return err
	}

	t, err := api.TrainingSvc.Create(rctx, data)
	if err != nil {
		return errors.Wrap(err, "creating training")
	}
	return ctx.JSON(http.StatusCreated, t)
}

// query returns the catalog grouped as section -> module -> trainings.
// Admins see every training, other users the ones required for their role.
func (api *trainingApi) query(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	var filter training.QueryFilter
	if !claims.IsAdmin() {
		filter.Role = claims.Role
	}

	trainings, err := api.TrainingSvc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying trainings")
	}
	return ctx.JSON(http.StatusOK, training.Group(trainings))
}

func (api *trainingApi) retrieve(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	t, err := api.TrainingSvc.GetForRole(ctx.Request().Context(), ctx.Param("id"), claims.Role)
	if err != nil {
		return errors.Wrap(err, "getting training")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *trainingApi) update(ctx echo.Context) error {
	rctx := ctx.Request().Context()
	t, err := api.TrainingSvc.GetByID(rctx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting training")
	}

	var data training.UpdateTraining
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateTraining")
	}
	if err = data.Validate(rctx, t, api.Validate, api.TrainingSvc); err != nil {
		return err
	}

	t, err = api.TrainingSvc.Update(rctx, t, data)
	if err != nil {
		return errors.Wrap(err, "updating training")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *trainingApi) destroy(ctx echo.Context) error {
	if err := api.TrainingSvc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting training")
	}
	return ctx.JSON(http.StatusOK, MessageResponse{Message: msgTrainingDeleted})
}
