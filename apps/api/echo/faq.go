package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/nyxmentor/portal/core/faq"
)

const msgFAQDeleted = "FAQ deleted successfully."

type faqApi struct {
	ServerDeps
}

func registerFAQAPI(g *echo.Group, jwt echo.MiddlewareFunc, _ *jwtAuth, deps ServerDeps) {
	api := faqApi{ServerDeps: deps}

	fg := g.Group("/faqs", jwt)
	fg.GET("", api.query)
	fg.GET("/:id", api.retrieve)
	fg.POST("", api.create, adminMiddleware())
	fg.PUT("/:id", api.update, adminMiddleware())
	fg.DELETE("/:id", api.destroy, adminMiddleware())
}

func (api *faqApi) create(ctx echo.Context) error {
	var data faq.FAQData
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to FAQData")
	}
	rctx := ctx.Request().Context()
	if err := data.Validate(rctx, api.Validate, api.FAQSvc); err != nil {
		return err
	}

	f, err := api.FAQSvc.Create(rctx, data)
	if err != nil {
		return errors.Wrap(err, "creating faq")
	}
	return ctx.JSON(http.StatusCreated, f)
}

func (api *faqApi) query(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	faqs, err := api.FAQSvc.Query(ctx.Request().Context(), claims.Role)
	if err != nil {
		return errors.Wrap(err, "querying faqs")
	}
	return ctx.JSON(http.StatusOK, faqs)
}

func (api *faqApi) retrieve(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	f, err := api.FAQSvc.GetForRole(ctx.Request().Context(), ctx.Param("id"), claims.Role)
	if err != nil {
		return errors.Wrap(err, "getting faq")
	}
	return ctx.JSON(http.StatusOK, f)
}

func (api *faqApi) update(ctx echo.Context) error {
	rctx := ctx.Request().Context()
	f, err := api.FAQSvc.GetByID(rctx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting faq")
	}

	var data faq.FAQData
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to FAQData")
	}
	if err = data.Validate(rctx, api.Validate, api.FAQSvc, f); err != nil {
		return err
	}

	f, err = api.FAQSvc.Update(rctx, f, data)
	if err != nil {
		return errors.Wrap(err, "updating faq")
	}
	return ctx.JSON(http.StatusOK, f)
}

func (api *faqApi) destroy(ctx echo.Context) error {
	if err := api.FAQSvc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting faq")
	}
	return ctx.JSON(http.StatusOK, MessageResponse{Message: msgFAQDeleted})
}
