package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/techsoc/clubhub/core/resource"
)

type resourceApi struct {
	svc      *resource.Service
	validate *validator.Validate
}

func registerResourceAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := resourceApi{
		svc:      deps.ResourceSvc,
		validate: deps.Validate,
	}

	rg := g.Group("/resources")

	// un-authed endpoints
	rg.GET("", api.query)
	rg.GET("/:id", api.retrieve)

	// admin endpoints; middleware is attached per-route because an
	// empty-prefix group would catch-all the public routes above
	rg.POST("", api.create, jwt, adminMiddleware())
	rg.PUT("/:id", api.update, jwt, adminMiddleware())
	rg.DELETE("/:id", api.destroy, jwt, adminMiddleware())
}

// Handlers

func (api *resourceApi) create(ctx echo.Context) error {
	var data resource.NewResource
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewResource")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	res, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating resource")
	}
	return ctx.JSON(http.StatusCreated, res)
}

func (api *resourceApi) query(ctx echo.Context) error {
	ordering := new(Ordering)
	ordering.Bind(ctx)

	resources, err := api.svc.QueryAll(ctx.Request().Context(), ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying resources")
	}
	if resources == nil {
		resources = []resource.Resource{}
	}
	return ctx.JSON(http.StatusOK, resources)
}

func (api *resourceApi) retrieve(ctx echo.Context) error {
	res, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == resource.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding resource by ID")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *resourceApi) update(ctx echo.Context) error {
	var data resource.UpdateResource
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateResource")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	res, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		if errors.Cause(err) == resource.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "updating resource")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *resourceApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting resource")
	}
	return ctx.NoContent(http.StatusNoContent)
}
