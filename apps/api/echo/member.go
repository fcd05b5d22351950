package echoapi

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/techsoc/clubhub/core"
	"github.com/techsoc/clubhub/core/member"
)

type memberApi struct {
	svc      *member.Service
	validate *validator.Validate
}

func registerMemberAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := memberApi{
		svc:      deps.MemberSvc,
		validate: deps.Validate,
	}

	mg := g.Group("/applications")

	// un-authed endpoint: anyone can apply
	mg.POST("", api.apply)

	// admin endpoints; middleware is attached per-route because an
	// empty-prefix group would catch-all the public route above
	mg.GET("", api.query, jwt, adminMiddleware())
	mg.GET("/:id", api.retrieve, jwt, adminMiddleware())
	mg.PUT("/:id/approve", api.approve, jwt, adminMiddleware())
	mg.PUT("/:id/reject", api.reject, jwt, adminMiddleware())
}

// Handlers

func (api *memberApi) apply(ctx echo.Context) error {
	var data member.NewApplication
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewApplication")
	}
	if err := data.Validate(api.validate, api.svc); err != nil {
		return err
	}

	app, err := api.svc.Apply(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "submitting application")
	}
	return ctx.JSON(http.StatusCreated, app)
}

func (api *memberApi) query(ctx echo.Context) error {
	filter := new(member.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []member.Application{})
	}
	filter.Clean()
	if filter.Status != "" && !filter.Status.Valid() {
		return core.NewValidationError(member.ErrInvalidStatus, core.FieldError{Field: "status", Error: member.ErrInvalidStatus.Error()})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	apps, err := api.svc.Filter(ctx.Request().Context(), *filter, ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying applications")
	}
	if apps == nil {
		apps = []member.Application{}
	}
	return ctx.JSON(http.StatusOK, apps)
}

func (api *memberApi) retrieve(ctx echo.Context) error {
	app, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == member.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding application by ID")
	}
	return ctx.JSON(http.StatusOK, app)
}

func (api *memberApi) approve(ctx echo.Context) error {
	return api.decide(ctx, api.svc.Approve)
}

func (api *memberApi) reject(ctx echo.Context) error {
	return api.decide(ctx, api.svc.Reject)
}

func (api *memberApi) decide(
	ctx echo.Context,
	decide func(ctx context.Context, id, decidedBy string) (member.Application, error),
) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	decidedBy := claims.Username
	if decidedBy == "" {
		decidedBy = claims.Email
	}

	app, err := decide(ctx.Request().Context(), ctx.Param("id"), decidedBy)
	if err != nil {
		switch errors.Cause(err) {
		case member.ErrNotFound:
			return errHttpNotFound
		case member.ErrAlreadyDecided:
			return core.NewValidationError(member.ErrAlreadyDecided)
		}
		return errors.Wrap(err, "deciding application")
	}
	return ctx.JSON(http.StatusOK, app)
}
