package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/techsoc/clubhub/core"
	"github.com/techsoc/clubhub/core/announcement"
)

type announcementApi struct {
	svc      *announcement.Service
	validate *validator.Validate
}

func registerAnnouncementAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := announcementApi{
		svc:      deps.AnnouncementSvc,
		validate: deps.Validate,
	}

	ag := g.Group("/announcements", jwt, adminMiddleware())
	ag.GET("", api.query)
	ag.POST("", api.create)
	ag.GET("/:id", api.retrieve)
	ag.PUT("/:id", api.update)
	ag.POST("/:id/send", api.send)
	ag.POST("/:id/resend", api.resend)
	ag.GET("/:id/deliveries", api.deliveries)
	ag.GET("/:id/stats", api.stats)
}

// AnnouncementResponse pairs the saved record with the outcome of an
// immediate dispatch, when one was requested.
type AnnouncementResponse struct {
	announcement.Announcement
	Dispatch *announcement.DispatchResult `json:"dispatch,omitempty"`
}

// Handlers

func (api *announcementApi) create(ctx echo.Context) error {
	var data announcement.NewAnnouncement
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAnnouncement")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ann, res, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, AnnouncementResponse{Announcement: ann, Dispatch: res})
}

func (api *announcementApi) query(ctx echo.Context) error {
	filter := new(announcement.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []announcement.Announcement{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	anns, err := api.svc.Filter(ctx.Request().Context(), *filter, ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying announcements")
	}
	if anns == nil {
		anns = []announcement.Announcement{}
	}
	return ctx.JSON(http.StatusOK, anns)
}

func (api *announcementApi) retrieve(ctx echo.Context) error {
	ann, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return api.trapErr(err, "finding announcement by ID")
	}
	return ctx.JSON(http.StatusOK, ann)
}

func (api *announcementApi) update(ctx echo.Context) error {
	var data announcement.UpdateAnnouncement
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateAnnouncement")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ann, res, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return api.trapErr(err, "updating announcement")
	}
	return ctx.JSON(http.StatusOK, AnnouncementResponse{Announcement: ann, Dispatch: res})
}

func (api *announcementApi) send(ctx echo.Context) error {
	res, err := api.svc.Send(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return api.trapErr(err, "sending announcement")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *announcementApi) resend(ctx echo.Context) error {
	var data announcement.ResendRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResendRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	res, err := api.svc.Resend(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return api.trapErr(err, "resending announcement")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *announcementApi) deliveries(ctx echo.Context) error {
	filter := announcement.DeliveryFilter(ctx.QueryParam("status"))
	if filter != "" && !filter.Valid() {
		return core.NewValidationError(nil, core.FieldError{Field: "status", Error: "invalid delivery status filter"})
	}

	deliveries, err := api.svc.Deliveries(ctx.Request().Context(), ctx.Param("id"), filter)
	if err != nil {
		return api.trapErr(err, "querying deliveries")
	}
	if deliveries == nil {
		deliveries = []announcement.Delivery{}
	}
	return ctx.JSON(http.StatusOK, deliveries)
}

func (api *announcementApi) stats(ctx echo.Context) error {
	stats, err := api.svc.Stats(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return api.trapErr(err, "computing stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}

// trapErr maps known service errors to their HTTP counterparts; validation
// errors pass through to the error handler untouched.
func (api *announcementApi) trapErr(err error, msg string) error {
	if errors.Cause(err) == announcement.ErrNotFound {
		return errHttpNotFound
	}
	if _, ok := errors.Cause(err).(*core.ValidationError); ok {
		return err
	}
	return errors.Wrap(err, msg)
}
