package child

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/vaxtrack/vaxtrack/internal/domain/schedule"
	"github.com/vaxtrack/vaxtrack/internal/platform/auth"
	"github.com/vaxtrack/vaxtrack/internal/platform/httpx"
	"github.com/vaxtrack/vaxtrack/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("/children", auth.RequireCapability(auth.ChildrenRead))
	read.GET("", h.ListChildren)
	read.GET("/age-range", h.ListByAgeRange)
	read.GET("/:id", h.GetChild)
	read.GET("/:id/schedule", h.GetSchedule, auth.RequireCapability(auth.ScheduleRead))
	read.GET("/:id/growth", h.GrowthHistory)

	write := api.Group("/children", auth.RequireCapability(auth.ChildrenWrite))
	write.POST("", h.CreateChild)
	write.PUT("/:id", h.UpdateChild)
	write.DELETE("/:id", h.DeleteChild)
	write.POST("/:id/growth", h.AddGrowthRecord)

	api.POST("/children/:id/refresh-status", h.RefreshStatus, auth.RequireCapability(auth.ScheduleWrite))
}

func principal(c echo.Context) (auth.Principal, error) {
	p, ok := auth.PrincipalFromContext(c.Request().Context())
	if !ok {
		return p, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	return p, nil
}

func (h *Handler) CreateChild(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var ch Child
	if err := c.Bind(&ch); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateChild(c.Request().Context(), &ch, p); err != nil {
		return httpx.Error(err)
	}
	return c.JSON(http.StatusCreated, ch)
}

func (h *Handler) GetChild(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ch, err := h.svc.GetChild(c.Request().Context(), id, p)
	if err != nil {
		return httpx.Error(err)
	}
	return c.JSON(http.StatusOK, ch)
}

func (h *Handler) ListChildren(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	f := Filter{
		Status: schedule.Status(c.QueryParam("status")),
		Gender: Gender(c.QueryParam("gender")),
		Search: c.QueryParam("search"),
	}
	if v := c.QueryParam("parent_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid parent_id")
		}
		f.ParentID = &id
	}
	items, total, err := h.svc.ListChildren(c.Request().Context(), f, p, pg.Limit, pg.Offset)
	if err != nil {
		return httpx.Error(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListByAgeRange(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	minMonths, err := strconv.Atoi(c.QueryParam("min"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "min must be a number of months")
	}
	maxMonths, err := strconv.Atoi(c.QueryParam("max"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "max must be a number of months")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByAgeRange(c.Request().Context(), minMonths, maxMonths, p, pg.Limit, pg.Offset)
	if err != nil {
		return httpx.Error(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateChild(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ch, err := h.svc.GetChild(c.Request().Context(), id, p)
	if err != nil {
		return httpx.Error(err)
	}
	if err := c.Bind(ch); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ch.ID = id
	if err := h.svc.UpdateChild(c.Request().Context(), ch, p); err != nil {
		return httpx.Error(err)
	}
	return c.JSON(http.StatusOK, ch)
}

func (h *Handler) DeleteChild(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteChild(c.Request().Context(), id, p); err != nil {
		return httpx.Error(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) GetSchedule(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	sch, err := h.svc.Schedule(c.Request().Context(), id, p)
	if err != nil {
		return httpx.Error(err)
	}
	return c.JSON(http.StatusOK, sch)
}

func (h *Handler) RefreshStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	status, err := h.svc.RefreshStatus(c.Request().Context(), id)
	if err != nil {
		return httpx.Error(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"child_id": id, "vaccination_status": status})
}

func (h *Handler) AddGrowthRecord(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var g GrowthRecord
	if err := c.Bind(&g); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.AddGrowthRecord(c.Request().Context(), id, &g, p); err != nil {
		return httpx.Error(err)
	}
	return c.JSON(http.StatusCreated, g)
}

func (h *Handler) GrowthHistory(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	items, err := h.svc.GrowthHistory(c.Request().Context(), id, p)
	if err != nil {
		return httpx.Error(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": items, "total": len(items)})
}
