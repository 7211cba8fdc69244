package outreach

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/vaxtrack/vaxtrack/internal/platform/auth"
	"github.com/vaxtrack/vaxtrack/internal/platform/httpx"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/outreach")
	g.GET("/mothers", h.AssignedMothers, auth.RequireCapability(auth.MothersRead))
	g.GET("/stats", h.Stats, auth.RequireCapability(auth.MothersRead))
	g.GET("/defaulters", h.Defaulters, auth.RequireCapability(auth.DefaultersRead))

	g.GET("/visits", h.ListVisits, auth.RequireCapability(auth.MothersRead))
	g.POST("/visits", h.CreateVisit, auth.RequireCapability(auth.ScheduleWrite))
	g.PATCH("/visits/:id", h.UpdateVisit, auth.RequireCapability(auth.ScheduleWrite))

	g.GET("/reports", h.ListReports, auth.RequireCapability(auth.ReportsRead))
	g.POST("/reports", h.CreateReport, auth.RequireRole(auth.RoleHealthWorker))
}

// worker resolves whose caseload is requested. Health workers always see
// their own; anyone else names the worker with chw_id.
func worker(c echo.Context) (uuid.UUID, error) {
	p, ok := auth.PrincipalFromContext(c.Request().Context())
	if !ok {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	if p.Role == auth.RoleHealthWorker {
		return p.UserID, nil
	}
	v := c.QueryParam("chw_id")
	if v == "" {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "chw_id is required")
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid chw_id")
	}
	return id, nil
}

func (h *Handler) AssignedMothers(c echo.Context) error {
	chwID, err := worker(c)
	if err != nil {
		return err
	}
	q := Query{Search: c.QueryParam("search"), Status: c.QueryParam("status")}
	mothers, err := h.svc.AssignedMothers(c.Request().Context(), chwID, q)
	if err != nil {
		return httpx.Error(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": mothers, "total": len(mothers)})
}

func (h *Handler) Defaulters(c echo.Context) error {
	chwID, err := worker(c)
	if err != nil {
		return err
	}
	items, err := h.svc.Defaulters(c.Request().Context(), chwID)
	if err != nil {
		return httpx.Error(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": items, "total": len(items)})
}

func (h *Handler) Stats(c echo.Context) error {
	chwID, err := worker(c)
	if err != nil {
		return err
	}
	st, err := h.svc.Stats(c.Request().Context(), chwID)
	if err != nil {
		return httpx.Error(err)
	}
	return c.JSON(http.StatusOK, st)
}

func (h *Handler) ListVisits(c echo.Context) error {
	chwID, err := worker(c)
	if err != nil {
		return err
	}
	var on *time.Time
	if v := c.QueryParam("date"); v != "" {
		d, err := time.Parse(time.DateOnly, v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "date must be YYYY-MM-DD")
		}
		on = &d
	}
	items, err := h.svc.Visits(c.Request().Context(), chwID, on)
	if err != nil {
		return httpx.Error(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": items, "total": len(items)})
}

func (h *Handler) CreateVisit(c echo.Context) error {
	chwID, err := worker(c)
	if err != nil {
		return err
	}
	var v Visit
	if err := c.Bind(&v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateVisit(c.Request().Context(), chwID, &v); err != nil {
		return httpx.Error(err)
	}
	return c.JSON(http.StatusCreated, v)
}

func (h *Handler) UpdateVisit(c echo.Context) error {
	chwID, err := worker(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var p VisitPatch
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	v, err := h.svc.UpdateVisit(c.Request().Context(), chwID, id, p)
	if err != nil {
		return httpx.Error(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) ListReports(c echo.Context) error {
	chwID, err := worker(c)
	if err != nil {
		return err
	}
	items, err := h.svc.Reports(c.Request().Context(), chwID)
	if err != nil {
		return httpx.Error(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": items, "total": len(items)})
}

func (h *Handler) CreateReport(c echo.Context) error {
	chwID, err := worker(c)
	if err != nil {
		return err
	}
	var fr FieldReport
	if err := c.Bind(&fr); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateReport(c.Request().Context(), chwID, &fr); err != nil {
		return httpx.Error(err)
	}
	return c.JSON(http.StatusCreated, fr)
}
