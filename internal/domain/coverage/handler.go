package coverage

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

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
	read := api.Group("/coverage", auth.RequireCapability(auth.CoverageRead))
	read.GET("/reports", h.ListReports)
	read.GET("/reports/:id", h.GetReport)
	read.GET("/gaps/:hospital_id", h.GapAnalysis)
	read.GET("/trends/:vaccine_id", h.Trends)

	write := api.Group("/coverage", auth.RequireCapability(auth.CoverageWrite))
	write.POST("/reports", h.Generate)

	api.DELETE("/coverage/reports/:id", h.DeleteReport, auth.RequireCapability(auth.CoverageDelete))
	api.GET("/coverage/overview", h.Overview, auth.RequireRole(auth.RoleAdmin))
}

type generateRequest struct {
	HospitalID uuid.UUID `json:"hospital_id"`
	Year       int       `json:"year"`
	Month      int       `json:"month"`
}

func (h *Handler) Generate(c echo.Context) error {
	p, ok := auth.PrincipalFromContext(c.Request().Context())
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	var req generateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	period := Period{Year: req.Year, Month: time.Month(req.Month)}
	rep, err := h.svc.Generate(c.Request().Context(), req.HospitalID, period, p.UserID)
	if err != nil {
		return httpx.Error(err)
	}
	return c.JSON(http.StatusCreated, rep)
}

func (h *Handler) GetReport(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	rep, err := h.svc.GetReport(c.Request().Context(), id)
	if err != nil {
		return httpx.Error(err)
	}
	return c.JSON(http.StatusOK, rep)
}

func (h *Handler) DeleteReport(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteReport(c.Request().Context(), id); err != nil {
		return httpx.Error(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListReports(c echo.Context) error {
	pg := pagination.FromContext(c)
	var f Filter
	if v := c.QueryParam("hospital_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid hospital_id")
		}
		f.HospitalID = &id
	}
	if v := c.QueryParam("period"); v != "" {
		p, err := ParsePeriod(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		f.Period = &p
	}
	items, total, err := h.svc.ListReports(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return httpx.Error(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) GapAnalysis(c echo.Context) error {
	id, err := uuid.Parse(c.Param("hospital_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid hospital_id")
	}
	ga, err := h.svc.GapAnalysis(c.Request().Context(), id)
	if err != nil {
		return httpx.Error(err)
	}
	return c.JSON(http.StatusOK, ga)
}

func (h *Handler) Trends(c echo.Context) error {
	id, err := uuid.Parse(c.Param("vaccine_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid vaccine_id")
	}
	months := 0
	if v := c.QueryParam("months"); v != "" {
		if months, err = strconv.Atoi(v); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid months")
		}
	}
	ts, err := h.svc.Trends(c.Request().Context(), id, months)
	if err != nil {
		return httpx.Error(err)
	}
	return c.JSON(http.StatusOK, ts)
}

func (h *Handler) Overview(c echo.Context) error {
	ov, err := h.svc.Overview(c.Request().Context())
	if err != nil {
		return httpx.Error(err)
	}
	return c.JSON(http.StatusOK, ov)
}
