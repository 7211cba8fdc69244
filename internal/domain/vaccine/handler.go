package vaccine

import (
	"net/http"
	"strconv"

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
	// The catalog is readable by every authenticated role.
	read := api.Group("/vaccines")
	read.GET("", h.ListVaccines)
	read.GET("/catalog", h.Catalog)
	read.GET("/schedule", h.ScheduleByAge)
	read.GET("/:id", h.GetVaccine)

	api.POST("/vaccines", h.CreateVaccine, auth.RequireCapability(auth.VaccinesWrite))
	api.PUT("/vaccines/:id", h.UpdateVaccine, auth.RequireCapability(auth.VaccinesWrite))
	api.DELETE("/vaccines/:id", h.DeleteVaccine, auth.RequireCapability(auth.VaccinesDelete))
}

func (h *Handler) CreateVaccine(c echo.Context) error {
	var v Vaccine
	if err := c.Bind(&v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	v.Active = true
	if err := h.svc.CreateVaccine(c.Request().Context(), &v); err != nil {
		return httpx.Error(err)
	}
	return c.JSON(http.StatusCreated, v)
}

func (h *Handler) GetVaccine(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	v, err := h.svc.GetVaccine(c.Request().Context(), id)
	if err != nil {
		return httpx.Error(err)
	}
	return c.JSON(http.StatusOK, v)
}

// ListVaccines lists active vaccines unless ?active=false is given.
func (h *Handler) ListVaccines(c echo.Context) error {
	pg := pagination.FromContext(c)
	activeOnly := c.QueryParam("active") != "false"
	items, total, err := h.svc.ListVaccines(c.Request().Context(), activeOnly, pg.Limit, pg.Offset)
	if err != nil {
		return httpx.Error(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Catalog(c echo.Context) error {
	vs, err := h.svc.ListActiveVaccines(c.Request().Context())
	if err != nil {
		return httpx.Error(err)
	}
	return c.JSON(http.StatusOK, vs)
}

func (h *Handler) ScheduleByAge(c echo.Context) error {
	age, err := strconv.Atoi(c.QueryParam("age_months"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "age_months is required")
	}
	vs, err := h.svc.DueByAge(c.Request().Context(), age)
	if err != nil {
		return httpx.Error(err)
	}
	return c.JSON(http.StatusOK, vs)
}

func (h *Handler) UpdateVaccine(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	// Fields missing from the body keep their stored values.
	v, err := h.svc.GetVaccine(c.Request().Context(), id)
	if err != nil {
		return httpx.Error(err)
	}
	if err := c.Bind(v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	v.ID = id
	if err := h.svc.UpdateVaccine(c.Request().Context(), v); err != nil {
		return httpx.Error(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) DeleteVaccine(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteVaccine(c.Request().Context(), id); err != nil {
		return httpx.Error(err)
	}
	return c.NoContent(http.StatusNoContent)
}
