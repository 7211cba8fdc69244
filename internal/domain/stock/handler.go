package stock

import (
	"net/http"

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
	read := api.Group("/stock", auth.RequireCapability(auth.StockRead))
	read.GET("", h.ListLots)
	read.GET("/critical", h.Critical)
	read.GET("/summary/:hospital_id", h.Summary)
	read.GET("/:id", h.GetLot)

	write := api.Group("/stock", auth.RequireCapability(auth.StockWrite))
	write.POST("", h.CreateLot)
	write.PUT("/:id", h.UpdateLot)
	write.POST("/:id/adjust", h.Adjust)

	api.DELETE("/stock/:id", h.DeleteLot, auth.RequireCapability(auth.StockDelete))
}

func queryID(c echo.Context, name string) (*uuid.UUID, error) {
	v := c.QueryParam(name)
	if v == "" {
		return nil, nil
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return &id, nil
}

func (h *Handler) CreateLot(c echo.Context) error {
	var l Lot
	if err := c.Bind(&l); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateLot(c.Request().Context(), &l); err != nil {
		return httpx.Error(err)
	}
	return c.JSON(http.StatusCreated, l)
}

func (h *Handler) GetLot(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	l, err := h.svc.GetLot(c.Request().Context(), id)
	if err != nil {
		return httpx.Error(err)
	}
	return c.JSON(http.StatusOK, l)
}

func (h *Handler) ListLots(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := Filter{Status: Status(c.QueryParam("status"))}
	var err error
	if f.HospitalID, err = queryID(c, "hospital_id"); err != nil {
		return err
	}
	if f.VaccineID, err = queryID(c, "vaccine_id"); err != nil {
		return err
	}
	items, total, err := h.svc.ListLots(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return httpx.Error(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateLot(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	l, err := h.svc.GetLot(c.Request().Context(), id)
	if err != nil {
		return httpx.Error(err)
	}
	if err := c.Bind(l); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	l.ID = id
	if err := h.svc.UpdateLot(c.Request().Context(), l); err != nil {
		return httpx.Error(err)
	}
	return c.JSON(http.StatusOK, l)
}

func (h *Handler) DeleteLot(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteLot(c.Request().Context(), id); err != nil {
		return httpx.Error(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Adjust(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var adj Adjustment
	if err := c.Bind(&adj); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	l, err := h.svc.Adjust(c.Request().Context(), id, adj)
	if err != nil {
		return httpx.Error(err)
	}
	return c.JSON(http.StatusOK, l)
}

func (h *Handler) Summary(c echo.Context) error {
	id, err := uuid.Parse(c.Param("hospital_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid hospital_id")
	}
	sum, err := h.svc.Summary(c.Request().Context(), id)
	if err != nil {
		return httpx.Error(err)
	}
	return c.JSON(http.StatusOK, sum)
}

func (h *Handler) Critical(c echo.Context) error {
	hospitalID, err := queryID(c, "hospital_id")
	if err != nil {
		return err
	}
	items, err := h.svc.Critical(c.Request().Context(), hospitalID)
	if err != nil {
		return httpx.Error(err)
	}
	if items == nil {
		items = []*Lot{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": items, "total": len(items)})
}
