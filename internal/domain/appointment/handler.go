package appointment

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
	api.GET("/appointments/reminders", h.Reminders, auth.RequireCapability(auth.RemindersRead))

	read := api.Group("/appointments", auth.RequireCapability(auth.AppointmentsRead))
	read.GET("", h.ListAppointments)
	read.GET("/:id", h.GetAppointment)

	write := api.Group("/appointments", auth.RequireCapability(auth.AppointmentsWrite))
	write.POST("", h.CreateAppointment)
	write.PUT("/:id", h.UpdateAppointment)
	write.POST("/:id/status", h.Transition)
	write.DELETE("/:id", h.DeleteAppointment)
}

func principal(c echo.Context) (auth.Principal, error) {
	p, ok := auth.PrincipalFromContext(c.Request().Context())
	if !ok {
		return p, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	return p, nil
}

func parseID(c echo.Context, name string) (*uuid.UUID, error) {
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

func parseDate(c echo.Context, name string) (*time.Time, error) {
	v := c.QueryParam(name)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, name+" must be YYYY-MM-DD")
	}
	return &t, nil
}

func (h *Handler) CreateAppointment(c echo.Context) error {
	var a Appointment
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateAppointment(c.Request().Context(), &a); err != nil {
		return httpx.Error(err)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) GetAppointment(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	a, err := h.svc.GetAppointment(c.Request().Context(), id, p)
	if err != nil {
		return httpx.Error(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) ListAppointments(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	f := Filter{
		Status: Status(c.QueryParam("status")),
		Type:   Type(c.QueryParam("type")),
	}
	if f.HospitalID, err = parseID(c, "hospital_id"); err != nil {
		return err
	}
	if f.ChildID, err = parseID(c, "child_id"); err != nil {
		return err
	}
	if f.MotherID, err = parseID(c, "mother_id"); err != nil {
		return err
	}
	if f.From, err = parseDate(c, "from"); err != nil {
		return err
	}
	if f.To, err = parseDate(c, "to"); err != nil {
		return err
	}
	if f.To != nil {
		next := f.To.AddDate(0, 0, 1)
		f.To = &next
	}
	items, total, err := h.svc.ListAppointments(c.Request().Context(), f, p, pg.Limit, pg.Offset)
	if err != nil {
		return httpx.Error(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateAppointment(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	a, err := h.svc.GetAppointment(c.Request().Context(), id, p)
	if err != nil {
		return httpx.Error(err)
	}
	if err := c.Bind(a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a.ID = id
	if err := h.svc.UpdateAppointment(c.Request().Context(), a); err != nil {
		return httpx.Error(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Transition(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var t Transition
	if err := c.Bind(&t); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.Transition(c.Request().Context(), id, t)
	if err != nil {
		return httpx.Error(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) DeleteAppointment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteAppointment(c.Request().Context(), id); err != nil {
		return httpx.Error(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Reminders lists upcoming visits. Mothers get their own; other roles name
// the mother with mother_id.
func (h *Handler) Reminders(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	motherID := p.UserID
	if p.Role != auth.RoleMother {
		id, err := parseID(c, "mother_id")
		if err != nil {
			return err
		}
		if id == nil {
			return echo.NewHTTPError(http.StatusBadRequest, "mother_id is required")
		}
		motherID = *id
	}
	days := DefaultReminderDays
	if v := c.QueryParam("days"); v != "" {
		if days, err = strconv.Atoi(v); err != nil || days < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "days must be a positive number")
		}
	}
	items, err := h.svc.Reminders(c.Request().Context(), motherID, days)
	if err != nil {
		return httpx.Error(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": items, "days": days})
}
