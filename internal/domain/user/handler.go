package user

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
	api.GET("/me", h.GetProfile)
	api.PUT("/me", h.UpdateProfile)

	api.GET("/users", h.ListUsers, auth.RequireCapability(auth.UsersRead))
	api.GET("/users/:id", h.GetUser, auth.RequireCapability(auth.UsersRead))
	api.GET("/users/:id/mothers", h.ListMothers, auth.RequireCapability(auth.MothersRead))

	api.POST("/users", h.CreateUser, auth.RequireCapability(auth.UsersWrite))
	api.PUT("/users/:id", h.UpdateUser, auth.RequireCapability(auth.UsersWrite))
	api.PUT("/users/:id/chw", h.AssignCHW, auth.RequireCapability(auth.UsersWrite))
	api.DELETE("/users/:id", h.DeleteUser, auth.RequireCapability(auth.UsersDelete))
}

func principal(c echo.Context) (auth.Principal, error) {
	p, ok := auth.PrincipalFromContext(c.Request().Context())
	if !ok {
		return p, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	return p, nil
}

func (h *Handler) GetProfile(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	u, err := h.svc.GetUser(c.Request().Context(), p.UserID)
	if err != nil {
		return httpx.Error(err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) UpdateProfile(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var patch ProfileUpdate
	if err := c.Bind(&patch); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	u, err := h.svc.UpdateProfile(c.Request().Context(), p.UserID, patch)
	if err != nil {
		return httpx.Error(err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) CreateUser(c echo.Context) error {
	var u User
	if err := c.Bind(&u); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	u.Active = true
	if err := h.svc.CreateUser(c.Request().Context(), &u); err != nil {
		return httpx.Error(err)
	}
	return c.JSON(http.StatusCreated, u)
}

func (h *Handler) GetUser(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	u, err := h.svc.GetUser(c.Request().Context(), id)
	if err != nil {
		return httpx.Error(err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) ListUsers(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := Filter{
		County: c.QueryParam("county"),
		Search: c.QueryParam("search"),
	}
	if r := c.QueryParam("role"); r != "" && r != "all" {
		role, err := ParseRole(r)
		if err != nil {
			return httpx.Error(err)
		}
		f.Role = role
	}
	switch c.QueryParam("status") {
	case "active":
		active := true
		f.Active = &active
	case "inactive":
		active := false
		f.Active = &active
	}
	if hid := c.QueryParam("hospital_id"); hid != "" {
		id, err := uuid.Parse(hid)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid hospital_id")
		}
		f.HospitalID = &id
	}
	items, total, err := h.svc.ListUsers(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return httpx.Error(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateUser(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	u, err := h.svc.GetUser(c.Request().Context(), id)
	if err != nil {
		return httpx.Error(err)
	}
	if err := c.Bind(u); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	u.ID = id
	if err := h.svc.UpdateUser(c.Request().Context(), u); err != nil {
		return httpx.Error(err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) DeleteUser(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteUser(c.Request().Context(), id); err != nil {
		return httpx.Error(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) AssignCHW(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var body struct {
		CHWID uuid.UUID `json:"chw_id"`
	}
	if err := c.Bind(&body); err != nil || body.CHWID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "chw_id is required")
	}
	u, err := h.svc.AssignCHW(c.Request().Context(), id, body.CHWID)
	if err != nil {
		return httpx.Error(err)
	}
	return c.JSON(http.StatusOK, u)
}

// ListMothers lists a CHW's caseload. Health workers may only read their own.
func (h *Handler) ListMothers(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := principal(c)
	if err != nil {
		return err
	}
	if p.Role != auth.RoleAdmin && p.UserID != id {
		return echo.NewHTTPError(http.StatusForbidden, "cannot read another health worker's caseload")
	}
	items, err := h.svc.ListMothersByCHW(c.Request().Context(), id, c.QueryParam("search"))
	if err != nil {
		return httpx.Error(err)
	}
	return c.JSON(http.StatusOK, items)
}
