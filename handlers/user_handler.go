// Package handlers exposes the user repository over HTTP with echo.
package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Skryldev/userstore/apperr"
	"github.com/Skryldev/userstore/models"
	"github.com/Skryldev/userstore/repo"
)

// UserHandler serves /users.
type UserHandler struct {
	users repo.UserRepository
}

func NewUserHandler(users repo.UserRepository) *UserHandler {
	return &UserHandler{users: users}
}

// Register mounts the user routes on g.
func (h *UserHandler) Register(g *echo.Group) {
	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
}

func (h *UserHandler) List(c echo.Context) error {
	users, err := h.users.FindAll(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, users)
}

func (h *UserHandler) Get(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	u, err := h.users.Find(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

func (h *UserHandler) Create(c echo.Context) error {
	msg, err := bindMessage(c)
	if err != nil {
		return err
	}
	u, err := h.users.Create(c.Request().Context(), msg)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, u)
}

func (h *UserHandler) Update(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	msg, err := bindMessage(c)
	if err != nil {
		return err
	}
	u, err := h.users.Update(c.Request().Context(), id, msg)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

func (h *UserHandler) Delete(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	n, err := h.users.Delete(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]int64{"deleted": n})
}

func pathID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperr.NewValidation("invalid user id", err)
	}
	return id, nil
}

func bindMessage(c echo.Context) (models.UserMessage, error) {
	var msg models.UserMessage
	if err := c.Bind(&msg); err != nil {
		return msg, apperr.NewValidation("invalid request body", err)
	}
	return msg, nil
}
