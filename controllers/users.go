package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Zacison/natours-backend/models"
)

type UserLister interface {
	List(ctx context.Context) ([]models.User, error)
}

type UsersController struct {
	users UserLister
}

func NewUsersController(users UserLister) *UsersController {
	return &UsersController{users: users}
}

func (h *UsersController) GetAllUsers(c *gin.Context) {
	users, err := h.users.List(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	resp := success(gin.H{"users": users})
	resp["results"] = len(users)
	c.JSON(http.StatusOK, resp)
}
