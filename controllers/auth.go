package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Zacison/natours-backend/middleware"
	"github.com/Zacison/natours-backend/services"
	"github.com/Zacison/natours-backend/utils"
)

// LoginInput request body for login. Presence is checked by hand so both
// missing fields share one message.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ForgotPasswordInput struct {
	Email string `json:"email" binding:"required,email"`
}

type ResetPasswordInput struct {
	Password        string `json:"password" binding:"required,min=8,max=72"`
	PasswordConfirm string `json:"passwordConfirm" binding:"required,eqfield=Password"`
}

type UpdatePasswordInput struct {
	PasswordCurrent string `json:"passwordCurrent" binding:"required"`
	Password        string `json:"password" binding:"required,min=8,max=72"`
	PasswordConfirm string `json:"passwordConfirm" binding:"required,eqfield=Password"`
}

type AuthController struct {
	auth      services.AuthService
	publicURL string
}

// NewAuthController builds reset links on publicURL, never on request
// headers.
func NewAuthController(auth services.AuthService, publicURL string) *AuthController {
	return &AuthController{auth: auth, publicURL: strings.TrimRight(publicURL, "/")}
}

// Signup creates a user and logs them in.
func (h *AuthController) Signup(c *gin.Context) {
	var input services.SignupRequest
	if !bindJSON(c, &input) {
		return
	}

	sess, err := h.auth.Signup(c.Request.Context(), input)
	if err != nil {
		_ = c.Error(err)
		return
	}
	sendToken(c, http.StatusCreated, sess)
}

func (h *AuthController) Login(c *gin.Context) {
	var input LoginInput
	if err := c.ShouldBindJSON(&input); err != nil || input.Email == "" || input.Password == "" {
		_ = c.Error(utils.NewValidation("Please provide email and password"))
		return
	}

	sess, err := h.auth.Login(c.Request.Context(), input.Email, input.Password)
	if err != nil {
		_ = c.Error(err)
		return
	}
	sendToken(c, http.StatusOK, sess)
}

// ForgotPassword mails a reset link for the account.
func (h *AuthController) ForgotPassword(c *gin.Context) {
	var input ForgotPasswordInput
	if !bindJSON(c, &input) {
		return
	}

	err := h.auth.ForgotPassword(c.Request.Context(), input.Email, func(token string) string {
		return h.publicURL + "/api/v1/users/resetPassword/" + token
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Token sent to email!"})
}

func (h *AuthController) ResetPassword(c *gin.Context) {
	var input ResetPasswordInput
	if !bindJSON(c, &input) {
		return
	}

	sess, err := h.auth.ResetPassword(c.Request.Context(), c.Param("token"), input.Password)
	if err != nil {
		_ = c.Error(err)
		return
	}
	sendToken(c, http.StatusOK, sess)
}

// UpdatePassword changes the logged-in user's password. Requires Protect.
func (h *AuthController) UpdatePassword(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		_ = c.Error(utils.NewUnauthorized("You are not logged in! Please log in to get access."))
		return
	}
	var input UpdatePasswordInput
	if !bindJSON(c, &input) {
		return
	}

	sess, err := h.auth.UpdatePassword(c.Request.Context(), user, input.PasswordCurrent, input.Password)
	if err != nil {
		_ = c.Error(err)
		return
	}
	sendToken(c, http.StatusOK, sess)
}

func sendToken(c *gin.Context, status int, sess *services.Session) {
	c.JSON(status, gin.H{
		"status": "success",
		"token":  sess.Token,
		"data":   gin.H{"user": sess.User},
	})
}
