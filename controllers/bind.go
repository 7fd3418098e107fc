package controllers

import (
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/Zacison/natours-backend/utils"
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(utils.JSONTagName)
	}
}

// bindJSON decodes and validates the body. On failure it records a
// validation error and returns false.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		_ = c.Error(utils.BindError(err))
		return false
	}
	return true
}

func success(data gin.H) gin.H {
	return gin.H{"status": "success", "data": data}
}
