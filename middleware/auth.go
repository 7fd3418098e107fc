package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Zacison/natours-backend/logger"
	"github.com/Zacison/natours-backend/models"
	"github.com/Zacison/natours-backend/utils"
)

// UserKey is the gin context key holding the resolved *models.User.
const UserKey = "user"

type TokenVerifier interface {
	Verify(token string) (*utils.Claims, error)
}

type UserFinder interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

var (
	errNotLoggedIn     = utils.NewUnauthorized("You are not logged in! Please log in to get access.")
	errUserGone        = utils.NewUnauthorized("The user belonging to this token does no longer exist.")
	errPasswordChanged = utils.NewUnauthorized("User recently changed password! Please log in again.")
	errForbidden       = utils.NewForbidden("You do not have permission to perform this action")
)

// Protect resolves the bearer token to a current user. The token must
// verify, its user must still exist, and the password must not have
// changed after the token was issued.
func Protect(tokens TokenVerifier, users UserFinder) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c.GetHeader("Authorization"))
		if raw == "" {
			abort(c, errNotLoggedIn)
			return
		}

		claims, err := tokens.Verify(raw)
		if err != nil {
			var tokErr *utils.TokenError
			if errors.As(err, &tokErr) {
				abort(c, tokErr.AppError())
				return
			}
			abort(c, utils.NewInternal(err))
			return
		}

		ctx := c.Request.Context()
		user, err := users.FindByID(ctx, claims.UserID)
		if err != nil {
			if appErr, ok := utils.AsAppError(err); ok && (appErr.Kind == utils.KindNotFound || appErr.Kind == utils.KindValidation) {
				abort(c, errUserGone.WithCause(err))
				return
			}
			abort(c, err)
			return
		}

		if user.PasswordChangedAfter(claims.IssuedAtTime()) {
			abort(c, errPasswordChanged)
			return
		}

		c.Set(UserKey, user)
		c.Request = c.Request.WithContext(context.WithValue(ctx, logger.UserIDKey, user.ID.Hex()))
		c.Next()
	}
}

// RestrictTo admits only users whose role is in roles. It must run after
// Protect.
func RestrictTo(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			abort(c, errNotLoggedIn)
			return
		}
		if !allowed[user.Role] {
			abort(c, errForbidden)
			return
		}
		c.Next()
	}
}

// CurrentUser returns the user stored by Protect.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, exists := c.Get(UserKey)
	if !exists {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok && user != nil
}

func bearerToken(header string) string {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func abort(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}
