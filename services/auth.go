// Package services holds the account workflows behind the auth routes.
package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Zacison/natours-backend/logger"
	"github.com/Zacison/natours-backend/models"
	"github.com/Zacison/natours-backend/repository"
	"github.com/Zacison/natours-backend/utils"
)

// passwordChangeSkew backdates passwordChangedAt so a token issued in the
// same second as the change still counts as issued after it.
const passwordChangeSkew = time.Second

// SignupRequest is the validated signup body.
type SignupRequest struct {
	Name            string `json:"name" binding:"required"`
	Email           string `json:"email" binding:"required,email"`
	Password        string `json:"password" binding:"required,min=8,max=72"`
	PasswordConfirm string `json:"passwordConfirm" binding:"required,eqfield=Password"`
	Role            string `json:"role" binding:"omitempty,oneof=user guide lead-guide"`
	Photo           string `json:"photo"`
}

// Session is an authenticated user together with a fresh token.
type Session struct {
	User  *models.User
	Token string
}

// AuthService defines the account operations.
type AuthService interface {
	Signup(ctx context.Context, req SignupRequest) (*Session, error)
	Login(ctx context.Context, email, password string) (*Session, error)
	ForgotPassword(ctx context.Context, email string, resetURL func(token string) string) error
	ResetPassword(ctx context.Context, token, password string) (*Session, error)
	UpdatePassword(ctx context.Context, user *models.User, current, password string) (*Session, error)
}

type authService struct {
	users  repository.UserRepository
	hasher *utils.PasswordHasher
	tokens *utils.TokenService
	resets *utils.ResetTokenService
	mailer utils.Mailer
	now    func() time.Time
}

func NewAuthService(
	users repository.UserRepository,
	hasher *utils.PasswordHasher,
	tokens *utils.TokenService,
	resets *utils.ResetTokenService,
	mailer utils.Mailer,
) AuthService {
	return &authService{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		resets: resets,
		mailer: mailer,
		now:    time.Now,
	}
}

func (s *authService) Signup(ctx context.Context, req SignupRequest) (*Session, error) {
	hash, err := s.hash(req.Password)
	if err != nil {
		return nil, err
	}

	role := req.Role
	if role == "" {
		role = models.RoleUser
	}
	user := &models.User{
		Name:      strings.TrimSpace(req.Name),
		Email:     strings.ToLower(strings.TrimSpace(req.Email)),
		Photo:     req.Photo,
		Role:      role,
		Password:  hash,
		CreatedAt: s.now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "user signed up", "user_id", user.ID.Hex(), "role", user.Role)
	return s.session(user)
}

func (s *authService) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if isKind(err, utils.KindNotFound) {
			return nil, errIncorrectCredentials
		}
		return nil, err
	}
	if !s.hasher.Verify(password, user.Password) {
		return nil, errIncorrectCredentials
	}
	return s.session(user)
}

var errIncorrectCredentials = utils.NewUnauthorized("Incorrect email or password")

// ForgotPassword stores a new reset token and mails its link. If delivery
// fails the stored token is cleared again.
func (s *authService) ForgotPassword(ctx context.Context, email string, resetURL func(token string) string) error {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return err
	}

	token, err := s.resets.Generate()
	if err != nil {
		return utils.NewInternal(err)
	}
	if err := s.users.SetResetToken(ctx, user.ID, token.Hash, token.ExpiresAt); err != nil {
		return err
	}

	msg := utils.Email{
		To:      user.Email,
		Subject: fmt.Sprintf("Your password reset token (valid for %d minutes)", int(s.resets.TTL().Minutes())),
		Text: "Forgot your password? Submit a PATCH request with your new password and passwordConfirm to: " +
			resetURL(token.Plain) + "\nIf you didn't forget your password, please ignore this email!",
	}
	if sendErr := s.mailer.Send(ctx, msg); sendErr != nil {
		if err := s.users.ClearResetToken(context.WithoutCancel(ctx), user.ID); err != nil {
			logger.ErrorContext(ctx, "reset token rollback failed", "user_id", user.ID.Hex(), "error", err)
		}
		return utils.NewDeliveryFailure("There was an error sending the email. Try again later", sendErr)
	}

	logger.InfoContext(ctx, "reset token sent", "user_id", user.ID.Hex())
	return nil
}

func (s *authService) ResetPassword(ctx context.Context, token, password string) (*Session, error) {
	hash, err := s.hash(password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	user, err := s.users.ConsumeResetToken(ctx, utils.HashResetToken(token), now, hash, now.Add(-passwordChangeSkew))
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "password reset", "user_id", user.ID.Hex())
	return s.session(user)
}

func (s *authService) UpdatePassword(ctx context.Context, user *models.User, current, password string) (*Session, error) {
	if !s.hasher.Verify(current, user.Password) {
		return nil, utils.NewUnauthorized("Your current password is wrong")
	}

	hash, err := s.hash(password)
	if err != nil {
		return nil, err
	}
	changedAt := s.now().Add(-passwordChangeSkew)
	if err := s.users.UpdatePassword(ctx, user.ID, hash, changedAt); err != nil {
		return nil, err
	}

	updated := *user
	updated.Password = hash
	updated.PasswordChangedAt = &changedAt
	return s.session(&updated)
}

func (s *authService) session(user *models.User) (*Session, error) {
	token, err := s.tokens.Issue(user.ID.Hex())
	if err != nil {
		return nil, utils.NewInternal(err)
	}
	return &Session{User: user, Token: token}, nil
}

func isKind(err error, kind utils.ErrorKind) bool {
	appErr, ok := utils.AsAppError(err)
	return ok && appErr.Kind == kind
}

// hash keeps the hasher's own input errors and hides everything else.
func (s *authService) hash(plain string) (string, error) {
	hash, err := s.hasher.Hash(plain)
	if err != nil {
		if appErr, ok := utils.AsAppError(err); ok {
			return "", appErr
		}
		return "", utils.NewInternal(err)
	}
	return hash, nil
}
