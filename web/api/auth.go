package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/rweb"
	"github.com/rohanthewiz/serr"

	"planroom/models"
)

// AuthResponse contains the user and token returned on successful
// authentication.
type AuthResponse struct {
	User  models.UserOutput `json:"user"`
	Token string            `json:"token"`
}

// Register creates a new user account and returns a JWT token.
// POST /api/v1/auth/register
//
// Request body:
//
//	{ "username": "johndoe", "password": "SecurePass123!", "email": "j@example.com" }
//
// Success (201):
//
//	{ "success": true, "data": { "user": {...}, "token": "..." } }
func Register(ctx rweb.Context) error {
	var input models.UserRegisterInput
	if err := json.Unmarshal(ctx.Request().Body(), &input); err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request body")
	}

	if input.Username == "" {
		return writeError(ctx, http.StatusBadRequest, "username is required")
	}
	if input.Password == "" {
		return writeError(ctx, http.StatusBadRequest, "password is required")
	}

	user, err := models.CreateUser(input)
	if err != nil {
		errMsg := err.Error()
		if strings.Contains(errMsg, "already exists") {
			return writeError(ctx, http.StatusConflict, errMsg)
		}
		if strings.Contains(errMsg, "must be") {
			return writeError(ctx, http.StatusBadRequest, errMsg)
		}
		logger.LogErr(serr.Wrap(err, "failed to create user"), "username", input.Username)
		return writeError(ctx, http.StatusInternalServerError, "failed to create user")
	}

	token, err := models.GenerateToken(user)
	if err != nil {
		logger.LogErr(serr.Wrap(err, "failed to generate token"), "user_guid", user.GUID)
		return writeError(ctx, http.StatusInternalServerError, "failed to generate token")
	}

	return writeSuccess(ctx, http.StatusCreated, AuthResponse{User: user.ToOutput(), Token: token})
}

// Login authenticates a user and returns a JWT token.
// POST /api/v1/auth/login
func Login(ctx rweb.Context) error {
	var input models.UserLoginInput
	if err := json.Unmarshal(ctx.Request().Body(), &input); err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request body")
	}

	if input.Username == "" {
		return writeError(ctx, http.StatusBadRequest, "username is required")
	}
	if input.Password == "" {
		return writeError(ctx, http.StatusBadRequest, "password is required")
	}

	user, err := models.AuthenticateUser(input)
	if err != nil {
		if strings.Contains(err.Error(), "disabled") {
			return writeError(ctx, http.StatusForbidden, "account is disabled")
		}
		logger.LogErr(serr.Wrap(err, "authentication error"), "username", input.Username)
		return writeError(ctx, http.StatusInternalServerError, "authentication error")
	}

	if user == nil {
		// Invalid credentials - don't reveal whether username exists
		return writeError(ctx, http.StatusUnauthorized, "invalid credentials")
	}

	token, err := models.GenerateToken(user)
	if err != nil {
		logger.LogErr(serr.Wrap(err, "failed to generate token"), "user_guid", user.GUID)
		return writeError(ctx, http.StatusInternalServerError, "failed to generate token")
	}

	logger.Info("User logged in", "username", user.Username)
	return writeSuccess(ctx, http.StatusOK, AuthResponse{User: user.ToOutput(), Token: token})
}
