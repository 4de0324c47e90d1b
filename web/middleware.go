package web

import (
	"net/http"
	"strings"

	"github.com/rohanthewiz/rweb"

	"planroom/models"
)

// CorsMiddleware handles CORS headers for cross-origin requests from the
// planner UI.
func CorsMiddleware(c rweb.Context) error {
	c.Response().SetHeader("Access-Control-Allow-Origin", "*")
	c.Response().SetHeader("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	c.Response().SetHeader("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

	// Handle preflight OPTIONS requests
	if c.Request().Method() == "OPTIONS" {
		c.SetStatus(http.StatusOK)
		return nil
	}

	return c.Next()
}

// JWTAuthMiddleware validates Bearer tokens and populates user context.
// A missing or invalid token does not block the request; endpoints that
// need an identity reject unauthenticated callers themselves.
func JWTAuthMiddleware(c rweb.Context) error {
	authHeader := c.Request().Header("Authorization")

	if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
		c.Set("user_guid", "")
		c.Set("authenticated", false)
		return c.Next()
	}

	tokenString := strings.TrimPrefix(authHeader, "Bearer ")
	claims, err := models.ValidateToken(tokenString)
	if err != nil {
		// Invalid token - continue as unauthenticated.
		// Don't log every invalid token attempt (could be an attack).
		c.Set("user_guid", "")
		c.Set("authenticated", false)
		return c.Next()
	}

	c.Set("user_guid", claims.UserGUID)
	c.Set("username", claims.Username)
	c.Set("authenticated", true)

	return c.Next()
}
