package api

import (
	"errors"
	"strings"

	"github.com/example/meeting-relay/domain/meeting"
	"github.com/example/meeting-relay/modules/auth"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

const (
	// UserContextKey is the key used to store the verified identity in the
	// Fiber context.
	UserContextKey = "identity"
)

var errMissingToken = errors.New("token is required")

// tokenFromRequest reads a bearer token from the Authorization header or,
// for browsers that cannot set headers on a WebSocket, the token query
// parameter.
func tokenFromRequest(c *fiber.Ctx, allowQuery bool) (string, error) {
	if authHeader := c.Get("Authorization"); authHeader != "" {
		if !strings.HasPrefix(authHeader, "Bearer ") {
			return "", errors.New("invalid authorization header format, use: Bearer <token>")
		}
		if token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer ")); token != "" {
			return token, nil
		}
		return "", errMissingToken
	}
	if allowQuery {
		if token := c.Query("token"); token != "" {
			return token, nil
		}
	}
	return "", errMissingToken
}

func unauthorized(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
		Error:   "unauthorized",
		Message: message,
	})
}

// AuthMiddleware creates a middleware that validates bearer tokens.
func AuthMiddleware(authAdapter auth.AuthPort) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := tokenFromRequest(c, false)
		if err != nil {
			return unauthorized(c, err.Error())
		}

		identity, err := authAdapter.VerifyToken(c.UserContext(), token)
		if err != nil {
			return unauthorized(c, "Invalid or expired token")
		}

		c.Locals(UserContextKey, identity)
		return c.Next()
	}
}

// WebSocketAuthMiddleware authenticates /ws before the upgrade, so a
// rejected client never reaches the connection registry.
func WebSocketAuthMiddleware(authAdapter auth.AuthPort) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := tokenFromRequest(c, true)
		if err != nil {
			return unauthorized(c, err.Error())
		}

		identity, err := authAdapter.VerifyToken(c.UserContext(), token)
		if err != nil {
			message := "Invalid token"
			if errors.Is(err, auth.ErrExpiredToken) {
				message = "Token expired"
			}
			return unauthorized(c, message)
		}

		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}

		c.Locals(UserContextKey, identity)
		return c.Next()
	}
}

// identityFrom returns the identity stored by the auth middleware.
func identityFrom(c *fiber.Ctx) (meeting.Identity, bool) {
	identity, ok := c.Locals(UserContextKey).(meeting.Identity)
	return identity, ok
}
