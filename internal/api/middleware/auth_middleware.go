package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	config "github.com/maheshrc27/locaposty/configs"
	"github.com/maheshrc27/locaposty/internal/logger"
	"github.com/maheshrc27/locaposty/internal/service"
	"github.com/maheshrc27/locaposty/pkg/utils"
)

const HeaderAPIKey = "X-API-Key"

type AuthMiddleware struct {
	s   service.ApiKeyService
	cfg *config.Config
}

func NewAuthMiddleware(cfg *config.Config, service service.ApiKeyService) *AuthMiddleware {
	return &AuthMiddleware{s: service, cfg: cfg}
}

// AuthMiddleware accepts an API key, the session cookie or an Authorization
// bearer token, in that order.
func (m *AuthMiddleware) AuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		apiKey := c.Get(HeaderAPIKey)
		if apiKey == "" {
			apiKey = c.Query("api_key")
		}
		if apiKey != "" {
			return m.authenticateKey(c, apiKey)
		}

		tokenString := c.Cookies(m.cfg.CookieName)
		fromCookie := tokenString != ""
		if !fromCookie {
			auth := c.Get(fiber.HeaderAuthorization)
			if strings.HasPrefix(auth, "Bearer ") {
				tokenString = strings.TrimPrefix(auth, "Bearer ")
			}
		}

		if tokenString == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing key, token or cookie",
			})
		}

		claims, err := utils.ValidateToken(m.cfg.SecretKey, tokenString)
		if err != nil {
			if fromCookie {
				c.Cookie(&fiber.Cookie{
					Name:   m.cfg.CookieName,
					Value:  "",
					Path:   "/",
					MaxAge: -1, // Delete cookie
				})
			}

			logger.FromContext(c.UserContext()).Info("token validation failed", "error", err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		c.Locals("user_id", claims.UserID)
		c.Locals("email", claims.Email)
		return c.Next()
	}
}

func (m *AuthMiddleware) authenticateKey(c *fiber.Ctx, apiKey string) error {
	user, err := m.s.Authenticate(c.UserContext(), apiKey)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid API key",
			})
		}
		logger.FromContext(c.UserContext()).Error("API key lookup failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to verify API key",
		})
	}

	c.Locals("user_id", user.ID)
	c.Locals("email", user.Email)
	return c.Next()
}
