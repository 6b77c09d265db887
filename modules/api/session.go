package api

import (
	"errors"
	"log"
	"time"

	"github.com/example/taskboard/domain/apperr"
	domain "github.com/example/taskboard/domain/user"
	"github.com/example/taskboard/modules/auth"
	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
)

const (
	// SessionCookie holds the signed session token.
	SessionCookie = "auth_token"
	// UserIDKey is the Locals key holding the authenticated user id.
	UserIDKey = "user_id"
	// UserKey is the Locals key holding the *user.User on page routes.
	UserKey = "user"

	loginPath = "/login"
)

var sessionMaxAge = int((7 * 24 * time.Hour).Seconds())

// SessionCookies issues and clears the session cookie.
type SessionCookies struct {
	Secure bool
}

// Set stores token in the session cookie for seven days.
func (s SessionCookies) Set(c *fiber.Ctx, token string) {
	c.Cookie(s.cookie(token, sessionMaxAge))
}

// Clear expires the session cookie with both Max-Age=0 and an Expires date
// in the past.
func (s SessionCookies) Clear(c *fiber.Ctx) {
	cookie := fasthttp.AcquireCookie()
	defer fasthttp.ReleaseCookie(cookie)
	cookie.SetKey(SessionCookie)
	cookie.SetPath("/")
	cookie.SetHTTPOnly(true)
	cookie.SetSecure(s.Secure)
	cookie.SetSameSite(fasthttp.CookieSameSiteLaxMode)
	cookie.SetExpire(time.Unix(0, 0))
	// fasthttp serializes Max-Age only when it is positive.
	c.Response().Header.Add(fiber.HeaderSetCookie, cookie.String()+"; Max-Age=0")
}

func (s SessionCookies) cookie(value string, maxAge int) *fiber.Cookie {
	return &fiber.Cookie{
		Name:     SessionCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HTTPOnly: true,
		Secure:   s.Secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	}
}

func resolveSession(c *fiber.Ctx, authPort auth.AuthPort) (*domain.Claims, bool) {
	token := c.Cookies(SessionCookie)
	if token == "" {
		return nil, false
	}
	claims, err := authPort.ValidateToken(c.UserContext(), token)
	if err != nil {
		if !errors.Is(err, auth.ErrInvalidToken) {
			log.Printf("[api] session validation failed: %v", err)
		}
		return nil, false
	}
	return claims, true
}

// RequireSession guards API routes. Requests without a valid session get a
// 401 before reaching the handler.
func RequireSession(authPort auth.AuthPort) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, ok := resolveSession(c, authPort)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{Error: "Unauthorized"})
		}
		c.Locals(UserIDKey, claims.UserID)
		return c.Next()
	}
}

// RequirePageSession guards page routes. It redirects to the login page
// unless the session is valid and its user still exists.
func RequirePageSession(authPort auth.AuthPort) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, ok := resolveSession(c, authPort)
		if !ok {
			return c.Redirect(loginPath, fiber.StatusFound)
		}

		user, err := authPort.GetUser(c.UserContext(), claims.UserID)
		if err != nil {
			if apperr.KindOf(err) == apperr.KindNotFound {
				return c.Redirect(loginPath, fiber.StatusFound)
			}
			return errorResponse(c, err)
		}

		c.Locals(UserIDKey, user.ID)
		c.Locals(UserKey, user)
		return c.Next()
	}
}

func currentUserID(c *fiber.Ctx) string {
	id, _ := c.Locals(UserIDKey).(string)
	return id
}

func currentUser(c *fiber.Ctx) *domain.User {
	user, _ := c.Locals(UserKey).(*domain.User)
	return user
}
