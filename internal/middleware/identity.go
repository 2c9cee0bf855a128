package middleware

// identity.go holds the user lookup shared by the rate limiter and the
// response cache.  It reads the subject JWTAuth stored on the context.

import "github.com/labstack/echo/v4"

// currentUserID returns the authenticated user id, or "anon" when the
// request carries no verified access token.
func currentUserID(c echo.Context) string {
    if s, ok := c.Get("user_id").(string); ok && s != "" {
        return s
    }
    return "anon"
}

// currentRole returns the role claim JWTAuth stored, or "" without one.
func currentRole(c echo.Context) string {
    s, _ := c.Get("role").(string)
    return s
}
