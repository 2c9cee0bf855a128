package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
    "net/http" // HTTP status codes for responses
    "strings"  // string utilities for prefix checking and trimming

    "github.com/labstack/echo/v4" // Echo framework used for defining middleware and handlers

    "github.com/iliyamo/cms-backend/internal/utils" // access token parsing
)

// AccessCookieNames lists the cookies that may carry the access token.
// "accessToken" is kept for older admin UI builds.
var AccessCookieNames = []string{"access_token", "accessToken"}

// JWTAuth returns an Echo middleware that validates an access token and
// injects its subject, email and role claims into the request context.
// The token is read from the Authorization header ("Bearer <jwt>") or,
// failing that, from the access token cookies.  Handlers read the values
// via c.Get("user_id"), c.Get("email") and c.Get("role"), all strings.
func JWTAuth(secret string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            raw := bearerOrCookie(c)
            if raw == "" {
                return c.JSON(http.StatusUnauthorized, echo.Map{"message": "missing_token"})
            }
            claims, err := utils.ParseAccessToken(secret, raw)
            if err != nil {
                return c.JSON(http.StatusUnauthorized, echo.Map{"message": "invalid_token"})
            }
            c.Set("user_id", claims.Subject)
            c.Set("email", claims.Email)
            c.Set("role", claims.Role)
            return next(c)
        }
    }
}

func bearerOrCookie(c echo.Context) string {
    if auth := c.Request().Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
        return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
    }
    for _, name := range AccessCookieNames {
        if ck, err := c.Cookie(name); err == nil && ck.Value != "" {
            return ck.Value
        }
    }
    return ""
}
