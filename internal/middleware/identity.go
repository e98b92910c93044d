package middleware

// identity.go holds accessors for what the auth middleware stores in the
// Echo context.

import "github.com/labstack/echo/v4"

// UserID returns the authenticated subject, or "" when the request did not
// pass through ClientKeyOrBearer.
func UserID(c echo.Context) string {
	if v, ok := c.Get(contextKeyUserID).(string); ok {
		return v
	}
	return ""
}

// AuthVia reports which credential authenticated the request: client_key,
// identity or session.
func AuthVia(c echo.Context) string {
	if v, ok := c.Get(contextKeyAuthVia).(string); ok {
		return v
	}
	return ""
}
