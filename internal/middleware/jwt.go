package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/resort-reservation/internal/utils"
)

// Role is the caller's role as carried in the JWT role claim.
type Role string

const (
	RoleGuest Role = "GUEST"
	RoleStaff Role = "STAFF"
)

// Identity is the authenticated caller.
type Identity struct {
	UserID uint64
	Role   Role
}

// IsStaff reports whether the caller acts for the resort.
func (id Identity) IsStaff() bool { return id.Role == RoleStaff }

// Context keys set by JWTAuth.
const (
	ctxUserID = "user_id"
	ctxRole   = "role"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token
// and stores the caller's user id and role in the context.  Tokens with an
// unknown role are rejected.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": "missing bearer token"})
			}
			claims, err := utils.ParseAccessToken(secret, strings.TrimPrefix(auth, "Bearer "))
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": "invalid token"})
			}
			uid, err := claims.UserID()
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": "invalid claims"})
			}
			role := Role(strings.ToUpper(claims.Role))
			if role != RoleGuest && role != RoleStaff {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": "unknown role"})
			}

			c.Set(ctxUserID, uid)
			c.Set(ctxRole, role)
			return next(c)
		}
	}
}

// IdentityFrom returns the caller stored by JWTAuth.
func IdentityFrom(c echo.Context) (Identity, bool) {
	uid, ok := c.Get(ctxUserID).(uint64)
	if !ok || uid == 0 {
		return Identity{}, false
	}
	role, _ := c.Get(ctxRole).(Role)
	return Identity{UserID: uid, Role: role}, true
}
