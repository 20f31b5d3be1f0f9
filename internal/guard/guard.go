// Package guard decides which console surfaces and actions a caller may
// reach. Decisions are computed from the unverified role claim and only shape
// what the console offers; the API re-checks every call.
package guard

import (
	"net/url"
	"strings"

	"github.com/meowecho-tech/vote/internal/models"
	"github.com/meowecho-tech/vote/internal/security"
)

const (
	LoginPath   = "/login"
	LandingPath = "/"
)

type Surface int

const (
	SurfacePublic Surface = iota
	SurfaceAdmin
	SurfaceVoter
)

var surfaceRoles = map[Surface][]models.Role{
	SurfaceAdmin: {models.RoleAdmin, models.RoleElectionOfficer},
	SurfaceVoter: {models.RoleVoter, models.RoleAdmin},
}

// Decision is the outcome of a route check. Redirect is set whenever Allowed
// is false.
type Decision struct {
	Allowed  bool
	Redirect string
}

func SurfaceOf(path string) Surface {
	switch {
	case hasSegmentPrefix(path, "/admin"):
		return SurfaceAdmin
	case hasSegmentPrefix(path, "/voter"):
		return SurfaceVoter
	default:
		return SurfacePublic
	}
}

func hasSegmentPrefix(path, prefix string) bool {
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	rest := path[len(prefix):]
	return rest == "" || rest[0] == '/' || rest[0] == '?'
}

// RoleAllowed reports whether role may use the surface.
func RoleAllowed(surface Surface, role models.Role) bool {
	allowed, gated := surfaceRoles[surface]
	if !gated {
		return true
	}
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}

// CanAccess checks a requested console path against the stored access token.
// A missing token or an unrecognised role sends the caller to login with the
// path as the return target; a known role without access lands on "/".
func CanAccess(path string, access string) Decision {
	surface := SurfaceOf(path)
	if surface == SurfacePublic {
		return Decision{Allowed: true}
	}
	if access == "" {
		return Decision{Redirect: LoginRedirect(path)}
	}
	role, ok := security.RoleOf(access)
	if !ok {
		return Decision{Redirect: LoginRedirect(path)}
	}
	if !RoleAllowed(surface, role) {
		return Decision{Redirect: LandingPath}
	}
	return Decision{Allowed: true}
}

// SanitizeNextPath accepts only same-origin absolute paths: exactly one
// leading slash, no backslash right after it, no control characters.
func SanitizeNextPath(raw string) (string, bool) {
	if len(raw) == 0 || raw[0] != '/' {
		return "", false
	}
	if len(raw) > 1 && (raw[1] == '/' || raw[1] == '\\') {
		return "", false
	}
	for _, r := range raw {
		if r < 0x20 || r == 0x7f {
			return "", false
		}
	}
	return raw, true
}

func LoginRedirect(next string) string {
	safe, ok := SanitizeNextPath(next)
	if !ok {
		return LoginPath
	}
	return LoginPath + "?next=" + url.QueryEscape(safe)
}

// PostLoginTarget returns where to go after a successful login.
func PostLoginTarget(next string) string {
	if safe, ok := SanitizeNextPath(next); ok {
		return safe
	}
	return LandingPath
}
