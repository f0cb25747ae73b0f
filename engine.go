package gate

import (
	"net/http"
	"strings"
)

// VerdictKind enumerates engine outcomes.
type VerdictKind int

const (
	// VerdictAllow passes the request through untouched.
	VerdictAllow VerdictKind = iota
	// VerdictRedirect sends a page request elsewhere.
	VerdictRedirect
	// VerdictDenyPage renders a denial on a page surface (no redirect).
	VerdictDenyPage
	// VerdictDenyAPI returns a JSON error body with a status code.
	VerdictDenyAPI
)

// Verdict is the engine's decision for one request.
type Verdict struct {
	Kind       VerdictKind
	Location   string
	StatusCode int
	Message    string
}

// Allow passes the request through.
func Allow() Verdict {
	return Verdict{Kind: VerdictAllow}
}

// RedirectTo sends the caller to another surface.
func RedirectTo(location string) Verdict {
	return Verdict{Kind: VerdictRedirect, Location: location, StatusCode: http.StatusSeeOther}
}

// DenyPage renders a denial in place of the requested page.
func DenyPage(status int, message string) Verdict {
	return Verdict{Kind: VerdictDenyPage, StatusCode: status, Message: message}
}

// DenyAPI returns a structured error to an API caller.
func DenyAPI(status int, message string) Verdict {
	return Verdict{Kind: VerdictDenyAPI, StatusCode: status, Message: message}
}

// EnginePaths are the redirect targets the engine may emit.
type EnginePaths struct {
	SignIn        string
	Home          string
	ClaimUsername string
}

// DefaultEnginePaths mirror the catalog's public surfaces.
func DefaultEnginePaths() EnginePaths {
	return EnginePaths{
		SignIn:        "/sign-in",
		Home:          "/",
		ClaimUsername: "/welcome/username",
	}
}

func (p EnginePaths) withDefaults() EnginePaths {
	def := DefaultEnginePaths()
	if p.SignIn == "" {
		p.SignIn = def.SignIn
	}
	if p.Home == "" {
		p.Home = def.Home
	}
	if p.ClaimUsername == "" {
		p.ClaimUsername = def.ClaimUsername
	}
	return p
}

// Decide combines the route classification, the rate limiter decision, and
// the decoded session into a verdict. It is pure: every collaborator comes
// in as an argument and no input can make it panic. A nil claims pointer
// means "no credential"; callers must map malformed or expired tokens to nil
// before calling.
//
// Rules run in fixed order, first match wins:
//  1. limiter exceeded denies everything, pages included
//  2. a session on a guest-only surface bounces (redirect or 403)
//  3. role-tiered surfaces need a role at or above the tier
//  4. auth-required surfaces need any session
//  5. pending-username sessions are forced to the claim surface; else allow
func Decide(cls Classification, rate RateDecision, claims *SessionClaims, paths EnginePaths) Verdict {
	paths = paths.withDefaults()

	if !rate.Allowed {
		if cls.API {
			return DenyAPI(http.StatusTooManyRequests, ErrRateLimited.Message)
		}
		return DenyPage(http.StatusTooManyRequests, ErrRateLimited.Message)
	}

	if claims != nil && cls.Class == RouteGuestOnly {
		if cls.API {
			return DenyAPI(http.StatusForbidden, ErrAlreadyAuthenticated.Message)
		}
		return RedirectTo(paths.Home)
	}

	if cls.Class == RouteRoleTiered {
		if claims == nil {
			if cls.API {
				return DenyAPI(http.StatusUnauthorized, ErrUnauthorized.Message)
			}
			return RedirectTo(paths.SignIn)
		}
		if !claims.IsAtLeast(cls.Tier) {
			if cls.API {
				return DenyAPI(http.StatusForbidden, ErrForbidden.Message)
			}
			return RedirectTo(paths.Home)
		}
		return pendingOrAllow(cls, claims, paths)
	}

	if cls.Class == RouteAuthRequired && claims == nil {
		if cls.API {
			return DenyAPI(http.StatusUnauthorized, ErrUnauthorized.Message)
		}
		return RedirectTo(paths.SignIn)
	}

	return pendingOrAllow(cls, claims, paths)
}

// pendingOrAllow applies the bootstrap rule: a session issued before the
// username claim completed may only touch the claim surface and provider
// internals; everything else forces the claim redirect.
func pendingOrAllow(cls Classification, claims *SessionClaims, paths EnginePaths) Verdict {
	if claims == nil || !claims.PendingUsername {
		return Allow()
	}

	if cls.Class == RouteProviderInternal {
		return Allow()
	}

	if onSurface(cls.Path, paths.ClaimUsername) {
		return Allow()
	}

	if cls.API {
		return DenyAPI(http.StatusForbidden, "username selection required")
	}
	return RedirectTo(paths.ClaimUsername)
}

func onSurface(path, surface string) bool {
	if surface == "" {
		return false
	}
	if !strings.HasPrefix(path, surface) {
		return false
	}
	return len(path) == len(surface) || path[len(surface)] == '/'
}
