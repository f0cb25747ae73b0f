package gate

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/goliatone/go-router"
)

// DefaultSessionCookie is the cookie carrying the session token.
const DefaultSessionCookie = "otaku_session"

// Gateway is the request authorization middleware: rate limiter first, then
// route classification, then the decision engine. It holds no mutable state;
// every request is decided from its own inputs.
type Gateway struct {
	routes     *RouteTable
	limiter    RateLimiter
	tokens     TokenService
	paths      EnginePaths
	cookieName string
	authScheme string
	logger     Logger
}

// GatewayOption customizes the gateway.
type GatewayOption func(*Gateway)

// WithGatewayLogger overrides the logger.
func WithGatewayLogger(logger Logger) GatewayOption {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithEnginePaths overrides the redirect targets.
func WithEnginePaths(paths EnginePaths) GatewayOption {
	return func(g *Gateway) {
		g.paths = paths
	}
}

// WithSessionCookie overrides the session cookie name.
func WithSessionCookie(name string) GatewayOption {
	return func(g *Gateway) {
		if name != "" {
			g.cookieName = name
		}
	}
}

// NewGateway wires the middleware to its collaborators. The limiter is
// wrapped fail-closed: an outage denies rather than silently allows.
func NewGateway(routes *RouteTable, limiter RateLimiter, tokens TokenService, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		routes:     routes,
		tokens:     tokens,
		paths:      DefaultEnginePaths(),
		cookieName: DefaultSessionCookie,
		authScheme: "Bearer",
		logger:     defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}

	g.limiter = FailClosed(limiter, g.logger)

	return g
}

// Middleware returns the gateway as router middleware. It short-circuits to
// a response before any downstream handler runs on every non-allow verdict.
func (g *Gateway) Middleware() router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			rate, err := g.limiter.Check(c.Context(), g.clientID(c))
			if err != nil {
				// FailClosed swallows limiter errors; anything left is a
				// cancelled request context
				rate = RateDecision{Allowed: false}
			}

			cls := g.routes.Classify(c.Path())
			claims := g.sessionClaims(c)

			verdict := Decide(cls, rate, claims, g.paths)

			return g.apply(c, verdict, rate, claims, next)
		}
	}
}

// SessionClaims decodes the request credential, mapping malformed or
// expired tokens to nil so the engine treats them as absent.
func (g *Gateway) sessionClaims(c router.Context) *SessionClaims {
	raw := c.Cookies(g.cookieName, "")
	if raw == "" {
		raw = bearerToken(c.Header("Authorization"), g.authScheme)
	}
	if raw == "" {
		return nil
	}

	claims, err := g.tokens.Decode(raw)
	if err != nil {
		if IsTokenExpiredError(err) {
			g.logger.Debug("session token expired", "path", c.Path())
		} else {
			g.logger.Debug("session token rejected", "path", c.Path(), "error", err)
		}
		return nil
	}

	return claims
}

func (g *Gateway) apply(c router.Context, verdict Verdict, rate RateDecision, claims *SessionClaims, next router.HandlerFunc) error {
	switch verdict.Kind {
	case VerdictAllow:
		if claims != nil {
			c.Locals(g.cookieName, claims)
			c.SetContext(WithClaimsContext(c.Context(), claims))
		}
		return next(c)

	case VerdictRedirect:
		statusCode := http.StatusSeeOther
		if c.Method() == http.MethodGet {
			statusCode = http.StatusFound
		}
		return c.Redirect(verdict.Location, statusCode)

	case VerdictDenyPage:
		if verdict.StatusCode == http.StatusTooManyRequests && rate.RetryAfter > 0 {
			c.SetHeader("Retry-After", strconv.Itoa(int(rate.RetryAfter.Seconds())))
		}
		return c.Status(verdict.StatusCode).SendString(verdict.Message)

	case VerdictDenyAPI:
		if verdict.StatusCode == http.StatusTooManyRequests && rate.RetryAfter > 0 {
			c.SetHeader("Retry-After", strconv.Itoa(int(rate.RetryAfter.Seconds())))
		}
		return c.JSON(verdict.StatusCode, map[string]any{
			"success": false,
			"error":   verdict.Message,
		})

	default:
		g.logger.Error("unknown verdict kind", "kind", verdict.Kind)
		return c.Status(http.StatusInternalServerError).SendString("internal error")
	}
}

// clientID picks the identifier the rate limiter keys on.
func (g *Gateway) clientID(c router.Context) string {
	if fwd := c.Header("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}

	if ip := c.Header("X-Real-Ip"); ip != "" {
		return ip
	}

	if ip := c.IP(); ip != "" {
		return ip
	}

	return "unknown"
}

func bearerToken(header, scheme string) string {
	if header == "" {
		return ""
	}

	prefix := scheme + " "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}

	return strings.TrimSpace(header[len(prefix):])
}
