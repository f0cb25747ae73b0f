package gate

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// TokenService issues and decodes signed session credentials. Tokens are
// immutable once issued; role changes require an explicit Reissue.
type TokenService interface {
	Issue(accountID string, roles []Role) (string, error)
	IssuePending(pendingID string) (string, error)
	Reissue(accountID string, roles []Role) (string, error)
	Decode(token string) (*SessionClaims, error)
}

// RateDecision is the rate limiter's answer for a single request.
type RateDecision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// RateLimiter yields an allow/deny decision for a caller identifier. The
// gateway treats a Check error as "limited" (fail closed).
type RateLimiter interface {
	Check(ctx context.Context, clientID string) (RateDecision, error)
}

// RateLimiterFunc adapts a function into a RateLimiter.
type RateLimiterFunc func(ctx context.Context, clientID string) (RateDecision, error)

func (f RateLimiterFunc) Check(ctx context.Context, clientID string) (RateDecision, error) {
	if f == nil {
		return RateDecision{}, nil
	}
	return f(ctx, clientID)
}

// Config holds the gateway options read once at process start.
type Config interface {
	GetSigningKey() string
	GetTokenExpiration() int
	GetBootstrapTTL() int
	GetIssuer() string
	GetAudience() []string
	GetContextKey() string
	GetSignInRoute() string
	GetHomeRoute() string
	GetClaimUsernameRoute() string
	GetRateLimitWindow() time.Duration
	GetRateLimitThreshold() int
}

// ExternalProfile is what an identity provider vouches for after a
// successful callback exchange.
type ExternalProfile struct {
	Email       string `json:"email"`
	Provider    string `json:"provider"`
	ProviderID  string `json:"provider_id"`
	DisplayName string `json:"display_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// ProfileVerifier completes the provider side of the OAuth exchange and
// returns the verified profile. Implementations live outside this package.
type ProfileVerifier interface {
	VerifyCallback(ctx context.Context, provider, code string) (*ExternalProfile, error)
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] GATE "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] GATE "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] GATE "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] GATE "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
