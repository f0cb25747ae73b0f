package gate

import (
	"net/http"
	"net/url"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// RouteRegistrar captures the router methods used by the controller.
type RouteRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}

// HTTPConfig configures the bootstrap HTTP controller.
type HTTPConfig struct {
	// PathPrefix for routes (default: "/auth")
	PathPrefix string

	// CookieName for the session token (default: DefaultSessionCookie)
	CookieName string

	// CookieSecure sets the Secure flag on cookies
	CookieSecure bool

	// CookieSameSite sets the SameSite attribute (e.g. "Lax", "Strict")
	CookieSameSite string

	// SuccessRedirect after a shortcut sign-in (default: "/")
	SuccessRedirect string

	// ClaimRedirect is the username-claim surface for fresh identities
	// (default: "/welcome/username")
	ClaimRedirect string

	// ErrorRedirect for provider callback failures
	ErrorRedirect string

	// ErrorHandler overrides the JSON error responder (optional)
	ErrorHandler func(ctx router.Context, err error) error
}

// HTTPController exposes the bootstrap boundary: provider callback,
// username claim, and the advisory availability check.
type HTTPController struct {
	bootstrapper *Bootstrapper
	verifier     ProfileVerifier
	registrar    *RegisterAccountHandler
	config       HTTPConfig
	logger       Logger
}

// NewHTTPController creates the controller. The verifier owns the provider
// exchange; this controller only sees verified profiles.
func NewHTTPController(bootstrapper *Bootstrapper, verifier ProfileVerifier, registrar *RegisterAccountHandler, cfg HTTPConfig) *HTTPController {
	if cfg.PathPrefix == "" {
		cfg.PathPrefix = "/auth"
	}
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultSessionCookie
	}
	if cfg.CookieSameSite == "" {
		cfg.CookieSameSite = "Lax"
	}
	if cfg.SuccessRedirect == "" {
		cfg.SuccessRedirect = "/"
	}
	if cfg.ClaimRedirect == "" {
		cfg.ClaimRedirect = DefaultEnginePaths().ClaimUsername
	}
	if cfg.ErrorRedirect == "" {
		cfg.ErrorRedirect = "/sign-in?error=auth_failed"
	}

	return &HTTPController{
		bootstrapper: bootstrapper,
		verifier:     verifier,
		registrar:    registrar,
		config:       cfg,
		logger:       defLogger{},
	}
}

// RegisterRoutes registers the bootstrap boundary routes.
func (c *HTTPController) RegisterRoutes(group RouteRegistrar) {
	group.Get("/username/available", c.UsernameAvailable)
	group.Post("/username", c.ClaimUsername)
	group.Post("/register", c.Register)
	group.Get("/:provider/callback", c.Callback)
}

// Callback finishes the provider exchange and runs BeginBootstrap. Existing
// accounts land signed in; fresh identities get a pending session and the
// claim surface.
func (c *HTTPController) Callback(ctx router.Context) error {
	providerName := ctx.Param("provider")

	if errCode := ctx.Query("error", ""); errCode != "" {
		return ctx.Redirect(appendQueryParam(c.config.ErrorRedirect, "provider_error", errCode), http.StatusTemporaryRedirect)
	}

	code := ctx.Query("code", "")
	if code == "" {
		return ctx.Redirect(appendQueryParam(c.config.ErrorRedirect, "error", "missing_code"), http.StatusTemporaryRedirect)
	}

	profile, err := c.verifier.VerifyCallback(ctx.Context(), providerName, code)
	if err != nil {
		c.logger.Warn("provider verification failed", "provider", providerName, "error", err)
		return ctx.Redirect(appendQueryParam(c.config.ErrorRedirect, "error", "verification_failed"), http.StatusTemporaryRedirect)
	}

	result, err := c.bootstrapper.BeginBootstrap(ctx.Context(), *profile)
	if err != nil {
		return c.handleError(ctx, err)
	}

	c.setSessionCookie(ctx, result.SessionToken)

	if result.Shortcut {
		return ctx.Redirect(c.config.SuccessRedirect, http.StatusTemporaryRedirect)
	}

	return ctx.Redirect(appendQueryParam(c.config.ClaimRedirect, "token", result.BootstrapToken), http.StatusTemporaryRedirect)
}

// ClaimUsernamePayload is the claim request body.
type ClaimUsernamePayload struct {
	BootstrapToken string `json:"bootstrap_token"`
	Username       string `json:"username"`
}

// ClaimUsername performs the authoritative username claim.
func (c *HTTPController) ClaimUsername(ctx router.Context) error {
	payload := ClaimUsernamePayload{}
	if err := ctx.Bind(&payload); err != nil {
		return c.handleError(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "unable to parse claim payload").
			WithCode(goerrors.CodeBadRequest))
	}

	result, err := c.bootstrapper.ClaimUsername(ctx.Context(), payload.BootstrapToken, payload.Username)
	if err != nil {
		return c.handleError(ctx, err)
	}

	c.setSessionCookie(ctx, result.SessionToken)

	return ctx.JSON(http.StatusCreated, map[string]any{
		"success": true,
		"account": result.Account,
	})
}

// UsernameAvailable answers the advisory availability check. The answer is
// UI feedback only; submission still races through the claim insert.
func (c *HTTPController) UsernameAvailable(ctx router.Context) error {
	candidate := ctx.Query("username", "")

	available, err := c.bootstrapper.UsernameAvailable(ctx.Context(), candidate)
	if err != nil {
		if hasTextCode(err, TextCodeInvalidUsername) {
			return ctx.JSON(http.StatusOK, map[string]any{
				"available": false,
				"reason":    ErrInvalidUsername.Message,
			})
		}
		return c.handleError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"available": available,
	})
}

// Register handles direct credential sign-up.
func (c *HTTPController) Register(ctx router.Context) error {
	if c.registrar == nil {
		return ctx.JSON(http.StatusNotFound, map[string]any{
			"success": false,
			"error":   "registration disabled",
		})
	}

	msg := RegisterAccountMessage{}
	if err := ctx.Bind(&msg); err != nil {
		return c.handleError(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "unable to parse registration payload").
			WithCode(goerrors.CodeBadRequest))
	}

	account, err := c.registrar.Execute(ctx.Context(), msg)
	if err != nil {
		return c.handleError(ctx, err)
	}

	return ctx.JSON(http.StatusCreated, map[string]any{
		"success": true,
		"account": account,
	})
}

func (c *HTTPController) setSessionCookie(ctx router.Context, token string) {
	if token == "" {
		return
	}

	ctx.Cookie(&router.Cookie{
		Name:     c.config.CookieName,
		Value:    token,
		Path:     "/",
		Secure:   c.config.CookieSecure,
		HTTPOnly: true,
		SameSite: c.config.CookieSameSite,
	})
}

func (c *HTTPController) handleError(ctx router.Context, err error) error {
	if c.config.ErrorHandler != nil {
		return c.config.ErrorHandler(ctx, err)
	}

	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "unexpected error").
			WithCode(goerrors.CodeInternal)
	}

	c.logger.Info(
		"Bootstrap error handler",
		"error", richErr.Message,
		"category", richErr.Category,
		"details", print.MaybePrettyJSON(richErr.Metadata),
	)

	status := richErr.Code
	if status == 0 {
		status = http.StatusInternalServerError
	}

	return ctx.JSON(status, map[string]any{
		"success": false,
		"error":   richErr.Message,
		"code":    richErr.TextCode,
	})
}

func appendQueryParam(rawURL, key, value string) string {
	if rawURL == "" {
		return ""
	}

	parsed, err := url.Parse(rawURL)
	if err == nil {
		query := parsed.Query()
		query.Set(key, value)
		parsed.RawQuery = query.Encode()
		return parsed.String()
	}

	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + url.QueryEscape(key) + "=" + url.QueryEscape(value)
}
