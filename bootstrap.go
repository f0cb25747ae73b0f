package gate

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// BootstrapState labels where a sign-in flow sits between "a provider
// vouched for this email" and "a fully provisioned account".
type BootstrapState string

const (
	StateAnonymous              BootstrapState = "anonymous"
	StateExternalAuthenticated  BootstrapState = "external-authenticated"
	StatePendingIdentityCreated BootstrapState = "pending-identity-created"
	StatePendingIdentityExpired BootstrapState = "pending-identity-expired"
	StateAccountActive          BootstrapState = "account-active"
)

// DefaultBootstrapTTL bounds how long a pending identity may wait for its
// username claim.
const DefaultBootstrapTTL = 30 * time.Minute

var usernamePattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// BootstrapResult is the outcome of BeginBootstrap. Shortcut means the email
// already had an account and no pending identity was created.
type BootstrapResult struct {
	State          BootstrapState `json:"state"`
	Shortcut       bool           `json:"shortcut"`
	BootstrapToken string         `json:"bootstrap_token,omitempty"`
	SessionToken   string         `json:"-"`
	Account        *Account       `json:"account,omitempty"`
}

// ClaimResult is the outcome of a successful username claim.
type ClaimResult struct {
	Account      *Account `json:"account"`
	SessionToken string   `json:"-"`
}

// Bootstrapper orchestrates provider callback, pending record, username
// claim, and account creation. It is stateless; every invariant it relies on
// lives in the stores.
type Bootstrapper struct {
	repos  RepositoryManager
	tokens TokenService
	ttl    time.Duration
	logger Logger
	now    func() time.Time
}

// BootstrapperOption customizes the bootstrapper.
type BootstrapperOption func(*Bootstrapper)

// WithBootstrapTTL overrides the pending identity time-to-live.
func WithBootstrapTTL(ttl time.Duration) BootstrapperOption {
	return func(b *Bootstrapper) {
		if ttl > 0 {
			b.ttl = ttl
		}
	}
}

// WithBootstrapLogger overrides the logger.
func WithBootstrapLogger(logger Logger) BootstrapperOption {
	return func(b *Bootstrapper) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithBootstrapClock injects a custom clock (useful for tests).
func WithBootstrapClock(clock func() time.Time) BootstrapperOption {
	return func(b *Bootstrapper) {
		if clock != nil {
			b.now = clock
		}
	}
}

// NewBootstrapper wires the state machine to its stores and token codec.
func NewBootstrapper(repos RepositoryManager, tokens TokenService, opts ...BootstrapperOption) *Bootstrapper {
	b := &Bootstrapper{
		repos:  repos,
		tokens: tokens,
		ttl:    DefaultBootstrapTTL,
		logger: defLogger{},
		now:    time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}

	return b
}

// BeginBootstrap handles a provider-confirmed sign-in. An email with an
// existing account takes the shortcut straight to an active session; a new
// email gets a pending identity whose creation invalidates any prior
// pending record and bootstrap token for that email outright.
func (b *Bootstrapper) BeginBootstrap(ctx context.Context, profile ExternalProfile) (*BootstrapResult, error) {
	if err := validateProfile(profile); err != nil {
		return nil, err
	}

	account, err := b.repos.Accounts().GetByEmail(ctx, profile.Email)
	if err == nil {
		token, err := b.tokens.Issue(account.ID.String(), account.Roles)
		if err != nil {
			return nil, err
		}

		b.logger.Info("bootstrap shortcut for existing account", "provider", profile.Provider, "account_id", account.ID)

		return &BootstrapResult{
			State:        StateAccountActive,
			Shortcut:     true,
			SessionToken: token,
			Account:      account,
		}, nil
	}

	if !repository.IsRecordNotFound(err) {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "account lookup failed")
	}

	pending := &PendingIdentity{
		Email:       profile.Email,
		Provider:    profile.Provider,
		ProviderID:  profile.ProviderID,
		DisplayName: profile.DisplayName,
		AvatarURL:   profile.AvatarURL,
		Token:       newBootstrapToken(),
		ExpiresAt:   b.now().Add(b.ttl),
	}

	pending, err = b.repos.PendingIdentities().Replace(ctx, pending)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store pending identity")
	}

	sessionToken, err := b.tokens.IssuePending(pending.ID.String())
	if err != nil {
		return nil, err
	}

	b.logger.Info("pending identity created", "provider", profile.Provider, "pending_id", pending.ID)

	return &BootstrapResult{
		State:          StatePendingIdentityCreated,
		Shortcut:       false,
		BootstrapToken: pending.Token,
		SessionToken:   sessionToken,
	}, nil
}

// ClaimUsername is the authoritative half of username arbitration. The
// pending identity is consumed and the account inserted in one transaction,
// so a lost uniqueness race rolls everything back: the pending record
// survives and the caller retries with another name. Exactly one account is
// ever created per successful claim.
func (b *Bootstrapper) ClaimUsername(ctx context.Context, bootstrapToken, username string) (*ClaimResult, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}

	// hashed outside the transaction; cost 14 is too slow to hold a tx open
	placeholderHash := RandomPasswordHash()

	var account *Account
	err := b.repos.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		pending, err := b.repos.PendingIdentities().ConsumeTx(ctx, tx, bootstrapToken)
		if err != nil {
			return err
		}

		if pending.Expired(b.now()) {
			// rolling back leaves the row for the purge sweep; it is
			// already unusable
			return ErrBootstrapExpired
		}

		account = &Account{
			Username:     username,
			Email:        pending.Email,
			DisplayName:  pending.DisplayName,
			AvatarURL:    pending.AvatarURL,
			Roles:        []Role{RoleUser},
			PasswordHash: placeholderHash,
		}

		account, err = b.repos.Accounts().RegisterTx(ctx, tx, account)
		return err
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "username claim transaction failed")
	}

	sessionToken, err := b.tokens.Issue(account.ID.String(), account.Roles)
	if err != nil {
		return nil, err
	}

	b.logger.Info("username claimed", "account_id", account.ID, "username", username)

	return &ClaimResult{
		Account:      account,
		SessionToken: sessionToken,
	}, nil
}

// UsernameAvailable is the advisory check backing live form feedback. It is
// intentionally racy and never a reservation; only the claim-time insert is
// authoritative.
func (b *Bootstrapper) UsernameAvailable(ctx context.Context, username string) (bool, error) {
	if err := ValidateUsername(username); err != nil {
		return false, err
	}

	taken, err := b.repos.Accounts().UsernameTaken(ctx, username)
	if err != nil {
		return false, err
	}

	return !taken, nil
}

// StateOf reports where a bootstrap token currently sits, for diagnostics
// and UI messaging.
func (b *Bootstrapper) StateOf(ctx context.Context, bootstrapToken string) BootstrapState {
	pending, err := b.repos.PendingIdentities().GetByToken(ctx, bootstrapToken)
	if err != nil {
		return StateAnonymous
	}

	if pending.Expired(b.now()) {
		return StatePendingIdentityExpired
	}

	return StatePendingIdentityCreated
}

// ValidateUsername enforces the username shape: 3-30 chars of lowercase
// letters, digits, underscore.
func ValidateUsername(username string) error {
	err := validation.Validate(username,
		validation.Required,
		validation.Length(3, 30),
		validation.Match(usernamePattern),
	)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, ErrInvalidUsername.Message).
			WithTextCode(ErrInvalidUsername.TextCode).
			WithCode(goerrors.CodeBadRequest).
			WithMetadata(map[string]any{
				"username": username,
			})
	}
	return nil
}

func validateProfile(profile ExternalProfile) error {
	err := validation.Errors{
		"email":       validation.Validate(profile.Email, validation.Required, is.Email),
		"provider":    validation.Validate(profile.Provider, validation.Required),
		"provider_id": validation.Validate(profile.ProviderID, validation.Required),
	}.Filter()

	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid external profile").
			WithCode(goerrors.CodeBadRequest)
	}
	return nil
}

func newBootstrapToken() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

func newNonce() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)
}
