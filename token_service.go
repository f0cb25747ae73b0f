package gate

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
)

// TokenServiceImpl implements the TokenService interface using HS256 JWTs.
type TokenServiceImpl struct {
	signingKey      []byte
	tokenExpiration int
	issuer          string
	audience        jwt.ClaimStrings
	logger          Logger
}

// NewTokenService creates a new TokenService instance. tokenExpiration is
// expressed in hours.
func NewTokenService(signingKey []byte, tokenExpiration int, issuer string, audience jwt.ClaimStrings, logger Logger) TokenService {
	if logger == nil {
		logger = defLogger{}
	}
	return &TokenServiceImpl{
		signingKey:      signingKey,
		tokenExpiration: tokenExpiration,
		issuer:          issuer,
		audience:        audience,
		logger:          logger,
	}
}

// Issue creates a session token embedding a read-only copy of the role set.
func (ts *TokenServiceImpl) Issue(accountID string, roles []Role) (string, error) {
	if accountID == "" {
		return "", errors.New("account id must not be empty", errors.CategoryBadInput)
	}

	claims := ts.newClaims(accountID)
	claims.Roles = append([]Role(nil), roles...)

	return ts.signClaims(claims)
}

// IssuePending creates a bootstrap-scoped session carrying no roles and the
// pending-username marker. The gateway uses the marker to force the
// username-claim surface.
func (ts *TokenServiceImpl) IssuePending(pendingID string) (string, error) {
	if pendingID == "" {
		return "", errors.New("pending id must not be empty", errors.CategoryBadInput)
	}

	claims := ts.newClaims(pendingID)
	claims.PendingUsername = true

	return ts.signClaims(claims)
}

// Reissue mints a brand-new token for an updated role set. Already issued
// tokens are never mutated; callers swap credentials explicitly.
func (ts *TokenServiceImpl) Reissue(accountID string, roles []Role) (string, error) {
	return ts.Issue(accountID, roles)
}

// Decode parses and validates a token string. Expired tokens yield
// ErrTokenExpired, anything unparseable ErrTokenMalformed; the gateway maps
// both to "no credential".
func (ts *TokenServiceImpl) Decode(tokenString string) (*SessionClaims, error) {
	parserOptions := make([]jwt.ParserOption, 0, 2)
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience...))
	}

	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("TokenService decode encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, errors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).WithTextCode(ErrTokenMalformed.TextCode)
	}

	if claims, ok := token.Claims.(*SessionClaims); ok && token.Valid {
		return claims, nil
	}

	ts.logger.Error("TokenService decode could not map claims")
	return nil, ErrTokenMalformed
}

func (ts *TokenServiceImpl) newClaims(subject string) *SessionClaims {
	now := time.Now()

	var aud jwt.ClaimStrings
	if len(ts.audience) > 0 {
		aud = make(jwt.ClaimStrings, len(ts.audience))
		copy(aud, ts.audience)
	}

	claims := &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   subject,
			Audience:  aud,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(ts.tokenExpiration) * time.Hour)),
		},
		UID: subject,
	}

	ensureTokenID(&claims.RegisteredClaims)

	return claims
}

func (ts *TokenServiceImpl) signClaims(claims *SessionClaims) (string, error) {
	if claims == nil {
		return "", errors.New("claims must not be nil", errors.CategoryInternal)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign session token")
	}

	return signedString, nil
}
