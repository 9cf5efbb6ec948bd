package auth

import (
	"chat-presence/errors"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang-jwt/jwt/v5"
)

const (
	// CredentialValidity is the lifetime of every issued credential.
	CredentialValidity = 7 * 24 * time.Hour
	// RenewalThreshold is the remaining validity at which a credential gets reissued.
	RenewalThreshold = time.Hour

	issuerName = "chat-presence"
)

// Claims defines the structure of the data stored inside the JWT.
type Claims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// Credential is an issued, signed session token and the values it carries.
// It is immutable once issued.
type Credential struct {
	Token      string
	IdentityID string
	IssuedAt   time.Time
	ExpiresAt  time.Time
}

// Remaining returns how long the credential stays valid after now.
func (c Credential) Remaining(now time.Time) time.Duration {
	return c.ExpiresAt.Sub(now)
}

// Issuer mints and verifies HMAC-signed credentials.
// It holds no mutable state, so it is safe for concurrent use.
type Issuer struct {
	log    *slog.Logger
	secret []byte
	clock  clock.Clock
	parser *jwt.Parser
}

func NewIssuer(log *slog.Logger, secret []byte, clk clock.Clock) *Issuer {
	if clk == nil {
		clk = clock.New()
	}
	return &Issuer{
		log:    log,
		secret: secret,
		clock:  clk,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithTimeFunc(clk.Now),
			jwt.WithExpirationRequired(),
		),
	}
}

// Issue creates a signed credential valid for CredentialValidity from now.
func (i *Issuer) Issue(identityID string) (Credential, error) {
	return i.issueAt(identityID, i.clock.Now())
}

func (i *Issuer) issueAt(identityID string, now time.Time) (Credential, error) {
	if identityID == "" {
		return Credential{}, fmt.Errorf("%w: empty identity", errors.ErrTokenGeneration)
	}
	// NumericDate has a one second precision, keep the returned values aligned with the token.
	issuedAt := now.Truncate(time.Second)
	expiresAt := issuedAt.Add(CredentialValidity)

	claims := &Claims{
		UserID: identityID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			Issuer:    issuerName,
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return Credential{}, fmt.Errorf("%w: %v", errors.ErrTokenGeneration, err)
	}
	return Credential{
		Token:      token,
		IdentityID: identityID,
		IssuedAt:   issuedAt,
		ExpiresAt:  expiresAt,
	}, nil
}

// Verify checks the signature first and the expiry second.
// It fails with ErrMalformedCredential, ErrInvalidSignature or ErrCredentialExpired.
func (i *Issuer) Verify(token string) (Credential, error) {
	claims := &Claims{}
	_, err := i.parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return i.secret, nil
	})
	if err != nil {
		return Credential{}, classify(err)
	}

	if claims.UserID == "" || claims.IssuedAt == nil {
		return Credential{}, fmt.Errorf("%w: missing claims", errors.ErrMalformedCredential)
	}
	if !claims.ExpiresAt.After(claims.IssuedAt.Time) {
		return Credential{}, fmt.Errorf("%w: expiry before issuance", errors.ErrMalformedCredential)
	}

	return Credential{
		Token:      token,
		IdentityID: claims.UserID,
		IssuedAt:   claims.IssuedAt.Time,
		ExpiresAt:  claims.ExpiresAt.Time,
	}, nil
}

func classify(err error) error {
	switch {
	case stderrors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", errors.ErrMalformedCredential, err)
	case stderrors.Is(err, jwt.ErrTokenSignatureInvalid),
		stderrors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", errors.ErrInvalidSignature, err)
	case stderrors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", errors.ErrCredentialExpired, err)
	default:
		// Not-yet-valid tokens and missing required claims land here.
		return fmt.Errorf("%w: %v", errors.ErrMalformedCredential, err)
	}
}

// Renew is the renewal policy: a credential with at most RenewalThreshold
// left at now is reissued for the same identity with a full validity window.
// Otherwise the input is returned unchanged and renewed is false.
// Token times have a one second precision: the window starts at now truncated
// to the second, so it may end up to one second before now + CredentialValidity.
func (i *Issuer) Renew(c Credential, now time.Time) (renewed Credential, ok bool, err error) {
	remaining := c.Remaining(now)
	if remaining > RenewalThreshold || remaining <= 0 {
		return c, false, nil
	}
	fresh, err := i.issueAt(c.IdentityID, now)
	if err != nil {
		return c, false, err
	}
	return fresh, true, nil
}

// RenewIfNearExpiry applies Renew at the current time. A failed renewal is
// logged and the original credential keeps being honored until it expires.
func (i *Issuer) RenewIfNearExpiry(c Credential) (Credential, bool) {
	fresh, ok, err := i.Renew(c, i.clock.Now())
	if err != nil {
		i.log.Warn("Credential renewal failed, keeping current one",
			"user_id", c.IdentityID, "error", err)
		return c, false
	}
	return fresh, ok
}
