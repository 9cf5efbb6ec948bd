package auth

import (
	"chat-presence/contract"
	"chat-presence/domain"
	"chat-presence/errors"
	"chat-presence/observability"
	"context"
	stderrors "errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// unexported, collision-proof context keys
type identityContextKey struct{}
type credentialContextKey struct{}

// WithIdentity returns a copy of ctx carrying the authenticated identity.
func WithIdentity(ctx context.Context, identity domain.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, identity)
}

// IdentityFromContext extracts the identity attached by the gate.
func IdentityFromContext(ctx context.Context) (domain.Identity, bool) {
	identity, ok := ctx.Value(identityContextKey{}).(domain.Identity)
	return identity, ok
}

func withCredential(ctx context.Context, c Credential) context.Context {
	return context.WithValue(ctx, credentialContextKey{}, c)
}

// CredentialFromContext returns the verified credential of the request.
func CredentialFromContext(ctx context.Context) (Credential, bool) {
	c, ok := ctx.Value(credentialContextKey{}).(Credential)
	return c, ok
}

// Gate authenticates requests carrying a credential cookie.
// It never mutates shared state.
type Gate struct {
	log        *slog.Logger
	issuer     *Issuer
	identities contract.IdentityStore
	cookie     CookieOptions
	metrics    *observability.Metrics
}

func NewGate(log *slog.Logger, issuer *Issuer, identities contract.IdentityStore,
	cookie CookieOptions, metrics *observability.Metrics) *Gate {
	return &Gate{log: log, issuer: issuer, identities: identities, cookie: cookie, metrics: metrics}
}

// Authenticate verifies the token and resolves its identity.
// Every authentication failure is an *errors.UnauthenticatedError.
func (g *Gate) Authenticate(ctx context.Context, token string) (domain.Identity, Credential, error) {
	if token == "" {
		return domain.Identity{}, Credential{}, errors.Unauthenticated(errors.ReasonMissing, nil)
	}

	credential, err := g.issuer.Verify(token)
	switch {
	case err == nil:
	case stderrors.Is(err, errors.ErrCredentialExpired):
		return domain.Identity{}, Credential{}, errors.Unauthenticated(errors.ReasonExpired, err)
	default:
		return domain.Identity{}, Credential{}, errors.Unauthenticated(errors.ReasonInvalid, err)
	}

	identity, err := g.identities.FindByID(ctx, credential.IdentityID)
	if err != nil {
		if stderrors.Is(err, errors.ErrIdentityNotFound) {
			return domain.Identity{}, Credential{}, errors.Unauthenticated(errors.ReasonIdentityNotFound, err)
		}
		return domain.Identity{}, Credential{}, err
	}
	return identity, credential, nil
}

// AuthenticateRequest runs the gate against the request cookie and returns a
// request whose context carries the identity.
func (g *Gate) AuthenticateRequest(r *http.Request) (*http.Request, domain.Identity, error) {
	identity, credential, err := g.Authenticate(r.Context(), CredentialFromRequest(r))
	if err != nil {
		return r, domain.Identity{}, err
	}
	ctx := withCredential(WithIdentity(r.Context(), identity), credential)
	return r.WithContext(ctx), identity, nil
}

// RequireAuth is the gin middleware guarding identity-scoped routes.
// A credential close to expiry is transparently reissued as a new cookie;
// renewal failures never fail the request.
func (g *Gate) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		r, _, err := g.AuthenticateRequest(c.Request)
		if err != nil {
			g.Reject(c, err)
			return
		}
		if fresh, renewed := g.Renew(r.Context()); renewed {
			SetCredentialCookie(c.Writer, fresh, g.cookie)
			r = r.WithContext(withCredential(r.Context(), fresh))
		}
		c.Request = r
		c.Next()
	}
}

// Reject aborts the request with the HTTP answer matching err.
func (g *Gate) Reject(c *gin.Context, err error) {
	reason, _ := errors.ReasonOf(err)
	g.log.Debug("Request rejected by session gate",
		"path", c.Request.URL.Path, "reason", reason, "error", err)
	httpErr := errors.MapToHTTPError(err)
	c.AbortWithStatusJSON(httpErr.Status, httpErr)
}

// Renew reissues the credential attached to ctx when it is near expiry.
func (g *Gate) Renew(ctx context.Context) (Credential, bool) {
	credential, ok := CredentialFromContext(ctx)
	if !ok {
		return Credential{}, false
	}
	fresh, renewed := g.issuer.RenewIfNearExpiry(credential)
	if renewed {
		g.metrics.CredentialRenewed()
		g.log.Debug("Credential renewed", "user_id", fresh.IdentityID, "expires_at", fresh.ExpiresAt)
	}
	return fresh, renewed
}

// Cookie returns the options used for every credential cookie.
func (g *Gate) Cookie() CookieOptions {
	return g.cookie
}
