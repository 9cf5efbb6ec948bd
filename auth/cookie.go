package auth

import (
	"net/http"
	"time"
)

// CookieName is the transport carrier of the session credential.
const CookieName = "jwt"

// CookieOptions defines how credential cookies are issued.
type CookieOptions struct {
	Secure bool
	Domain string
}

// CredentialCookie builds the cookie carrying c.
// MaxAge is reset to the full validity window on every call.
func CredentialCookie(c Credential, opts CookieOptions) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    c.Token,
		Path:     "/",
		Domain:   opts.Domain,
		MaxAge:   int(CredentialValidity / time.Second),
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: http.SameSiteStrictMode,
	}
}

// SetCredentialCookie hands the credential to the client.
func SetCredentialCookie(w http.ResponseWriter, c Credential, opts CookieOptions) {
	http.SetCookie(w, CredentialCookie(c, opts))
}

// ClearCredentialCookie removes the credential on the client side.
// There is no server-side revocation.
func ClearCredentialCookie(w http.ResponseWriter, opts CookieOptions) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		Domain:   opts.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// CredentialFromRequest returns the raw token carried by the request, or "".
func CredentialFromRequest(r *http.Request) string {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}
