package identity

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"memorludo/internal/constants"
	"memorludo/internal/util"
)

// Identity is what the login widget supplies. An anonymous visitor gets the
// zero value with IsLoggedIn false.
type Identity struct {
	IsLoggedIn  bool   `json:"isLoggedIn"`
	UserID      string `json:"userId,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	Email       string `json:"email,omitempty"`
}

// Provider consumes the external identity widget's HMAC-signed token from a
// cookie. The widget itself (login flow, UI) is not this server's concern.
type Provider struct {
	secret       []byte
	cookieMaxAge time.Duration
	isProduction bool
}

func NewProvider(secret string, cookieMaxAge time.Duration, isProduction bool) *Provider {
	return &Provider{secret: []byte(secret), cookieMaxAge: cookieMaxAge, isProduction: isProduction}
}

type claims struct {
	DisplayName string `json:"name"`
	Email       string `json:"email"`
	jwt.RegisteredClaims
}

// Current returns the identity carried by the request, or an anonymous one
// when the token is absent, expired or tampered with. Bad tokens are logged
// and treated as logged out, never as errors.
func (p *Provider) Current(c *gin.Context) Identity {
	raw, err := c.Cookie(constants.IdentityCookieName)
	if err != nil || raw == "" {
		return Identity{}
	}

	var cl claims
	token, err := jwt.ParseWithClaims(raw, &cl, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return p.secret, nil
	})
	if err != nil || !token.Valid || cl.Subject == "" {
		util.LogWarn("Rejecting invalid identity token: %v", err)
		return Identity{}
	}

	return Identity{
		IsLoggedIn:  true,
		UserID:      cl.Subject,
		DisplayName: cl.DisplayName,
		Email:       cl.Email,
	}
}

// Issue mints a token for an authenticated user. Exists for the login
// callback and for tests.
func (p *Provider) Issue(userID, displayName, email string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		DisplayName: displayName,
		Email:       email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.cookieMaxAge)),
		},
	})
	return token.SignedString(p.secret)
}

// SignOut clears the identity cookie.
func (p *Provider) SignOut(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(constants.IdentityCookieName, "", -1, "/", "", p.isProduction, true)
}
