package session

import (
	"time"

	"portal/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// expiryLeeway refreshes slightly before the backend would reject the token.
const expiryLeeway = 30 * time.Second

// TokenFromPair converts a backend token pair into an oauth2.Token. The expiry is
// taken from the access token's exp claim when it is a JWT, otherwise from
// expires_in. The backend signs the token, so the signature is not checked here.
func TokenFromPair(pair domain.TokenPair, now time.Time) *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "Bearer",
	}

	if exp, ok := jwtExpiry(pair.AccessToken); ok {
		tok.Expiry = exp.Add(-expiryLeeway)
	} else if pair.ExpiresIn > 0 {
		tok.Expiry = now.Add(time.Duration(pair.ExpiresIn)*time.Second - expiryLeeway)
	}
	return tok
}

func jwtExpiry(raw string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
