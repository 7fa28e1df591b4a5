package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

// ErrInvalidToken covers every verification failure: bad signature, expired,
// wrong issuer, wrong token use, missing user. Callers abort the triggering
// operation without any state mutation.
var ErrInvalidToken = errors.New("auth: invalid token")

// Identity is the result of verifying an inbound credential.
type Identity struct {
	UserID string
	Valid  bool
}

// Verifier authenticates an inbound credential and resolves the user behind it.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

type accessTokenClaims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
	TokenUse string `json:"token_use"`
}

// JWKSVerifier validates access tokens against the identity provider's JWKS
// endpoint. The key cache is fetched once per process and refreshed in the
// background; it is passed by reference into every consumer, no ambient
// globals.
type JWKSVerifier struct {
	jwks   *keyfunc.JWKS
	issuer string
	log    zerolog.Logger
}

// NewJWKSVerifier fetches the JWKS and starts its refresh loop. The identity
// provider may still be starting, so the initial fetch retries.
func NewJWKSVerifier(jwksURL, issuer string, log zerolog.Logger) (*JWKSVerifier, error) {
	var jwks *keyfunc.JWKS
	var err error
	for attempt := 1; attempt <= 10; attempt++ {
		jwks, err = keyfunc.Get(jwksURL, keyfunc.Options{
			Ctx:               context.Background(),
			RefreshInterval:   5 * time.Minute,
			RefreshRateLimit:  time.Minute,
			RefreshUnknownKID: true,
			RefreshErrorHandler: func(err error) {
				log.Error().Err(err).Msg("JWKS refresh failed")
			},
		})
		if err == nil {
			break
		}
		log.Info().Int("attempt", attempt).Err(err).Msg("waiting for JWKS endpoint")
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching JWKS after retries: %w", err)
	}

	log.Info().Str("jwks_url", jwksURL).Msg("JWKS key cache loaded")
	return &JWKSVerifier{jwks: jwks, issuer: issuer, log: log}, nil
}

// Verify parses and validates an access token, returning the identity it
// asserts.
func (v *JWKSVerifier) Verify(ctx context.Context, tokenString string) (Identity, error) {
	claims := &accessTokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, v.jwks.Keyfunc,
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return Identity{}, ErrInvalidToken
	}
	if claims.TokenUse != "access" {
		return Identity{}, fmt.Errorf("%w: token_use is not access", ErrInvalidToken)
	}
	identity := identityFromClaims(claims)
	if !identity.Valid {
		return Identity{}, fmt.Errorf("%w: no user in claims", ErrInvalidToken)
	}
	return identity, nil
}

// Close stops the JWKS background refresh goroutine.
func (v *JWKSVerifier) Close() {
	v.jwks.EndBackground()
}

func identityFromClaims(claims *accessTokenClaims) Identity {
	userID := claims.Username
	if userID == "" {
		userID = claims.Subject
	}
	return Identity{UserID: userID, Valid: userID != ""}
}
