package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"khoomi-api-io/catalog/pkg/errs"
	"khoomi-api-io/catalog/pkg/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

const AccessTokenExpirationTime = time.Minute * 15

type JWTClaim struct {
	Id   string          `json:"id"`
	Role models.UserRole `json:"role"`
	jwt.RegisteredClaims
}

// Actor converts the claim into the caller identity used by the services.
func (j JWTClaim) Actor() models.Actor {
	return models.Actor{UserID: j.Id, Role: j.Role}
}

// Blacklist reports tokens revoked before their expiry.
type Blacklist interface {
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// TokenVerifier signs and validates HS256 bearer tokens.
type TokenVerifier struct {
	secret    []byte
	blacklist Blacklist
}

// NewTokenVerifier returns a verifier. blacklist may be nil.
func NewTokenVerifier(secret string, blacklist Blacklist) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret), blacklist: blacklist}
}

// GenerateJWT issues an access token carrying the user's role.
func (v *TokenVerifier) GenerateJWT(id string, role models.UserRole, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = AccessTokenExpirationTime
	}
	claims := JWTClaim{
		Id:   id,
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}

// Validate a signed jwt auth token, its expiration time and the revocation list.
func (v *TokenVerifier) ValidateToken(ctx context.Context, signedToken string) (JWTClaim, error) {
	token, err := jwt.ParseWithClaims(
		signedToken,
		&JWTClaim{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
			}
			return v.secret, nil
		},
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return JWTClaim{}, errors.Wrap(err, "invalid token")
	}

	claim, ok := token.Claims.(*JWTClaim)
	if !ok {
		return JWTClaim{}, errors.New("couldn't parse claims")
	}

	if v.blacklist != nil {
		revoked, err := v.blacklist.IsRevoked(ctx, signedToken)
		if err != nil {
			return JWTClaim{}, errs.Wrap(err, errs.StoreUnavailable, "check token blacklist")
		}
		if revoked {
			return JWTClaim{}, errors.New("token has been revoked, please login again")
		}
	}

	return *claim, nil
}

// ExtractBearerToken extracts the Bearer token from the Authorization header
func ExtractBearerToken(authHeader string) (string, error) {
	if authHeader == "" {
		return "", fmt.Errorf("authorization header is empty")
	}

	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", fmt.Errorf("authorization header does not start with 'Bearer '")
	}

	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", fmt.Errorf("token is empty")
	}

	return token, nil
}
