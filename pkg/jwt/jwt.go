package jwt

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/transport-saas-ms/console/pkg/errors"
)

// Claims is the subset of the access token claim set the console reads.
// The signature is never verified here; the server remains the authority.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

// Decode splits the token into its three segments, base64url-decodes the
// payload and parses it as a JSON object. The signature segment is ignored.
func Decode(tokenString string) (*Claims, error) {
	if strings.Count(tokenString, ".") != 2 {
		return nil, apperrors.Wrap(apperrors.ErrTokenInvalid, "token must have three segments")
	}

	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrTokenInvalid, err.Error())
	}
	return claims, nil
}

// ExpiresAt returns the exp claim. A token without exp is an error.
func ExpiresAt(tokenString string) (time.Time, error) {
	claims, err := Decode(tokenString)
	if err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, apperrors.Wrap(apperrors.ErrTokenInvalid, "missing exp claim")
	}
	return claims.ExpiresAt.Time, nil
}

// IsExpired reports whether the token is expired at now: exp < now, compared
// in whole seconds, with no grace period. Any decoding failure counts as expired.
func IsExpired(tokenString string, now time.Time) bool {
	exp, err := ExpiresAt(tokenString)
	if err != nil {
		return true
	}
	return exp.Unix() < now.Unix()
}

// Sign mints an HS256 token for the given claims. Only the development API
// stand-in and tests issue tokens; the console itself never signs anything.
func Sign(claims Claims, secret []byte) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", apperrors.Wrap(err, "failed to sign token")
	}
	return signed, nil
}

// NewClaims builds claims for subject expiring at exp.
func NewClaims(subject, email, role string, issuedAt, exp time.Time) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Email: email,
		Role:  role,
	}
}

// Verify parses and checks an HS256 token. It backs the development API
// stand-in only.
func Verify(tokenString string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.ErrTokenExpired
		}
		return nil, apperrors.Wrap(apperrors.ErrTokenInvalid, err.Error())
	}
	return claims, nil
}
