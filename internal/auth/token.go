package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken indicates the identity token could not be read.
var ErrInvalidToken = errors.New("invalid identity token")

// ParseToken reads the claims of an identity provider token without verifying
// its signature. The user id comes from "user_id", falling back to "sub".
func ParseToken(token string) (Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Session{}, ErrInvalidToken
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	userID, _ := claims["user_id"].(string)
	if userID == "" {
		sub, err := claims.GetSubject()
		if err != nil {
			return Session{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
		userID = sub
	}
	if userID == "" {
		return Session{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	session := Session{UserID: userID, Token: token}
	if email, ok := claims["email"].(string); ok {
		session.Email = email
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if exp != nil {
		session.ExpiresAt = exp.Time
	}

	return session, nil
}
