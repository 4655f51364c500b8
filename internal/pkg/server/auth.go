package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const subjectContextKey = "subject"

// ErrMissingSubject is returned when no authenticated subject is attached to the request
var ErrMissingSubject = errors.New("subject not found in context")

// BearerAuth validates HS256 bearer tokens signed with secret and stores the
// token subject on the echo context.
func BearerAuth(secret []byte) echo.MiddlewareFunc {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				return ErrorResponse(c, http.StatusUnauthorized, nil, "Missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
				return ErrorResponse(c, http.StatusUnauthorized, nil, "Invalid authorization header format")
			}

			claims := &jwt.RegisteredClaims{}
			token, err := parser.ParseWithClaims(parts[1], claims, func(*jwt.Token) (interface{}, error) {
				return secret, nil
			})
			if err != nil || !token.Valid {
				return ErrorResponse(c, http.StatusUnauthorized, errString(err), "Invalid or expired token")
			}

			c.Set(subjectContextKey, claims.Subject)
			return next(c)
		}
	}
}

// IssueToken signs a token for subject. Used by operators and tests.
func IssueToken(secret []byte, subject string, claims jwt.RegisteredClaims) (string, error) {
	claims.Subject = subject
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// SubjectFromContext returns the authenticated subject
func SubjectFromContext(c echo.Context) (string, error) {
	subject, ok := c.Get(subjectContextKey).(string)
	if !ok {
		return "", ErrMissingSubject
	}
	return subject, nil
}

func errString(err error) interface{} {
	if err == nil {
		return nil
	}
	return err.Error()
}
