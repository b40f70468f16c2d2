package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"ms-checkin/internal/models"
)

// ExtractTokenFromRequest pulls the bearer token out of the Authorization
// header.
func ExtractTokenFromRequest(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", errors.New("authorization header is missing")
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", errors.New("authorization header format must be 'Bearer {token}'")
	}

	return parts[1], nil
}

// OperatorFromJWT extracts the operator identity from an already-verified
// access token. Signature validation happens in the OIDC middleware; this is
// a claims read for callers that only hold the raw token.
func OperatorFromJWT(tokenString string) (models.Operator, error) {
	if tokenString == "" {
		return models.Operator{}, errors.New("empty token")
	}

	token, _, err := new(jwt.Parser).ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return models.Operator{}, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return models.Operator{}, errors.New("invalid token claims")
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return models.Operator{}, errors.New("subject claim not found in token")
	}

	operator := models.Operator{ID: sub}

	if realm, ok := claims["realm_access"].(map[string]interface{}); ok {
		if roles, ok := realm["roles"].([]interface{}); ok {
			for _, r := range roles {
				if s, ok := r.(string); ok {
					operator.Roles = append(operator.Roles, s)
				}
			}
		}
	}

	if eventRoles, ok := claims["event_roles"].(map[string]interface{}); ok {
		operator.EventRoles = make(map[string][]string, len(eventRoles))
		for eventID, raw := range eventRoles {
			roles, ok := raw.([]interface{})
			if !ok {
				continue
			}
			for _, r := range roles {
				if s, ok := r.(string); ok {
					operator.EventRoles[eventID] = append(operator.EventRoles[eventID], s)
				}
			}
		}
	}

	return operator, nil
}
