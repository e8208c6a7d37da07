package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nurpe/staffing-timesheets/internal/model"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims are the access token claims issued by the agency backend.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type Parser struct {
	secret []byte
}

func NewParser(secret string) *Parser {
	return &Parser{secret: []byte(secret)}
}

// Parse verifies an HS256 access token and returns its principal. The raw
// token is kept so backend calls can be made on the user's behalf.
func (p *Parser) Parse(raw string) (model.Principal, error) {
	raw = strings.TrimSpace(raw)
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		return p.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return model.Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return model.Principal{}, ErrInvalidToken
	}

	if strings.TrimSpace(claims.Subject) == "" {
		return model.Principal{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	role := strings.ToUpper(strings.TrimSpace(claims.Role))
	switch role {
	case model.RoleAdmin, model.RoleOperator, model.RoleViewer:
	default:
		return model.Principal{}, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, claims.Role)
	}

	return model.Principal{
		UserID: claims.Subject,
		Role:   role,
		Token:  raw,
	}, nil
}
