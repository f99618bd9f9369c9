package token

import (
	"fmt"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the access token payload shared by the issuer and every consumer.
// Wire form: {"sub": "<decimal id>", "email": "...", "name": "..."|null,
// "admin": bool, "iss": "...", "iat": <unix>, "exp": <unix>}.
type Claims struct {
	Email string  `json:"email"`
	Name  *string `json:"name"`
	Admin bool    `json:"admin"`
	jwt.RegisteredClaims
}

// SubjectID parses the decimal sub claim.
func (c *Claims) SubjectID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("sub %q is not a decimal id: %w", c.Subject, err)
	}
	return id, nil
}

// Subject is the identity an access token is minted for.
type Subject struct {
	ID    int64
	Email string
	Name  *string
	Admin bool
}
