package jwt

import "github.com/golang-jwt/jwt"

// Payload defines the JWT claims issued to an authenticated user.
// It binds a credential to one user identity; everything else about the user is
// looked up from the user store on each request.
type Payload struct {
	// StandardClaims embeds Exp, Iat and Iss.
	jwt.StandardClaims

	// ID is the user's id.
	ID string `json:"id"`

	// Username is informational; the store remains authoritative.
	Username string `json:"username"`
}
