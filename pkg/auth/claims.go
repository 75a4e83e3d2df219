package auth

import "github.com/golang-jwt/jwt/v5"

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID        string
	DestinationID string
}

// AccessTokenClaims represents the typed JWT presented by signed-in shoppers.
// DestinationID is the shopper's default delivery address, if they have one.
type AccessTokenClaims struct {
	UserID        string `json:"user_id"`
	DestinationID string `json:"destination_id,omitempty"`
	jwt.RegisteredClaims
}
