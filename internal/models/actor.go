package models

import "github.com/golang-jwt/jwt/v5"

// Actor identifies who triggered a pipeline call. It is passed explicitly
// into every service method.
type Actor struct {
	UserID string `json:"userId"`
	Email  string `json:"email,omitempty"`
}

// UserIDPtr returns nil for anonymous/system actors.
func (a Actor) UserIDPtr() *string {
	if a.UserID == "" {
		return nil
	}
	id := a.UserID
	return &id
}

// SystemActor is used by CLI jobs and scheduled reconciliation.
var SystemActor = Actor{}

// JWTClaims is the payload of tokens issued by the external auth service.
type JWTClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// Actor converts validated claims into an Actor.
func (c *JWTClaims) Actor() Actor {
	if c == nil {
		return SystemActor
	}
	id := c.UserID
	if id == "" {
		id = c.Subject
	}
	return Actor{UserID: id, Email: c.Email}
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
