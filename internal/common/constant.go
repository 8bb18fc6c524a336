// Package common contains shared constants and sentinel errors used across
// ecomarket components.
package common

// AuthorizationHeaderName is the HTTP header carrying the bearer token.
const AuthorizationHeaderName = "Authorization"

// BearerScheme is the authorization scheme expected in front of the token.
const BearerScheme = "Bearer"

// AuthorityPrefix is carried by every granted authority string.
const AuthorityPrefix = "ROLE_"

// Built-in role names.
const (
	RoleUser  = "ROLE_USER"
	RoleAdmin = "ROLE_ADMIN"
)
