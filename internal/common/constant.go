// Package common contains shared constants, sentinel errors and small helpers
// used across the gatekeeper server.
package common

// AccessTokenCookieName is the cookie that may carry a session token on
// browser requests; it is cleared on logout.
const AccessTokenCookieName = "access_token"

// AuthorizationHeaderName carries "Bearer <token>" on API requests.
const AuthorizationHeaderName = "Authorization"
