// Package auth provides optional JWT authentication for the
// client-facing API.
//
// Tokens are HS256-signed with a shared secret from configuration.
// Middleware accepts them as a bearer header or, for websocket upgrade
// requests where browsers cannot set headers, as a "token" query
// parameter. When no secret is configured the middleware passes every
// request through untouched.
package auth
