// Package auth guards the bleflow API.
//
// There is a single operator account taken from configuration. Logging in
// with it yields a short-lived HS256 JWT for the REST API; a WebSocket
// client trades that JWT for a single-use ticket so the token never appears
// in a URL. Passwords are stored as argon2id PHC strings.
package auth
