// Package api implements the HTTP REST API and WebSocket server for bleflow.
//
// This package provides:
//   - REST endpoints that drive configuration flows (start, configure, ignore, abort)
//   - Read access to config entries, flow history and the discovery cache
//   - WebSocket hub pushing flow and discovery events
//   - JWT authentication with ticket-based WebSocket auth
//   - Middleware stack (request ID, logging, recovery, CORS)
//
// # Security
//
// A single operator account from configuration logs in for a JWT. WebSocket
// connections use single-use tickets so the token never appears in a URL.
//
// # Graceful Degradation
//
// MQTT and flow history are optional. Without them the server still runs
// flows; only the related metrics and history queries are unavailable.
package api
