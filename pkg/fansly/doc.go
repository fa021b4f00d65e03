// Package fansly is the authenticated client for the platform API.
//
// A Session carries the token, device id, session id and the monotonic
// client timestamp; every API request is signed with a cyrb53 check hash
// over the request path. The session id comes from a short websocket
// handshake and is refreshed once when the API rejects a request.
package fansly
