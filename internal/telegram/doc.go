// Package telegram adapts the go-telegram/bot SDK to the transport
// contracts: outbound sends and edits, callback answers, live membership
// lookups and inbound updates via long polling or webhook payloads.
//
// Rate limits (HTTP 429), 5xx responses and failed round trips are retried
// with the server's retry_after hint or exponential backoff. Other API
// failures surface as *APIError so callers can classify them through
// ErrorKind.
package telegram
