// Package transport defines the messaging contract the bot core depends on:
// outbound payloads, the Sender and MembershipChecker interfaces, member
// statuses, and the inbound update envelope produced by a transport adapter.
//
// The Telegram adapter lives in internal/telegram; tests use the scriptable
// fake in internal/testsupport.
package transport
