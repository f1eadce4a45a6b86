// Package bot is the presentation layer of the dorama bot. It turns inbound
// transport updates into commands, applies the subscription gate, renders
// menus and keyboards, and hands work to the delivery pipeline, the
// broadcast coordinator and the request ledger.
//
// Plain text from a user is routed by a fixed rule: a pending settings
// input wins, then an admin's pending broadcast, then the reply keyboard
// buttons, and finally catalog search.
package bot
