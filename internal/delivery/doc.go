// Package delivery streams catalog episodes to a chat.
//
// SendOne pushes a single episode and bumps its view counter on success.
// SendAll announces the title, then sends every episode in ascending order
// with a pacer wait before each one, and finally reports how many arrived.
// Individual send failures are logged and counted; they never abort the run.
package delivery
