// Package sui is a small Sui client: account and object identifiers,
// Ed25519 transaction signing, and the JSON-RPC methods needed to execute
// programmable transactions and read their effects and events.
//
// Read-only calls are retried on transport failures. Transaction submission
// is never retried: a second submission is a second billable transaction.
package sui
