// Package keys stores the Ed25519 seeds used to sign Sui transactions.
//
// Seeds live as hex files under a directory, one folder per key name:
//
//	<dir>/<name>/root.key
//	<dir>/<name>/roles/<role>.key
//
// Role keys are derived deterministically from the root seed, so a role
// address can be recreated from the root key alone.
package keys
