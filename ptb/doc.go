// Package ptb builds Sui programmable transactions: a list of inputs (pure
// BCS values and object references) and a list of Move calls whose
// arguments refer to inputs or to the results of earlier calls.
//
// A Builder is single-use and not safe for concurrent use. Finish returns an
// immutable ProgrammableTransaction, which TransactionData wraps together
// with the sender and gas payment for signing.
package ptb
