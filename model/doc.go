// Package model defines the quantized model transport object and the stable
// boundary types used by the HTTP API and CLI.
//
// A QuantizedModel is immutable once validated. Its identity for storage is
// the CID of its canonical JSON bytes; its identity on chain is the object id
// returned by the upload transaction, which this package does not track.
package model
