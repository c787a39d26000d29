// Package inference runs quantized models on chain.
//
// A prediction is one programmable transaction holding one
// predict_layer_partial call per output neuron of every layer. Calls are
// chained: within a layer each call extends the accumulator returned by the
// previous call, and the first call of a layer reads the completed output of
// the layer before it. The terminal PredictionCompleted event carries the
// result.
//
// Plan computes the call sequence without touching the network, Build turns
// it into Move calls, and Client submits the transaction and decodes the
// emitted events.
package inference
