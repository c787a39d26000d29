// Package metrics sends counters and timings to a statsd agent. Until Init is
// called with an address every call is a no-op.
package metrics

import (
	"sync"
	"time"

	"github.com/DataDog/datadog-go/v5/statsd"
	"github.com/rs/zerolog/log"
)

const (
	ApiRequestCount    = "suiml.api.request_count"
	ApiRequestLatency  = "suiml.api.request_latency"
	RPCCallCount       = "suiml.rpc.call_count"
	PredictionCount    = "suiml.prediction.count"
	PredictionLatency  = "suiml.prediction.latency"
	PredictionCalls    = "suiml.prediction.calls"
	PredictionGasUsed  = "suiml.prediction.gas_used"
	UploadCount        = "suiml.upload.count"
	PredLogSent        = "suiml.predlog.sent"
	PredLogError       = "suiml.predlog.error"
	BlobStoreOperation = "suiml.blobstore.operation"
)

const (
	TagService    = "service"
	TagPath       = "path"
	TagMethod     = "method"
	TagStatusCode = "http_status_code"
	TagModelID    = "model_id"
	TagResult     = "result"
	TagErrorCode  = "error_code"
)

var (
	mu           sync.RWMutex
	client       statsd.ClientInterface = &statsd.NoOpClient{}
	samplingRate                        = 1.0
)

// Init points the package at the statsd agent at addr. An empty addr keeps
// the no-op client.
func Init(addr string, globalTags []string, rate float64) error {
	if addr == "" {
		return nil
	}
	c, err := statsd.New(addr, statsd.WithTags(globalTags))
	if err != nil {
		return err
	}
	mu.Lock()
	old := client
	client = c
	if rate > 0 && rate <= 1 {
		samplingRate = rate
	}
	mu.Unlock()
	_ = old.Close()
	log.Info().Str("addr", addr).Strs("tags", globalTags).Float64("sample_rate", samplingRate).Msg("metrics client initialized")
	return nil
}

// Close flushes and releases the client, reverting to the no-op client.
func Close() error {
	mu.Lock()
	c := client
	client = &statsd.NoOpClient{}
	mu.Unlock()
	return c.Close()
}

func current() (statsd.ClientInterface, float64) {
	mu.RLock()
	defer mu.RUnlock()
	return client, samplingRate
}

func Timing(name string, value time.Duration, tags []string) {
	c, rate := current()
	if err := c.Timing(name, value, tags, rate); err != nil {
		log.Warn().Err(err).Str("metric", name).Msg("statsd timing failed")
	}
}

func Count(name string, value int64, tags []string) {
	c, rate := current()
	if err := c.Count(name, value, tags, rate); err != nil {
		log.Warn().Err(err).Str("metric", name).Msg("statsd count failed")
	}
}

// Incr increases a counter by one.
func Incr(name string, tags []string) { Count(name, 1, tags) }

func Gauge(name string, value float64, tags []string) {
	c, rate := current()
	if err := c.Gauge(name, value, tags, rate); err != nil {
		log.Warn().Err(err).Str("metric", name).Msg("statsd gauge failed")
	}
}

// Since records the time elapsed from start under name.
func Since(name string, start time.Time, tags []string) {
	Timing(name, time.Since(start), tags)
}

// Tag formats a statsd tag.
func Tag(name, value string) string { return name + ":" + value }
