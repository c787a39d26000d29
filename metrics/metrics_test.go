package metrics

import (
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoOpBeforeInit(t *testing.T) {
	assert.NotPanics(t, func() {
		Count(PredictionCount, 1, nil)
		Timing(PredictionLatency, time.Millisecond, []string{Tag(TagResult, "ok")})
		Gauge(PredictionCalls, 4, nil)
	})
	require.NoError(t, Init("", nil, 1))
}

func TestInitSendsToAgent(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, Init(conn.LocalAddr().String(), []string{Tag(TagService, "suiml")}, 1))
	Incr(UploadCount, []string{Tag(TagResult, "ok")})
	require.NoError(t, Close())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 2048)
	n, _, err := conn.ReadFrom(buf)
	require.NoError(t, err)
	got := string(buf[:n])
	assert.True(t, strings.Contains(got, UploadCount+":1|c"), got)
	assert.True(t, strings.Contains(got, "service:suiml"), got)
}

func TestTag(t *testing.T) {
	assert.Equal(t, "path:/health", Tag(TagPath, "/health"))
}
