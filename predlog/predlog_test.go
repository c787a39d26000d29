package predlog

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	kafka "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (c *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if c.err != nil {
		return c.err
	}
	c.msgs = append(c.msgs, msgs...)
	return nil
}

func (c *captureWriter) Close() error {
	c.closed = true
	return nil
}

func TestKafkaPublisherWritesJSON(t *testing.T) {
	w := &captureWriter{}
	p := &KafkaPublisher{w: w, topic: "predictions"}

	r := NewRecord("0xabc", "digest1")
	r.ArgmaxIndex = 2
	r.Magnitudes = []uint64{1, 5, 9}
	r.Signs = []uint8{0, 1, 0}
	r.Calls = 7
	require.NoError(t, p.Publish(context.Background(), r))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, []byte("0xabc"), w.msgs[0].Key)

	var back Record
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &back))
	assert.Equal(t, r.ID, back.ID)
	assert.Equal(t, uint64(2), back.ArgmaxIndex)
	assert.Equal(t, []uint64{1, 5, 9}, back.Magnitudes)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisherReturnsWriteErrors(t *testing.T) {
	p := &KafkaPublisher{w: &captureWriter{err: errors.New("broker down")}}
	assert.Error(t, p.Publish(context.Background(), NewRecord("m", "d")))
}

func TestNewWithoutBrokersIsNop(t *testing.T) {
	assert.IsType(t, Nop{}, New("", "topic"))
	assert.IsType(t, Nop{}, New("localhost:9092", ""))
	p := New(" localhost:9092 , ", "topic")
	require.IsType(t, &KafkaPublisher{}, p)
	require.NoError(t, p.Close())
}

func TestRecordIDsAreUnique(t *testing.T) {
	a, b := NewRecord("m", "d"), NewRecord("m", "d")
	assert.NotEqual(t, a.ID, b.ID)
}

func TestRecordSignsEncodeAsNumbers(t *testing.T) {
	r := NewRecord("m", "d")
	r.Signs = []uint8{1, 0}
	b, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"output_sign":[1,0]`)
}
