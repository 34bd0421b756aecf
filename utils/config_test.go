package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chunklog/chunklog/transport"
	"github.com/chunklog/chunklog/utils/log"
)

func TestConfigParse(t *testing.T) {
	data := []byte(`
log_path: /tmp/events.chunklog
log_level: debug
chunk_size: 1M
pad_threshold: 64K
max_event_size: 256K
max_queue_events: 500
max_queue_bytes: 8M
flush_max_bytes: 2M
flush_max_us: 10000
overflow_policy: drop
`)
	var cfg Config
	require.NoError(t, cfg.Parse(data))

	assert.Equal(t, "/tmp/events.chunklog", cfg.LogPath)
	assert.Equal(t, log.DEBUG, cfg.LogLevel)
	assert.Equal(t, int64(1<<20), cfg.ChunkSize)
	assert.Equal(t, int64(64<<10), cfg.PadThreshold)
	assert.Equal(t, 256<<10, cfg.MaxEventSize)
	assert.Equal(t, 500, cfg.MaxQueueDepth)
	assert.Equal(t, int64(8<<20), cfg.MaxQueueBytes)
	assert.Equal(t, int64(2<<20), cfg.FlushMaxBytes)
	assert.Equal(t, 10*time.Millisecond, cfg.FlushInterval)
	assert.Equal(t, transport.OverflowDropNewest, cfg.Overflow)
}

func TestConfigParseDefaults(t *testing.T) {
	var cfg Config
	require.NoError(t, cfg.Parse([]byte("log_path: /tmp/events.chunklog\n")))

	assert.Equal(t, log.INFO, cfg.LogLevel)
	assert.Equal(t, int64(0), cfg.ChunkSize)
	assert.Equal(t, 0, cfg.MaxQueueDepth)
	assert.Equal(t, time.Duration(0), cfg.FlushInterval)
	assert.Equal(t, transport.OverflowBlock, cfg.Overflow)

	tc := cfg.TransportConfig()
	assert.Equal(t, int64(0), tc.ChunkSize)
	assert.Equal(t, transport.OverflowBlock, tc.Overflow)
}

func TestConfigParseErrors(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"missing log path", "log_level: debug\n"},
		{"bad log level", "log_path: /tmp/x\nlog_level: loud\n"},
		{"bad size", "log_path: /tmp/x\nchunk_size: sixteen\n"},
		{"negative interval", "log_path: /tmp/x\nflush_max_us: -5\n"},
		{"bad overflow", "log_path: /tmp/x\noverflow_policy: wait\n"},
		{"not yaml", "{log_path"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			var cfg Config
			assert.Error(t, cfg.Parse([]byte(c.data)))
		})
	}
}
