package utils

import (
	"errors"
	"fmt"
	"time"

	"code.cloudfoundry.org/bytefmt"
	"gopkg.in/yaml.v2"

	"github.com/chunklog/chunklog/transport"
	"github.com/chunklog/chunklog/utils/log"
)

// Config is the file-based configuration for a chunklog transport. Byte
// quantities accept human-readable sizes ("16M", "64K"); flush_max_us is
// in microseconds.
type Config struct {
	LogPath       string
	LogLevel      log.Level
	ChunkSize     int64
	PadThreshold  int64
	MaxEventSize  int
	MaxQueueDepth int
	MaxQueueBytes int64
	FlushMaxBytes int64
	FlushInterval time.Duration
	Overflow      transport.OverflowPolicy
}

// Parse fills c from YAML data, leaving unset fields at zero so the
// transport applies its own defaults.
func (c *Config) Parse(data []byte) error {
	var aux struct {
		LogPath        string `yaml:"log_path"`
		LogLevel       string `yaml:"log_level"`
		ChunkSize      string `yaml:"chunk_size"`
		PadThreshold   string `yaml:"pad_threshold"`
		MaxEventSize   string `yaml:"max_event_size"`
		MaxQueueEvents int    `yaml:"max_queue_events"`
		MaxQueueBytes  string `yaml:"max_queue_bytes"`
		FlushMaxBytes  string `yaml:"flush_max_bytes"`
		FlushMaxUs     int64  `yaml:"flush_max_us"`
		OverflowPolicy string `yaml:"overflow_policy"`
	}

	if err := yaml.Unmarshal(data, &aux); err != nil {
		return err
	}

	if aux.LogPath == "" {
		log.Error("Invalid log path.")
		return errors.New("invalid log path")
	}
	c.LogPath = aux.LogPath

	switch aux.LogLevel {
	case "", "info":
		c.LogLevel = log.INFO
	case "debug":
		c.LogLevel = log.DEBUG
	case "warning":
		c.LogLevel = log.WARNING
	case "error":
		c.LogLevel = log.ERROR
	default:
		return fmt.Errorf("unknown log level %q", aux.LogLevel)
	}

	var err error
	if c.ChunkSize, err = parseSize("chunk_size", aux.ChunkSize); err != nil {
		return err
	}
	if c.PadThreshold, err = parseSize("pad_threshold", aux.PadThreshold); err != nil {
		return err
	}
	maxEvent, err := parseSize("max_event_size", aux.MaxEventSize)
	if err != nil {
		return err
	}
	c.MaxEventSize = int(maxEvent)
	c.MaxQueueDepth = aux.MaxQueueEvents
	if c.MaxQueueBytes, err = parseSize("max_queue_bytes", aux.MaxQueueBytes); err != nil {
		return err
	}
	if c.FlushMaxBytes, err = parseSize("flush_max_bytes", aux.FlushMaxBytes); err != nil {
		return err
	}
	if aux.FlushMaxUs < 0 {
		return fmt.Errorf("flush_max_us must not be negative, got %d", aux.FlushMaxUs)
	}
	c.FlushInterval = time.Duration(aux.FlushMaxUs) * time.Microsecond

	c.Overflow, err = transport.ParseOverflowPolicy(aux.OverflowPolicy)
	return err
}

// TransportConfig converts the file form into the transport's config
// value.
func (c *Config) TransportConfig() transport.Config {
	return transport.Config{
		ChunkSize:      c.ChunkSize,
		PadThreshold:   c.PadThreshold,
		MaxEventSize:   c.MaxEventSize,
		MaxQueueEvents: c.MaxQueueDepth,
		MaxQueueBytes:  c.MaxQueueBytes,
		FlushMaxBytes:  c.FlushMaxBytes,
		FlushInterval:  c.FlushInterval,
		Overflow:       c.Overflow,
	}
}

func parseSize(field, s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	n, err := bytefmt.ToBytes(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	return int64(n), nil
}
