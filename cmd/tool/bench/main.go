package bench

import (
	"fmt"
	"io/ioutil"
	"time"

	"code.cloudfoundry.org/bytefmt"
	"github.com/spf13/cobra"

	"github.com/chunklog/chunklog/transport"
	"github.com/chunklog/chunklog/utils"
	"github.com/chunklog/chunklog/utils/log"
)

const (
	usage   = "bench"
	short   = "Writes a stream of events through a transport and reports throughput"
	long    = "This command opens a transport from a YAML configuration file, writes a stream of synthetic events, and reports throughput and flush counters"
	example = "chunklog tool bench --config chunklog.yml --count 100000 --size 128"

	defaultConfigFilePath = "./chunklog.yml"
	configDesc            = "set the path for the chunklog YAML configuration file"
	countDesc             = "number of events to write"
	sizeDesc              = "payload size per event in bytes"
	flushEveryDesc        = "call Flush every N events, 0 to disable"
)

var (
	configFilePath string
	count          int
	payloadSize    int
	flushEvery     int

	// Cmd is the bench command.
	Cmd = &cobra.Command{
		Use:     usage,
		Short:   short,
		Long:    long,
		Example: example,
		RunE:    executeBench,
	}
)

func init() {
	Cmd.Flags().StringVarP(&configFilePath, "config", "c", defaultConfigFilePath, configDesc)
	Cmd.Flags().IntVarP(&count, "count", "n", 100000, countDesc)
	Cmd.Flags().IntVarP(&payloadSize, "size", "s", 128, sizeDesc)
	Cmd.Flags().IntVar(&flushEvery, "flush-every", 0, flushEveryDesc)
}

func executeBench(cmd *cobra.Command, args []string) error {
	data, err := ioutil.ReadFile(configFilePath)
	if err != nil {
		return fmt.Errorf("reading config %s: %w", configFilePath, err)
	}
	var cfg utils.Config
	if err := cfg.Parse(data); err != nil {
		return fmt.Errorf("parsing config %s: %w", configFilePath, err)
	}
	log.SetLevel(cfg.LogLevel)

	t, err := transport.Open(cfg.LogPath, cfg.TransportConfig())
	if err != nil {
		return err
	}

	payload := make([]byte, payloadSize)
	for i := range payload {
		payload[i] = byte(i)
	}

	start := time.Now()
	for i := 0; i < count; i++ {
		if err := t.Write(payload); err != nil {
			_ = t.Close()
			return fmt.Errorf("write %d: %w", i, err)
		}
		if flushEvery > 0 && (i+1)%flushEvery == 0 {
			if err := t.Flush(); err != nil {
				_ = t.Close()
				return fmt.Errorf("flush at %d: %w", i, err)
			}
		}
	}
	if err := t.Flush(); err != nil {
		_ = t.Close()
		return err
	}
	elapsed := time.Since(start)
	stats := t.Stats()
	if err := t.Close(); err != nil {
		return err
	}

	perSec := float64(count) / elapsed.Seconds()
	log.Info("wrote %d events of %s in %v (%.0f events/s, %s/s)",
		count, bytefmt.ByteSize(uint64(payloadSize)), elapsed.Round(time.Millisecond),
		perSec, bytefmt.ByteSize(uint64(perSec*float64(payloadSize))))
	log.Info("written: %s, padding: %s, fsyncs: %d, dropped: %d",
		bytefmt.ByteSize(uint64(stats.WrittenBytes)), bytefmt.ByteSize(uint64(stats.PaddedBytes)),
		stats.Syncs, stats.DroppedEvents)
	return nil
}
