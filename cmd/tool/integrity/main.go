package integrity

import (
	"bytes"
	"crypto/md5"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"code.cloudfoundry.org/bytefmt"
	"github.com/spf13/cobra"

	"github.com/chunklog/chunklog/transport/chunk"
	"github.com/chunklog/chunklog/utils/log"
)

const (
	usage   = "integrity"
	short   = "Validates record framing and checksums on a chunked log"
	long    = "This command validates the chunk framing of a log file and reports per-chunk checksums"
	example = "chunklog tool integrity --file <path> --parallel"

	fileDesc      = "path to the log file"
	chunkSizeDesc = "chunk size the log was written with"
	parallelDesc  = "checksum chunks in parallel, default is false"
)

var (
	filePath     string
	chunkSizeStr string
	parallel     bool

	// Cmd is the integrity command.
	Cmd = &cobra.Command{
		Use:     usage,
		Short:   short,
		Long:    long,
		Aliases: []string{"ic", "integritycheck"},
		Example: example,
		RunE:    executeIntegrity,
	}
)

func init() {
	Cmd.Flags().StringVarP(&filePath, "file", "f", "", fileDesc)
	Cmd.MarkFlagRequired("file")
	Cmd.Flags().StringVar(&chunkSizeStr, "chunk-size", "16M", chunkSizeDesc)
	Cmd.Flags().BoolVar(&parallel, "parallel", false, parallelDesc)
}

type chunkReport struct {
	records int
	bytes   int64
	padding int64
	cksum   [md5.Size]byte
}

func executeIntegrity(cmd *cobra.Command, args []string) error {
	chunkSizeU, err := bytefmt.ToBytes(chunkSizeStr)
	if err != nil {
		return fmt.Errorf("chunk-size: %w", err)
	}
	chunkSize := int64(chunkSizeU)
	layout := chunk.Layout{ChunkSize: chunkSize, PadThreshold: chunkSize}

	fp, err := os.Open(filepath.Clean(filePath))
	if err != nil {
		return err
	}
	defer fp.Close()
	st, err := fp.Stat()
	if err != nil {
		return err
	}
	size := st.Size()
	nChunks := (size + chunkSize - 1) / chunkSize
	reports := make([]chunkReport, nChunks)

	faults := walkRecords(fp, size, layout, reports)
	checksumChunks(fp, size, chunkSize, reports)

	var totalRecords int
	var totalBytes, totalPadding int64
	for i := range reports {
		r := &reports[i]
		fmt.Printf("chunk %4d: %6d records  %10s payload  %10s padding  md5 %x\n",
			i, r.records, bytefmt.ByteSize(uint64(r.bytes)), bytefmt.ByteSize(uint64(r.padding)), r.cksum)
		totalRecords += r.records
		totalBytes += r.bytes
		totalPadding += r.padding
	}
	fmt.Printf("total: %d chunks, %d records, %s payload, %s padding\n",
		nChunks, totalRecords, bytefmt.ByteSize(uint64(totalBytes)), bytefmt.ByteSize(uint64(totalPadding)))

	if faults > 0 {
		return fmt.Errorf("%d framing faults found", faults)
	}
	return nil
}

// walkRecords validates the framing sequentially: record placement, zero
// padding, and truncation only at the tail. It fills the per-chunk record
// and byte counts and returns the number of faults.
func walkRecords(fp *os.File, size int64, layout chunk.Layout, reports []chunkReport) int {
	r := chunk.NewReader(fp, size, layout)
	faults := 0
	var pos int64 // end of the previous record
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			verifyPadding(fp, pos, size, layout, reports, &faults)
			return faults
		}
		if err != nil {
			var trunc chunk.TruncationError
			if errors.As(err, &trunc) && layout.ChunkIndex(trunc.Offset) == layout.ChunkIndex(size-1) {
				log.Warn("truncated final record: %v", err)
			} else {
				log.Error("framing fault: %v", err)
			}
			faults++
			r.Resync()
			pos = r.Offset()
			continue
		}
		// Bytes between records must be zero padding.
		verifyPadding(fp, pos, rec.Offset, layout, reports, &faults)
		ci := layout.ChunkIndex(rec.Offset)
		reports[ci].records++
		reports[ci].bytes += int64(len(rec.Payload))
		pos = rec.Offset + chunk.FramedSize(len(rec.Payload))
	}
}

func verifyPadding(fp *os.File, from, to int64, layout chunk.Layout, reports []chunkReport, faults *int) {
	if to <= from {
		return
	}
	pad := make([]byte, to-from)
	if _, err := fp.ReadAt(pad, from); err != nil {
		log.Error("reading padding at %d: %v", from, err)
		*faults++
		return
	}
	if i := bytes.IndexFunc(pad, func(r rune) bool { return r != 0 }); i >= 0 {
		log.Error("non-zero byte inside padding at offset %d", from+int64(i))
		*faults++
	}
	reports[layout.ChunkIndex(from)].padding += to - from
}

// checksumChunks computes a per-chunk md5, optionally fanning out one
// goroutine per chunk.
func checksumChunks(fp *os.File, size, chunkSize int64, reports []chunkReport) {
	sum := func(i int) {
		off := int64(i) * chunkSize
		n := chunkSize
		if off+n > size {
			n = size - off
		}
		buf := make([]byte, n)
		if _, err := fp.ReadAt(buf, off); err != nil {
			log.Error("reading chunk %d: %v", i, err)
			return
		}
		reports[i].cksum = md5.Sum(buf)
	}

	if !parallel {
		for i := range reports {
			sum(i)
		}
		return
	}
	var wg sync.WaitGroup
	for i := range reports {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sum(i)
		}(i)
	}
	wg.Wait()
}
