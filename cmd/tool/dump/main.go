package dump

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"code.cloudfoundry.org/bytefmt"
	"github.com/gocarina/gocsv"
	"github.com/spf13/cobra"
	"github.com/vmihailenco/msgpack"

	"github.com/chunklog/chunklog/transport/chunk"
	"github.com/chunklog/chunklog/utils/log"
)

const (
	usage   = "dump"
	short   = "Lists the framed records of a chunked log file as CSV"
	long    = "This command walks a chunked log file and lists every framed record as CSV"
	example = "chunklog tool dump --file <path> --chunk-size 16M"

	fileDesc      = "path to the log file"
	chunkSizeDesc = "chunk size the log was written with"
	decodeDesc    = "decode payloads as msgpack instead of printing hex"
	maxBytesDesc  = "max payload bytes shown per record in hex mode"
)

var (
	filePath     string
	chunkSizeStr string
	decodeMsgp   bool
	maxShown     int

	// Cmd is the dump command.
	Cmd = &cobra.Command{
		Use:     usage,
		Short:   short,
		Long:    long,
		Aliases: []string{"d"},
		Example: example,
		RunE:    executeDump,
	}
)

func init() {
	Cmd.Flags().StringVarP(&filePath, "file", "f", "", fileDesc)
	Cmd.MarkFlagRequired("file")
	Cmd.Flags().StringVar(&chunkSizeStr, "chunk-size", "16M", chunkSizeDesc)
	Cmd.Flags().BoolVar(&decodeMsgp, "decode", false, decodeDesc)
	Cmd.Flags().IntVar(&maxShown, "max-bytes", 32, maxBytesDesc)
}

type recordRow struct {
	Index   int    `csv:"index"`
	Chunk   int64  `csv:"chunk"`
	Offset  int64  `csv:"offset"`
	Length  int    `csv:"length"`
	Payload string `csv:"payload"`
}

func executeDump(cmd *cobra.Command, args []string) error {
	chunkSize, err := bytefmt.ToBytes(chunkSizeStr)
	if err != nil {
		return fmt.Errorf("chunk-size: %w", err)
	}
	layout := chunk.Layout{ChunkSize: int64(chunkSize), PadThreshold: int64(chunkSize)}

	fp, err := os.Open(filepath.Clean(filePath))
	if err != nil {
		return err
	}
	defer fp.Close()
	st, err := fp.Stat()
	if err != nil {
		return err
	}

	var rows []recordRow
	r := chunk.NewReader(fp, st.Size(), layout)
	for i := 0; ; i++ {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Resynchronize at the next chunk boundary and keep going.
			log.Warn("skipping to next chunk: %v", err)
			r.Resync()
			continue
		}
		rows = append(rows, recordRow{
			Index:   i,
			Chunk:   layout.ChunkIndex(rec.Offset),
			Offset:  rec.Offset,
			Length:  len(rec.Payload),
			Payload: renderPayload(rec.Payload),
		})
	}

	return gocsv.Marshal(&rows, os.Stdout)
}

func renderPayload(p []byte) string {
	if decodeMsgp {
		var v interface{}
		if err := msgpack.Unmarshal(p, &v); err == nil {
			return fmt.Sprintf("%v", v)
		}
		// Not msgpack after all; fall through to hex.
	}
	if len(p) > maxShown {
		return hex.EncodeToString(p[:maxShown]) + "..."
	}
	return hex.EncodeToString(p)
}
