package chunk_test

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chunklog/chunklog/transport/chunk"
)

func buildLog(layout chunk.Layout, payloads ...[]byte) []byte {
	var buf []byte
	var offset int64
	for _, p := range payloads {
		framed := chunk.FramedSize(len(p))
		if pad := layout.Pad(offset, framed); pad > 0 {
			buf = chunk.AppendPad(buf, pad)
			offset += pad
		}
		buf = chunk.AppendFrame(buf, p)
		offset += framed
	}
	return buf
}

func readAll(t *testing.T, data []byte, layout chunk.Layout) [][]byte {
	t.Helper()
	r := chunk.NewReader(bytes.NewReader(data), int64(len(data)), layout)
	var out [][]byte
	for {
		rec, err := r.Next()
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		out = append(out, rec.Payload)
	}
}

func TestReaderRoundTrip(t *testing.T) {
	layout := chunk.Layout{ChunkSize: 64, PadThreshold: 64}
	payloads := [][]byte{
		[]byte("alpha"),
		[]byte("beta"),
		bytes.Repeat([]byte("x"), 50), // forces padding before it
		[]byte("gamma"),
	}

	got := readAll(t, buildLog(layout, payloads...), layout)

	require.Len(t, got, len(payloads))
	for i := range payloads {
		assert.Equal(t, payloads[i], got[i])
	}
}

func TestReaderSpanningRecord(t *testing.T) {
	layout := chunk.Layout{ChunkSize: 64, PadThreshold: 64}
	big := bytes.Repeat([]byte("s"), 200) // spans four chunks

	got := readAll(t, buildLog(layout, []byte("pre"), big, []byte("post")), layout)

	require.Len(t, got, 3)
	assert.Equal(t, big, got[1])
	assert.Equal(t, []byte("post"), got[2])
}

func TestReaderOffsets(t *testing.T) {
	layout := chunk.Layout{ChunkSize: 64, PadThreshold: 64}
	data := buildLog(layout, []byte("abc"), []byte("defg"))
	r := chunk.NewReader(bytes.NewReader(data), int64(len(data)), layout)

	rec, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, int64(0), rec.Offset)

	rec, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, int64(7), rec.Offset)
	assert.Equal(t, int64(15), r.Offset())
}

func TestReaderSkipsPaddingAtChunkTail(t *testing.T) {
	layout := chunk.Layout{ChunkSize: 32, PadThreshold: 32}
	// 20-byte payload fills 24 bytes of the first chunk; the next record
	// pads the remaining 8 bytes and lands at offset 32.
	data := buildLog(layout, bytes.Repeat([]byte("a"), 20), []byte("next"))

	r := chunk.NewReader(bytes.NewReader(data), int64(len(data)), layout)
	_, err := r.Next()
	require.NoError(t, err)
	rec, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, int64(32), rec.Offset)
	assert.Equal(t, []byte("next"), rec.Payload)
}

func TestReaderTruncatedTail(t *testing.T) {
	layout := chunk.Layout{ChunkSize: 64, PadThreshold: 64}
	data := buildLog(layout, []byte("complete"), bytes.Repeat([]byte("z"), 40))
	cut := data[:len(data)-10]

	r := chunk.NewReader(bytes.NewReader(cut), int64(len(cut)), layout)
	rec, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, []byte("complete"), rec.Payload)

	_, err = r.Next()
	var trunc chunk.TruncationError
	require.True(t, errors.As(err, &trunc), "expected TruncationError, got %v", err)
	assert.Equal(t, int64(40), trunc.Want)
	assert.Equal(t, int64(30), trunc.Have)
}

func TestReaderResyncAfterCorruption(t *testing.T) {
	layout := chunk.Layout{ChunkSize: 32, PadThreshold: 32}
	data := buildLog(layout, bytes.Repeat([]byte("a"), 20))
	// Pad out the first chunk, then place a valid record in the second.
	data = chunk.AppendPad(data, layout.Remaining(int64(len(data))))
	data = chunk.AppendFrame(data, []byte("good"))
	// Corrupt the first record's length prefix so it claims to run past
	// the end of the file.
	data[0], data[1] = 0xff, 0xff

	r := chunk.NewReader(bytes.NewReader(data), int64(len(data)), layout)
	_, err := r.Next()
	require.Error(t, err)

	r.Resync()
	rec, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, []byte("good"), rec.Payload)
}

func TestReaderZeroPrefixTreatedAsPadding(t *testing.T) {
	layout := chunk.Layout{ChunkSize: 32, PadThreshold: 32}
	// An all-zero first chunk reads as padding, then a record follows.
	data := chunk.AppendPad(nil, 32)
	data = chunk.AppendFrame(data, []byte("rec"))

	got := readAll(t, data, layout)

	require.Len(t, got, 1)
	assert.Equal(t, []byte("rec"), got[0])
}

func TestReaderEmptyLog(t *testing.T) {
	layout := chunk.Layout{ChunkSize: 32, PadThreshold: 32}
	r := chunk.NewReader(bytes.NewReader(nil), 0, layout)

	_, err := r.Next()
	assert.Equal(t, io.EOF, err)
}
