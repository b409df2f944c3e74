package wire

import (
	"bytes"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/hupe1980/spatialsync/internal/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compressiblePayload(n int) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = byte(i % 7)
	}
	return p
}

func TestFrame_Compression(t *testing.T) {
	payload := compressiblePayload(64 * 1024)

	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		t.Run(c.String(), func(t *testing.T) {
			var buf bytes.Buffer
			n, err := WriteFrame(&buf, Frame{Seq: 42, Kind: KindGather, Payload: payload}, c)
			require.NoError(t, err)
			assert.Equal(t, buf.Len(), n)
			if c != CompressionNone {
				assert.Less(t, n, len(payload), "compressible payload should shrink")
			}

			f, err := ReadFrame(&buf, nil)
			require.NoError(t, err)
			assert.Equal(t, uint64(42), f.Seq)
			assert.Equal(t, KindGather, f.Kind)
			assert.Equal(t, payload, f.Payload)
		})
	}
}

func TestFrame_IncompressibleStoredRaw(t *testing.T) {
	payload := []byte{0x13, 0x77, 0x01}
	var buf bytes.Buffer
	n, err := WriteFrame(&buf, Frame{Seq: 1, Kind: KindGather, Payload: payload}, CompressionZSTD)
	require.NoError(t, err)
	assert.Equal(t, headerSize+len(payload), n)

	f, err := ReadFrame(&buf, nil)
	require.NoError(t, err)
	assert.Equal(t, payload, f.Payload)
}

func TestFrame_EmptyPayload(t *testing.T) {
	var buf bytes.Buffer
	_, err := WriteFrame(&buf, Frame{Seq: 7, Kind: KindAck}, CompressionLZ4)
	require.NoError(t, err)

	f, err := ReadFrame(&buf, nil)
	require.NoError(t, err)
	assert.Equal(t, KindAck, f.Kind)
	assert.Empty(t, f.Payload)
}

func TestFrame_Truncated(t *testing.T) {
	var buf bytes.Buffer
	_, err := WriteFrame(&buf, Frame{Seq: 1, Kind: KindGather, Payload: []byte("hello world")}, CompressionNone)
	require.NoError(t, err)

	data := buf.Bytes()[:buf.Len()-3]
	_, err = ReadFrame(bytes.NewReader(data), nil)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestFrame_MemoryBudget(t *testing.T) {
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 16})

	var buf bytes.Buffer
	_, err := WriteFrame(&buf, Frame{Kind: KindGather, Payload: make([]byte, 32)}, CompressionNone)
	require.NoError(t, err)

	_, err = ReadFrame(&buf, rc)
	assert.ErrorIs(t, err, ErrFrameTooLarge)
	assert.Equal(t, int64(0), rc.MemoryUsage())

	buf.Reset()
	_, err = WriteFrame(&buf, Frame{Kind: KindGather, Payload: make([]byte, 8)}, CompressionNone)
	require.NoError(t, err)
	_, err = ReadFrame(&buf, rc)
	require.NoError(t, err)
	assert.Equal(t, int64(0), rc.MemoryUsage(), "budget is released after decoding")
}

func TestBlocks(t *testing.T) {
	blocks := [][]byte{[]byte("a"), {}, []byte("xyz")}
	got, err := DecodeBlocks(EncodeBlocks(blocks))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []byte("a"), got[0])
	assert.Empty(t, got[1])
	assert.Equal(t, []byte("xyz"), got[2])

	_, err = DecodeBlocks([]byte{1, 0})
	assert.ErrorIs(t, err, ErrCorruptFrame)

	bad := EncodeBlocks(blocks)
	_, err = DecodeBlocks(bad[:len(bad)-1])
	assert.ErrorIs(t, err, ErrCorruptFrame)
}

func TestHello(t *testing.T) {
	h := Hello{Rank: 3, Size: 8, Token: uuid.New()}
	got, err := DecodeHello(EncodeHello(h))
	require.NoError(t, err)
	assert.Equal(t, h, got)

	_, err = DecodeHello([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrCorruptFrame)
}

func TestParseCompression(t *testing.T) {
	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		got, err := ParseCompression(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}
	_, err := ParseCompression("brotli")
	assert.Error(t, err)
}
