package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferInvariantsOnNew(t *testing.T) {
	b := New()
	assert.Equal(t, 0, b.ReadableBytes())
	assert.Equal(t, CheapPrepend, b.PrependableBytes())
	assert.True(t, InitialSize-CheapPrepend <= b.WritableBytes())
}

func TestAppendRetrieveRoundTrip(t *testing.T) {
	b := New()
	payload := []byte("hello, reactor")

	b.Append(payload)
	require.Equal(t, len(payload), b.ReadableBytes())

	got := b.RetrieveAsString(len(payload))
	assert.Equal(t, string(payload), got)
	assert.Equal(t, CheapPrepend, b.PrependableBytes())
	assert.Equal(t, 0, b.ReadableBytes())
}

func TestRetrieveAllResetsToPrependHead(t *testing.T) {
	b := New()
	b.Append([]byte("some bytes"))
	b.RetrieveAll()
	assert.Equal(t, CheapPrepend, b.PrependableBytes())
	assert.Equal(t, 0, b.ReadableBytes())
}

func TestPrependThenRetrieveRestoresState(t *testing.T) {
	b := New()
	b.Append([]byte("body"))
	b.PrependInt32(4)

	require.Equal(t, 8, b.ReadableBytes())
	header := b.ReadInt32()
	assert.Equal(t, int32(4), header)
	assert.Equal(t, "body", b.RetrieveAllAsString())
}

func TestFindCRLF(t *testing.T) {
	b := New()
	b.Append([]byte("GET / HTTP/1.1\r\nHost: x\r\n\r\n"))
	idx := b.FindCRLF()
	assert.Equal(t, len("GET / HTTP/1.1"), idx)
}

func TestGrowthReclaimsPrependSlack(t *testing.T) {
	b := New()
	b.Append(make([]byte, 100))
	b.Retrieve(100)
	// readerIndex/writerIndex reset to CheapPrepend by Retrieve's shrink
	// policy; appending again should not need to reallocate.
	before := len(b.buf)
	b.Append(make([]byte, 50))
	assert.Equal(t, before, len(b.buf))
}

func TestAppendGrowsWhenNoSlack(t *testing.T) {
	b := New()
	huge := make([]byte, InitialSize*4)
	b.Append(huge)
	assert.Equal(t, len(huge), b.ReadableBytes())
}
