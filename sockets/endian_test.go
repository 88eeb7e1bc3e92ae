package sockets

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEndianRoundTrip(t *testing.T) {
	assert.Equal(t, uint16(0x1234), NetworkToHost16(HostToNetwork16(0x1234)))
	assert.Equal(t, uint32(0x12345678), NetworkToHost32(HostToNetwork32(0x12345678)))
	assert.Equal(t, uint64(0x123456789abcdef0), NetworkToHost64(HostToNetwork64(0x123456789abcdef0)))
}
