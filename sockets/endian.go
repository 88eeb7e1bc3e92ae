package sockets

import (
	"math/bits"
	"unsafe"
)

// nativeLittleEndian is resolved once at init, the same way a fair
// amount of low-level Go networking code detects host byte order
// without relying on build tags per architecture.
var nativeLittleEndian = func() bool {
	var probe uint16 = 1
	return *(*byte)(unsafe.Pointer(&probe)) == 1
}()

// HostToNetwork16/32/64 and NetworkToHost16/32/64 are the endianness
// conversion helpers named in spec.md section 6 ("External Interfaces")
// and grounded on muduo's Endian.h (hostToNetwork32/networkToHost32,
// htobe32/be32toh — a no-op on a big-endian host, a byte swap on a
// little-endian one). Byte-swapping is its own inverse, so each
// to-network/to-host pair is the same operation; kept as distinct named
// functions the way muduo does so call sites read as documentation of
// direction.

func HostToNetwork16(host uint16) uint16 {
	if nativeLittleEndian {
		return bits.ReverseBytes16(host)
	}
	return host
}
func NetworkToHost16(net uint16) uint16 { return HostToNetwork16(net) }

func HostToNetwork32(host uint32) uint32 {
	if nativeLittleEndian {
		return bits.ReverseBytes32(host)
	}
	return host
}
func NetworkToHost32(net uint32) uint32 { return HostToNetwork32(net) }

func HostToNetwork64(host uint64) uint64 {
	if nativeLittleEndian {
		return bits.ReverseBytes64(host)
	}
	return host
}
func NetworkToHost64(net uint64) uint64 { return HostToNetwork64(net) }
