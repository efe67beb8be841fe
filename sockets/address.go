// File: sockets/address.go
// Package sockets wraps the raw file-descriptor level operations a TCP
// core needs: socket creation, binding, listening, accepting, option
// setting, and the IPv4 endpoint value used throughout.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package sockets

import (
	"fmt"
	"net"
	"strconv"

	"golang.org/x/sys/unix"
)

// Address is an IPv4 endpoint value: a dotted-quad address plus a 16-bit
// port.
type Address struct {
	ip   [4]byte
	port uint16
}

// NewAddress constructs an Address from a dotted-quad string and port.
// An unparsable ip yields the zero address (0.0.0.0), matching the
// original's behavior of defaulting rather than failing loudly on a
// malformed listen address — this is a setup-time argument, not data
// off the wire.
func NewAddress(ip string, port uint16) Address {
	var a Address
	a.port = port
	parsed := net.ParseIP(ip)
	if v4 := parsed.To4(); v4 != nil {
		copy(a.ip[:], v4)
	}
	return a
}

// addressFromSockaddr decodes a unix.Sockaddr as returned by
// Accept4/Getsockname into an Address value. It is lenient toward
// non-IPv4 results (returning the zero Address) since this core's data
// model (§3, §6) only ever deals in IPv4 endpoints.
func addressFromSockaddr(sa unix.Sockaddr) Address {
	in4, ok := sa.(*unix.SockaddrInet4)
	if !ok {
		return Address{}
	}
	return NewAddress(fmt.Sprintf("%d.%d.%d.%d", in4.Addr[0], in4.Addr[1], in4.Addr[2], in4.Addr[3]), uint16(in4.Port))
}

// sockaddrInet4 encodes the Address as the unix.SockaddrInet4 bind
// expects; unix.Bind performs the host-to-network port conversion.
func (a Address) sockaddrInet4() *unix.SockaddrInet4 {
	return &unix.SockaddrInet4{Port: int(a.port), Addr: a.ip}
}

// IP returns the dotted-quad string form of the address.
func (a Address) IP() string {
	return fmt.Sprintf("%d.%d.%d.%d", a.ip[0], a.ip[1], a.ip[2], a.ip[3])
}

// Port returns the 16-bit port.
func (a Address) Port() uint16 { return a.port }

// String renders the address as "a.b.c.d:port".
func (a Address) String() string {
	return a.IP() + ":" + strconv.Itoa(int(a.port))
}
