package sockets_test

import (
	"testing"

	"github.com/asobel/multiloop/sockets"
)

func TestAddressString(t *testing.T) {
	a := sockets.NewAddress("127.0.0.1", 9999)
	if got, want := a.String(), "127.0.0.1:9999"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	if a.Port() != 9999 {
		t.Fatalf("Port() = %d, want 9999", a.Port())
	}
}

func TestAddressUnparsableIPDefaultsToZero(t *testing.T) {
	a := sockets.NewAddress("not-an-ip", 80)
	if got, want := a.IP(), "0.0.0.0"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
