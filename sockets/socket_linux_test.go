//go:build linux
// +build linux

package sockets_test

import (
	"testing"

	"github.com/asobel/multiloop/sockets"
)

func TestListenReportsBoundEphemeralPort(t *testing.T) {
	ln, err := sockets.NewListening(sockets.NewAddress("127.0.0.1", 0), false)
	if err != nil {
		t.Fatalf("NewListening: %v", err)
	}
	defer ln.Close()

	if err := ln.Listen(); err != nil {
		t.Fatalf("Listen: %v", err)
	}

	local, err := ln.LocalAddr()
	if err != nil {
		t.Fatalf("LocalAddr: %v", err)
	}
	if local.Port() == 0 {
		t.Fatal("expected kernel to assign a non-zero ephemeral port")
	}
}

func TestSetKeepAliveDoesNotError(t *testing.T) {
	ln, err := sockets.NewListening(sockets.NewAddress("127.0.0.1", 0), false)
	if err != nil {
		t.Fatalf("NewListening: %v", err)
	}
	defer ln.Close()

	if err := ln.SetKeepAlive(true); err != nil {
		t.Fatalf("SetKeepAlive: %v", err)
	}
}
