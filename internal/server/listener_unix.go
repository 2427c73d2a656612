//go:build linux || darwin

// Package server provides the network listener for the gateway.
package server

import (
	"errors"
	"net"
	"os"
	"strconv"
)

// sdListenFDsStart is the first file descriptor passed by systemd.
const sdListenFDsStart = 3

// GetListener returns the systemd-passed socket when socketActivation is set, otherwise it
// listens on addr.
func GetListener(addr string, socketActivation bool) (net.Listener, error) {
	if !socketActivation {
		return net.Listen("tcp", addr)
	}
	if os.Getenv("LISTEN_FDS") != "1" {
		return nil, errors.New("socket activation requested but LISTEN_FDS is not 1")
	}
	if pid, err := strconv.Atoi(os.Getenv("LISTEN_PID")); err != nil || pid != os.Getpid() {
		return nil, errors.New("socket activation requested but LISTEN_PID does not match")
	}
	f := os.NewFile(uintptr(sdListenFDsStart), "listener")
	if f == nil {
		return nil, errors.New("socket activation: no listener fd")
	}
	defer f.Close()
	return net.FileListener(f)
}
