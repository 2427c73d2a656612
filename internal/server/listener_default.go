//go:build !linux && !darwin

// Package server provides the network listener for the gateway.
package server

import (
	"errors"
	"net"
)

// GetListener listens on addr. Socket activation is only available on unix.
func GetListener(addr string, socketActivation bool) (net.Listener, error) {
	if socketActivation {
		return nil, errors.New("socket activation is not supported on this platform")
	}
	return net.Listen("tcp", addr)
}
