package config

import "fmt"

const bridgePortVar = "BRIDGE_PORT"

type BridgeConfig interface {
	GetBridgeAddr() string
}

type Bridge struct{}

var _ BridgeConfig = Bridge{}

// GetBridgeAddr returns the listen address for the host-bridge server.
// The bridge binds loopback only; it is a local editor surface, not a service.
func (Bridge) GetBridgeAddr() string {
	port := GetEnv(bridgePortVar, "48620")
	return fmt.Sprintf("127.0.0.1:%s", port)
}
