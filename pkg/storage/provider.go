package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/toadkicker/embark-framework/pkg/ipfs"
)

// Provider names a storage network.
type Provider string

const (
	ProviderIPFS  Provider = "ipfs"
	ProviderSwarm Provider = "swarm"
)

// ParseProvider matches name case-insensitively against the known providers.
func ParseProvider(name string) (Provider, bool) {
	switch Provider(strings.ToLower(strings.TrimSpace(name))) {
	case ProviderIPFS:
		return ProviderIPFS, true
	case ProviderSwarm:
		return ProviderSwarm, true
	default:
		return "", false
	}
}

// ProviderOptions locate the storage node. Empty fields take the defaults
// of localhost:5001 over http://.
type ProviderOptions struct {
	Protocol string
	Server   string
	Port     int
}

const (
	defaultProtocol = "http://"
	defaultServer   = "localhost"
	defaultPort     = 5001
)

func (o *ProviderOptions) withDefaults() ProviderOptions {
	out := ProviderOptions{Protocol: defaultProtocol, Server: defaultServer, Port: defaultPort}
	if o == nil {
		return out
	}
	if o.Protocol != "" {
		out.Protocol = o.Protocol
	}
	if o.Server != "" {
		out.Server = o.Server
	}
	if o.Port != 0 {
		out.Port = o.Port
	}
	return out
}

// BaseURL renders {protocol}{server}:{port}.
func (o ProviderOptions) BaseURL() string {
	protocol := o.Protocol
	if !strings.HasSuffix(protocol, "://") {
		protocol += "://"
	}
	return fmt.Sprintf("%s%s:%d", protocol, o.Server, o.Port)
}

// Transport is the storage node client the IPFS backend drives.
type Transport interface {
	Add(ctx context.Context, data []byte) ([]ipfs.AddResult, error)
	ObjectGet(ctx context.Context, hash string) (*ipfs.Node, error)
}

// Connector opens a Transport to the node described by cfg.
type Connector func(ctx context.Context, cfg ipfs.Config) (Transport, error)
