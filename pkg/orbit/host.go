package orbit

import (
	"context"
	"fmt"
	"time"

	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	noise "github.com/libp2p/go-libp2p/p2p/security/noise"
	"github.com/multiformats/go-multiaddr"
	"go.uber.org/zap"
)

// newHost starts a libp2p host on the configured listen addresses and
// dials the bootstrap peers. Unreachable bootstrap peers are logged and
// skipped.
func newHost(ctx context.Context, cfg Config, logger *zap.Logger) (host.Host, error) {
	opts := []libp2p.Option{
		libp2p.Security(noise.ID, noise.New),
		libp2p.DefaultMuxers,
	}

	listen := cfg.ListenAddresses
	if len(listen) == 0 {
		listen = []string{DefaultListenAddress}
	}
	listenAddrs := make([]multiaddr.Multiaddr, 0, len(listen))
	for _, addr := range listen {
		ma, err := multiaddr.NewMultiaddr(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid listen address %s: %w", addr, err)
		}
		listenAddrs = append(listenAddrs, ma)
	}
	opts = append(opts, libp2p.ListenAddrs(listenAddrs...))

	if cfg.IdentityFile != "" {
		id, err := LoadOrCreateIdentity(cfg.IdentityFile)
		if err != nil {
			return nil, err
		}
		opts = append(opts, libp2p.Identity(id.PrivateKey))
	}

	h, err := libp2p.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create libp2p host: %w", err)
	}

	logger.Debug("Orbit host started",
		zap.String("peer_id", h.ID().String()),
		zap.Strings("listen", listen))

	for _, addr := range cfg.BootstrapPeers {
		info, err := parsePeer(addr)
		if err != nil {
			h.Close()
			return nil, err
		}
		dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err = h.Connect(dialCtx, *info)
		cancel()
		if err != nil {
			logger.Warn("Failed to connect to bootstrap peer",
				zap.String("addr", addr),
				zap.Error(err))
			continue
		}
		logger.Debug("Connected to bootstrap peer", zap.String("peer_id", info.ID.String()))
	}

	return h, nil
}

func parsePeer(addr string) (*peer.AddrInfo, error) {
	ma, err := multiaddr.NewMultiaddr(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid bootstrap peer %s: %w", addr, err)
	}
	info, err := peer.AddrInfoFromP2pAddr(ma)
	if err != nil {
		return nil, fmt.Errorf("invalid bootstrap peer %s: %w", addr, err)
	}
	return info, nil
}
