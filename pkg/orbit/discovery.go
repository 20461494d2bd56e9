package orbit

import (
	"context"
	"errors"
	"time"

	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"go.uber.org/zap"
)

// DefaultDiscoveryInterval is the wait between two reconnect rounds.
const DefaultDiscoveryInterval = 30 * time.Second

// discovery keeps a session connected to the peers it has learned about.
// Bootstrap peers land in the peerstore when first dialed; each round
// redials the known peers that have dropped.
type discovery struct {
	host     host.Host
	logger   *zap.Logger
	maxConns int
	cancel   context.CancelFunc
	done     chan struct{}
}

func newDiscovery(h host.Host, logger *zap.Logger) *discovery {
	return &discovery{host: h, logger: logger, maxConns: 16}
}

func (d *discovery) start(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultDiscoveryInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.done = make(chan struct{})

	go func() {
		defer close(d.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				d.round(ctx)
			}
		}
	}()
}

func (d *discovery) stop() {
	if d.cancel == nil {
		return
	}
	d.cancel()
	<-d.done
}

// round redials up to maxConns disconnected peerstore entries and returns
// how many connections it made.
func (d *discovery) round(ctx context.Context) int {
	initial := len(d.host.Network().Peers())
	connected := 0

	for _, pid := range d.host.Peerstore().Peers() {
		if connected >= d.maxConns {
			break
		}
		if pid == d.host.ID() {
			continue
		}
		if d.host.Network().Connectedness(pid) == network.Connected {
			continue
		}
		if err := d.connect(ctx, pid); err == nil {
			connected++
		}
	}

	if connected > 0 {
		d.logger.Debug("Peer discovery completed",
			zap.Int("new_connections", connected),
			zap.Int("initial_peers", initial),
			zap.Int("final_peers", len(d.host.Network().Peers())))
	}
	return connected
}

func (d *discovery) connect(ctx context.Context, pid peer.ID) error {
	info := d.host.Peerstore().PeerInfo(pid)
	if len(info.Addrs) == 0 {
		return errors.New("no addresses for peer")
	}

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := d.host.Connect(dialCtx, info); err != nil {
		d.logger.Debug("Failed to connect to peer",
			zap.String("peer_id", pid.String()),
			zap.Error(err))
		return err
	}
	d.logger.Debug("Reconnected to peer", zap.String("peer_id", pid.String()))
	return nil
}
