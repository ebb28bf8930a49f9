package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
)

var bootstrapProtocol protocol.ID = "/ocpp-relay/bootstrap/1.0.0"

// Bootstrap lets relay nodes discover each other through a well known bootstrapper.
type Bootstrap struct {
	host host.Host

	settle time.Duration
	log    *slog.Logger
}

// NewBootstrap instantiates a Bootstrap over the host.
func NewBootstrap(host host.Host) *Bootstrap {
	return &Bootstrap{
		host:   host,
		settle: time.Second,
		log:    slog.With("module", "relay-bootstrap"),
	}
}

// Start connects to bootstrapper, fetches its peers and connects to them.
func (b *Bootstrap) Start(ctx context.Context, bootstrapper peer.AddrInfo) error {
	err := b.host.Connect(ctx, bootstrapper)
	if err != nil {
		return fmt.Errorf("connecting to bootstrapper: %w", err)
	}
	b.log.DebugContext(ctx, "connected to bootstrapper", "peer", bootstrapper.ID)

	// this gives time for connections to settle on the bootstrapper and gets us all the peers
	select {
	case <-time.After(b.settle):
	case <-ctx.Done():
		return ctx.Err()
	}

	s, err := b.host.NewStream(ctx, bootstrapper.ID, bootstrapProtocol)
	if err != nil {
		return fmt.Errorf("opening bootstrap stream: %w", err)
	}
	defer s.Close()

	data, err := io.ReadAll(s)
	if err != nil {
		return fmt.Errorf("reading bootstrap peers: %w", err)
	}

	var peers []peer.AddrInfo
	if err = json.Unmarshal(data, &peers); err != nil {
		return fmt.Errorf("decoding bootstrap peers: %w", err)
	}

	for _, p := range peers {
		if p.ID == b.host.ID() || p.ID == bootstrapper.ID {
			continue
		}
		go func() {
			err := b.host.Connect(ctx, p)
			if err != nil {
				b.log.Error("connecting to peer", "peer", p.ID, "err", err)
			}
		}()
	}

	b.log.Debug("started", "peers", len(peers))
	return nil
}

// Serve starts serving bootstrap requests.
func (b *Bootstrap) Serve() {
	b.host.SetStreamHandler(bootstrapProtocol, func(stream network.Stream) {
		defer stream.Close()

		store := b.host.Peerstore()
		peerIDs := store.PeersWithAddrs()

		peers := make([]peer.AddrInfo, 0, len(peerIDs))
		for _, p := range peerIDs {
			if p == b.host.ID() {
				continue
			}
			peers = append(peers, store.PeerInfo(p))
		}

		data, err := json.Marshal(peers)
		if err != nil {
			b.log.Error("encoding peers", "err", err)
			return
		}

		if _, err = stream.Write(data); err != nil {
			b.log.Error("writing peers", "err", err)
			return
		}

		if err = stream.CloseWrite(); err != nil {
			return
		}
	})
}

// Stop stops serving bootstrap requests.
func (b *Bootstrap) Stop() {
	b.host.RemoveStreamHandler(bootstrapProtocol)
}

// Members lists the host itself and all connected peers.
func (b *Bootstrap) Members() []peer.ID {
	peers := b.host.Network().Peers()
	members := make([]peer.ID, 0, len(peers)+1)
	members = append(members, b.host.ID())
	return append(members, peers...)
}
