package main

import (
	"context"
	"fmt"
	"time"

	"github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	p2phost "github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"
	"github.com/spf13/cobra"

	ocpp "github.com/OpenChargingCloud/WWCP-OCPP-sub134"
	"github.com/OpenChargingCloud/WWCP-OCPP-sub134/relay"
)

var (
	relayListen       []string
	relayNetwork      string
	relayBootstrapper string
	relayKey          string
	relayPolicy       string
	relayTTL          time.Duration
	relayKickoff      time.Duration
	relaySend         string
	relayAction       string
	relayContext      string
)

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Run a relay node",
	Long: `Runs a networking node which joins a relay network over libp2p.

Every incoming envelope is verified under the policy before it is accepted
and propagated further. With a key, the node co-signs what it sends.
The node runs until interrupted.`,
	Args: cobra.NoArgs,
	RunE: runRelay,
}

func init() {
	relayCmd.Flags().StringSliceVar(&relayListen, "listen", []string{
		"/ip4/0.0.0.0/udp/10000/quic-v1",
		"/ip6/::/udp/10000/quic-v1",
	}, "Listen multiaddrs")
	relayCmd.Flags().StringVarP(&relayNetwork, "network", "n", "ocpp", "Relay network identifier")
	relayCmd.Flags().StringVar(&relayBootstrapper, "bootstrapper", "",
		"Bootstrapper multiaddr, the node acts as bootstrapper if empty")
	relayCmd.Flags().StringVarP(&relayKey, "key", "k", "", "Key file to co-sign with")
	relayCmd.Flags().StringVarP(&relayPolicy, "policy", "p", ocpp.VerifyAll.String(), "Verification policy")
	relayCmd.Flags().DurationVar(&relayTTL, "ttl", relay.DefaultTTL, "How long received envelopes are kept")
	relayCmd.Flags().DurationVar(&relayKickoff, "kickoff-timeout", time.Second*5,
		"Timeout before sending, gives the network time to form")
	relayCmd.Flags().StringVar(&relaySend, "send", "", "JSON message to send once the network formed")
	relayCmd.Flags().StringVar(&relayAction, "action", "DataTransfer", "OCPP action of the sent message")
	relayCmd.Flags().StringVarP(&relayContext, "context", "c", "", "JSON-LD context of the sent message")

	rootCmd.AddCommand(relayCmd)
}

func runRelay(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	policy, err := ocpp.ParseVerificationRuleActions(relayPolicy)
	if err != nil {
		return err
	}

	opts := []relay.Option{
		relay.WithPolicy(policy),
		relay.WithHandler(func(_ context.Context, env *relay.Envelope) {
			fmt.Fprintf(cmd.OutOrStdout(), "received %s %s with %d signatures\n", env.Action, env.ID, len(env.Signatures()))
		}),
	}
	if relayKey != "" {
		role, err := loadRole(cmd, relayKey)
		if err != nil {
			return err
		}
		opts = append(opts, relay.WithSigner(role))
	}

	listenMAddrs := make([]multiaddr.Multiaddr, 0, len(relayListen))
	for _, s := range relayListen {
		addr, err := multiaddr.NewMultiaddr(s)
		if err != nil {
			return fmt.Errorf("wrong listen multiaddr: %w", err)
		}
		listenMAddrs = append(listenMAddrs, addr)
	}

	host, err := libp2p.New(
		libp2p.ListenAddrs(listenMAddrs...),
		libp2p.ResourceManager(&network.NullResourceManager{}),
	)
	if err != nil {
		return err
	}
	defer host.Close()

	addrs, err := peer.AddrInfoToP2pAddrs(p2phost.InfoFromHost(host))
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), "The p2p host is listening on:")
	for _, addr := range addrs {
		fmt.Fprintln(cmd.OutOrStdout(), "* ", addr.String())
	}
	fmt.Fprintln(cmd.OutOrStdout())

	pSub, err := pubsub.NewGossipSub(ctx, host)
	if err != nil {
		return err
	}

	bootstrap := relay.NewBootstrap(host)
	bootstrap.Serve()
	defer bootstrap.Stop()
	if relayBootstrapper != "" {
		maddr, err := multiaddr.NewMultiaddr(relayBootstrapper)
		if err != nil {
			return fmt.Errorf("wrong bootstrapper multiaddr: %w", err)
		}

		addrInfo, err := peer.AddrInfoFromP2pAddr(maddr)
		if err != nil {
			return err
		}

		if err = bootstrap.Start(ctx, *addrInfo); err != nil {
			return err
		}
	}

	inbox := relay.NewInbox(relayTTL)
	defer inbox.Close()

	node := relay.NewNode(relay.NetworkID(relayNetwork), host, pSub, append(opts, relay.WithInbox(inbox))...)
	if err = node.Start(); err != nil {
		return err
	}
	defer node.Stop(context.Background()) //nolint: errcheck

	if relaySend == "" {
		<-ctx.Done()
		return nil
	}

	select {
	case <-time.After(relayKickoff):
	case <-ctx.Done():
		return nil
	}

	env, err := loadEnvelope(cmd)
	if err != nil {
		return err
	}
	if err = node.Send(ctx, env); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "sent %s %s, %d peers connected\n", env.Action, env.ID, len(bootstrap.Members())-1)

	<-ctx.Done()
	return nil
}

// loadEnvelope wraps the message to send, keeping the signatures it already carries.
func loadEnvelope(cmd *cobra.Command) (*relay.Envelope, error) {
	signed, err := readInput(cmd, relaySend)
	if err != nil {
		return nil, err
	}

	body, sigs, err := ocpp.DetachSignatures(signed)
	if err != nil {
		return nil, err
	}

	env := relay.NewEnvelope(relayAction, relayContext, body)
	for _, sig := range sigs {
		env.AddSignature(sig)
	}
	if len(sigs) == 0 && relayKey == "" {
		return nil, fmt.Errorf("%s carries no signatures and no --key was given", relaySend)
	}
	return env, nil
}

