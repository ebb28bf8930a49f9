// Package relay moves signed OCPP messages between networking nodes over libp2p pubsub.
//
// Every node verifies incoming envelopes in a topic validator before they are accepted,
// so invalid envelopes are neither delivered locally nor propagated further.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"

	ocpp "github.com/OpenChargingCloud/WWCP-OCPP-sub134"
	"github.com/OpenChargingCloud/WWCP-OCPP-sub134/crypto"
)

// NetworkID identifies a relay network. Nodes of one network share a pubsub topic.
type NetworkID string

// String returns string representation of NetworkID.
func (nid NetworkID) String() string {
	return string(nid)
}

func (nid NetworkID) topic() string {
	return "/ocpp-relay/" + string(nid)
}

// Node is a member of a relay network.
type Node struct {
	networkID NetworkID

	host   host.Host
	pubsub *pubsub.PubSub
	topic  *pubsub.Topic
	sub    *pubsub.Subscription
	inbox  *Inbox

	// ownInbox is set when the Node created its Inbox and has to close it
	ownInbox bool

	role             *crypto.SignerRole
	policy           ocpp.VerificationRuleActions
	validatorTimeout time.Duration
	handler          func(context.Context, *Envelope)

	done chan struct{}
	log  *slog.Logger
}

// Option configures a Node.
type Option func(*Node)

// WithSigner makes the Node co-sign every envelope it sends or forwards.
func WithSigner(role *crypto.SignerRole) Option {
	return func(n *Node) { n.role = role }
}

// WithPolicy sets the policy incoming envelopes are verified under. VerifyAll by default.
func WithPolicy(policy ocpp.VerificationRuleActions) Option {
	return func(n *Node) { n.policy = policy }
}

// WithInbox sets the Inbox accepted envelopes are delivered to.
func WithInbox(inbox *Inbox) Option {
	return func(n *Node) { n.inbox = inbox }
}

// WithValidatorTimeout bounds the verification of a single envelope.
func WithValidatorTimeout(timeout time.Duration) Option {
	return func(n *Node) { n.validatorTimeout = timeout }
}

// WithHandler sets a function called for every envelope delivered to the Inbox.
// It runs on the delivery loop and must not block.
func WithHandler(handler func(context.Context, *Envelope)) Option {
	return func(n *Node) { n.handler = handler }
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(n *Node) { n.log = log }
}

// NewNode instantiates a new relay [Node] for the network.
func NewNode(networkID NetworkID, host host.Host, ps *pubsub.PubSub, opts ...Option) *Node {
	n := &Node{
		networkID:        networkID,
		host:             host,
		pubsub:           ps,
		policy:           ocpp.VerifyAll,
		validatorTimeout: time.Second,
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.inbox == nil {
		n.inbox = NewInbox(DefaultTTL)
		n.ownInbox = true
	}
	if n.log == nil {
		n.log = slog.Default()
	}
	n.log = n.log.With("module", "relay", "network", networkID.String())
	return n
}

// Inbox returns the Inbox accepted envelopes are delivered to.
func (n *Node) Inbox() *Inbox {
	return n.inbox
}

// Peers lists the peers of the network the Node is connected to. It is empty before Start.
func (n *Node) Peers() []peer.ID {
	if n.topic == nil {
		return nil
	}
	return n.topic.ListPeers()
}

func (n *Node) Start() (err error) {
	n.topic, err = n.pubsub.Join(n.networkID.topic())
	if err != nil {
		return err
	}

	err = n.pubsub.RegisterTopicValidator(
		n.networkID.topic(),
		n.deliver,
		pubsub.WithValidatorTimeout(n.validatorTimeout),
	)
	if err != nil {
		return errors.Join(err, n.topic.Close())
	}

	n.sub, err = n.topic.Subscribe()
	if err != nil {
		return errors.Join(err,
			n.pubsub.UnregisterTopicValidator(n.networkID.topic()),
			n.topic.Close(),
		)
	}

	n.done = make(chan struct{})
	go n.readLoop()

	n.log.Debug("started", "policy", n.policy)
	return nil
}

func (n *Node) Stop(ctx context.Context) (err error) {
	// the read loop ends once pubsub has dropped the subscription, after that the topic can be closed
	n.sub.Cancel()
	select {
	case <-n.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	err = errors.Join(err, n.pubsub.UnregisterTopicValidator(n.networkID.topic()))
	err = errors.Join(err, n.topic.Close())
	if n.ownInbox {
		n.inbox.Close()
	}
	return err
}

// Send co-signs the envelope if the Node has a signer and publishes it to the network.
// Publishing fails if the envelope does not pass verification under the Node's policy.
func (n *Node) Send(ctx context.Context, env *Envelope) error {
	if n.role != nil {
		if err := env.Sign(n.role); err != nil {
			return fmt.Errorf("co-signing envelope %s: %w", env.ID, err)
		}
	}
	return n.publish(ctx, env)
}

// Forward verifies an envelope received elsewhere, co-signs it and publishes it to the Node's network.
// Invalid envelopes are neither signed nor published.
func (n *Node) Forward(ctx context.Context, env *Envelope) error {
	if _, err := env.Verify(n.policy); err != nil {
		return fmt.Errorf("forwarding envelope %s: %w", env.ID, err)
	}
	return n.Send(ctx, env)
}

func (n *Node) publish(ctx context.Context, env *Envelope) error {
	data, err := env.MarshalBinary()
	if err != nil {
		return fmt.Errorf("encoding envelope %s: %w", env.ID, err)
	}

	err = n.topic.Publish(ctx, data)
	if err != nil {
		return fmt.Errorf("publishing envelope %s: %w", env.ID, err)
	}

	n.log.DebugContext(ctx, "sent", "id", env.ID, "action", env.Action, "signatures", len(env.Signatures()))
	return nil
}

// readLoop hands envelopes accepted by deliver over to the Inbox.
func (n *Node) readLoop() {
	defer close(n.done)
	ctx := context.Background()
	for {
		msg, err := n.sub.Next(ctx)
		if err != nil {
			return
		}
		if msg.ReceivedFrom == n.host.ID() {
			continue
		}

		env, ok := msg.ValidatorData.(*Envelope)
		if !ok {
			continue
		}

		if err = n.inbox.Push(ctx, env); err != nil {
			n.log.ErrorContext(ctx, "storing envelope", "id", env.ID, "err", err)
			continue
		}
		if n.handler != nil {
			n.handler(ctx, env)
		}
	}
}

// deliver decodes and verifies a pubsub message and reports its validity status
func (n *Node) deliver(ctx context.Context, from peer.ID, msg *pubsub.Message) (res pubsub.ValidationResult) {
	defer func() {
		// recover from potential panics caused by malformed network messages
		err := recover()
		if err != nil {
			n.log.ErrorContext(ctx, "deliver envelope panic", "err", err)
			res = pubsub.ValidationReject
		}
	}()

	env := &Envelope{}
	if err := env.UnmarshalBinary(msg.Data); err != nil {
		n.log.ErrorContext(ctx, "unmarshalling envelope", "from", from, "err", err)
		return pubsub.ValidationReject
	}

	report, err := env.Verify(n.policy)
	if err != nil {
		n.log.WarnContext(ctx, "rejecting envelope", "id", env.ID, "from", from, "err", err)
		return pubsub.ValidationReject
	}

	n.log.DebugContext(ctx, "accepted envelope", "id", env.ID, "from", from, "checked", len(report.Results))
	msg.ValidatorData = env
	return pubsub.ValidationAccept
}
