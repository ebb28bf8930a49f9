package relay

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"time"
)

var ErrEnvelopeDeleted = errors.New("envelope deleted")

// DefaultTTL is how long an Inbox keeps envelopes nobody deleted.
const DefaultTTL = time.Minute

var gcInterval = time.Second * 10

// Inbox keeps verified envelopes by ID until they are deleted or go stale.
type Inbox struct {
	envelopesMu   sync.Mutex
	envelopes     map[string]inboxEntry
	envelopesSubs map[string]map[chan *Envelope]struct{}
	ttl           time.Duration
	closeCh       chan struct{}
	closeOnce     sync.Once
}

type inboxEntry struct {
	*Envelope
	time time.Time
}

// NewInbox instantiates an Inbox dropping envelopes older than ttl. DefaultTTL applies to a non-positive ttl.
func NewInbox(ttl time.Duration) *Inbox {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	inbox := &Inbox{
		envelopes:     make(map[string]inboxEntry),
		envelopesSubs: make(map[string]map[chan *Envelope]struct{}),
		ttl:           ttl,
		closeCh:       make(chan struct{}),
	}
	go inbox.gc(gcInterval)
	return inbox
}

// Close stops garbage collection.
func (in *Inbox) Close() {
	in.closeOnce.Do(func() { close(in.closeCh) })
}

func (in *Inbox) Size(context.Context) (int, error) {
	in.envelopesMu.Lock()
	defer in.envelopesMu.Unlock()
	return len(in.envelopes), nil
}

// Push stores the envelope and hands it to everyone pulling its ID.
// An envelope with a known ID replaces the stored one.
func (in *Inbox) Push(_ context.Context, env *Envelope) error {
	if env.ID == "" {
		return errors.New("envelope without id")
	}

	in.envelopesMu.Lock()
	defer in.envelopesMu.Unlock()

	in.envelopes[env.ID] = inboxEntry{Envelope: env, time: time.Now()}

	subs, ok := in.envelopesSubs[env.ID]
	if ok {
		for sub := range subs {
			sub <- env // subs are always buffered, so this won't block
		}
		delete(in.envelopesSubs, env.ID)
	}
	return nil
}

// Pull returns the envelope with the given ID, waiting for it to arrive if necessary.
func (in *Inbox) Pull(ctx context.Context, id string) (*Envelope, error) {
	in.envelopesMu.Lock()
	e, ok := in.envelopes[id]
	if ok {
		in.envelopesMu.Unlock()
		return e.Envelope, nil
	}

	subs, ok := in.envelopesSubs[id]
	if !ok {
		subs = make(map[chan *Envelope]struct{})
		in.envelopesSubs[id] = subs
	}

	sub := make(chan *Envelope, 1)
	subs[sub] = struct{}{}
	in.envelopesMu.Unlock()

	select {
	case env, ok := <-sub:
		if !ok {
			return nil, ErrEnvelopeDeleted
		}
		return env, nil
	case <-ctx.Done():
		// no need to keep the request, if the caller has canceled
		in.envelopesMu.Lock()
		delete(subs, sub)
		if cur, ok := in.envelopesSubs[id]; ok && len(cur) == 0 {
			delete(in.envelopesSubs, id)
		}
		in.envelopesMu.Unlock()
		return nil, ctx.Err()
	}
}

// ListBySigner returns the stored envelopes carrying a signature by the given key.
func (in *Inbox) ListBySigner(_ context.Context, keyID []byte) ([]*Envelope, error) {
	in.envelopesMu.Lock()
	defer in.envelopesMu.Unlock()

	var envs []*Envelope
	for _, e := range in.envelopes {
		for _, sig := range e.Signatures() {
			if bytes.Equal(sig.KeyID, keyID) {
				envs = append(envs, e.Envelope)
				break
			}
		}
	}
	return envs, nil
}

// Delete drops the envelope and fails everyone still pulling its ID.
func (in *Inbox) Delete(_ context.Context, id string) error {
	in.envelopesMu.Lock()
	defer in.envelopesMu.Unlock()

	delete(in.envelopes, id)
	in.dropSubs(id)
	return nil
}

// dropSubs must be called with envelopesMu held.
func (in *Inbox) dropSubs(id string) {
	for sub := range in.envelopesSubs[id] {
		close(sub)
	}
	delete(in.envelopesSubs, id)
}

// gc periodically cleans up stale envelopes
func (in *Inbox) gc(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			now := time.Now()
			in.envelopesMu.Lock()
			for id, e := range in.envelopes {
				if e.time.Add(in.ttl).Before(now) {
					delete(in.envelopes, id)
					in.dropSubs(id)
				}
			}
			in.envelopesMu.Unlock()
		case <-in.closeCh:
			return
		}
	}
}
