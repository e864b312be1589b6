package telegram

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gotd/td/tg"
)

// PeerKind identifies one Telegram peer class in static channel configuration.
type PeerKind string

const (
	// PeerKindChannel is a channel or megagroup peer; it requires an access hash.
	PeerKindChannel PeerKind = "channel"
	// PeerKindChat is a basic group peer.
	PeerKindChat PeerKind = "chat"
	// PeerKindUser is a private conversation peer; it requires an access hash.
	PeerKindUser PeerKind = "user"
)

// PeerRef is one statically configured channel-to-peer binding.
type PeerRef struct {
	// Kind selects the Telegram peer class.
	Kind PeerKind `json:"kind"`
	// ID is the Telegram peer identifier.
	ID int64 `json:"id"`
	// AccessHash authorizes channel and user peer access.
	AccessHash int64 `json:"access_hash"`
}

// Validate checks one peer binding for coherence.
func (r PeerRef) Validate() error {
	switch r.Kind {
	case PeerKindChannel, PeerKindChat, PeerKindUser:
	default:
		return fmt.Errorf("validate peer ref: unsupported kind %q", r.Kind)
	}
	if r.ID <= 0 {
		return fmt.Errorf("validate peer ref: id must be > 0")
	}

	return nil
}

// PeerTable resolves neutral channel identifiers to Telegram input peers.
//
// Bindings come from static configuration, so summary channels stay reachable
// across restarts without replaying inbound updates first.
type PeerTable struct {
	mu    sync.RWMutex
	peers map[string]tg.InputPeerClass
}

// NewPeerTable creates a peer table from static channel bindings.
func NewPeerTable(bindings map[string]PeerRef) (*PeerTable, error) {
	table := &PeerTable{
		peers: make(map[string]tg.InputPeerClass, len(bindings)),
	}
	for channelID, ref := range bindings {
		if strings.TrimSpace(channelID) == "" {
			return nil, fmt.Errorf("new peer table: empty channel id")
		}
		if err := ref.Validate(); err != nil {
			return nil, fmt.Errorf("new peer table: channel %s: %w", channelID, err)
		}
		table.peers[channelID] = inputPeerFromRef(ref)
	}

	return table, nil
}

// Remember stores one channel-to-peer binding discovered at runtime.
func (t *PeerTable) Remember(channelID string, peer tg.InputPeerClass) {
	if t == nil || peer == nil || strings.TrimSpace(channelID) == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.peers[channelID] = cloneInputPeer(peer)
}

// Resolve returns the input peer bound to one channel identifier.
func (t *PeerTable) Resolve(channelID string) (tg.InputPeerClass, error) {
	if t == nil {
		return nil, fmt.Errorf("resolve peer: nil table")
	}
	if strings.TrimSpace(channelID) == "" {
		return nil, fmt.Errorf("resolve peer: empty channel id")
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	peer, ok := t.peers[channelID]
	if !ok {
		return nil, fmt.Errorf("resolve peer: channel %s not configured", channelID)
	}

	return cloneInputPeer(peer), nil
}

func inputPeerFromRef(ref PeerRef) tg.InputPeerClass {
	switch ref.Kind {
	case PeerKindChat:
		return &tg.InputPeerChat{ChatID: ref.ID}
	case PeerKindUser:
		return &tg.InputPeerUser{UserID: ref.ID, AccessHash: ref.AccessHash}
	default:
		return &tg.InputPeerChannel{ChannelID: ref.ID, AccessHash: ref.AccessHash}
	}
}

func cloneInputPeer(peer tg.InputPeerClass) tg.InputPeerClass {
	switch typed := peer.(type) {
	case *tg.InputPeerUser:
		copyPeer := *typed
		return &copyPeer
	case *tg.InputPeerChat:
		copyPeer := *typed
		return &copyPeer
	case *tg.InputPeerChannel:
		copyPeer := *typed
		return &copyPeer
	case *tg.InputPeerSelf:
		copyPeer := *typed
		return &copyPeer
	default:
		return peer
	}
}
