package agent

import (
	"sync"
	"time"
)

// signalState tracks where one peer is in the offer/answer/candidate
// dance, mostly for the diagnostics endpoint and for expiring abandoned
// negotiations.
type signalState struct {
	Peer          string    `json:"peer"`
	LastOfferAt   time.Time `json:"lastOfferAt,omitempty"`
	LastAnswerAt  time.Time `json:"lastAnswerAt,omitempty"`
	LastCandidate time.Time `json:"lastCandidate,omitempty"`
	AgentReady    bool      `json:"agentReady"`
	ExpiresAt     time.Time `json:"-"`
}

type signalController struct {
	mu    sync.Mutex
	peers map[string]*signalState
	ttl   time.Duration
}

func newSignalController(ttl time.Duration) *signalController {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &signalController{
		peers: make(map[string]*signalState),
		ttl:   ttl,
	}
}

func (c *signalController) touchLocked(peer string) *signalState {
	state, ok := c.peers[peer]
	if !ok {
		state = &signalState{Peer: peer}
		c.peers[peer] = state
	}
	state.ExpiresAt = time.Now().Add(c.ttl)
	return state
}

func (c *signalController) recordOffer(peer string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleanupLocked(time.Now())
	state := c.touchLocked(peer)
	state.LastOfferAt = time.Now()
	state.AgentReady = false
}

func (c *signalController) recordAnswer(peer string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleanupLocked(time.Now())
	state := c.touchLocked(peer)
	state.LastAnswerAt = time.Now()
	state.AgentReady = true
}

func (c *signalController) recordCandidate(peer string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleanupLocked(time.Now())
	state := c.touchLocked(peer)
	state.LastCandidate = time.Now()
}

func (c *signalController) snapshot(peer string) signalState {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleanupLocked(time.Now())
	if state, ok := c.peers[peer]; ok {
		return *state
	}
	return signalState{Peer: peer}
}

func (c *signalController) drop(peer string) {
	if c == nil || peer == "" {
		return
	}
	c.mu.Lock()
	delete(c.peers, peer)
	c.mu.Unlock()
}

func (c *signalController) cleanupLocked(now time.Time) {
	for key, state := range c.peers {
		if now.After(state.ExpiresAt) {
			delete(c.peers, key)
		}
	}
}
