package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/CallRelay/internal/domain"
	"github.com/dkeye/CallRelay/internal/protocol"
)

// caller sends a fully gathered offer and applies trickled candidates from
// the callee.
type caller struct {
	sig    *signalClient
	pc     *webrtc.PeerConnection
	opened chan struct{}

	mu        sync.Mutex
	remoteSet bool
	pending   []webrtc.ICECandidateInit
}

func newCaller(sig *signalClient, cfg webrtc.Configuration) (*caller, error) {
	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, fmt.Errorf("caller peer connection: %w", err)
	}
	c := &caller{sig: sig, pc: pc, opened: make(chan struct{})}

	dc, err := pc.CreateDataChannel("callcheck", nil)
	if err != nil {
		_ = pc.Close()
		return nil, fmt.Errorf("create data channel: %w", err)
	}
	var once sync.Once
	dc.OnOpen(func() { once.Do(func() { close(c.opened) }) })
	return c, nil
}

func (c *caller) call(ctx context.Context, from, to string) error {
	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}
	gathered := webrtc.GatheringCompletePromise(c.pc)
	if err := c.pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("set local offer: %w", err)
	}
	select {
	case <-gathered:
	case <-ctx.Done():
		return fmt.Errorf("gathering: %w", ctx.Err())
	}

	payload, err := json.Marshal(c.pc.LocalDescription())
	if err != nil {
		return err
	}
	if err := c.sig.send(protocol.CallInitiate{CallerID: from, CalleeID: to, Offer: payload}); err != nil {
		return err
	}
	log.Info().Str("module", "callcheck").Str("callee", to).Msg("call-initiate sent")

	go c.consume(ctx)

	select {
	case <-c.opened:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("data channel did not open (is %s allowed to call %s?): %w", from, to, ctx.Err())
	}
}

func (c *caller) consume(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-c.sig.events:
			if !ok {
				return
			}
			switch ev.Type {
			case protocol.TypeCallAnswered:
				c.applyAnswer(ev)
			case protocol.TypeICECandidate:
				c.addCandidate(ev.Candidate)
			}
		}
	}
}

func (c *caller) applyAnswer(ev protocol.ServerEvent) {
	var answer webrtc.SessionDescription
	if err := json.Unmarshal(ev.Answer, &answer); err != nil {
		log.Error().Err(err).Str("module", "callcheck").Msg("bad answer payload")
		return
	}
	if err := c.pc.SetRemoteDescription(answer); err != nil {
		log.Error().Err(err).Str("module", "callcheck").Msg("set remote answer")
		return
	}
	log.Info().Str("module", "callcheck").Str("from", string(ev.From)).Msg("answer applied")

	c.mu.Lock()
	c.remoteSet = true
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()
	for _, cand := range pending {
		c.apply(cand)
	}
}

func (c *caller) addCandidate(raw json.RawMessage) {
	var cand webrtc.ICECandidateInit
	if err := json.Unmarshal(raw, &cand); err != nil {
		log.Error().Err(err).Str("module", "callcheck").Msg("bad candidate payload")
		return
	}
	c.mu.Lock()
	if !c.remoteSet {
		c.pending = append(c.pending, cand)
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	c.apply(cand)
}

func (c *caller) apply(cand webrtc.ICECandidateInit) {
	if err := c.pc.AddICECandidate(cand); err != nil {
		log.Warn().Err(err).Str("module", "callcheck").Msg("add ice candidate")
	}
}

func (c *caller) Close() { _ = c.pc.Close() }

// callee answers the first incoming call and trickles its candidates back
// to the caller's handle.
type callee struct {
	sig *signalClient
	pc  *webrtc.PeerConnection
}

func newCallee(sig *signalClient, cfg webrtc.Configuration) (*callee, error) {
	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, fmt.Errorf("callee peer connection: %w", err)
	}
	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		dc.OnOpen(func() {
			log.Info().Str("module", "callcheck").Str("label", dc.Label()).Msg("callee data channel open")
		})
	})
	return &callee{sig: sig, pc: pc}, nil
}

func (c *callee) serve(ctx context.Context) {
	ev, err := c.sig.next(ctx, protocol.TypeIncomingCall)
	if err != nil {
		log.Error().Err(err).Str("module", "callcheck").Msg("no incoming call")
		return
	}
	if err := c.answer(ev.Offer, ev.From); err != nil {
		log.Error().Err(err).Str("module", "callcheck").Msg("answer failed")
	}
}

func (c *callee) answer(rawOffer json.RawMessage, from domain.ConnID) error {
	var offer webrtc.SessionDescription
	if err := json.Unmarshal(rawOffer, &offer); err != nil {
		return fmt.Errorf("decode offer: %w", err)
	}
	if err := c.pc.SetRemoteDescription(offer); err != nil {
		return fmt.Errorf("set remote offer: %w", err)
	}

	c.pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand == nil {
			return
		}
		payload, err := json.Marshal(cand.ToJSON())
		if err != nil {
			return
		}
		if err := c.sig.send(protocol.ICECandidate{Target: from, Candidate: payload}); err != nil {
			log.Warn().Err(err).Str("module", "callcheck").Msg("send candidate")
		}
	})

	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return fmt.Errorf("create answer: %w", err)
	}
	payload, err := json.Marshal(answer)
	if err != nil {
		return err
	}
	// The answer goes out before gathering starts so the caller sees it
	// ahead of any candidate.
	if err := c.sig.send(protocol.CallAnswer{Target: from, Answer: payload}); err != nil {
		return err
	}
	return c.pc.SetLocalDescription(answer)
}

func (c *callee) Close() { _ = c.pc.Close() }
