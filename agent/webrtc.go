package agent

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"Vidra/codec"

	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media"
)

var ErrViewerUnavailable = errors.New("agent: no such viewer session")

// viewer is one browser peer watching the encoded stream.
type viewer struct {
	id        string
	pc        *webrtc.PeerConnection
	track     *webrtc.TrackLocalStaticSample
	createdAt time.Time
}

type viewerSet struct {
	mu      sync.Mutex
	viewers map[string]*viewer
}

func newViewerSet() *viewerSet {
	return &viewerSet{viewers: make(map[string]*viewer)}
}

func (v *viewerSet) put(peer *viewer) {
	v.mu.Lock()
	if existing, ok := v.viewers[peer.id]; ok && existing != nil {
		existing.pc.Close()
	}
	v.viewers[peer.id] = peer
	v.mu.Unlock()
}

func (v *viewerSet) get(id string) *viewer {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.viewers[id]
}

func (v *viewerSet) remove(id string) {
	v.mu.Lock()
	peer := v.viewers[id]
	delete(v.viewers, id)
	v.mu.Unlock()
	if peer != nil {
		peer.pc.Close()
	}
}

func (v *viewerSet) closeAll() {
	v.mu.Lock()
	peers := make([]*viewer, 0, len(v.viewers))
	for id, peer := range v.viewers {
		if peer != nil {
			peers = append(peers, peer)
		}
		delete(v.viewers, id)
	}
	v.mu.Unlock()
	for _, peer := range peers {
		peer.pc.Close()
	}
}

// writeSample pushes one encoded image to every connected viewer track.
func (v *viewerSet) writeSample(img codec.EncodedImage, fps int) {
	if fps <= 0 {
		fps = 30
	}
	sample := media.Sample{
		Data:     img.Buffer,
		Duration: time.Second / time.Duration(fps),
	}
	v.mu.Lock()
	peers := make([]*viewer, 0, len(v.viewers))
	for _, peer := range v.viewers {
		if peer != nil && peer.track != nil {
			peers = append(peers, peer)
		}
	}
	v.mu.Unlock()
	for _, peer := range peers {
		if err := peer.track.WriteSample(sample); err != nil {
			logger.Debugf("viewer %s sample write: %v", peer.id, err)
		}
	}
}

// AcceptOffer answers a browser offer with an H.264 send-only track and
// returns the local description payload.
func (a *Agent) AcceptOffer(peerID string, payload map[string]any) (map[string]any, error) {
	if peerID == "" {
		return nil, errors.New("agent: missing peer id")
	}
	offer, err := decodeSessionDescription(payload)
	if err != nil {
		return nil, err
	}
	if offer.Type != webrtc.SDPTypeOffer {
		return nil, fmt.Errorf("agent: expected offer, got %s", offer.Type)
	}
	a.signalling.recordOffer(peerID)

	pc, err := webrtc.NewPeerConnection(a.iceConfiguration(peerID))
	if err != nil {
		return nil, err
	}
	track, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{
		MimeType: webrtc.MimeTypeH264,
	}, "vidra-video", peerID)
	if err != nil {
		pc.Close()
		return nil, err
	}
	rtpSender, err := pc.AddTrack(track)
	if err != nil {
		pc.Close()
		return nil, err
	}
	go func() {
		rtcpBuf := make([]byte, 1500)
		for {
			if _, _, rtcpErr := rtpSender.Read(rtcpBuf); rtcpErr != nil {
				return
			}
		}
	}()
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		switch state {
		case webrtc.PeerConnectionStateConnected:
			a.RequestKeyFrame()
		case webrtc.PeerConnectionStateDisconnected, webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			a.viewers.remove(peerID)
		}
	})

	if err := pc.SetRemoteDescription(offer); err != nil {
		pc.Close()
		return nil, err
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		pc.Close()
		return nil, err
	}
	gatherComplete := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(answer); err != nil {
		pc.Close()
		return nil, err
	}
	<-gatherComplete
	local := pc.LocalDescription()
	if local == nil {
		pc.Close()
		return nil, errors.New("agent: missing local description")
	}

	a.viewers.put(&viewer{
		id:        peerID,
		pc:        pc,
		track:     track,
		createdAt: time.Now(),
	})
	a.signalling.recordAnswer(peerID)
	logger.Infof("webrtc viewer established peer=%s", peerID)
	return map[string]any{
		"type": local.Type.String(),
		"sdp":  local.SDP,
	}, nil
}

// AddRemoteCandidate appends a trickled ICE candidate from the browser.
func (a *Agent) AddRemoteCandidate(peerID string, payload map[string]any) error {
	peer := a.viewers.get(peerID)
	if peer == nil {
		return ErrViewerUnavailable
	}
	candidate, _ := payload["candidate"].(string)
	if candidate == "" {
		return errors.New("agent: missing candidate payload")
	}
	init := webrtc.ICECandidateInit{Candidate: candidate}
	if mid, ok := payload["sdpMid"].(string); ok {
		init.SDPMid = &mid
	}
	if idx, ok := payload["sdpMLineIndex"].(float64); ok {
		lineIdx := uint16(idx)
		init.SDPMLineIndex = &lineIdx
	}
	a.signalling.recordCandidate(peerID)
	return peer.pc.AddICECandidate(init)
}

// CloseViewer tears down one viewer session.
func (a *Agent) CloseViewer(peerID string) {
	a.viewers.remove(peerID)
	a.signalling.drop(peerID)
}

// iceConfiguration builds the pion configuration, minting time-limited
// TURN credentials when the config carries a shared secret.
func (a *Agent) iceConfiguration(peerID string) webrtc.Configuration {
	if a.cfg.WebRTC == nil || !a.cfg.WebRTC.Enabled {
		return webrtc.Configuration{}
	}
	if bundle, ok := a.issuer.mint(peerID); ok {
		servers := make([]webrtc.ICEServer, 0, len(bundle.servers))
		for _, entry := range bundle.servers {
			server := webrtc.ICEServer{URLs: entry.urls}
			if entry.username != "" {
				server.Username = entry.username
			}
			if entry.credential != "" {
				server.Credential = entry.credential
			}
			servers = append(servers, server)
		}
		return webrtc.Configuration{ICEServers: servers}
	}
	servers := make([]webrtc.ICEServer, 0, len(a.cfg.WebRTC.Servers))
	for _, tmpl := range a.cfg.WebRTC.Servers {
		if len(tmpl.URLs) == 0 {
			continue
		}
		server := webrtc.ICEServer{URLs: append([]string(nil), tmpl.URLs...)}
		if tmpl.Username != "" {
			server.Username = tmpl.Username
		}
		if tmpl.Credential != "" {
			server.Credential = tmpl.Credential
		}
		servers = append(servers, server)
	}
	return webrtc.Configuration{ICEServers: servers}
}

func decodeSessionDescription(payload map[string]any) (webrtc.SessionDescription, error) {
	if payload == nil {
		return webrtc.SessionDescription{}, errors.New("agent: missing session description")
	}
	typeStr, _ := payload["type"].(string)
	sdp, _ := payload["sdp"].(string)
	if typeStr == "" || sdp == "" {
		return webrtc.SessionDescription{}, errors.New("agent: malformed session description")
	}
	desc := webrtc.SessionDescription{SDP: sdp}
	switch strings.ToLower(typeStr) {
	case "offer":
		desc.Type = webrtc.SDPTypeOffer
	case "answer":
		desc.Type = webrtc.SDPTypeAnswer
	case "pranswer":
		desc.Type = webrtc.SDPTypePranswer
	default:
		return webrtc.SessionDescription{}, fmt.Errorf("agent: unsupported SDP type %q", typeStr)
	}
	return desc, nil
}
