package domain

import "github.com/pion/webrtc/v4"

// SignalEnvelope - конверт сигналинга между двумя пирами. Содержимое
// (SDP или ICE-кандидат) пересылается получателю без изменений, ядро
// подставляет только поле From.
type SignalEnvelope struct {
	From      string                     `json:"from,omitempty"`
	To        string                     `json:"to"`
	Type      string                     `json:"type"`
	SDP       *webrtc.SessionDescription `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit   `json:"candidate,omitempty"`
}

const (
	SignalOffer     = "offer"
	SignalAnswer    = "answer"
	SignalCandidate = "candidate"
)

func ValidSignalType(t string) bool {
	return t == SignalOffer || t == SignalAnswer || t == SignalCandidate
}
