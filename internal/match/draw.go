package match

import "strings"

// Draw-offer actions accepted by the sub-protocol.
const (
	DrawActionOffer  = "offer"
	DrawActionCancel = "cancel"
	DrawActionReject = "reject"
	DrawActionAccept = "accept"
)

// NormalizeDrawAction maps raw input onto a known action ("" if unknown).
func NormalizeDrawAction(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case DrawActionOffer:
		return DrawActionOffer
	case DrawActionCancel:
		return DrawActionCancel
	case DrawActionReject:
		return DrawActionReject
	case DrawActionAccept:
		return DrawActionAccept
	}
	return ""
}

// pendingDrawOffer returns the current offer only while it is pending.
func pendingDrawOffer(cs *ChessState) *DrawOffer {
	if cs == nil || cs.DrawOffer == nil {
		return nil
	}
	if cs.DrawOffer.Status != "pending" {
		return nil
	}
	return cs.DrawOffer
}
