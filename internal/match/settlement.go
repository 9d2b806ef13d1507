package match

import (
	"log"
	"time"
)

// applySettlement performs the exactly-once point-stake transfer for a
// finishing (or already finished but unsettled) match and stamps the
// cross-cutting settlement fields. It must run inside the same Tx that
// commits the status transition.
//
// Returns the number of points moved to the winner (0 for draws, social
// game types, zero stakes, or when settlement was already applied).
func applySettlement(tx Tx, m *Match, winner string, isDraw bool, now time.Time) (int, *Error) {
	if m.State.SettlementApplied {
		return m.State.StakeTransferred, nil
	}

	transferred := 0
	switch {
	case isDraw || winner == "":
		// no net transfer on a draw
	case IsNonCompetitiveGameType(m.GameType):
		// social types never move stake
	case m.Stake <= 0:
	default:
		loser := m.Opponent(winner)
		if loser != "" {
			if err := tx.AdjustPoints(loser, -m.Stake); err != nil {
				return 0, errInfra("Puan transferi uygulanamadı.", err)
			}
			if err := tx.AdjustPoints(winner, m.Stake); err != nil {
				return 0, errInfra("Puan transferi uygulanamadı.", err)
			}
			transferred = m.Stake
			log.Printf("[SETTLE] match=%s winner=%s loser=%s stake=%d", m.ID, winner, loser, m.Stake)
		}
	}

	m.State.SettlementApplied = true
	m.State.StakeTransferred = transferred
	m.State.SettledAt = nowISO(now)
	return transferred, nil
}
