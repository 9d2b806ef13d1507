package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/masaplay/backend/internal/match"
)

// CreateGame opens a new waiting match hosted by the session user.
func CreateGame(orch *match.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req match.CreateInput
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "gameType required"})
			return
		}
		m, mErr := orch.Create(c.Request.Context(), sessionFrom(c), req)
		if mErr != nil {
			respondError(c, mErr)
			return
		}
		c.JSON(http.StatusCreated, m)
	}
}

// JoinGame seats the session user as guest.
func JoinGame(orch *match.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		m, mErr := orch.Join(c.Request.Context(), sessionFrom(c), c.Param("id"))
		if mErr != nil {
			respondError(c, mErr)
			return
		}
		c.JSON(http.StatusOK, m)
	}
}

// GetGameState returns the match, finalizing an expired chess clock first.
func GetGameState(orch *match.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		m, mErr := orch.GetState(c.Request.Context(), c.Param("id"))
		if mErr != nil {
			respondError(c, mErr)
			return
		}
		c.JSON(http.StatusOK, m)
	}
}

// SubmitResult records the session user's score report.
func SubmitResult(orch *match.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req match.ScoreSubmission
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "score payload required"})
			return
		}
		m, mErr := orch.SubmitResult(c.Request.Context(), sessionFrom(c), c.Param("id"), req)
		if mErr != nil {
			respondError(c, mErr)
			return
		}
		c.JSON(http.StatusOK, m)
	}
}

// ChessMove applies a chess move for the session user.
func ChessMove(orch *match.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req match.ChessMoveInput
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from and to required"})
			return
		}
		m, mErr := orch.SubmitChessMove(c.Request.Context(), sessionFrom(c), c.Param("id"), req)
		if mErr != nil {
			respondError(c, mErr)
			return
		}
		c.JSON(http.StatusOK, m)
	}
}

// ChessDraw drives the draw offer sub-protocol.
func ChessDraw(orch *match.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Action string `json:"action"`
		}
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "action required"})
			return
		}
		m, mErr := orch.DrawAction(c.Request.Context(), sessionFrom(c), c.Param("id"), req.Action)
		if mErr != nil {
			respondError(c, mErr)
			return
		}
		c.JSON(http.StatusOK, m)
	}
}

// ResignGame ends the match in the opponent's favor.
func ResignGame(orch *match.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		m, mErr := orch.Resign(c.Request.Context(), sessionFrom(c), c.Param("id"))
		if mErr != nil {
			respondError(c, mErr)
			return
		}
		c.JSON(http.StatusOK, m)
	}
}

// FinishGame reports a terminal outcome directly.
func FinishGame(orch *match.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req match.FinishInput
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "winner payload required"})
			return
		}
		m, mErr := orch.Finish(c.Request.Context(), sessionFrom(c), c.Param("id"), req)
		if mErr != nil {
			respondError(c, mErr)
			return
		}
		c.JSON(http.StatusOK, m)
	}
}

// DeleteGame removes a match the session user participates in (admins any).
func DeleteGame(orch *match.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		m, mErr := orch.Delete(c.Request.Context(), sessionFrom(c), c.Param("id"))
		if mErr != nil {
			respondError(c, mErr)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": true, "id": m.ID})
	}
}

// ListLobby returns waiting matches. ?table= scopes to one table,
// ?scope=all to the session user's whole venue, default is the user's
// table when checked in.
func ListLobby(orch *match.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessionFrom(c)
		var f match.WaitingFilter
		switch {
		case c.Query("table") != "":
			f.TableCode = strings.ToUpper(strings.TrimSpace(c.Query("table")))
		case c.Query("scope") == "all" && sess.CafeID > 0:
			f.CafeID = sess.CafeID
		case sess.HasCheckIn():
			f.TableCode = strings.ToUpper(strings.TrimSpace(sess.TableCode))
		}
		list, mErr := orch.ListWaiting(c.Request.Context(), f)
		if mErr != nil {
			respondError(c, mErr)
			return
		}
		c.JSON(http.StatusOK, gin.H{"games": list})
	}
}

// GameHistory returns the session user's finished matches.
func GameHistory(orch *match.Orchestrator, defaultLimit int) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := defaultLimit
		if v := c.Query("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
				limit = n
			}
		}
		rows, mErr := orch.History(c.Request.Context(), sessionFrom(c), limit)
		if mErr != nil {
			respondError(c, mErr)
			return
		}
		c.JSON(http.StatusOK, gin.H{"games": rows})
	}
}

// ActiveGame returns the session user's current active match, if any.
func ActiveGame(orch *match.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		m, mErr := orch.ActiveFor(c.Request.Context(), sessionFrom(c).Username)
		if mErr != nil {
			respondError(c, mErr)
			return
		}
		if m == nil {
			c.JSON(http.StatusOK, gin.H{"game": nil})
			return
		}
		c.JSON(http.StatusOK, gin.H{"game": m})
	}
}
