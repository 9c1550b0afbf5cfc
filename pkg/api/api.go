package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/decred/slog"
	"github.com/gin-gonic/gin"

	"spotrace-backend/pkg/auth"
	"spotrace-backend/pkg/game"
	"spotrace-backend/pkg/server"
	"spotrace-backend/pkg/ws"
)

// leaderboardEntryDTO is the wire shape of one leaderboard row.
type leaderboardEntryDTO struct {
	PlayerID      string `json:"playerId"`
	TotalPoints   int    `json:"totalPoints"`
	GamesPlayed   int    `json:"gamesPlayed"`
	GamesWon      int    `json:"gamesWon"`
	LastUpdatedAt string `json:"lastUpdatedAtUtc"`
}

// registerPlayerReq creates a player identity and returns its token.
type registerPlayerReq struct {
	PlayerID    string `json:"playerId" binding:"required"`
	DisplayName string `json:"displayName" binding:"required"`
}

type registerPlayerResp struct {
	PlayerID    string `json:"playerId"`
	DisplayName string `json:"displayName"`
	Token       string `json:"token"`
}

// NewRouter builds the HTTP surface: health, leaderboard and design-stats
// queries, player registration, and the websocket upgrade endpoint.
func NewRouter(srv *server.Server, disp *ws.Dispatcher, minter auth.TokenMinter, log slog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/design/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, srv.Design().Stats())
	})

	r.GET("/leaderboard", func(c *gin.Context) {
		count, err := strconv.Atoi(c.DefaultQuery("count", "10"))
		if err != nil || count < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "count must be a positive integer"})
			return
		}
		entries, err := srv.TopLeaderboard(c.Request.Context(), count)
		if err != nil {
			log.Errorf("Leaderboard query failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "leaderboard unavailable"})
			return
		}
		out := make([]leaderboardEntryDTO, 0, len(entries))
		for _, e := range entries {
			out = append(out, leaderboardEntryDTO{
				PlayerID:      e.PlayerID,
				TotalPoints:   e.TotalPoints,
				GamesPlayed:   e.GamesPlayed,
				GamesWon:      e.GamesWon,
				LastUpdatedAt: e.LastUpdatedAt.Format(time.RFC3339Nano),
			})
		}
		c.JSON(http.StatusOK, gin.H{"entries": out})
	})

	r.POST("/players", func(c *gin.Context) {
		var req registerPlayerReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "playerId and displayName are required"})
			return
		}
		player, err := srv.RegisterPlayer(c.Request.Context(), req.PlayerID, req.DisplayName)
		if err != nil {
			if errors.Is(err, game.ErrInvalidParams) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			log.Errorf("Player registration failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
			return
		}
		c.JSON(http.StatusOK, registerPlayerResp{
			PlayerID:    player.ID,
			DisplayName: player.DisplayName,
			Token:       minter.Mint(player.ID),
		})
	})

	r.GET("/ws", func(c *gin.Context) {
		disp.HandleUpgrade(c.Writer, c.Request)
	})

	return r
}
