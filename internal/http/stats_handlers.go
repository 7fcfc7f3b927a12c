package http

import (
	stdhttp "net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "dice-drop-bot/internal/common/errors"
	"dice-drop-bot/internal/service/ledger"
)

const maxLimit = 100

// Activity reports the bot's in-flight drops.
type Activity interface {
	Busy() []string
	Started() time.Time
}

// StatsHandlers serves leaderboards and catalogs from the ledger.
type StatsHandlers struct {
	ledger       *ledger.Ledger
	activity     Activity
	defaultLimit int
}

func NewStatsHandlers(l *ledger.Ledger, activity Activity, defaultLimit int) *StatsHandlers {
	if defaultLimit <= 0 {
		defaultLimit = 10
	}
	return &StatsHandlers{ledger: l, activity: activity, defaultLimit: defaultLimit}
}

func (h *StatsHandlers) Register(r gin.IRouter) {
	r.GET("/status", h.status)
	r.GET("/communities/:id/leaderboard", h.communityLeaderboard)
	r.GET("/communities/:id/catalog", h.catalog)
	r.GET("/leaderboard/global", h.globalLeaderboard)
}

type collectibleResponse struct {
	Number int    `json:"number"`
	Name   string `json:"name"`
	URL    string `json:"url"`
}

func (h *StatsHandlers) status(c *gin.Context) {
	busy := h.activity.Busy()
	if busy == nil {
		busy = []string{}
	}
	c.JSON(stdhttp.StatusOK, gin.H{
		"communities": len(h.ledger.Communities()),
		"busy":        busy,
		"started_at":  h.activity.Started().UTC(),
	})
}

func (h *StatsHandlers) communityLeaderboard(c *gin.Context) {
	limit, err := h.limit(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	id := c.Param("id")
	c.JSON(stdhttp.StatusOK, gin.H{
		"community_id": id,
		"standings":    h.ledger.Leaderboard(id, limit),
	})
}

func (h *StatsHandlers) catalog(c *gin.Context) {
	id := c.Param("id")
	catalog := h.ledger.Catalog(id)
	if len(catalog) == 0 {
		_ = c.Error(apperrors.NewNotFoundError("catalog", id))
		return
	}
	items := make([]collectibleResponse, 0, len(catalog))
	for _, item := range catalog {
		items = append(items, collectibleResponse{Number: item.Number, Name: item.Name, URL: item.URL})
	}
	c.JSON(stdhttp.StatusOK, gin.H{
		"community_id": id,
		"collectibles": items,
	})
}

func (h *StatsHandlers) globalLeaderboard(c *gin.Context) {
	limit, err := h.limit(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(stdhttp.StatusOK, gin.H{"standings": h.ledger.GlobalRanking(limit)})
}

func (h *StatsHandlers) limit(c *gin.Context) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return h.defaultLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 || n > maxLimit {
		return 0, apperrors.NewValidationError("limit", "limit must be between 1 and 100")
	}
	return n, nil
}
