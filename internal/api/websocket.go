// internal/api/websocket.go
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/yydounai1234/AIgo-sub000/internal/utils"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// EpisodeProgressWebSocket 推送集数流水线的进度事件
// 客户端连接后先收到当前状态，之后每个阶段事件实时推送；终态后连接关闭
func (h *Handler) EpisodeProgressWebSocket(c *gin.Context) {
	episodeID := c.Param("id")
	logger := utils.GetLogger()

	tracker, exists := h.ProgressService.GetTracker(episodeID)
	if !exists {
		h.Response.BadRequest(c, "该集数当前没有进行中的处理任务")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("WebSocket升级失败", map[string]interface{}{
			"episode_id": episodeID,
			"error":      err.Error(),
		})
		return
	}
	defer conn.Close()

	subscriber := tracker.Subscribe()
	defer tracker.Unsubscribe(subscriber)

	// 客户端断开时退出
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	pingTicker := time.NewTicker(30 * time.Second)
	defer pingTicker.Stop()

	for {
		select {
		case update, ok := <-subscriber:
			if !ok {
				return
			}
			if err := conn.WriteJSON(update); err != nil {
				return
			}
			if update.Status == "completed" || update.Status == "failed" {
				return
			}
		case <-pingTicker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
