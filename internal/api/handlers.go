// internal/api/handlers.go
package api

import (
	"github.com/gin-gonic/gin"

	"github.com/yydounai1234/AIgo-sub000/internal/models"
	"github.com/yydounai1234/AIgo-sub000/internal/services"
)

// Handler 处理API请求
type Handler struct {
	WorkService      *services.WorkService      // 作品服务
	EpisodeService   *services.EpisodeService   // 集数服务
	CharacterService *services.CharacterService // 角色服务
	ProgressService  *services.ProgressService  // 进度跟踪服务
	Response         *ResponseHelper            // 响应助手
}

// NewHandler 创建API处理器
func NewHandler(
	workService *services.WorkService,
	episodeService *services.EpisodeService,
	characterService *services.CharacterService,
	progressService *services.ProgressService,
) *Handler {
	return &Handler{
		WorkService:      workService,
		EpisodeService:   episodeService,
		CharacterService: characterService,
		ProgressService:  progressService,
		Response:         NewResponseHelper(),
	}
}

// CreateWorkRequest 创建作品的请求结构
type CreateWorkRequest struct {
	Title          string `json:"title" binding:"required"`
	Author         string `json:"author"`
	Description    string `json:"description"`
	ContentType    string `json:"content_type"`
	Style          string `json:"style"`
	TargetAudience string `json:"target_audience"`
}

// CreateWork 创建作品
func (h *Handler) CreateWork(c *gin.Context) {
	var req CreateWorkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "请求参数无效: "+err.Error())
		return
	}

	work := &models.Work{
		Title:          req.Title,
		Author:         req.Author,
		Description:    req.Description,
		ContentType:    req.ContentType,
		Style:          req.Style,
		TargetAudience: req.TargetAudience,
	}
	if err := h.WorkService.Create(c.Request.Context(), work); err != nil {
		h.Response.Error(c, err)
		return
	}
	h.Response.Created(c, work)
}

// GetWork 查询作品
func (h *Handler) GetWork(c *gin.Context) {
	work, err := h.WorkService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Response.Error(c, err)
		return
	}
	h.Response.Success(c, work)
}

// ListWorks 列出全部作品
func (h *Handler) ListWorks(c *gin.Context) {
	works, err := h.WorkService.List(c.Request.Context())
	if err != nil {
		h.Response.Error(c, err)
		return
	}
	h.Response.Success(c, works)
}

// DeleteWork 删除作品
func (h *Handler) DeleteWork(c *gin.Context) {
	if err := h.WorkService.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.Response.Error(c, err)
		return
	}
	h.Response.Success(c, nil, "作品已删除")
}

// CreateEpisodeRequest 创建集数的请求结构
type CreateEpisodeRequest struct {
	Title     string `json:"title"`
	NovelText string `json:"novel_text" binding:"required"`
}

// CreateEpisode 创建集数并触发异步流水线
// 同步落库PENDING后立即返回，处理进度通过状态字段与WebSocket观察
func (h *Handler) CreateEpisode(c *gin.Context) {
	var req CreateEpisodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "请求参数无效: "+err.Error())
		return
	}

	episode, err := h.EpisodeService.Create(c.Request.Context(), c.Param("id"), req.Title, req.NovelText)
	if err != nil {
		h.Response.Error(c, err)
		return
	}
	h.Response.Created(c, episode, "集数已创建，开始后台处理")
}

// GetEpisode 查询集数（状态与错误消息在此可见）
func (h *Handler) GetEpisode(c *gin.Context) {
	episode, err := h.EpisodeService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Response.Error(c, err)
		return
	}
	h.Response.Success(c, episode)
}

// ListEpisodes 列出作品的集数
func (h *Handler) ListEpisodes(c *gin.Context) {
	episodes, err := h.EpisodeService.ListByWork(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Response.Error(c, err)
		return
	}
	h.Response.Success(c, episodes)
}

// RetryEpisode 重试失败的集数
func (h *Handler) RetryEpisode(c *gin.Context) {
	episode, err := h.EpisodeService.Retry(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Response.Error(c, err)
		return
	}
	h.Response.Success(c, episode, "重试已触发")
}

// PublishEpisodeRequest 发布请求
type PublishEpisodeRequest struct {
	Published *bool `json:"published" binding:"required"`
}

// PublishEpisode 更新发布状态
func (h *Handler) PublishEpisode(c *gin.Context) {
	var req PublishEpisodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "请求参数无效: "+err.Error())
		return
	}

	if err := h.EpisodeService.Publish(c.Request.Context(), c.Param("id"), *req.Published); err != nil {
		h.Response.Error(c, err)
		return
	}
	h.Response.Success(c, nil, "发布状态已更新")
}

// UpdatePricingRequest 定价请求
type UpdatePricingRequest struct {
	IsFree    *bool `json:"is_free" binding:"required"`
	CoinPrice int   `json:"coin_price"`
}

// UpdatePricing 更新定价
func (h *Handler) UpdatePricing(c *gin.Context) {
	var req UpdatePricingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "请求参数无效: "+err.Error())
		return
	}

	if err := h.EpisodeService.SetPricing(c.Request.Context(), c.Param("id"), *req.IsFree, req.CoinPrice); err != nil {
		h.Response.Error(c, err)
		return
	}
	h.Response.Success(c, nil, "定价已更新")
}

// ListCharacters 列出作品的角色名册
func (h *Handler) ListCharacters(c *gin.Context) {
	characters, err := h.CharacterService.ListByWork(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Response.Error(c, err)
		return
	}
	h.Response.Success(c, characters)
}

// Health 健康检查
func (h *Handler) Health(c *gin.Context) {
	h.Response.Success(c, gin.H{"status": "ok"})
}
