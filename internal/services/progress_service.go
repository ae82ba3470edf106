// internal/services/progress_service.go
package services

import (
	"fmt"
	"sync"
	"time"
)

// ProgressUpdate 流水线进度更新
type ProgressUpdate struct {
	Progress int    `json:"progress"` // 进度百分比 (0-100)
	Stage    string `json:"stage"`    // 当前阶段：parse, reconcile, illustrate, narrate, compose, persist
	Message  string `json:"message"`  // 描述性消息
	Status   string `json:"status"`   // 状态：running, completed, failed
}

// ProgressTracker 跟踪单个集数流水线的进度
type ProgressTracker struct {
	EpisodeID   string
	Progress    int
	Stage       string
	Message     string
	Status      string
	StartTime   time.Time
	UpdateTime  time.Time
	Subscribers map[chan ProgressUpdate]bool
	Done        chan struct{}
	mutex       sync.Mutex
}

// ProgressService 管理所有进度跟踪器
type ProgressService struct {
	trackers map[string]*ProgressTracker
	mutex    sync.RWMutex
}

// NewProgressService 创建进度服务实例
func NewProgressService() *ProgressService {
	return &ProgressService{
		trackers: make(map[string]*ProgressTracker),
	}
}

// CreateTracker 为一次流水线运行创建进度跟踪器
// 同集数重试时，已终止的旧跟踪器被新跟踪器替换
func (s *ProgressService) CreateTracker(episodeID string) *ProgressTracker {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if tracker, exists := s.trackers[episodeID]; exists {
		tracker.mutex.Lock()
		terminal := tracker.Status == "completed" || tracker.Status == "failed"
		tracker.mutex.Unlock()
		if !terminal {
			return tracker
		}
	}

	tracker := &ProgressTracker{
		EpisodeID:   episodeID,
		Progress:    0,
		Message:     "流水线初始化中...",
		Status:      "running",
		StartTime:   time.Now(),
		UpdateTime:  time.Now(),
		Subscribers: make(map[chan ProgressUpdate]bool),
		Done:        make(chan struct{}),
	}

	s.trackers[episodeID] = tracker
	return tracker
}

// GetTracker 获取进度跟踪器
func (s *ProgressService) GetTracker(episodeID string) (*ProgressTracker, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	tracker, exists := s.trackers[episodeID]
	return tracker, exists
}

// UpdateStage 更新当前阶段与进度
func (t *ProgressTracker) UpdateStage(progress int, stage, message string) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if progress > t.Progress {
		t.Progress = progress
	}
	if stage != "" {
		t.Stage = stage
	}
	if message != "" {
		t.Message = message
	}
	t.UpdateTime = time.Now()

	t.broadcast()
}

// Complete 标记流水线完成
func (t *ProgressTracker) Complete(message string) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.Progress = 100
	if message != "" {
		t.Message = message
	} else {
		t.Message = "处理已完成"
	}
	t.Status = "completed"
	t.UpdateTime = time.Now()

	t.broadcast()
	close(t.Done)
}

// Fail 标记流水线失败
func (t *ProgressTracker) Fail(errorMsg string) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.Message = fmt.Sprintf("处理失败: %s", errorMsg)
	t.Status = "failed"
	t.UpdateTime = time.Now()

	t.broadcast()
	close(t.Done)
}

// broadcast 通知所有订阅者，调用方必须持有锁
func (t *ProgressTracker) broadcast() {
	update := ProgressUpdate{
		Progress: t.Progress,
		Stage:    t.Stage,
		Message:  t.Message,
		Status:   t.Status,
	}

	for subscriber := range t.Subscribers {
		// 非阻塞发送，如果通道已满则跳过
		select {
		case subscriber <- update:
		default:
		}
	}
}

// Subscribe 订阅进度更新
func (t *ProgressTracker) Subscribe() chan ProgressUpdate {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	// 缓冲区设为10以避免阻塞
	subscriber := make(chan ProgressUpdate, 10)
	t.Subscribers[subscriber] = true

	// 立即发送当前状态
	subscriber <- ProgressUpdate{
		Progress: t.Progress,
		Stage:    t.Stage,
		Message:  t.Message,
		Status:   t.Status,
	}

	return subscriber
}

// Unsubscribe 取消订阅
func (t *ProgressTracker) Unsubscribe(subscriber chan ProgressUpdate) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	delete(t.Subscribers, subscriber)
	close(subscriber)
}

// CleanupCompletedTasks 清理已终止的跟踪器
func (s *ProgressService) CleanupCompletedTasks(maxAge time.Duration) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := time.Now()
	for id, tracker := range s.trackers {
		tracker.mutex.Lock()
		isTerminal := tracker.Status == "completed" || tracker.Status == "failed"
		isOld := now.Sub(tracker.UpdateTime) > maxAge
		tracker.mutex.Unlock()

		if isTerminal && isOld {
			delete(s.trackers, id)
		}
	}
}
