// internal/services/lock_manager.go
package services

import (
	"sync"
	"sync/atomic"
	"time"
)

// LockManager 统一的锁管理器
// 角色锁：按 (workID, name) 串行化名册调和，防止合并步骤的丢失更新
// 运行护栏：保证同一集数同时至多一个流水线运行
type LockManager struct {
	keyedLocks    map[string]*LockInfo
	runningRuns   map[string]struct{}
	globalLock    sync.RWMutex
	runLock       sync.Mutex
	cleanupTicker *time.Ticker
}

// LockInfo 包装锁和相关信息
type LockInfo struct {
	Mutex          *sync.RWMutex
	LastUsed       time.Time
	ReferenceCount int32 // 当前锁被引用的次数，用于防止在使用时被清理
}

// NewLockManager 创建锁管理器
func NewLockManager() *LockManager {
	lm := &LockManager{
		keyedLocks:  make(map[string]*LockInfo),
		runningRuns: make(map[string]struct{}),
	}

	// 启动清理器
	lm.startCleanup()
	return lm
}

// getLock 获取命名锁并将引用计数加一（线程安全）
// 调用方使用完毕后必须调用 releaseLock 归还引用
func (lm *LockManager) getLock(key string) *LockInfo {
	lm.globalLock.RLock()
	if lockInfo, exists := lm.keyedLocks[key]; exists {
		atomic.AddInt32(&lockInfo.ReferenceCount, 1)
		lm.globalLock.RUnlock()
		lockInfo.LastUsed = time.Now()
		return lockInfo
	}
	lm.globalLock.RUnlock()

	// 升级为写锁
	lm.globalLock.Lock()
	defer lm.globalLock.Unlock()

	// 双重检查（在写锁保护下是安全的）
	if lockInfo, exists := lm.keyedLocks[key]; exists {
		atomic.AddInt32(&lockInfo.ReferenceCount, 1)
		lockInfo.LastUsed = time.Now()
		return lockInfo
	}

	lockInfo := &LockInfo{
		Mutex:          &sync.RWMutex{},
		LastUsed:       time.Now(),
		ReferenceCount: 1,
	}
	lm.keyedLocks[key] = lockInfo
	return lockInfo
}

// releaseLock 归还引用，计数归零后锁才可能被清理
func (lm *LockManager) releaseLock(lockInfo *LockInfo) {
	atomic.AddInt32(&lockInfo.ReferenceCount, -1)
}

// ExecuteWithCharacterLock 在角色调和锁保护下执行操作
// 同一 (workID, name) 的调和操作串行执行
func (lm *LockManager) ExecuteWithCharacterLock(workID, name string, fn func() error) error {
	lockInfo := lm.getLock("character:" + workID + ":" + name)
	defer lm.releaseLock(lockInfo)

	lockInfo.Mutex.Lock()
	defer lockInfo.Mutex.Unlock()
	return fn()
}

// TryAcquireRun 尝试占用集数的流水线运行权
// 已有同集数运行在途时返回 false，调用方必须放弃本次运行
func (lm *LockManager) TryAcquireRun(episodeID string) bool {
	lm.runLock.Lock()
	defer lm.runLock.Unlock()

	if _, running := lm.runningRuns[episodeID]; running {
		return false
	}
	lm.runningRuns[episodeID] = struct{}{}
	return true
}

// ReleaseRun 释放集数的运行权
func (lm *LockManager) ReleaseRun(episodeID string) {
	lm.runLock.Lock()
	defer lm.runLock.Unlock()
	delete(lm.runningRuns, episodeID)
}

// 定期清理未使用的锁
func (lm *LockManager) startCleanup() {
	lm.cleanupTicker = time.NewTicker(5 * time.Minute)
	go func() {
		for range lm.cleanupTicker.C {
			lm.cleanupUnusedLocks()
		}
	}()
}

func (lm *LockManager) cleanupUnusedLocks() {
	lm.globalLock.Lock()
	defer lm.globalLock.Unlock()

	const maxLocks = 200
	const lockTimeout = 30 * time.Minute

	// 只有在锁数量过多时才清理
	if len(lm.keyedLocks) > maxLocks {
		now := time.Now()
		for key, lockInfo := range lm.keyedLocks {
			// 被引用中的锁不能删，否则持有者与后来者会拿到不同的互斥体
			if atomic.LoadInt32(&lockInfo.ReferenceCount) > 0 {
				continue
			}
			if now.Sub(lockInfo.LastUsed) > lockTimeout {
				delete(lm.keyedLocks, key)
			}
		}
	}
}
