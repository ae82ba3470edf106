// internal/services/worker_pool.go
package services

import (
	"sync"

	"github.com/yydounai1234/AIgo-sub000/internal/utils"
)

// WorkerPool 有界工作池：固定核心工作者 + 有界队列 + 溢出工作者
// 队列与溢出额度全部占满时，提交方在自己的goroutine里同步执行任务，
// 请求在高负载下退化为同步处理而不是被丢弃
type WorkerPool struct {
	queue    chan func()
	overflow chan struct{}
	stopOnce sync.Once
	stopped  chan struct{}
	wg       sync.WaitGroup
	logger   *utils.Logger
}

// NewWorkerPool 创建工作池
// coreWorkers 常驻工作者数量；maxWorkers 含溢出工作者的上限；queueSize 积压队列容量
func NewWorkerPool(coreWorkers, maxWorkers, queueSize int) *WorkerPool {
	if coreWorkers < 1 {
		coreWorkers = 1
	}
	if maxWorkers < coreWorkers {
		maxWorkers = coreWorkers
	}

	p := &WorkerPool{
		queue:    make(chan func(), queueSize),
		overflow: make(chan struct{}, maxWorkers-coreWorkers),
		stopped:  make(chan struct{}),
		logger:   utils.GetLogger(),
	}

	for i := 0; i < coreWorkers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// Submit 提交任务
// 入队失败时先尝试启动溢出工作者，仍然满载则由调用方同步执行
func (p *WorkerPool) Submit(task func()) {
	select {
	case <-p.stopped:
		// 池已关闭，同步执行兜底
		task()
		return
	default:
	}

	select {
	case p.queue <- task:
		return
	default:
	}

	// 队列已满，尝试占用溢出额度
	select {
	case p.overflow <- struct{}{}:
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			defer func() { <-p.overflow }()
			task()
			// 顺带清空积压再退出
			p.drain()
		}()
		return
	default:
	}

	// 满载：提交方自己执行（背压策略，不是静默丢弃）
	p.logger.Warn("工作池满载，任务在提交线程同步执行", nil)
	task()
}

// worker 常驻工作者循环
func (p *WorkerPool) worker() {
	defer p.wg.Done()
	for {
		select {
		case task := <-p.queue:
			task()
		case <-p.stopped:
			// 退出前清空剩余任务
			p.drain()
			return
		}
	}
}

// drain 非阻塞地执行完队列中剩余的任务
func (p *WorkerPool) drain() {
	for {
		select {
		case task := <-p.queue:
			task()
		default:
			return
		}
	}
}

// Shutdown 停止接收新任务并等待在途任务完成
func (p *WorkerPool) Shutdown() {
	p.stopOnce.Do(func() {
		close(p.stopped)
	})
	p.wg.Wait()
}
