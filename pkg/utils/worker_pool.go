package utils

import (
	"log"
	"sync"
)

// WorkerPool 通用协程池
// 用于提交后置推送等 fire-and-forget 任务，防止高并发下 Goroutine 暴涨
type WorkerPool struct {
	JobQueue  chan func()
	WorkerNum int
	wg        sync.WaitGroup
	quit      chan bool
}

var (
	GlobalWorkerPool *WorkerPool
	poolOnce         sync.Once
)

// InitGlobalWorkerPool 初始化全局协程池
func InitGlobalWorkerPool(workerNum int, queueSize int) {
	poolOnce.Do(func() {
		GlobalWorkerPool = NewWorkerPool(workerNum, queueSize)
		GlobalWorkerPool.Start()
	})
}

// NewWorkerPool 创建一个新的协程池
func NewWorkerPool(workerNum int, queueSize int) *WorkerPool {
	return &WorkerPool{
		JobQueue:  make(chan func(), queueSize),
		WorkerNum: workerNum,
		quit:      make(chan bool),
	}
}

// Start 启动协程池
func (p *WorkerPool) Start() {
	for i := 0; i < p.WorkerNum; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *WorkerPool) worker() {
	defer p.wg.Done()
	for {
		select {
		case job, ok := <-p.JobQueue:
			if !ok {
				return
			}
			p.runJob(job)
		case <-p.quit:
			return
		}
	}
}

func (p *WorkerPool) runJob(job func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("worker pool job panic: %v", r)
		}
	}()
	job()
}

// Submit 提交任务；队列满时由调用方协程直接执行，保证任务不丢
func (p *WorkerPool) Submit(job func()) {
	select {
	case p.JobQueue <- job:
	default:
		p.runJob(job)
	}
}

// Stop 停止协程池并等待在途任务结束
func (p *WorkerPool) Stop() {
	close(p.quit)
	p.wg.Wait()
}
