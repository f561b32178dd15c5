package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// TaskQueue 任务队列键
	TaskQueue = "variantpad:tasks"
	// ResultQueue 结果队列键
	ResultQueue = "variantpad:results"
)

// RedisQueue Redis 队列消费者
type RedisQueue struct {
	client       *redis.Client
	taskQueue    string
	resultQueue  string
	consumerName string
	logger       *zap.Logger
}

// NewRedisQueue 创建 Redis 队列
func NewRedisQueue(redisURL, consumerName string, logger *zap.Logger) (*RedisQueue, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opt)

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &RedisQueue{
		client:       client,
		taskQueue:    TaskQueue,
		resultQueue:  ResultQueue,
		consumerName: consumerName,
		logger:       logger.With(zap.String("consumer", consumerName)),
	}, nil
}

// ConsumeTask 消费任务（阻塞式），超时返回 nil
func (q *RedisQueue) ConsumeTask(ctx context.Context) (*Task, error) {
	result, err := q.client.BLPop(ctx, 30*time.Second, q.taskQueue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	if len(result) < 2 {
		return nil, nil
	}

	return DecodeTask([]byte(result[1]))
}

// PublishResult 发布结果
func (q *RedisQueue) PublishResult(ctx context.Context, result *Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}

	return q.client.RPush(ctx, q.resultQueue, data).Err()
}

// Enqueue 投递任务
func (q *RedisQueue) Enqueue(ctx context.Context, task *Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return q.client.RPush(ctx, q.taskQueue, data).Err()
}

// Close 关闭连接
func (q *RedisQueue) Close() error {
	return q.client.Close()
}

// StartConsumer 启动消费者
func (q *RedisQueue) StartConsumer(ctx context.Context, handler TaskHandler, concurrency int) {
	if concurrency <= 0 {
		concurrency = 1
	}
	sem := make(chan struct{}, concurrency)

	q.logger.Info("queue consumer started", zap.String("queue", q.taskQueue), zap.Int("concurrency", concurrency))

	for {
		select {
		case <-ctx.Done():
			q.logger.Info("queue consumer stopped")
			return
		default:
		}

		task, err := q.ConsumeTask(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			q.logger.Warn("consume task", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		if task == nil {
			continue
		}

		// 获取并发控制信号量
		sem <- struct{}{}

		go func(t *Task) {
			defer func() { <-sem }()

			result := handler(ctx, t)
			if err := q.PublishResult(ctx, result); err != nil {
				q.logger.Warn("publish result", zap.String("task_id", t.ID), zap.Error(err))
			}
		}(task)
	}
}

// GetQueueLength 获取队列长度
func (q *RedisQueue) GetQueueLength(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.taskQueue).Result()
}
