package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"

	"optimus/internal/tasks"
)

// AsynqJobClient is a concrete JobClient that hands pipeline run requests to
// the worker process through Redis.
var _ JobClient = (*AsynqJobClient)(nil)

type AsynqJobClient struct {
	client *asynq.Client
}

func NewAsynqJobClient(redisAddr, password string, db int) (*AsynqJobClient, error) {
	if redisAddr == "" {
		return nil, fmt.Errorf("redis address cannot be empty for AsynqJobClient")
	}
	cli := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     redisAddr,
		Password: password,
		DB:       db,
	})
	return &AsynqJobClient{client: cli}, nil
}

func (jc *AsynqJobClient) Close() error {
	return jc.client.Close()
}

// Enqueue enqueues a task on the pipeline queue.
func (jc *AsynqJobClient) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if jc.client == nil {
		return nil, fmt.Errorf("AsynqJobClient internal client is not initialized")
	}
	info, err := jc.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		log.WithField("task_type", task.Type()).Errorf("Failed to enqueue task: %v", err)
		return nil, err
	}
	log.WithFields(log.Fields{"task_type": task.Type(), "task_id": info.ID, "queue": info.Queue}).
		Debug("Enqueued task")
	return info, nil
}

// EnqueuePipelineRun serializes a run request and enqueues it for the worker.
func (jc *AsynqJobClient) EnqueuePipelineRun(ctx context.Context, req RunRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal pipeline run request: %w", err)
	}
	task := asynq.NewTask(tasks.TypePipelineRun, payload)
	if _, err := jc.Enqueue(ctx, task, asynq.Queue("pipeline"), asynq.TaskID(req.RunID.String())); err != nil {
		return fmt.Errorf("enqueue pipeline run %s: %w", req.RunID, err)
	}
	return nil
}
