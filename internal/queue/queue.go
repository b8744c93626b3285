package queue

import (
	"context"
	"encoding/json"
	"log"

	"github.com/hibiken/asynq"
	"github.com/postpilotapp/postpilot/internal/models"
	"github.com/postpilotapp/postpilot/internal/scheduler"
)

const TaskTypeExecutePost = "post:execute"

type ExecutePostPayload struct {
	PostID string `json:"post_id"`
}

// EnqueuePost hands a due post off to the worker pool.
func EnqueuePost(asynqClient *asynq.Client, payload ExecutePostPayload) error {
	taskPayload, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskTypeExecutePost, taskPayload)

	if _, err := asynqClient.Enqueue(task); err != nil {
		return err
	}

	log.Printf("Post execution enqueued: %+v", payload)
	return nil
}

// NewExecutor adapts the asynq client into the scheduler's executor callback:
// the scheduler marks a post as triggered, the worker carries out the posting.
func NewExecutor(asynqClient *asynq.Client) scheduler.Executor {
	return func(ctx context.Context, post *models.ScheduledPost) error {
		return EnqueuePost(asynqClient, ExecutePostPayload{PostID: post.ID})
	}
}
