package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/postpilotapp/postpilot/internal/models"
)

func (w *Worker) HandleExecutePostTask(ctx context.Context, task *asynq.Task) error {
	var payload ExecutePostPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}

	return w.PublishPost(ctx, payload.PostID)
}

// PublishPost fans the post out to every target platform with a valid token,
// then records the outcome on the post's status.
func (w *Worker) PublishPost(ctx context.Context, postID string) error {
	posts, err := w.posts.Load(ctx)
	if err != nil {
		return err
	}

	var post *models.ScheduledPost
	for _, p := range posts {
		if p.ID == postID {
			post = p
			break
		}
	}
	if post == nil {
		return fmt.Errorf("post %s not found in queue", postID)
	}

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, 4)
	var mu sync.Mutex
	failed := false

	for _, platform := range post.Platforms {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(platform models.Platform) {
			defer wg.Done()
			defer func() { <-semaphore }()

			if err := w.publishTo(ctx, post, platform); err != nil {
				log.Printf("Error posting to %s for post %s: %v", platform, post.ID, err)
				mu.Lock()
				failed = true
				mu.Unlock()
			}
		}(platform)
	}

	wg.Wait()

	status := models.PostStatusPosted
	if failed {
		status = models.PostStatusFailed
	}

	// The scheduler may have persisted the queue while publishing was in
	// flight; write the outcome onto the freshest document so its posted
	// mark survives.
	return w.posts.Update(ctx, func(posts []*models.ScheduledPost) (bool, error) {
		for _, p := range posts {
			if p.ID == postID {
				p.Status = status
				return true, nil
			}
		}
		return false, nil
	})
}

func (w *Worker) publishTo(ctx context.Context, post *models.ScheduledPost, platform models.Platform) error {
	account, err := w.account(ctx, platform)
	if err != nil {
		return err
	}

	publisher, ok := w.publishers[platform]
	if !ok {
		return fmt.Errorf("no publisher registered for %s", platform)
	}

	return publisher(ctx, post, account)
}

// account loads the platform's default account, refreshing its token first
// when it has expired.
func (w *Worker) account(ctx context.Context, platform models.Platform) (*models.Account, error) {
	account, err := w.tokens.LoadToken(ctx, platform, "")
	if err != nil {
		return nil, err
	}

	if account.ExpiresAt != nil && *account.ExpiresAt <= time.Now().UnixMilli() {
		if err := w.am.RefreshToken(ctx, platform); err != nil {
			return nil, fmt.Errorf("refresh expired token: %w", err)
		}
		account, err = w.tokens.LoadToken(ctx, platform, "")
		if err != nil {
			return nil, err
		}
	}

	if account.AccessToken == "" {
		return nil, errors.New("account has no usable access token")
	}
	return account, nil
}
