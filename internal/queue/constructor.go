package queue

import (
	"context"

	"github.com/postpilotapp/postpilot/internal/auth"
	"github.com/postpilotapp/postpilot/internal/models"
	"github.com/postpilotapp/postpilot/internal/store"
)

// Publisher performs the actual platform posting call. Registered by the
// embedding application; the worker treats its outcome as opaque.
type Publisher func(ctx context.Context, post *models.ScheduledPost, account *models.Account) error

type Worker struct {
	posts      store.PostStore
	tokens     store.TokenStore
	am         *auth.Manager
	publishers map[models.Platform]Publisher
}

func NewWorker(
	posts store.PostStore,
	tokens store.TokenStore,
	am *auth.Manager,
	publishers map[models.Platform]Publisher) *Worker {
	if publishers == nil {
		publishers = make(map[models.Platform]Publisher)
	}
	return &Worker{
		posts:      posts,
		tokens:     tokens,
		am:         am,
		publishers: publishers,
	}
}

// Register installs the publisher that performs a platform's posting calls.
// Register before the worker starts consuming tasks; the publishers map is
// not guarded.
func (w *Worker) Register(platform models.Platform, publisher Publisher) {
	w.publishers[platform] = publisher
}
