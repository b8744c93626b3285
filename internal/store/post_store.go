package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/postpilotapp/postpilot/internal/models"
)

// PostStore persists the scheduled-post queue as a single JSON document.
type PostStore interface {
	Load(ctx context.Context) ([]*models.ScheduledPost, error)
	Save(ctx context.Context, posts []*models.ScheduledPost) error
	Append(ctx context.Context, post *models.ScheduledPost) error
	// Update runs fn on the freshest queue under the store lock and persists
	// the result when fn reports a change. fn mutates the posts in place.
	// Writers that read, mutate, and write back must go through Update;
	// a bare Load→Save cycle can clobber a concurrent writer's changes.
	Update(ctx context.Context, fn func(posts []*models.ScheduledPost) (changed bool, err error)) error
}

type postQueueDocument struct {
	Posts []*models.ScheduledPost `json:"posts"`
}

type postStore struct {
	path string
	mu   sync.Mutex
}

func NewPostStore(path string) PostStore {
	return &postStore{path: path}
}

// Load returns the queue in stored order. A missing file is an empty queue;
// a corrupt file is an error so the caller can decide to skip the tick.
func (s *postStore) Load(ctx context.Context) ([]*models.ScheduledPost, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *postStore) load() ([]*models.ScheduledPost, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var doc postQueueDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("post queue unreadable: %w", err)
	}
	return doc.Posts, nil
}

func (s *postStore) Save(ctx context.Context, posts []*models.ScheduledPost) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(posts)
}

func (s *postStore) save(posts []*models.ScheduledPost) error {
	if posts == nil {
		posts = []*models.ScheduledPost{}
	}
	data, err := json.MarshalIndent(postQueueDocument{Posts: posts}, "", "  ")
	if err != nil {
		return err
	}
	if err := writeFileAtomic(s.path, data); err != nil {
		return fmt.Errorf("persist post queue: %w", err)
	}
	return nil
}

func (s *postStore) Update(ctx context.Context, fn func(posts []*models.ScheduledPost) (bool, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	posts, err := s.load()
	if err != nil {
		return err
	}
	changed, err := fn(posts)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	return s.save(posts)
}

func (s *postStore) Append(ctx context.Context, post *models.ScheduledPost) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	posts, err := s.load()
	if err != nil {
		return err
	}
	return s.save(append(posts, post))
}
