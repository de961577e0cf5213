package jobs

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bigkaa/docgate/internal/domain/model"
)

// MemoryRepository — потокобезопасный in-memory журнал. Не персистентный:
// при рестарте журнал пуст.
type MemoryRepository struct {
	mu   sync.RWMutex
	jobs map[string]*model.Job
}

// NewMemoryRepository создаёт пустой журнал.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{jobs: make(map[string]*model.Job)}
}

// Record сохраняет копию задания.
func (r *MemoryRepository) Record(_ context.Context, job *model.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Копия, чтобы избежать data race при внешних изменениях
	copied := *job
	r.jobs[job.ID] = &copied
	return nil
}

// Get возвращает копию задания по ID.
func (r *MemoryRepository) Get(_ context.Context, id string) (*model.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *job
	return &copied, nil
}

// List возвращает страницу заданий, отсортированных по времени создания (новые первые).
// limit == 0 — без ограничения.
func (r *MemoryRepository) List(_ context.Context, limit, offset int) ([]*model.Job, int, error) {
	r.mu.RLock()
	all := make([]*model.Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		copied := *job
		all = append(all, &copied)
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	return all[offset:end], total, nil
}

// PruneBefore удаляет задания старше before.
func (r *MemoryRepository) PruneBefore(_ context.Context, before time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for id, job := range r.jobs {
		if job.CreatedAt.Before(before) {
			delete(r.jobs, id)
			n++
		}
	}
	return n, nil
}

// Ping всегда успешен.
func (r *MemoryRepository) Ping(context.Context) error { return nil }

// Close ничего не делает.
func (r *MemoryRepository) Close() error { return nil }
