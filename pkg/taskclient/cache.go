package taskclient

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"time"
)

// ErrNotInCache is returned by Toggle when the task id is not part of the
// cached collection.
var ErrNotInCache = errors.New("task not in cache")

type Stats struct {
	TotalCount           int `json:"totalCount"`
	CompletedTasks       int `json:"completedTasks"`
	PendingCount         int `json:"pendingCount"`
	CompletionPercentage int `json:"completionPercentage"`
}

// Cache is the single authoritative task collection for one authenticated
// session. All views derive from it by pure filtering; mutations go through
// the service and trigger a wholesale refresh, never a local patch.
type Cache struct {
	mu       sync.Mutex
	client   *Client
	tasks    []Task
	inflight map[int]bool
}

func NewCache(client *Client) *Cache {
	return &Cache{
		client:   client,
		inflight: make(map[int]bool),
	}
}

// Refresh replaces the cache with the service's current collection. On
// failure the cache keeps its previous contents.
func (c *Cache) Refresh(ctx context.Context) error {
	tasks, err := c.client.Tasks(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.tasks = tasks
	c.mu.Unlock()
	return nil
}

// Clear tears the cache down on logout.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.tasks = nil
	c.inflight = make(map[int]bool)
	c.mu.Unlock()
}

func (c *Cache) snapshot() []Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Task, len(c.tasks))
	copy(out, c.tasks)
	return out
}

func (c *Cache) Tasks() []Task {
	return c.snapshot()
}

func (c *Cache) filter(keep func(Task) bool) []Task {
	out := []Task{}
	for _, t := range c.snapshot() {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out
}

func (c *Cache) Pending() []Task {
	return c.filter(func(t Task) bool { return !t.Done() })
}

func (c *Cache) Completed() []Task {
	return c.filter(func(t Task) bool { return t.Done() })
}

func (c *Cache) ByPriority(priority string) []Task {
	return c.filter(func(t Task) bool {
		return strings.EqualFold(t.Priority, priority)
	})
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DueToday returns tasks whose due date falls on now's calendar date.
// Tasks without a due date are excluded.
func (c *Cache) DueToday(now time.Time) []Task {
	today := dateOf(now)
	return c.filter(func(t Task) bool {
		due, ok := t.Due()
		return ok && dateOf(due).Equal(today)
	})
}

// DueThisWeek returns tasks due within the seven calendar days starting
// today.
func (c *Cache) DueThisWeek(now time.Time) []Task {
	start := dateOf(now)
	end := start.AddDate(0, 0, 7)
	return c.filter(func(t Task) bool {
		due, ok := t.Due()
		if !ok {
			return false
		}
		day := dateOf(due)
		return !day.Before(start) && day.Before(end)
	})
}

func (c *Cache) Stats() Stats {
	tasks := c.snapshot()
	s := Stats{TotalCount: len(tasks)}
	for _, t := range tasks {
		if t.Done() {
			s.CompletedTasks++
		}
	}
	s.PendingCount = s.TotalCount - s.CompletedTasks
	if s.TotalCount > 0 {
		s.CompletionPercentage = int(math.Round(float64(s.CompletedTasks) / float64(s.TotalCount) * 100))
	}
	return s
}

// Create sends the mutation and resynchronizes the cache.
func (c *Cache) Create(ctx context.Context, fields map[string]interface{}) (*Task, error) {
	task, err := c.client.CreateTask(ctx, fields)
	if err != nil {
		return nil, err
	}
	return task, c.Refresh(ctx)
}

func (c *Cache) Update(ctx context.Context, id int, fields map[string]interface{}) (*Task, error) {
	task, err := c.client.UpdateTask(ctx, id, fields)
	if err != nil {
		return nil, err
	}
	return task, c.Refresh(ctx)
}

func (c *Cache) Delete(ctx context.Context, id int) error {
	if err := c.client.DeleteTask(ctx, id); err != nil {
		return err
	}
	return c.Refresh(ctx)
}

// Toggle flips the task's completion via the service. While a toggle for
// the same id is in flight, further toggles collapse to a no-op instead of
// queuing a second mutation.
func (c *Cache) Toggle(ctx context.Context, id int) error {
	c.mu.Lock()
	if c.inflight[id] {
		c.mu.Unlock()
		return nil
	}
	var current *Task
	for i := range c.tasks {
		if c.tasks[i].ID == id {
			current = &c.tasks[i]
			break
		}
	}
	if current == nil {
		c.mu.Unlock()
		return ErrNotInCache
	}
	next := !current.Done()
	c.inflight[id] = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.inflight, id)
		c.mu.Unlock()
	}()

	if _, err := c.client.UpdateTask(ctx, id, map[string]interface{}{"completed": next}); err != nil {
		return err
	}
	return c.Refresh(ctx)
}
