package taskclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
}

func TestDerivedViews(t *testing.T) {
	now := time.Now()
	today := now.Format("2006-01-02")
	inThreeDays := now.AddDate(0, 0, 3).Format("2006-01-02")
	inTenDays := now.AddDate(0, 0, 10).Format("2006-01-02")

	body := fmt.Sprintf(`{"success":true,"tasks":[
		{"id":1,"title":"a","priority":"Low","dueDate":"%s","completed":"Yes"},
		{"id":2,"title":"b","priority":"High","dueDate":"%s","completed":true},
		{"id":3,"title":"c","priority":"Low","dueDate":"%s","completed":0},
		{"id":4,"title":"d","completed":"No"}
	]}`, today, inThreeDays, inTenDays)
	srv := listServer(t, body)
	defer srv.Close()

	cache := NewCache(New(srv.URL))
	require.NoError(t, cache.Refresh(context.Background()))
	assert.Len(t, cache.Completed(), 2)
	assert.Len(t, cache.Pending(), 2)
	assert.Len(t, cache.ByPriority("Low"), 2)
	assert.Len(t, cache.ByPriority("low"), 2)
	assert.Len(t, cache.ByPriority("High"), 1)
	assert.Len(t, cache.ByPriority("Medium"), 0)

	dueToday := cache.DueToday(now)
	require.Len(t, dueToday, 1)
	assert.Equal(t, 1, dueToday[0].ID)

	// Task 4 has no due date and must simply be excluded
	week := cache.DueThisWeek(now)
	require.Len(t, week, 2)

	stats := cache.Stats()
	assert.Equal(t, 4, stats.TotalCount)
	assert.Equal(t, 2, stats.CompletedTasks)
	assert.Equal(t, 2, stats.PendingCount)
	assert.Equal(t, 50, stats.CompletionPercentage)
}

func TestStatsEmpty(t *testing.T) {
	srv := listServer(t, `{"success":true,"tasks":[]}`)
	defer srv.Close()

	cache := NewCache(New(srv.URL))
	require.NoError(t, cache.Refresh(context.Background()))

	stats := cache.Stats()
	assert.Equal(t, Stats{}, stats)
}

func TestStatsRounding(t *testing.T) {
	srv := listServer(t, `{"success":true,"tasks":[
		{"id":1,"title":"a","completed":true},
		{"id":2,"title":"b","completed":false},
		{"id":3,"title":"c","completed":false}
	]}`)
	defer srv.Close()

	cache := NewCache(New(srv.URL))
	require.NoError(t, cache.Refresh(context.Background()))
	assert.Equal(t, 33, cache.Stats().CompletionPercentage)
}

func TestFailedMutationLeavesCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodPut {
			w.WriteHeader(500)
			w.Write([]byte(`{"success":false,"message":"Error updating task"}`))
			return
		}
		w.Write([]byte(`{"success":true,"tasks":[{"id":1,"title":"keep","completed":false}]}`))
	}))
	defer srv.Close()

	cache := NewCache(New(srv.URL))
	require.NoError(t, cache.Refresh(context.Background()))

	_, err := cache.Update(context.Background(), 1, map[string]interface{}{"title": "changed"})
	require.Error(t, err)

	tasks := cache.Tasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, "keep", tasks[0].Title)
}

func TestFailedRefreshLeavesCache(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if fail.Load() {
			w.WriteHeader(500)
			w.Write([]byte(`{"success":false,"message":"Error fetching tasks"}`))
			return
		}
		w.Write([]byte(`{"success":true,"tasks":[{"id":1,"title":"keep","completed":false}]}`))
	}))
	defer srv.Close()

	cache := NewCache(New(srv.URL))
	require.NoError(t, cache.Refresh(context.Background()))

	fail.Store(true)
	require.Error(t, cache.Refresh(context.Background()))
	assert.Len(t, cache.Tasks(), 1)
}

func TestToggleInFlightGuard(t *testing.T) {
	var puts int32
	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodPut {
			atomic.AddInt32(&puts, 1)
			once.Do(func() { close(started) })
			<-release
			w.Write([]byte(`{"success":true,"task":{"id":1,"title":"t","completed":true}}`))
			return
		}
		w.Write([]byte(`{"success":true,"tasks":[{"id":1,"title":"t","completed":false}]}`))
	}))
	defer srv.Close()

	cache := NewCache(New(srv.URL))
	require.NoError(t, cache.Refresh(context.Background()))

	errCh := make(chan error, 1)
	go func() {
		errCh <- cache.Toggle(context.Background(), 1)
	}()
	<-started

	// Second toggle for the same id while the first is in flight: no-op
	require.NoError(t, cache.Toggle(context.Background(), 1))
	assert.Equal(t, int32(1), atomic.LoadInt32(&puts))

	close(release)
	require.NoError(t, <-errCh)
	assert.Equal(t, int32(1), atomic.LoadInt32(&puts))
}

func TestToggleUnknownTask(t *testing.T) {
	srv := listServer(t, `{"success":true,"tasks":[]}`)
	defer srv.Close()

	cache := NewCache(New(srv.URL))
	require.NoError(t, cache.Refresh(context.Background()))
	assert.ErrorIs(t, cache.Toggle(context.Background(), 99), ErrNotInCache)
}

func TestToggleSendsOppositeOfNormalizedValue(t *testing.T) {
	var sent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodPut {
			buf, _ := io.ReadAll(r.Body)
			sent = string(buf)
			w.Write([]byte(`{"success":true,"task":{"id":1,"title":"t","completed":false}}`))
			return
		}
		// Heterogeneous legacy value: "Yes" means completed
		w.Write([]byte(`{"success":true,"tasks":[{"id":1,"title":"t","completed":"Yes"}]}`))
	}))
	defer srv.Close()

	cache := NewCache(New(srv.URL))
	require.NoError(t, cache.Refresh(context.Background()))
	require.NoError(t, cache.Toggle(context.Background(), 1))
	assert.Contains(t, sent, `"completed":false`)
}

func TestClear(t *testing.T) {
	srv := listServer(t, `{"success":true,"tasks":[{"id":1,"title":"t","completed":false}]}`)
	defer srv.Close()

	cache := NewCache(New(srv.URL))
	require.NoError(t, cache.Refresh(context.Background()))
	require.Len(t, cache.Tasks(), 1)

	cache.Clear()
	assert.Empty(t, cache.Tasks())
	assert.Equal(t, Stats{}, cache.Stats())
}
