package server

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agent_office/internal/domain"
	"agent_office/internal/messaging/inproc"
	sqlitestore "agent_office/internal/store/sqlite"
)

func newTestStore(t *testing.T) *sqlitestore.Store {
	t.Helper()
	store, err := sqlitestore.Open(filepath.Join(t.TempDir(), "office.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()
	require.NoError(t, store.Migrate(ctx))
	require.NoError(t, store.UpsertDepartment(ctx, domain.Department{ID: "dev", Name: "Development", SortOrder: 1}))
	require.NoError(t, store.UpsertAgent(ctx, domain.Agent{ID: "ada", Name: "Ada", DepartmentID: "dev"}))
	require.NoError(t, store.UpsertAgent(ctx, domain.Agent{ID: "bo", Name: "Bo", DepartmentID: "dev"}))
	return store
}

func newTestServer(t *testing.T, store Store, bus Bus) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewRouter(Options{
		Store:          store,
		Bus:            bus,
		Locale:         "ko",
		StreamInterval: time.Hour,
		Heartbeat:      time.Hour,
		Logger:         log.New(io.Discard, "", 0),
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, newTestStore(t), nil)
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestSnapshotUsesRequestOrDefaultLocale(t *testing.T) {
	srv := newTestServer(t, newTestStore(t), nil)

	for locale, want := range map[string]string{"": "ko", "ja": "ja"} {
		resp, err := http.Get(srv.URL + "/snapshot?locale=" + locale)
		require.NoError(t, err)
		var snap domain.Snapshot
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
		resp.Body.Close()

		assert.Equal(t, want, snap.Locale)
		assert.Len(t, snap.Departments, 1)
		assert.Len(t, snap.Agents, 2)
		assert.Positive(t, snap.Version)
	}
}

func TestResolveEvent(t *testing.T) {
	store := newTestStore(t)
	srv := newTestServer(t, store, nil)
	require.NoError(t, store.RecordEvent(context.Background(), domain.DeliveryEvent{
		Delivery: domain.CrossDeptDelivery{ID: "d1", FromAgentID: "ada", ToAgentID: "bo"},
	}))

	resp, err := http.Post(srv.URL+"/events/d1/resolve", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	pending, err := store.PendingEvents(context.Background())
	require.NoError(t, err)
	assert.Zero(t, pending)

	resp, err = http.Post(srv.URL+"/events/nope/resolve", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAssets(t *testing.T) {
	srv := newTestServer(t, newTestStore(t), nil)

	resp, err := http.Get(srv.URL + "/assets/1-D-1")
	require.NoError(t, err)
	raw, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, strings.TrimSpace(string(raw)))

	resp, err = http.Get(srv.URL + "/assets/99-D-1")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

type frame struct {
	event string
	data  string
}

func nextFrame(t *testing.T, sc *bufio.Scanner) frame {
	t.Helper()
	var f frame
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if f.event != "" {
				return f
			}
		case strings.HasPrefix(line, "event: "):
			f.event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			f.data = strings.TrimPrefix(line, "data: ")
		}
	}
	require.NoError(t, sc.Err())
	t.Fatal("stream ended")
	return f
}

func TestStreamPushesSnapshotThenEvents(t *testing.T) {
	store := newTestStore(t)
	bus := inproc.New(8)
	srv := newTestServer(t, store, bus)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events/stream?locale=en", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	f := nextFrame(t, sc)
	require.Equal(t, string(domain.EventKindSnapshot), f.event)
	ev, err := domain.DecodeEvent([]byte(f.data))
	require.NoError(t, err)
	snap := ev.(domain.SnapshotEvent).Snapshot
	assert.Equal(t, "en", snap.Locale)
	assert.Equal(t, 1, bus.Subscribers())

	// A recorded delivery is pushed as itself, then as a fresh snapshot.
	delivery := domain.DeliveryEvent{Delivery: domain.CrossDeptDelivery{ID: "d9", FromAgentID: "ada", ToAgentID: "bo"}}
	require.NoError(t, store.RecordEvent(ctx, delivery))
	require.NoError(t, bus.Publish(delivery))

	f = nextFrame(t, sc)
	require.Equal(t, string(domain.EventKindDelivery), f.event)
	ev, err = domain.DecodeEvent([]byte(f.data))
	require.NoError(t, err)
	assert.Equal(t, delivery, ev)

	f = nextFrame(t, sc)
	require.Equal(t, string(domain.EventKindSnapshot), f.event)
	ev, err = domain.DecodeEvent([]byte(f.data))
	require.NoError(t, err)
	next := ev.(domain.SnapshotEvent).Snapshot
	assert.Greater(t, next.Version, snap.Version)
	require.Len(t, next.Deliveries, 1)
	assert.Equal(t, "d9", next.Deliveries[0].ID)
}
