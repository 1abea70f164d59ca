package service

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"edms/internal/cache"
	"edms/internal/events"
	"edms/internal/metrics"
	"edms/internal/model"
	"edms/internal/repository"
	"edms/internal/repository/memory"
	"edms/internal/storage"
)

const (
	u1 = "11111111-1111-1111-1111-111111111111"
	u2 = "22222222-2222-2222-2222-222222222222"
	u3 = "33333333-3333-3333-3333-333333333333"
	u4 = "44444444-4444-4444-4444-444444444444"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Transitioned
}

func (p *recordingPublisher) Publish(_ context.Context, evt events.Transitioned) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

func (p *recordingPublisher) all() []events.Transitioned {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Transitioned(nil), p.events...)
}

type env struct {
	store    *memory.Store
	blobs    *storage.Memory
	uploads  *hookStorage
	docRepo  *hookDocuments
	cache    *mapCache
	events   *recordingPublisher
	metrics  *metrics.Collector
	registry *prometheus.Registry
	docs     DocumentService
	versions VersionService
	workflow WorkflowService
	users    UserService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := memory.NewStore()
	for i, id := range []string{u1, u2, u3, u4} {
		store.PutUser(model.User{ID: id, Email: "u" + string(rune('1'+i)) + "@example.com", Role: "staff"})
	}
	reg := prometheus.NewRegistry()
	col, err := metrics.NewCollector(reg)
	require.NoError(t, err)

	e := &env{store: store, blobs: storage.NewMemory(), cache: &mapCache{}, events: &recordingPublisher{}, metrics: col, registry: reg}
	e.uploads = &hookStorage{Storage: e.blobs}
	e.docRepo = &hookDocuments{DocumentRepository: store.Documents()}
	deps := Dependencies{
		Storage:   e.uploads,
		Documents: e.docRepo,
		Versions:  store.Versions(),
		Users:     store.Users(),
		Cache:     e.cache,
		Events:    e.events,
		Metrics:   col,
	}
	e.docs = NewDocumentService(deps)
	e.versions = NewVersionService(deps)
	e.workflow = NewWorkflowService(deps)
	e.users = NewUserService(deps)
	return e
}

func file(name, body string) *FileUpload {
	return &FileUpload{Reader: strings.NewReader(body), Filename: name, ContentType: "text/plain", Size: int64(len(body))}
}

// invoice creates the reference document: creator u1, assignee u2, reviewer u3.
func (e *env) invoice(t *testing.T) *DocumentView {
	t.Helper()
	doc, err := e.docs.Create(context.Background(), u1, CreateDocumentInput{
		Title:      "Invoice",
		AssigneeID: u2,
		ReviewerID: u3,
		Priority:   "high",
		Tags:       []string{"finance", " finance ", "q1"},
		File:       file("invoice.txt", "v1"),
	})
	require.NoError(t, err)
	return doc
}

// hook holds a callback that fires once.
type hook struct {
	mu sync.Mutex
	fn func()
}

func (h *hook) set(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fn = fn
}

func (h *hook) fire() {
	h.mu.Lock()
	fn := h.fn
	h.fn = nil
	h.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// hookStorage lets a test run something between request validation and the upload.
type hookStorage struct {
	storage.Storage
	beforePut hook
}

func (h *hookStorage) Put(ctx context.Context, key string, r io.Reader, opt storage.PutObjectOptions) (storage.ObjectInfo, error) {
	h.beforePut.fire()
	return h.Storage.Put(ctx, key, r, opt)
}

// hookDocuments lets a test commit a write after a read has returned.
type hookDocuments struct {
	repository.DocumentRepository
	afterFind hook
}

func (h *hookDocuments) FindByID(ctx context.Context, id string) (*model.Document, error) {
	doc, err := h.DocumentRepository.FindByID(ctx, id)
	h.afterFind.fire()
	return doc, err
}

// mapCache is an in-process cache.DocumentCache with the same generation rule as the Redis one.
type mapCache struct {
	mu    sync.Mutex
	snaps map[string]*cache.Snapshot
	gens  map[string]int64
}

func (c *mapCache) Get(_ context.Context, id string) (*cache.Snapshot, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.snaps[id]
	if !ok || s.Generation != c.gens[id] {
		return nil, false, nil
	}
	return s, true, nil
}

func (c *mapCache) Generation(_ context.Context, id string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[id], nil
}

func (c *mapCache) Set(_ context.Context, snap *cache.Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snaps == nil {
		c.snaps = map[string]*cache.Snapshot{}
	}
	c.snaps[snap.Document.ID] = snap
	return nil
}

func (c *mapCache) Invalidate(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens == nil {
		c.gens = map[string]int64{}
	}
	c.gens[id]++
	delete(c.snaps, id)
	return nil
}

// transitions reads edms_workflow_transitions_total for one label pair.
func (e *env) transitions(t *testing.T, action, result string) float64 {
	t.Helper()
	mfs, err := e.registry.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != "edms_workflow_transitions_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["action"] == action && labels["result"] == result {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}
