package session

import (
	"context"
	"io"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/CaioIsCoding/plate-swap-list-app/internal/coordinator"
	"github.com/CaioIsCoding/plate-swap-list-app/internal/platesvc"
	"github.com/CaioIsCoding/plate-swap-list-app/internal/playlist"
)

type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) Upload(ctx context.Context, filename string, content io.Reader) ([]platesvc.Descriptor, error) {
	b, _ := io.ReadAll(content)
	args := m.Called(filename, string(b))
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]platesvc.Descriptor), args.Error(1)
}

func (m *MockBackend) Generate(ctx context.Context, items []platesvc.GenerateItem) (string, error) {
	args := m.Called(items)
	return args.String(0), args.Error(1)
}

func (m *MockBackend) ResolveURL(ref string) string {
	return "http://backend" + ref
}

type published struct {
	Type    string
	Payload any
}

// RecordingPublisher keeps every published event.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (p *RecordingPublisher) Publish(_ context.Context, eventType string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{Type: eventType, Payload: payload})
	return p.err
}

func (p *RecordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

func (p *RecordingPublisher) Events() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.events...)
}

func (p *RecordingPublisher) Last() published {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) == 0 {
		return published{}
	}
	return p.events[len(p.events)-1]
}

type testEnv struct {
	store   *playlist.Store
	backend *MockBackend
	events  *RecordingPublisher
	server  *Server
}

func newTestEnv(ids ...string) *testEnv {
	store := playlist.NewStore()
	for i, id := range ids {
		store.Append(playlist.Plate{ID: id, Filename: id + ".3mf", PlateIndex: i + 1, PrintTime: 3600, Weight: 10})
	}
	backend := new(MockBackend)
	events := &RecordingPublisher{}
	srv := NewServer(
		store,
		coordinator.NewUploadCoordinator(store, backend, nil),
		coordinator.NewGenerateCoordinator(store, backend, nil),
		events,
		nil,
		nil,
	)
	return &testEnv{store: store, backend: backend, events: events, server: srv}
}

func storeIDs(s *playlist.Store) []string {
	out := []string{}
	for _, p := range s.Snapshot() {
		out = append(out, p.ID)
	}
	return out
}
