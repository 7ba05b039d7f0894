package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Player/internal/domain"
	"github.com/shaiso/Player/internal/remote"
	"github.com/shaiso/Player/internal/repo"
)

// --- Stores ---

type snapshot struct {
	State  domain.RunState
	Status domain.StatusMessage
}

type fakeRunStore struct {
	mu        sync.Mutex
	runs      map[uuid.UUID]domain.Run
	history   []snapshot
	cancelled bool

	// onCancelCheck вызывается при каждом чтении флага отмены.
	onCancelCheck func(n int) bool
	cancelChecks  int
}

func newFakeRunStore(run *domain.Run) *fakeRunStore {
	return &fakeRunStore{runs: map[uuid.UUID]domain.Run{run.ID: *run}}
}

func (s *fakeRunStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &run, nil
}

func (s *fakeRunStore) Update(_ context.Context, run *domain.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *run
	stored.Cancelled = s.runs[run.ID].Cancelled
	s.runs[run.ID] = stored
	s.history = append(s.history, snapshot{run.State, run.StatusMessage})
	return nil
}

func (s *fakeRunStore) IsCancelled(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelChecks++
	if s.onCancelCheck != nil && s.onCancelCheck(s.cancelChecks) {
		s.cancelled = true
	}
	return s.cancelled, nil
}

func (s *fakeRunStore) get(id uuid.UUID) domain.Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs[id]
}

func (s *fakeRunStore) statuses() []domain.StatusMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.StatusMessage
	for _, h := range s.history {
		out = append(out, h.Status)
	}
	return out
}

func (s *fakeRunStore) sawState(state domain.RunState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range s.history {
		if h.State == state {
			return true
		}
	}
	return false
}

type fakePortStore struct {
	inputs  []domain.InputPort
	outputs []domain.OutputPort
}

func (s *fakePortStore) ListInputs(_ context.Context, _ uuid.UUID) ([]domain.InputPort, error) {
	return s.inputs, nil
}

func (s *fakePortStore) CreateOutputs(_ context.Context, _ uuid.UUID, outputs []domain.OutputPort) error {
	s.outputs = append(s.outputs, outputs...)
	return nil
}

func (s *fakePortStore) output(name string) *domain.OutputPort {
	for i := range s.outputs {
		if s.outputs[i].Name == name {
			return &s.outputs[i]
		}
	}
	return nil
}

type fakeInteractionStore struct {
	items   map[string]*domain.Interaction
	creates int
	updates int
}

func newFakeInteractionStore() *fakeInteractionStore {
	return &fakeInteractionStore{items: make(map[string]*domain.Interaction)}
}

func (s *fakeInteractionStore) FindOrCreate(_ context.Context, runID uuid.UUID, uniqueID string) (*domain.Interaction, error) {
	i, ok := s.items[uniqueID]
	if !ok {
		i = &domain.Interaction{ID: uuid.New(), RunID: runID, UniqueID: uniqueID}
		s.items[uniqueID] = i
		s.creates++
	}
	cp := *i
	return &cp, nil
}

func (s *fakeInteractionStore) Update(_ context.Context, i *domain.Interaction) error {
	stored, ok := s.items[i.UniqueID]
	if !ok {
		return repo.ErrNotFound
	}
	if stored.Page == "" {
		stored.Page = i.Page
	}
	stored.Replied = stored.Replied || i.Replied
	s.updates++
	return nil
}

type fakeCredentialStore struct {
	creds []domain.ServiceCredential
}

func (s *fakeCredentialStore) List(_ context.Context) ([]domain.ServiceCredential, error) {
	return s.creds, nil
}

type fakeWorkflowStore struct {
	wf *domain.Workflow
}

func (s *fakeWorkflowStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Workflow, error) {
	if s.wf == nil || s.wf.ID != id {
		return nil, repo.ErrNotFound
	}
	return s.wf, nil
}

// --- Remote ---

type fakeServer struct {
	run *fakeRemoteRun

	// createErrs возвращаются по очереди, затем создание успешно.
	createErrs  []error
	createCalls int
	document    []byte

	pages map[string]string
	reads int
}

func (s *fakeServer) CreateRun(_ context.Context, workflow []byte) (remote.Run, error) {
	s.createCalls++
	if len(s.createErrs) > 0 {
		err := s.createErrs[0]
		s.createErrs = s.createErrs[1:]
		return nil, err
	}
	s.document = workflow
	return s.run, nil
}

func (s *fakeServer) Read(_ context.Context, uri, mime string) ([]byte, error) {
	s.reads++
	if mime != pageMIME {
		return nil, fmt.Errorf("unexpected mime %s", mime)
	}
	page, ok := s.pages[uri]
	if !ok {
		return nil, remote.ErrNotFound
	}
	return []byte(page), nil
}

type fakeRemoteRun struct {
	id   string
	info remote.RunInfo

	startResults []bool
	startCalls   int
	startErr     error

	finished      []bool
	finishedCalls int
	finishedErr   error
	panicOnPoll   bool

	notifications [][]remote.Notification
	replies       []string

	name    string
	inputs  map[string]string
	files   map[string]string
	creds   []string
	logErr  error
	ports   []remote.OutputPort
	values  map[string]string
	limits  map[string]int64
	deleted int
}

func newFakeRemoteRun(id string) *fakeRemoteRun {
	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	return &fakeRemoteRun{
		id: id,
		info: remote.RunInfo{
			ID:               id,
			Status:           "Initialized",
			CreateTime:       base,
			StartTime:        base.Add(time.Minute),
			FinishTime:       base.Add(5 * time.Minute),
			NotificationsURI: "http://remote/runs/" + id + "/notifications",
			InteractionsURI:  "http://remote/runs/" + id + "/interactions",
		},
		inputs: make(map[string]string),
		files:  make(map[string]string),
		values: make(map[string]string),
		limits: make(map[string]int64),
	}
}

func (r *fakeRemoteRun) ID() string { return r.id }

func (r *fakeRemoteRun) Info(_ context.Context) (*remote.RunInfo, error) {
	info := r.info
	return &info, nil
}

func (r *fakeRemoteRun) SetName(_ context.Context, name string) error {
	r.name = name
	return nil
}

func (r *fakeRemoteRun) SetInputValue(_ context.Context, port, value string) error {
	if _, ok := r.inputs[port]; ok {
		return fmt.Errorf("input %s uploaded twice", port)
	}
	r.inputs[port] = value
	return nil
}

func (r *fakeRemoteRun) SetInputFile(_ context.Context, port, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	r.files[port] = string(data)
	return nil
}

func (r *fakeRemoteRun) AddPasswordCredential(_ context.Context, uri, login, _ string) error {
	r.creds = append(r.creds, login+"@"+uri)
	return nil
}

func (r *fakeRemoteRun) Start(_ context.Context) (bool, error) {
	r.startCalls++
	if r.startErr != nil {
		return false, r.startErr
	}
	if len(r.startResults) > 0 {
		ok := r.startResults[0]
		r.startResults = r.startResults[1:]
		return ok, nil
	}
	return true, nil
}

func (r *fakeRemoteRun) Status(_ context.Context) (string, error) {
	return r.info.Status, nil
}

func (r *fakeRemoteRun) Finished(_ context.Context) (bool, error) {
	r.finishedCalls++
	if r.panicOnPoll {
		panic("poll exploded")
	}
	if r.finishedErr != nil {
		return false, r.finishedErr
	}
	if len(r.finished) > 0 {
		done := r.finished[0]
		r.finished = r.finished[1:]
		return done, nil
	}
	return true, nil
}

func (r *fakeRemoteRun) Notifications(_ context.Context, kind remote.NotificationKind) ([]remote.Notification, error) {
	if kind != remote.NotificationRequests {
		return nil, fmt.Errorf("unexpected kind %s", kind)
	}
	if len(r.notifications) == 0 {
		return nil, nil
	}
	batch := r.notifications[0]
	r.notifications = r.notifications[1:]
	return batch, nil
}

func (r *fakeRemoteRun) Reply(_ context.Context, id, feed, value string) error {
	r.replies = append(r.replies, strings.Join([]string{id, feed, value}, ":"))
	return nil
}

func (r *fakeRemoteRun) Log(_ context.Context, dest string) error {
	if r.logErr != nil {
		return r.logErr
	}
	return os.WriteFile(dest, []byte("run log"), 0o644)
}

func (r *fakeRemoteRun) ZipOutput(_ context.Context, dest string) error {
	return os.WriteFile(dest, []byte("PK zip"), 0o644)
}

func (r *fakeRemoteRun) OutputPorts(_ context.Context) ([]remote.OutputPort, error) {
	return r.ports, nil
}

func (r *fakeRemoteRun) OutputValue(_ context.Context, port string, limit int64) ([]byte, error) {
	r.limits[port] = limit
	v, ok := r.values[port]
	if !ok {
		return nil, remote.ErrNotFound
	}
	if limit > 0 && int64(len(v)) > limit {
		v = v[:limit]
	}
	return []byte(v), nil
}

func (r *fakeRemoteRun) Delete(_ context.Context) error {
	r.deleted++
	return nil
}

// --- Sleep ---

type fakeClock struct {
	sleeps []time.Duration
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.sleeps = append(c.sleeps, d)
	return ctx.Err()
}

func (c *fakeClock) count(d time.Duration) int {
	n := 0
	for _, s := range c.sleeps {
		if s == d {
			n++
		}
	}
	return n
}

var errBoom = errors.New("boom")
