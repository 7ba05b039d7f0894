package worker

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shaiso/Player/internal/domain"
)

// Callback — точка расширения хост-приложения, получает run целиком.
type Callback func(ctx context.Context, run *domain.Run) error

// Callbacks — необязательные callbacks жизненного цикла run.
//
// Ошибка PreRun или PostRun переводит run в failed.
// Ошибка Cancelled только логируется: отмена должна завершиться.
type Callbacks struct {
	PreRun    Callback
	PostRun   Callback
	Cancelled Callback
}

// CallbackRegistry — реестр именованных callbacks.
//
// Имена из конфигурации разрешаются один раз при старте процесса,
// во время выполнения run поиска по имени нет.
type CallbackRegistry struct {
	mu        sync.RWMutex
	callbacks map[string]Callback
}

// NewCallbackRegistry создаёт пустой реестр.
func NewCallbackRegistry() *CallbackRegistry {
	return &CallbackRegistry{callbacks: make(map[string]Callback)}
}

// Register добавляет callback под именем, заменяя предыдущий.
func (r *CallbackRegistry) Register(name string, cb Callback) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks[name] = cb
}

// Get возвращает callback по имени.
func (r *CallbackRegistry) Get(name string) (Callback, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cb, ok := r.callbacks[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCallback, name)
	}
	return cb, nil
}

// Names возвращает отсортированные имена зарегистрированных callbacks.
func (r *CallbackRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.callbacks))
	for name := range r.callbacks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve собирает Callbacks по именам. Пустое имя — callback не задан.
func (r *CallbackRegistry) Resolve(preRun, postRun, cancelled string) (Callbacks, error) {
	var cbs Callbacks
	var err error

	if cbs.PreRun, err = r.lookup(preRun); err != nil {
		return Callbacks{}, fmt.Errorf("pre-run: %w", err)
	}
	if cbs.PostRun, err = r.lookup(postRun); err != nil {
		return Callbacks{}, fmt.Errorf("post-run: %w", err)
	}
	if cbs.Cancelled, err = r.lookup(cancelled); err != nil {
		return Callbacks{}, fmt.Errorf("cancelled: %w", err)
	}
	return cbs, nil
}

func (r *CallbackRegistry) lookup(name string) (Callback, error) {
	if name == "" {
		return nil, nil
	}
	return r.Get(name)
}
