package registry

import (
	"errors"
	"sync"

	"github.com/go-gost/h2engine/pkg/handler"
	"github.com/go-gost/h2engine/pkg/listener"
	"github.com/go-gost/h2engine/pkg/logger"
	"github.com/go-gost/h2engine/pkg/service"
)

var (
	ErrDup = errors.New("registry: duplicate object")
)

type NewListener func(opts ...listener.Option) listener.Listener

type NewHandler func(opts ...handler.Option) handler.Handler

var (
	// listener and handler types are registered from init, a clash is fatal
	listenerReg Registry[NewListener] = &typedRegistry[NewListener]{kind: "listener", fatal: true}
	handlerReg  Registry[NewHandler]  = &typedRegistry[NewHandler]{kind: "handler", fatal: true}

	serviceReg Registry[service.Service] = &typedRegistry[service.Service]{kind: "service"}
)

type Registry[T any] interface {
	Register(name string, v T) error
	Unregister(name string)
	IsRegistered(name string) bool
	Get(name string) T
	// Names lists the registered names, in no particular order.
	Names() []string
}

type registry struct {
	m sync.Map
}

func (r *registry) Register(name string, v any) error {
	if name == "" || v == nil {
		return nil
	}
	if _, loaded := r.m.LoadOrStore(name, v); loaded {
		return ErrDup
	}

	return nil
}

func (r *registry) Unregister(name string) {
	r.m.Delete(name)
}

func (r *registry) IsRegistered(name string) bool {
	_, ok := r.m.Load(name)
	return ok
}

func (r *registry) Get(name string) any {
	if name == "" {
		return nil
	}
	v, _ := r.m.Load(name)
	return v
}

func (r *registry) Names() (names []string) {
	r.m.Range(func(k, _ any) bool {
		names = append(names, k.(string))
		return true
	})
	return
}

type typedRegistry[T any] struct {
	registry
	kind  string
	fatal bool
}

func (r *typedRegistry[T]) Register(name string, v T) error {
	err := r.registry.Register(name, v)
	if err != nil && r.fatal {
		logger.Default().Fatalf("%s %s: %v", r.kind, name, err)
	}
	return err
}

func (r *typedRegistry[T]) Get(name string) (v T) {
	if x := r.registry.Get(name); x != nil {
		v, _ = x.(T)
	}
	return
}

func ListenerRegistry() Registry[NewListener] {
	return listenerReg
}

func HandlerRegistry() Registry[NewHandler] {
	return handlerReg
}

func ServiceRegistry() Registry[service.Service] {
	return serviceReg
}
