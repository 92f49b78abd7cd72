package zbox

import (
	"io"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/zbox-host/errors"
	"github.com/wippyai/zbox-host/metrics"
)

// state is the tagged variant a handle holds: opened or closed.
type state[T any] interface {
	isState()
}

type opened[T any] struct {
	native T
}

type closed[T any] struct{}

func (opened[T]) isState() {}
func (closed[T]) isState() {}

// handle owns a native engine handle until it is closed. The zero value is
// closed. Operations hold a read lock so close waits for in-flight calls.
type handle[T any] struct {
	mu sync.RWMutex
	st state[T]
}

func newHandle[T any](native T) *handle[T] {
	return &handle[T]{st: opened[T]{native: native}}
}

// do runs fn with the native handle, or returns closedErr once closed.
func (h *handle[T]) do(closedErr func() error, fn func(T) error) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	switch s := h.st.(type) {
	case opened[T]:
		return fn(s.native)
	default:
		return closedErr()
	}
}

// close moves the handle to closed. The native handle is returned only on
// the first call.
func (h *handle[T]) close() (T, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.st.(opened[T])
	h.st = closed[T]{}
	return s.native, ok
}

func (h *handle[T]) isOpen() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.st.(opened[T])
	return ok
}

const (
	kindZbox          = "zbox"
	kindRepo          = "repo"
	kindFile          = "file"
	kindVersionReader = "version_reader"
)

// observe counts the operation and bridges its error.
func observe(kind, op string, err error) error {
	metrics.HandleOps.WithLabelValues(kind, op).Inc()
	if err == nil || err == io.EOF {
		return err
	}
	bridged := errors.Bridge(err)
	code := errors.CodeOf(bridged)
	metrics.HandleErrors.WithLabelValues(kind, strconv.Itoa(int(code))).Inc()
	Logger().Debug("operation failed",
		zap.String("handle", kind), zap.String("op", op), zap.Error(bridged))
	return bridged
}

// release closes a native handle that may implement io.Closer.
func release[T any](kind string, native T) error {
	metrics.HandlesOpen.WithLabelValues(kind).Dec()
	if c, ok := any(native).(io.Closer); ok {
		return observe(kind, "close", c.Close())
	}
	metrics.HandleOps.WithLabelValues(kind, "close").Inc()
	return nil
}

func trackOpen(kind string) {
	metrics.HandlesOpen.WithLabelValues(kind).Inc()
}
