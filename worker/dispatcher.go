package worker

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/wippyai/zbox-host/errors"
	"github.com/wippyai/zbox-host/metrics"
	"github.com/wippyai/zbox-host/resource"
	"github.com/wippyai/zbox-host/zbox"
)

var validate = validator.New()

// Dispatcher executes messages against one Zbox. It holds at most one open
// repository, and tracks opened files and version readers by handle.
// Messages are processed one at a time.
type Dispatcher struct {
	zb      *zbox.Zbox
	mu      sync.Mutex
	repo    *zbox.Repo
	table   *resource.Table
	files   resource.Typed[*zbox.File]
	readers resource.Typed[*zbox.VersionReader]
}

// New creates a Dispatcher over zb.
func New(zb *zbox.Zbox) *Dispatcher {
	table := resource.NewTable()
	d := &Dispatcher{
		zb:      zb,
		table:   table,
		files:   resource.NewTyped[*zbox.File](table, resource.KindFile),
		readers: resource.NewTyped[*zbox.VersionReader](table, resource.KindVersionReader),
	}
	table.Subscribe(resource.ObserverFunc(func(e resource.Event) {
		if e.Type == resource.EventCreated {
			Logger().Debug("object opened", zap.Stringer("kind", e.Kind), zap.Uint32("handle", uint32(e.Handle)))
		} else {
			Logger().Debug("object closed", zap.Stringer("kind", e.Kind), zap.Uint32("handle", uint32(e.Handle)))
		}
	}))
	return d
}

// Opened reports how many files and version readers are open.
func (d *Dispatcher) Opened() (files, readers int) {
	return d.files.Len(), d.readers.Len()
}

// Dispatch runs msg and returns it with Result or Error set.
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message) Message {
	start := time.Now()
	msg.Result, msg.Error = nil, nil

	result, err := d.dispatch(ctx, &msg)
	metrics.DispatchLatency.WithLabelValues(msg.Scope).Observe(time.Since(start).Seconds())
	if err != nil {
		msg.Error = failureOf(err)
		Logger().Debug("message failed",
			zap.Uint64("id", msg.ID), zap.String("scope", msg.Scope), zap.String("type", msg.Type),
			zap.String("error", msg.Error.Message))
		return msg
	}
	msg.Result = result
	return msg
}

func (d *Dispatcher) dispatch(ctx context.Context, msg *Message) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validate.Struct(msg); err != nil {
		return nil, errors.InvalidArgument("invalid message: %v", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	switch msg.Scope {
	case ScopeZbox:
		return d.zboxMessage(msg)
	case ScopeRepo:
		return d.repoMessage(msg)
	case ScopeFile:
		return d.fileMessage(msg)
	default:
		return d.readerMessage(msg)
	}
}

// Close closes every opened object and the repository.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	err := d.table.Close()
	if d.repo != nil {
		if cerr := d.repo.Close(); err == nil {
			err = cerr
		}
		d.repo = nil
	}
	return err
}

func failureOf(err error) *Failure {
	bridged := errors.Bridge(err)
	if bridged == io.EOF {
		bridged = errors.Bridge(errors.Engine(errors.CodeIo, "unexpected end of file"))
	}
	return &Failure{Code: errors.CodeOf(bridged), Message: bridged.Error()}
}

// decode unmarshals params into v and validates structs.
func decode(msg *Message, v any) error {
	if len(msg.Params) == 0 {
		return errors.InvalidArgument("%s.%s requires params", msg.Scope, msg.Type)
	}
	if err := json.Unmarshal(msg.Params, v); err != nil {
		return errors.InvalidArgument("%s.%s params: %v", msg.Scope, msg.Type, err)
	}
	if err := validate.Struct(v); err != nil {
		if _, ok := err.(*validator.InvalidValidationError); ok {
			return nil
		}
		return errors.InvalidArgument("%s.%s params: %v", msg.Scope, msg.Type, err)
	}
	return nil
}

// decodeString decodes params that are a single non-empty string.
func decodeString(msg *Message) (string, error) {
	var s string
	if err := decode(msg, &s); err != nil {
		return "", err
	}
	if err := validate.Var(s, "required"); err != nil {
		return "", errors.InvalidArgument("%s.%s requires a non-empty string", msg.Scope, msg.Type)
	}
	return s, nil
}

func decodeUint(msg *Message) (uint64, error) {
	var n uint64
	if err := decode(msg, &n); err != nil {
		return 0, err
	}
	return n, nil
}

func unknownType(msg *Message) error {
	return errors.New(errors.PhaseDispatch, errors.KindUnsupported).
		Code(errors.CodeInvalidArgument).
		Detail("unknown %s message type %q", msg.Scope, msg.Type).
		Build()
}
