package chain

import (
	"context"
	"errors"
	"time"

	"github.com/soyeahso/chainkit/internal/logging"
)

// EventKind names a point in the loop an Observer is told about.
type EventKind string

const (
	EventDispatch   EventKind = "dispatch"    // request about to be sent
	EventResponse   EventKind = "response"    // response received (or dispatch failed)
	EventToolStart  EventKind = "tool_start"  // callback about to run
	EventToolFinish EventKind = "tool_finish" // callback finished, or tool not found
	EventLoopDone   EventKind = "loop_done"   // RunUntilDone returned
)

// Event describes one step of a run. Fields not relevant to Kind are zero.
type Event struct {
	Kind      EventKind
	Iteration int
	Model     string
	CallID    string
	Tool      string
	ToolCalls int
	Duration  time.Duration
	Err       error
}

// Outcome summarizes the event for logs: "ok", "not_found", "error" or "panic".
func (e Event) Outcome() string {
	if e.Err == nil {
		return "ok"
	}
	var te *ToolExecutionError
	if errors.As(e.Err, &te) && te.Panic {
		return "panic"
	}
	if errors.Is(e.Err, ErrToolNotFound) {
		return "not_found"
	}
	return "error"
}

// Observer receives loop events. Implementations must not block for long; they run
// on the loop goroutine (or a tool goroutine under ParallelExecutor).
type Observer interface {
	Observe(ctx context.Context, e Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, e Event)

func (f ObserverFunc) Observe(ctx context.Context, e Event) { f(ctx, e) }

type nopObserver struct{}

func (nopObserver) Observe(context.Context, Event) {}

// LogObserver writes each event to log.
func LogObserver(log *logging.Logger) Observer {
	log = log.Sub("chain")
	return ObserverFunc(func(_ context.Context, e Event) {
		switch e.Kind {
		case EventDispatch:
			log.Debug().Int("iteration", e.Iteration).Str("model", e.Model).Msg("dispatching request")
		case EventResponse:
			if e.Err != nil {
				log.Warn().Int("iteration", e.Iteration).Err(e.Err).Dur("duration", e.Duration).Msg("dispatch failed")
				return
			}
			log.Debug().Int("iteration", e.Iteration).Int("toolCalls", e.ToolCalls).Dur("duration", e.Duration).Msg("response received")
		case EventToolStart:
			log.Debug().Str("tool", e.Tool).Str("callId", e.CallID).Msg("executing tool")
		case EventToolFinish:
			evt := log.Info()
			if e.Err != nil {
				evt = log.Warn().Err(e.Err)
			}
			evt.Str("tool", e.Tool).
				Str("callId", e.CallID).
				Str("outcome", e.Outcome()).
				Dur("duration", e.Duration).
				Msg("tool finished")
		case EventLoopDone:
			evt := log.Info()
			if e.Err != nil {
				evt = log.Warn().Err(e.Err)
			}
			evt.Int("iterations", e.Iteration).Msg("run finished")
		}
	})
}

// Observers fans each event out to every non-nil observer, in order.
func Observers(obs ...Observer) Observer {
	var list []Observer
	for _, o := range obs {
		if o != nil {
			list = append(list, o)
		}
	}
	return ObserverFunc(func(ctx context.Context, e Event) {
		for _, o := range list {
			o.Observe(ctx, e)
		}
	})
}
