package command

import (
	"context"

	"github.com/edsonpavoni/orbitalTemple/internal/logging"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Handler executes one validated command and returns the downlink response
// lines. Handlers must be non-blocking: anything long-running belongs in a
// collaborator's own state machine, serviced tick by tick.
type Handler func(ctx context.Context, msg Message) []string

// Dispatcher routes validated messages to registered handlers by command
// name. Names are matched exactly (the parser already restricts them to
// ASCII alphanumerics).
type Dispatcher struct {
	handlers map[string]Handler
	log      logging.Logger
	tracer   trace.Tracer
}

// NewDispatcher constructs an empty dispatcher. tracer may be nil.
func NewDispatcher(log logging.Logger, tracer trace.Tracer) *Dispatcher {
	if log == nil {
		log = logging.Noop()
	}
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("")
	}
	return &Dispatcher{
		handlers: make(map[string]Handler),
		log:      logging.Subsystem(log, "cmd"),
		tracer:   tracer,
	}
}

// Register binds a handler to a command name, replacing any previous one.
func (d *Dispatcher) Register(name string, h Handler) {
	d.handlers[name] = h
}

// Dispatch runs the handler for msg. Unknown commands are answered with an
// explicit error line so the ground station can tell a typo from a dropped
// packet.
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message) []string {
	ctx, span := d.tracer.Start(ctx, "command.dispatch",
		trace.WithAttributes(attribute.String("command", msg.Command)))
	defer span.End()

	h, ok := d.handlers[msg.Command]
	if !ok {
		d.log.Warn(ctx, "unknown command", logging.String("command", msg.Command))
		return []string{"ERR:UNKNOWN_CMD:" + msg.Command}
	}
	d.log.Info(ctx, "dispatching", logging.String("command", msg.Command))
	return h(ctx, msg)
}
