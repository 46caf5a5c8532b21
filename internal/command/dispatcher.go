package command

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/keshon/commandgate/internal/features"
)

// User-facing messages sent by the dispatcher itself.
const (
	MsgNotFound       = "❌ Command not found."
	MsgGuildOnly      = "❌ This command can only be used in a server."
	MsgExecutionError = "❌ An error occurred while executing the command."
	ReasonValidation  = "Command validation failed."
)

// State is where a dispatch call ended.
type State int

const (
	StateCompleted State = iota
	StateRejectedUnknown
	StateRejectedContext
	StateRejectedPermission
	StateRejectedFeature
	StateRejectedCustom
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateCompleted:
		return "completed"
	case StateRejectedUnknown:
		return "rejected-unknown"
	case StateRejectedContext:
		return "rejected-context"
	case StateRejectedPermission:
		return "rejected-permission"
	case StateRejectedFeature:
		return "rejected-feature"
	case StateRejectedCustom:
		return "rejected-custom"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Result describes the outcome of one ExecuteCommand call.
type Result struct {
	ID          string
	Command     string
	GuildID     string
	UserID      string
	State       State
	Err         error
	Duration    time.Duration
	CompletedAt time.Time
}

// Observer is notified after every dispatch.
type Observer func(ctx context.Context, res Result)

// Dispatcher routes interactions to registered commands.
type Dispatcher struct {
	registry            *Registry
	features            FeatureChecker
	log                 zerolog.Logger
	autocompleteTimeout time.Duration
	observers           []Observer
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithLogger sets the dispatcher's logger.
func WithLogger(log zerolog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.log = log.With().Str("component", "dispatcher").Logger()
	}
}

// WithAutocompleteTimeout bounds how long an autocomplete hook may run.
func WithAutocompleteTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.autocompleteTimeout = timeout
		}
	}
}

// WithObserver registers a callback run after each dispatch.
func WithObserver(o Observer) DispatcherOption {
	return func(d *Dispatcher) {
		d.observers = append(d.observers, o)
	}
}

// NewDispatcher creates a dispatcher over reg, reading feature state from fc.
func NewDispatcher(reg *Registry, fc FeatureChecker, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		registry:            reg,
		features:            fc,
		log:                 zerolog.Nop(),
		autocompleteTimeout: 2500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ExecuteCommand runs the named command for in. Every failure is contained
// and reported in the returned Result.
func (d *Dispatcher) ExecuteCommand(ctx context.Context, name string, in *Interaction) Result {
	start := time.Now()
	res := Result{
		ID:      uuid.NewString(),
		Command: name,
		GuildID: in.GuildID,
	}
	if u := in.Invoker(); u != nil {
		res.UserID = u.ID
	}
	log := d.log.With().Str("dispatch_id", res.ID).Str("command", name).Str("guild_id", in.GuildID).Logger()

	res.State, res.Err = d.execute(ctx, name, in, log)
	res.Duration = time.Since(start)
	res.CompletedAt = time.Now()

	switch res.State {
	case StateCompleted:
		log.Debug().Dur("duration", res.Duration).Msg("Command completed")
	case StateFailed:
		log.Error().Err(res.Err).Dur("duration", res.Duration).Msg("Command failed")
	default:
		log.Info().Str("state", res.State.String()).Err(res.Err).Msg("Command rejected")
	}

	for _, o := range d.observers {
		o(ctx, res)
	}
	return res
}

func (d *Dispatcher) execute(ctx context.Context, name string, in *Interaction, log zerolog.Logger) (State, error) {
	cmd, ok := d.registry.Lookup(name)
	if !ok {
		if err := in.ReplyEphemeral(MsgNotFound); err != nil {
			log.Warn().Err(err).Msg("Failed to send not-found reply")
		}
		return StateRejectedUnknown, &NotFoundError{Name: name}
	}

	if !in.InGuild() && !cmd.Metadata.DMPermission {
		if err := in.ReplyEphemeral(MsgGuildOnly); err != nil {
			log.Warn().Err(err).Msg("Failed to send guild-only reply")
		}
		return StateRejectedContext, &ContextError{Name: name}
	}

	c := &Context{
		Interaction: in,
		Features:    d.features,
		Logger:      log,
	}

	state, err := d.guarded(func() (State, error) {
		return d.runGates(ctx, cmd, c)
	})
	if state != StateFailed {
		return state, err
	}

	err = &HandlerExecutionError{Name: name, Err: err}
	if !in.Answered() {
		if rerr := in.ReplyEphemeral(MsgExecutionError); rerr != nil {
			log.Warn().Err(rerr).Msg("Failed to send error reply")
		}
	}
	return StateFailed, err
}

// runGates runs the permission, feature and custom gates, then the handler.
func (d *Dispatcher) runGates(ctx context.Context, cmd RegisteredCommand, c *Context) (State, error) {
	meta := cmd.Metadata

	// DM invocations of DM-enabled commands skip the permission gate.
	if c.Interaction.InGuild() && len(meta.RequiredPermissions) > 0 {
		if missing := MissingPermissions(c.Interaction.MemberPermissions(), meta.RequiredPermissions); len(missing) > 0 {
			reason := fmt.Sprintf("You are missing the following permissions: %s.", PermissionList(missing))
			if err := d.reject(ctx, cmd, c, reason); err != nil {
				return StateFailed, err
			}
			return StateRejectedPermission, &PermissionDeniedError{Name: meta.Name, Missing: missing}
		}
	}

	if len(meta.RequiredFeatures) > 0 {
		if disabled := d.disabledFeatures(meta.RequiredFeatures); len(disabled) > 0 {
			reason := fmt.Sprintf("The following features are disabled: %s", features.Join(disabled))
			if err := d.reject(ctx, cmd, c, reason); err != nil {
				return StateFailed, err
			}
			return StateRejectedFeature, &FeatureDisabledError{Name: meta.Name, Disabled: disabled}
		}
	}

	if v, ok := cmd.Handler.(Validator); ok {
		valid, err := v.Validate(ctx, c)
		if err != nil {
			return StateFailed, fmt.Errorf("validate: %w", err)
		}
		if !valid {
			if err := d.reject(ctx, cmd, c, ReasonValidation); err != nil {
				return StateFailed, err
			}
			return StateRejectedCustom, &ValidationFailedError{Name: meta.Name}
		}
	}

	if err := cmd.Handler.Execute(ctx, c); err != nil {
		return StateFailed, err
	}
	return StateCompleted, nil
}

// disabledFeatures evaluates required against a single snapshot when the
// checker offers one, so a concurrent toggle cannot split the answer.
func (d *Dispatcher) disabledFeatures(required []features.Feature) []features.Feature {
	if d.features == nil {
		return required
	}
	if s, ok := d.features.(interface{ Snapshot() features.Set }); ok {
		return s.Snapshot().Disabled(required)
	}
	var disabled []features.Feature
	for _, f := range required {
		if !d.features.IsFeatureEnabled(f) {
			disabled = append(disabled, f)
		}
	}
	return disabled
}

func (d *Dispatcher) reject(ctx context.Context, cmd RegisteredCommand, c *Context, reason string) error {
	if fh, ok := cmd.Handler.(FailureHandler); ok {
		if err := fh.OnValidationFailure(ctx, c, reason); err != nil {
			return fmt.Errorf("rejection callback: %w", err)
		}
		return nil
	}
	if err := (Base{}).OnValidationFailure(ctx, c, reason); err != nil {
		return fmt.Errorf("rejection callback: %w", err)
	}
	return nil
}

// guarded converts a panic in fn into a failed state.
func (d *Dispatcher) guarded(fn func() (State, error)) (state State, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error().Str("stack", string(debug.Stack())).Msgf("Recovered from panic: %v", r)
			state, err = StateFailed, fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

// HandleAutocomplete runs the command's autocomplete hook, if it has one.
// Failures are logged. A request the hook left unanswered gets an empty
// suggestion list.
func (d *Dispatcher) HandleAutocomplete(ctx context.Context, in *Interaction) {
	name := in.CommandName()
	cmd, ok := d.registry.Lookup(name)
	if !ok {
		return
	}
	ac, ok := cmd.Handler.(Autocompleter)
	if !ok {
		return
	}

	log := d.log.With().Str("command", name).Logger()
	c := &Context{Interaction: in, Features: d.features, Logger: log}

	ctx, cancel := context.WithTimeout(ctx, d.autocompleteTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := d.guarded(func() (State, error) {
			return StateCompleted, ac.Autocomplete(ctx, c)
		})
		done <- err
	}()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		log.Warn().Dur("timeout", d.autocompleteTimeout).Msg("Autocomplete timed out")
	case err != nil:
		log.Error().Err(err).Msg("Error handling autocomplete")
	}
	if !in.Answered() {
		if serr := in.Suggest(nil); serr != nil {
			log.Warn().Err(serr).Msg("Failed to send empty autocomplete result")
		}
	}
}
