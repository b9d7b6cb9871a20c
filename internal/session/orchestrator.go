package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/songbot/internal/command"
	"github.com/MrWong99/songbot/internal/observe"
	"github.com/MrWong99/songbot/pkg/audio"
	"github.com/MrWong99/songbot/pkg/audio/queue"
	"github.com/MrWong99/songbot/pkg/provider/resolver"
)

// Infra subsystem names reported through [command.InfraError]. They complete
// the "Couldn't get ..." user message.
const (
	SubsystemVoiceManager    = "voice manager"
	SubsystemResolver        = "resolver"
	SubsystemServerID        = "server ID"
	SubsystemSessionLock     = "session lock"
	SubsystemVoiceConnection = "voice connection"
)

// Option is a functional option for [New].
type Option func(*Orchestrator)

// WithInterpreter sets the interpreter used by [Orchestrator.Handle].
func WithInterpreter(in command.Interpreter) Option {
	return func(o *Orchestrator) { o.interp = in }
}

// WithCommandTimeout bounds every command, including the wait for the guild's
// guard, the voice join and the source lookup. Zero disables the bound, so a
// stuck join or lookup holds the guild until it returns.
func WithCommandTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.timeout.Store(int64(d)) }
}

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// Orchestrator executes commands against a [Table]. It joins voice channels
// through an [audio.Platform] and turns queries into sources through a
// [resolver.Provider].
//
// All methods are safe for concurrent use. Commands for one guild are
// serialised; commands for different guilds run in parallel.
type Orchestrator struct {
	table    *Table
	platform audio.Platform
	resolver resolver.Provider
	interp   command.Interpreter
	timeout  atomic.Int64
	metrics  *observe.Metrics
}

// New creates an [Orchestrator]. platform and res may be nil; commands that
// need them then fail with a [command.InfraError].
func New(table *Table, platform audio.Platform, res resolver.Provider, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		table:    table,
		platform: platform,
		resolver: res,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.metrics == nil {
		o.metrics = observe.DefaultMetrics()
	}
	return o
}

// Table returns the session table the orchestrator works on.
func (o *Orchestrator) Table() *Table { return o.table }

// SetCommandTimeout changes the bound applied by [WithCommandTimeout] for
// commands started afterwards.
func (o *Orchestrator) SetCommandTimeout(d time.Duration) {
	o.timeout.Store(int64(d))
}

// Handle parses and executes one chat command and returns the text to show
// the user. Every failure, including a panic in a handler, is turned into a
// message; Handle never returns an empty string.
func (o *Orchestrator) Handle(ctx context.Context, name string, opts []command.Option, guildID, callerChannelID string) (reply string) {
	start := time.Now()
	ctx = observe.WithLogAttrs(ctx, slog.String("guild_id", guildID), slog.String("command", name))
	ctx, span := observe.StartSpan(ctx, "session.command",
		trace.WithAttributes(
			attribute.String("guild_id", guildID),
			attribute.String("command", name),
		),
	)
	defer span.End()

	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("session: panic in %s: %v", name, r)
			reply = command.MsgInternal
		}
		kind := command.Kind(err)
		o.logOutcome(ctx, kind, err)
		if err != nil && kind != "not_in_channel" {
			span.RecordError(err)
			span.SetStatus(codes.Error, kind)
		}
		o.metrics.RecordCommand(ctx, name, kind, time.Since(start))
	}()

	cmd, err := o.interp.Parse(name, opts)
	if err != nil {
		return command.Message(err)
	}
	reply, err = o.Execute(ctx, cmd, guildID, callerChannelID)
	if err != nil {
		return command.Message(err)
	}
	return reply
}

// logOutcome logs a handled command at the level its error kind calls for.
func (o *Orchestrator) logOutcome(ctx context.Context, kind string, err error) {
	log := observe.Logger(ctx)
	switch kind {
	case "ok":
		log.Debug("session: command handled")
	case "not_in_channel":
		log.Debug("session: not in voice channel")
	case "infra", "internal":
		log.Error("session: command failed", "kind", kind, "err", err)
	default:
		log.Warn("session: command rejected", "kind", kind, "err", err)
	}
}

// Execute runs cmd for guildID on behalf of a caller currently in voice
// channel callerChannelID (empty when the caller is not in one). It returns
// the success text, or an error of the [command] taxonomy. A guild without a
// session answers [command.ErrNotInChannel] to everything except play.
func (o *Orchestrator) Execute(ctx context.Context, cmd command.Command, guildID, callerChannelID string) (string, error) {
	if o.platform == nil {
		return "", &command.InfraError{Subsystem: SubsystemVoiceManager}
	}
	if o.resolver == nil {
		return "", &command.InfraError{Subsystem: SubsystemResolver}
	}
	if guildID == "" {
		return "", &command.InfraError{Subsystem: SubsystemServerID}
	}
	if _, ok := cmd.(command.Play); ok && callerChannelID == "" {
		return "", command.ErrNotInChannel
	}

	if d := time.Duration(o.timeout.Load()); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	g, err := o.table.Lock(ctx, guildID)
	if err != nil {
		return "", &command.InfraError{Subsystem: SubsystemSessionLock, Err: err}
	}
	defer g.Unlock()

	switch c := cmd.(type) {
	case command.Play:
		return o.play(ctx, g, c, callerChannelID)
	case command.Leave:
		return o.leave(ctx, g)
	case command.Skip:
		return o.withSession(g, func(s *Session) string {
			s.Skip()
			return command.MsgSkipped
		})
	case command.Pause:
		return o.withSession(g, func(s *Session) string {
			s.Pause()
			return command.MsgPaused
		})
	case command.Resume:
		return o.withSession(g, func(s *Session) string {
			s.Resume()
			return command.MsgResumed
		})
	case command.ListQueue:
		return o.withSession(g, func(s *Session) string {
			return command.FormatQueue(s.Tracks())
		})
	default:
		return "", &command.UnknownCommandError{Name: cmd.Name()}
	}
}

// withSession runs fn on the guild's session, or reports
// [command.ErrNotInChannel] when there is none.
func (o *Orchestrator) withSession(g *Guard, fn func(*Session) string) (string, error) {
	s := g.Session()
	if s == nil {
		return "", command.ErrNotInChannel
	}
	return fn(s), nil
}

func (o *Orchestrator) play(ctx context.Context, g *Guard, c command.Play, channelID string) (string, error) {
	sess, joined, err := g.GetOrCreate(ctx, func(ctx context.Context) (*Session, error) {
		return o.join(ctx, g.GuildID(), channelID)
	})
	if err != nil {
		return "", &command.InfraError{Subsystem: SubsystemVoiceConnection, Err: err}
	}
	if joined {
		o.metrics.ActiveSessions.Add(ctx, 1)
		observe.Logger(ctx).Info("session: joined voice channel", "channel_id", sess.ChannelID)
	}

	src, err := o.resolver.Resolve(ctx, c.Query)
	if err != nil {
		return "", &command.SourceResolutionError{Query: c.Query, Err: err}
	}
	sess.Enqueue(src)
	o.metrics.TracksEnqueued.Add(ctx, 1)
	observe.Logger(ctx).Debug("session: track queued", "title", src.Track().DisplayTitle())
	return command.MsgQueued, nil
}

// join connects to channelID and builds the guild's session around the new
// connection.
func (o *Orchestrator) join(ctx context.Context, guildID, channelID string) (*Session, error) {
	conn, err := o.platform.Connect(ctx, guildID, channelID)
	if err != nil {
		return nil, fmt.Errorf("session: join %s/%s: %w", guildID, channelID, err)
	}
	log := slog.With("guild_id", guildID, "channel_id", channelID)
	return NewSession(guildID, conn,
		queue.WithErrorHandler(func(track audio.Track, err error) {
			log.Warn("session: playback failed", "title", track.DisplayTitle(), "err", err)
			o.metrics.PlaybackErrors.Add(context.Background(), 1)
		}),
		queue.WithTrackEndHandler(func(track audio.Track) {
			log.Debug("session: track finished", "title", track.DisplayTitle())
		}),
	), nil
}

func (o *Orchestrator) leave(ctx context.Context, g *Guard) (string, error) {
	s := g.Remove()
	if s == nil {
		return "", command.ErrNotInChannel
	}
	o.metrics.ActiveSessions.Add(ctx, -1)
	if err := s.Close(); err != nil {
		observe.Logger(ctx).Warn("session: disconnect failed", "err", err)
	}
	return command.MsgLeft, nil
}

// Close tears down every session of the table. See [Table.Close].
func (o *Orchestrator) Close(ctx context.Context) error {
	n := o.table.Len()
	err := o.table.Close(ctx)
	o.metrics.ActiveSessions.Add(context.WithoutCancel(ctx), -int64(n-o.table.Len()))
	return err
}
