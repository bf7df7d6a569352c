// Package orchestrator wires the timing kernel, topic model, persona
// registry, engine dispatcher, bandwidth governor, and session manager
// into the single scheduling loop described in spec.md §4.7 and §5: wait
// for the next Poisson-timed event, start a session, drive it through the
// Markov chain until it leaves, and go back to waiting.
package orchestrator

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/poisson-noise/poisson/internal/domain"
	"github.com/poisson-noise/poisson/internal/infra/activitylog"
	"github.com/poisson-noise/poisson/internal/infra/ring"
	"github.com/poisson-noise/poisson/internal/infra/timing"
)

// Dispatcher is the subset of dispatch.Dispatcher the orchestrator needs.
type Dispatcher interface {
	Select(state string) (domain.Engine, error)
	RecordOutcome(name string, outcome domain.Outcome, bytes int64)
}

// sessionContext is the per-session state captured at admission time and
// looked up again once the session manager invokes Runner: the persona
// the session draws on, and the single engine selected to drive every
// Markov step of the session (spec.md §2, §4.6 — one engine per session,
// not a re-dispatch on every step).
type sessionContext struct {
	persona domain.Persona
	engine  domain.Engine
}

// Governor is the subset of bandwidth.Governor the orchestrator needs.
type Governor interface {
	Admit(ctx context.Context, engine string, estimatedBytes int64) error
	Settle(engine string, estimatedBytes, actualBytes int64)
	EstimateBytes(engine string, fallback int64) int64
}

// Personas is the subset of persona.Registry the orchestrator needs.
type Personas interface {
	Assign(ctx context.Context) (domain.Persona, error)
}

// SessionAdmitter is the subset of session.Manager the orchestrator needs.
type SessionAdmitter interface {
	Admit(ctx context.Context, sess *domain.Session) error
}

// ScheduleGate is the subset of presence.Gate the orchestrator needs: the
// schedule-mode gate consulted before acting on a fired event (spec.md
// §4.7 step 2). A nil gate is treated as always-open.
type ScheduleGate interface {
	Allow() bool
}

// Config controls the orchestrator's timing and per-session defaults.
type Config struct {
	MeanSessionMinutes float64
	MinSessionMinutes  float64
	MaxSessionMinutes  float64
	InterSessionMean   float64 // minutes
	DefaultPageBudget  int
	FallbackPageBytes  int64
}

// Orchestrator drives the whole generator's single scheduling loop.
type Orchestrator struct {
	cfg        Config
	kernel     *timing.Kernel
	topics     domain.TopicModel
	personas   Personas
	dispatcher Dispatcher
	governor   Governor
	sessions   SessionAdmitter
	gate       ScheduleGate
	drivers    map[string]domain.PageDriver // engine name -> driver; "" key is the default
	activity   *ring.Ring
	log        *activitylog.Writer
	logger     *zap.Logger

	mu          sync.Mutex
	sessionOf   map[string]sessionContext // session ID -> persona+engine for the session's lifetime
	started     time.Time
	nextETA     time.Time
	lastPersona string
	stats       Stats
}

// Stats mirrors the add-on's SchedulerStats: cumulative counters exposed to
// the control-plane API, named "_today" for parity with the source even
// though nothing resets them at midnight — the source never did either.
type Stats struct {
	SessionsToday  int64
	RequestsToday  int64
	BytesToday     int64
	ErrorsToday    int64
}

// New builds an Orchestrator from its wired dependencies.
func New(
	cfg Config,
	kernel *timing.Kernel,
	topics domain.TopicModel,
	personas Personas,
	dispatcher Dispatcher,
	governor Governor,
	sessions SessionAdmitter,
	gate ScheduleGate,
	defaultDriver domain.PageDriver,
	activity *ring.Ring,
	logWriter *activitylog.Writer,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		kernel:     kernel,
		topics:     topics,
		personas:   personas,
		dispatcher: dispatcher,
		governor:   governor,
		sessions:   sessions,
		gate:       gate,
		drivers:    map[string]domain.PageDriver{"": defaultDriver},
		activity:   activity,
		log:        logWriter,
		logger:     logger,
		sessionOf:  make(map[string]sessionContext),
		started:    time.Now(),
	}
}

// Uptime reports how long the orchestrator has been running.
func (o *Orchestrator) Uptime() time.Duration {
	return time.Since(o.started)
}

// NextSessionETA reports when the orchestrator expects to start its next
// session, per spec.md §4.7's "monotonic next session ETA exposed via the
// API". Zero until the first event has been scheduled.
func (o *Orchestrator) NextSessionETA() time.Time {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.nextETA
}

// CurrentPersona reports the most recently assigned persona's name, or
// empty if no session has started yet.
func (o *Orchestrator) CurrentPersona() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastPersona
}

// Stats returns a snapshot of the cumulative counters backing /stats.
func (o *Orchestrator) Stats() Stats {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stats
}

// Runner returns the session.Manager-compatible function that drives one
// session to completion, looking up the persona and engine captured for
// it at admission time.
func (o *Orchestrator) Runner(ctx context.Context, sess *domain.Session) error {
	o.mu.Lock()
	sc := o.sessionOf[sess.ID]
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		delete(o.sessionOf, sess.ID)
		o.mu.Unlock()
	}()
	return o.RunSession(ctx, sess, sc.persona, sc.engine)
}

// RegisterDriver lets a specific engine (e.g. tor) use its own PageDriver
// instead of the default one.
func (o *Orchestrator) RegisterDriver(engine string, driver domain.PageDriver) {
	o.drivers[engine] = driver
}

func (o *Orchestrator) driverFor(engine string) domain.PageDriver {
	if d, ok := o.drivers[engine]; ok {
		return d
	}
	return o.drivers[""]
}

// Run is the top-level scheduling loop: wait for the next timing-kernel
// event, then run one session, then loop. Call in a goroutine; it returns
// when ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context) {
	for {
		ev := o.kernel.NextEvent(time.Now())
		o.mu.Lock()
		o.nextETA = ev.FireAt
		o.mu.Unlock()

		wait := time.Until(ev.FireAt)
		if wait > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
		}

		select {
		case <-ctx.Done():
			return
		default:
		}

		if o.gate != nil && !o.gate.Allow() {
			continue
		}

		o.startSession(ctx, ev)

		gap := o.kernel.NextInterSessionGap(time.Now(), o.cfg.InterSessionMean)
		select {
		case <-ctx.Done():
			return
		case <-time.After(gap):
		}
	}
}

// startSession draws a persona and topic, builds the session, and hands
// it to the session manager. The manager runs its Runner (RunSession) in
// its own goroutine; startSession does not block on session completion.
func (o *Orchestrator) startSession(ctx context.Context, ev domain.Event) {
	p, err := o.personas.Assign(ctx)
	if err != nil {
		o.logger.Warn("persona assignment failed", zap.Error(err))
		return
	}
	topic, err := o.topics.Draw(ctx, time.Now())
	if err != nil {
		o.logger.Warn("topic draw failed", zap.Error(err))
		return
	}
	o.topics.MaybeStartObsession(ctx, time.Now())

	// One engine drives the whole session (spec.md §2, §4.6): selected
	// once here against the chain's starting state, not re-selected on
	// every Markov step.
	eng, err := o.dispatcher.Select(string(timing.StateLand))
	if err != nil {
		o.logger.Warn("engine selection failed", zap.Error(err))
		return
	}

	duration := o.kernel.NextSessionDuration(o.cfg.MeanSessionMinutes, o.cfg.MinSessionMinutes, o.cfg.MaxSessionMinutes)
	sess := &domain.Session{
		ID:              uuid.NewString(),
		Persona:         p.Name,
		Topic:           topic,
		StartTS:         time.Now(),
		PlannedDuration: duration,
		PageBudget:      o.cfg.DefaultPageBudget,
		State:           domain.SessionPending,
	}

	o.mu.Lock()
	o.sessionOf[sess.ID] = sessionContext{persona: p, engine: eng}
	o.lastPersona = p.Name
	o.mu.Unlock()

	if err := o.sessions.Admit(ctx, sess); err != nil {
		o.mu.Lock()
		delete(o.sessionOf, sess.ID)
		o.mu.Unlock()
		o.logger.Debug("session admission skipped", zap.Error(err))
		return
	}

	o.mu.Lock()
	o.stats.SessionsToday++
	o.mu.Unlock()
}

// sessionChainSeed derives a Markov chain seed from the session's
// persona+topic pair (spec.md §4.1: "seeded per session from the
// persona+topic hash for reproducibility in tests") rather than from the
// orchestrator's own sequentially-advancing RNG, so the same persona+topic
// pair always walks the same chain.
func sessionChainSeed(persona, topic string) int64 {
	h := fnv.New64a()
	h.Write([]byte(persona))
	h.Write([]byte("|"))
	h.Write([]byte(topic))
	return int64(h.Sum64())
}

// RunSession drives a single admitted session's Markov chain until it
// leaves or the context is cancelled, using the one engine selected for
// the session at admission time; this is the function the session
// manager's Runner hook invokes.
func (o *Orchestrator) RunSession(ctx context.Context, sess *domain.Session, persona domain.Persona, eng domain.Engine) error {
	if eng == nil {
		return domain.ErrNoEnabledEngines
	}
	chain := timing.NewChain(sessionChainSeed(sess.Persona, sess.Topic))
	pagesVisited := 0
	lastURL := ""

	for !chain.Done() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if o.cfg.DefaultPageBudget > 0 && pagesVisited >= o.cfg.DefaultPageBudget {
			break
		}

		state := string(chain.Current())
		lastURL = o.runOneTask(ctx, sess, persona, eng, state, lastURL)
		pagesVisited++

		dwell := chain.Dwell()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(dwell * float64(time.Second))):
		}

		chain.Step()
	}

	sess.EnginePath = append(sess.EnginePath, string(chain.Current()))
	return nil
}

// stateTimeoutFactor is spec.md §4.5's "2x its dwell median" hard cap on
// how long a single state's network call may run, independent of the
// page driver's own fixed request timeout.
const stateTimeoutFactor = 2

// runOneTask admits a task against the bandwidth governor, dispatches it
// through the engine's driver, and records the outcome. It never returns
// an error: bandwidth rejection and driver failures both become activity
// log entries rather than aborting the session. The call is bounded by a
// per-state hard cap (spec.md §4.5) rather than relying solely on the
// page driver's own fixed timeout, since a state like ad_glance and one
// like idle have very different acceptable dwell times.
func (o *Orchestrator) runOneTask(ctx context.Context, sess *domain.Session, persona domain.Persona, eng domain.Engine, state, lastURL string) string {
	timeout := time.Duration(stateTimeoutFactor * timing.DwellMedian(timing.State(state)) * float64(time.Second))
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	task, err := eng.ProduceTask(ctx, sess, state)
	if err != nil {
		o.record(sess, eng.Name(), "", domain.OutcomeError, 0, err)
		return lastURL
	}

	estimate := o.governor.EstimateBytes(eng.Name(), o.cfg.FallbackPageBytes)
	if err := o.governor.Admit(ctx, eng.Name(), estimate); err != nil {
		o.record(sess, eng.Name(), task.URL, domain.OutcomeSkipped, 0, err)
		eng.OnComplete(task, domain.PageResult{}, domain.OutcomeSkipped, err)
		o.dispatcher.RecordOutcome(eng.Name(), domain.OutcomeSkipped, 0)
		return lastURL
	}

	driver := o.driverFor(eng.Name())
	var result domain.PageResult
	if task.Kind == domain.TaskKindPage && driver != nil {
		if lastURL == "" {
			result, err = driver.Open(ctx, persona, task.URL)
		} else {
			result, err = driver.Follow(ctx, persona, lastURL, task.URL)
		}
	} else if task.Kind == domain.TaskKindDNS {
		if r, ok := eng.(interface {
			Resolve(ctx context.Context, host string) error
		}); ok {
			err = r.Resolve(ctx, task.URL)
		}
	}

	outcome := domain.OutcomeOK
	if err != nil {
		outcome = domain.OutcomeError
	}
	o.governor.Settle(eng.Name(), estimate, result.Bytes)
	eng.OnComplete(task, result, outcome, err)
	o.dispatcher.RecordOutcome(eng.Name(), outcome, result.Bytes)
	o.record(sess, eng.Name(), task.URL, outcome, result.Bytes, err)

	sess.BytesConsumed += result.Bytes
	sess.EnginePath = append(sess.EnginePath, eng.Name())
	if outcome == domain.OutcomeOK {
		return task.URL
	}
	return lastURL
}

func (o *Orchestrator) record(sess *domain.Session, engine, url string, outcome domain.Outcome, bytes int64, err error) {
	entry := domain.ActivityEntry{
		Timestamp: time.Now(),
		Engine:    engine,
		URL:       url,
		Bytes:     bytes,
		Outcome:   outcome,
		Persona:   sess.Persona,
		SessionID: sess.ID,
	}
	if err != nil {
		entry.Detail = err.Error()
	}

	o.mu.Lock()
	o.stats.RequestsToday++
	o.stats.BytesToday += bytes
	if outcome == domain.OutcomeError {
		o.stats.ErrorsToday++
	}
	o.mu.Unlock()

	o.activity.Push(entry)
	if o.log != nil {
		if werr := o.log.Write(entry); werr != nil {
			o.logger.Warn("activity log write failed", zap.Error(werr))
		}
	}
	if err != nil {
		o.logger.Debug("task outcome", zap.String("engine", engine), zap.Error(fmt.Errorf("%s: %w", outcome, err)))
	}
}
