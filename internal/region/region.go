// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package region owns the scripts running in one region and the shared
// tables they use: the request registry, the worker pool, the event queues,
// the throttles and the listen and sensor tables.
package region

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/simscript/internal/asset"
	"github.com/holomush/simscript/internal/core"
	"github.com/holomush/simscript/internal/directory"
	"github.com/holomush/simscript/internal/dispatch"
	"github.com/holomush/simscript/internal/eventq"
	"github.com/holomush/simscript/internal/listen"
	"github.com/holomush/simscript/internal/logging"
	"github.com/holomush/simscript/internal/registry"
	"github.com/holomush/simscript/internal/script/capability"
	"github.com/holomush/simscript/internal/script/llfunc"
	scriptlua "github.com/holomush/simscript/internal/script/lua"
	"github.com/holomush/simscript/internal/throttle"
	"github.com/holomush/simscript/internal/transport"
	"github.com/holomush/simscript/internal/world"
	"github.com/holomush/simscript/pkg/errutil"
)

// Defaults for Config fields left zero.
const (
	DefaultMaxListens           = 64
	DefaultHTTPRate             = 1.0
	DefaultHTTPBurst            = 25
	DefaultRequestMaxAge        = 5 * time.Minute
	DefaultHousekeepingInterval = 30 * time.Second
	DefaultPresenceTTL          = time.Minute
)

// MaxChatBytes caps one line of chat.
const MaxChatBytes = 1024

// Config tunes a Region.
type Config struct {
	Throttle throttle.Config
	Queue    eventq.Config
	Dispatch dispatch.Config

	MaxListens       int
	SensorResolution time.Duration

	// HTTPRate and HTTPBurst shape the per-script llHTTPRequest bucket.
	HTTPRate  float64
	HTTPBurst int

	// RequestMaxAge is how long a request may stay unanswered before
	// housekeeping resolves it with its fallback.
	RequestMaxAge        time.Duration
	HousekeepingInterval time.Duration
	PresenceTTL          time.Duration

	MailDomain string
}

func (c Config) withDefaults() Config {
	if c.MaxListens <= 0 {
		c.MaxListens = DefaultMaxListens
	}
	if c.SensorResolution <= 0 {
		c.SensorResolution = listen.DefaultSensorResolution
	}
	if c.HTTPRate <= 0 {
		c.HTTPRate = DefaultHTTPRate
	}
	if c.HTTPBurst <= 0 {
		c.HTTPBurst = DefaultHTTPBurst
	}
	if c.RequestMaxAge <= 0 {
		c.RequestMaxAge = DefaultRequestMaxAge
	}
	if c.HousekeepingInterval <= 0 {
		c.HousekeepingInterval = DefaultHousekeepingInterval
	}
	if c.PresenceTTL <= 0 {
		c.PresenceTTL = DefaultPresenceTTL
	}
	return c
}

// Collaborators are the services outside the region. Nil Directory and Scene
// are replaced by empty in-memory ones; nil transports make the matching
// operations fail with their fallback.
type Collaborators struct {
	Directory directory.Directory
	Mailer    transport.Mailer
	Remote    transport.RemoteData
	HTTP      transport.HTTPClient
	Assets    asset.Store
	Scene     world.Scene
}

// Placer is implemented by scenes that track script parts.
type Placer interface {
	Put(e world.Entity)
	Remove(key ulid.ULID)
}

// Namer is implemented by scenes that can name what they hold.
type Namer interface {
	Lookup(key ulid.ULID) (world.Entity, bool)
}

// ScriptSpec describes a script to start.
type ScriptSpec struct {
	Ref      core.ScriptRef
	Name     string
	PartName string
	Owner    ulid.ULID
	Position core.Vector
	Source   string
	Grants   []string
}

type script struct {
	spec   ScriptSpec
	inst   *scriptlua.Instance
	cancel context.CancelFunc
	done   chan struct{}
}

// Region runs scripts. Create one with New, start its background loops with
// Run and stop everything with Close.
type Region struct {
	cfg   Config
	scene world.Scene

	registry   *registry.Registry
	hub        *eventq.Hub
	dispatcher *dispatch.Dispatcher
	throttle   *throttle.Controller
	httpGate   *throttle.Gate
	listens    *listen.Table
	sensors    *listen.Sensors
	bus        *world.ChatBus
	cache      *directory.Cache
	enforcer   *capability.Enforcer
	functions  *llfunc.Functions

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	scripts map[core.ScriptRef]*script
	closed  bool
}

// New creates a region.
func New(cfg Config, col Collaborators) (*Region, error) {
	if err := cfg.Throttle.Validate(); err != nil {
		return nil, oops.In("region").Wrap(err)
	}
	if err := cfg.Queue.Validate(); err != nil {
		return nil, oops.In("region").Wrap(err)
	}
	cfg = cfg.withDefaults()

	if col.Directory == nil {
		col.Directory = directory.NewMemory()
	}
	if col.Scene == nil {
		col.Scene = world.NewMemoryScene()
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Region{
		cfg:      cfg,
		scene:    col.Scene,
		hub:      eventq.NewHub(cfg.Queue),
		throttle: throttle.New(cfg.Throttle),
		httpGate: throttle.NewGate(cfg.HTTPRate, cfg.HTTPBurst),
		bus:      world.NewChatBus(),
		cache:    directory.NewCache(col.Directory, cfg.PresenceTTL),
		enforcer: capability.NewEnforcer(),
		ctx:      ctx,
		cancel:   cancel,
		scripts:  make(map[core.ScriptRef]*script),
	}
	r.registry = registry.New(r.hub)
	r.dispatcher = dispatch.New(r.registry, cfg.Dispatch)
	r.listens = listen.NewTable(r.hub, col.Scene, listen.WithMaxPerScript(cfg.MaxListens))
	r.sensors = listen.NewSensors(col.Scene, r.hub, listen.WithResolution(cfg.SensorResolution))
	r.bus.Attach(r.listens)
	r.functions = llfunc.New(r, r.enforcer, llfunc.Deps{
		Directory:  r.cache,
		Mailer:     col.Mailer,
		Remote:     col.Remote,
		HTTP:       col.HTTP,
		Assets:     col.Assets,
		MailDomain: cfg.MailDomain,
	})
	return r, nil
}

// Bus returns the region's chat bus. Avatars speak by publishing on it.
func (r *Region) Bus() *world.ChatBus {
	return r.bus
}

// AddScript compiles spec and starts it.
func (r *Region) AddScript(spec ScriptSpec) error {
	if spec.Ref.IsZero() {
		return oops.Code(core.CodeInvalidArgument).Errorf("script reference cannot be empty")
	}
	if spec.Name == "" {
		return oops.Code(core.CodeInvalidArgument).With("script", spec.Ref.String()).Errorf("script name cannot be empty")
	}
	proto, err := scriptlua.Compile(spec.Name, spec.Source)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return oops.Code(core.CodeShuttingDown).Errorf("region is closed")
	}
	if _, ok := r.scripts[spec.Ref]; ok {
		return oops.Code(core.CodeInvalidArgument).
			With("script", spec.Ref.String()).
			Errorf("script %s is already running", spec.Ref.String())
	}
	if err := r.enforcer.SetGrants(spec.Ref, spec.Grants); err != nil {
		return err
	}

	queue := r.hub.Open(spec.Ref)
	inst := scriptlua.NewInstance(scriptlua.Info{
		Ref:      spec.Ref,
		Name:     spec.Name,
		PartName: spec.PartName,
		Owner:    spec.Owner,
	}, proto, queue,
		scriptlua.WithBinder(r.functions),
		scriptlua.WithErrorHandler(r.reportError))

	if placer, ok := r.scene.(Placer); ok {
		placer.Put(world.Entity{
			Key:   spec.Ref.PartID,
			Name:  spec.PartName,
			Type:  world.TypeActive | world.TypeScripted,
			Pos:   spec.Position,
			Owner: spec.Owner,
		})
	}

	ctx, cancel := context.WithCancel(r.ctx)
	s := &script{spec: spec, inst: inst, cancel: cancel, done: make(chan struct{})}
	r.scripts[spec.Ref] = s
	go func() {
		defer close(s.done)
		inst.Run(ctx)
	}()

	scriptsRunning.Inc()
	slog.Info("script started",
		"script", spec.Ref.String(),
		"name", spec.Name,
		"part", spec.PartName)
	return nil
}

// ResetScript restarts ref from state_entry with nothing left of its previous
// incarnation: no pending requests, listens, sensors or queued events.
// It may be called from the script's own goroutine.
func (r *Region) ResetScript(ref core.ScriptRef) error {
	r.mu.Lock()
	s, ok := r.scripts[ref]
	if ok {
		// Registration paths hold the read lock and check the incarnation
		// context, so nothing new is registered once this returns.
		s.inst.Interrupt()
	}
	r.mu.Unlock()
	if !ok {
		return core.ErrScriptNotFound(ref)
	}

	r.teardown(ref)
	s.inst.Restart()
	scriptResets.Inc()
	return nil
}

// RemoveScript stops ref and releases everything it held. It must not be
// called from the script's own goroutine.
func (r *Region) RemoveScript(ref core.ScriptRef) error {
	r.mu.Lock()
	s, ok := r.scripts[ref]
	if ok {
		delete(r.scripts, ref)
		s.cancel()
	}
	r.mu.Unlock()
	if !ok {
		return core.ErrScriptNotFound(ref)
	}

	r.release(s)
	<-s.done
	slog.Info("script removed",
		"script", ref.String(),
		"name", s.spec.Name)
	return nil
}

// release tears s down for good.
func (r *Region) release(s *script) {
	ref := s.spec.Ref
	r.teardown(ref)
	r.hub.Close(ref)
	r.enforcer.RemoveGrants(ref)
	r.throttle.Forget(ref)
	r.httpGate.Forget(ref)
	scriptsRunning.Dec()

	placer, ok := r.scene.(Placer)
	if !ok {
		return
	}
	r.mu.RLock()
	shared := false
	for other := range r.scripts {
		if other.PartID == ref.PartID {
			shared = true
			break
		}
	}
	r.mu.RUnlock()
	if !shared {
		placer.Remove(ref.PartID)
	}
}

// teardown drops everything that could still produce an event for ref. The
// order matters: sources first, then the queue they feed.
func (r *Region) teardown(ref core.ScriptRef) {
	requests := r.registry.CancelAllFor(ref)
	listens := r.listens.RemoveAllFor(ref)
	r.sensors.RemoveAllFor(ref)
	dropped := r.hub.Reset(ref)

	slog.Debug("script torn down",
		"script", ref.String(),
		"requests", requests,
		"listens", listens,
		"events", dropped)
}

// Scripts lists the running scripts.
func (r *Region) Scripts() []ScriptSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	specs := make([]ScriptSpec, 0, len(r.scripts))
	for _, s := range r.scripts {
		specs = append(specs, s.spec)
	}
	return specs
}

// Stats is a snapshot of the region's tables.
type Stats struct {
	Scripts  int
	Pending  int
	Queues   int
	Listens  int
	Presence int
}

// Stats returns a snapshot of the region's tables.
func (r *Region) Stats() Stats {
	r.mu.RLock()
	n := len(r.scripts)
	r.mu.RUnlock()
	return Stats{
		Scripts:  n,
		Pending:  r.registry.Len(),
		Queues:   r.hub.Len(),
		Listens:  r.listens.Len(),
		Presence: r.cache.Len(),
	}
}

// Run drives the sensor sweeps and housekeeping until ctx is done.
func (r *Region) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.sensors.Run(ctx)
	}()

	ticker := time.NewTicker(r.cfg.HousekeepingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case <-ticker.C:
			r.housekeep()
		}
	}
}

func (r *Region) housekeep() {
	expired := r.registry.Expire(r.cfg.RequestMaxAge)
	pruned := r.cache.Prune()
	if expired > 0 || pruned > 0 {
		slog.Debug("housekeeping",
			"expired_requests", expired,
			"pruned_presence", pruned)
	}
}

// Close stops every script and waits for them and for in-flight operations.
func (r *Region) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	stopping := make([]*script, 0, len(r.scripts))
	for ref, s := range r.scripts {
		s.cancel()
		stopping = append(stopping, s)
		delete(r.scripts, ref)
	}
	r.mu.Unlock()

	for _, s := range stopping {
		r.release(s)
	}
	for _, s := range stopping {
		<-s.done
	}
	r.cancel()
	r.dispatcher.Close()
	r.throttle.Close()
	slog.Info("region closed", "scripts", len(stopping))
}

// reportError logs a script failure and says it on DEBUG_CHANNEL.
func (r *Region) reportError(inst *scriptlua.Instance, err error) {
	scriptErrors.Inc()
	logger := logging.ForScript(slog.Default(), inst.Ref(), inst.Info().Name)
	errutil.LogError(logger, "script error", err)
	r.Say(inst.Ref(), world.ChatSay, world.DebugChannel, err.Error())
}
