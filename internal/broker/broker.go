// Package broker wires the VizStack resource broker's daemon state
// together: the domain inventory, allocator, scheduler, and X-server
// lifecycle, the authenticated listening endpoints, the per-connection
// session lifecycle, and the single global lock that serializes
// inventory mutation. Each listener gets an accept loop; each accepted
// connection gets a handshake deadline before the caller is
// authenticated, then a request/response loop; an idle-session reaper
// ticks in the background.
package broker

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/vizstack/broker/internal/allocator"
	"github.com/vizstack/broker/internal/audit"
	"github.com/vizstack/broker/internal/auth"
	"github.com/vizstack/broker/internal/config"
	"github.com/vizstack/broker/internal/dispatcher"
	"github.com/vizstack/broker/internal/health"
	"github.com/vizstack/broker/internal/logging"
	"github.com/vizstack/broker/internal/protocol"
	"github.com/vizstack/broker/internal/rghandler"
	"github.com/vizstack/broker/internal/resource"
	"github.com/vizstack/broker/internal/scheduler"
	"github.com/vizstack/broker/internal/session"
	"github.com/vizstack/broker/internal/transport"
	"github.com/vizstack/broker/internal/vserr"
	"github.com/vizstack/broker/internal/vsconfig"
	"github.com/vizstack/broker/internal/wire"
	"github.com/vizstack/broker/internal/xserver"
)

var log = logging.L("broker")

const (
	// HandshakeTimeout bounds how long a new connection has to send its
	// client hello before the broker disconnects it.
	HandshakeTimeout = 5 * time.Second

	// IdleCheckInterval is how often the idle reaper scans sessions.
	IdleCheckInterval = 60 * time.Second

	// IdleTimeout disconnects a session that has sent nothing for this long.
	IdleTimeout = 30 * time.Minute
)

// Broker is the running daemon: one dispatcher over one inventory,
// reachable through one or more transport endpoints.
type Broker struct {
	cfg    *config.Config
	master *vsconfig.MasterConfig

	// mu is the single global broker lock: every inventory mutation
	// runs under it, except wait_x_state's sleep.
	mu        sync.Mutex
	dispatch  *dispatcher.Dispatcher
	lifecycle *xserver.Lifecycle

	audit  *audit.Logger
	health *health.Monitor

	endpoints []*transport.Endpoint

	sessMu   sync.RWMutex
	sessions map[string]*liveSession

	connCount atomic.Int32
	closed    atomic.Bool
	wg        sync.WaitGroup
}

// New loads the domain inventory named by cfg and builds a Broker ready
// to Serve, but does not open any listening socket yet.
func New(cfg *config.Config, al *audit.Logger, hm *health.Monitor) (*Broker, error) {
	master, inv, err := vsconfig.Load(cfg.MasterConfigFile)
	if err != nil {
		return nil, fmt.Errorf("broker: load domain inventory: %w", err)
	}

	sched, err := buildScheduler(cfg, inv.Nodes)
	if err != nil {
		return nil, fmt.Errorf("broker: build scheduler: %w", err)
	}
	metasched, err := scheduler.NewMetascheduler([]scheduler.Scheduler{sched})
	if err != nil {
		return nil, fmt.Errorf("broker: %w", err)
	}

	allocInv := allocator.NewInventory(inv.Nodes, inv.RGCatalog)
	alloc := allocator.New(allocInv, metasched, rghandler.Handlers())
	lifecycle := xserver.New(time.Duration(cfg.XServerStartIntervalSeconds) * time.Second)

	reload := func() (map[string]*resource.ResourceGroup, vsconfig.TemplateCatalog, error) {
		catalog, err := vsconfig.LoadResourceGroups(master.RGConfigFile)
		if err != nil {
			return nil, vsconfig.TemplateCatalog{}, err
		}
		templates, err := vsconfig.LoadTemplateCatalog(vsconfig.ShippedTemplateRoot, vsconfig.OverrideTemplateRoot)
		if err != nil {
			return nil, vsconfig.TemplateCatalog{}, err
		}
		return catalog, templates, nil
	}

	disp := dispatcher.New(allocInv, alloc, lifecycle, inv.Templates, al, reload)

	b := &Broker{
		cfg:       cfg,
		master:    master,
		dispatch:  disp,
		lifecycle: lifecycle,
		audit:     al,
		health:    hm,
		sessions:  make(map[string]*liveSession),
	}
	return b, nil
}

// buildScheduler constructs the single cluster-wide scheduler adapter
// named by cfg.SchedulerKind over every node in the loaded inventory.
func buildScheduler(cfg *config.Config, nodes []*allocator.Node) (scheduler.Scheduler, error) {
	names := make([]string, len(nodes))
	for i, n := range nodes {
		names[i] = n.Name
	}
	switch cfg.SchedulerKind {
	case "ssh":
		return scheduler.NewSSH(names, cfg.SchedulerSSHUser), nil
	case "batch":
		return scheduler.NewBatch(names), nil
	case "", "local":
		return scheduler.NewLocal(names), nil
	default:
		return nil, fmt.Errorf("unrecognized scheduler_kind %q", cfg.SchedulerKind)
	}
}

// Listen opens every transport endpoint cfg names. At least one of a
// local socket or a TCP address must be configured (enforced earlier by
// config.ValidateTiered).
func (b *Broker) Listen() error {
	if b.cfg.LocalSocketPath != "" {
		ep, err := transport.ListenLocal(b.cfg.LocalSocketPath)
		if err != nil {
			return err
		}
		b.endpoints = append(b.endpoints, ep)
	}
	if b.cfg.TCPListenAddr != "" {
		scheme, err := b.buildAuthScheme()
		if err != nil {
			return err
		}
		ep, err := transport.ListenTCP(b.cfg.TCPListenAddr, scheme)
		if err != nil {
			return err
		}
		b.endpoints = append(b.endpoints, ep)
	}
	if len(b.endpoints) == 0 {
		return fmt.Errorf("broker: no transport endpoint configured")
	}
	return nil
}

func (b *Broker) buildAuthScheme() (auth.Scheme, error) {
	switch b.cfg.AuthScheme {
	case "munge":
		key, err := os.ReadFile(b.cfg.MungeSecretFile)
		if err != nil {
			return nil, fmt.Errorf("broker: read munge secret %s: %w", b.cfg.MungeSecretFile, err)
		}
		return auth.NewMunge(key), nil
	default:
		return nil, fmt.Errorf("broker: unrecognized auth_scheme %q", b.cfg.AuthScheme)
	}
}

// Serve accepts connections on every opened endpoint until ctx is
// cancelled, then closes them and waits for in-flight connections to
// finish.
func (b *Broker) Serve(ctx context.Context) error {
	b.health.Update("broker", health.Healthy, "accepting connections")
	b.audit.Log(audit.EventBrokerStart, "", nil)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.idleReaper(ctx)
	}()

	for _, ep := range b.endpoints {
		ep := ep
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			b.acceptLoop(ctx, ep)
		}()
	}

	<-ctx.Done()
	b.Shutdown()
	return nil
}

// Shutdown closes every endpoint and waits for connection handlers to
// return. Idempotent.
func (b *Broker) Shutdown() {
	if !b.closed.CompareAndSwap(false, true) {
		return
	}
	for _, ep := range b.endpoints {
		_ = ep.Close()
	}
	b.wg.Wait()
	b.audit.Log(audit.EventBrokerStop, "", nil)
	b.health.Update("broker", health.Unhealthy, "stopped")
}

func (b *Broker) acceptLoop(ctx context.Context, ep *transport.Endpoint) {
	for {
		conn, id, err := ep.Accept()
		if err != nil {
			if b.closed.Load() {
				return
			}
			log.Warn("accept error", "endpoint", ep.Name, "error", err)
			continue
		}

		if int(b.connCount.Add(1)) > b.cfg.MaxConcurrentConnections {
			b.connCount.Add(-1)
			log.Warn("max concurrent connections exceeded, rejecting", "endpoint", ep.Name)
			conn.Close()
			continue
		}

		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			defer b.connCount.Add(-1)
			b.handleConnection(ctx, ep, conn, id)
		}()
	}
}

func (b *Broker) idleReaper(ctx context.Context) {
	ticker := time.NewTicker(IdleCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			b.reapIdleSessions()
		case <-ctx.Done():
			return
		}
	}
}

func (b *Broker) reapIdleSessions() {
	b.sessMu.RLock()
	var idle []*liveSession
	for _, ls := range b.sessions {
		if ls.sess.IdleDuration() > IdleTimeout {
			idle = append(idle, ls)
		}
	}
	b.sessMu.RUnlock()

	for _, ls := range idle {
		log.Info("disconnecting idle session", "session", ls.sess.ID, "idle", ls.sess.IdleDuration())
		// Closing the conn unblocks the connection goroutine's read,
		// which then runs the usual closeSession path.
		_ = ls.conn.Close()
	}
}

// liveSession pairs a session with its connection so the idle reaper can
// force a disconnect.
type liveSession struct {
	sess *session.Session
	conn *wire.Conn
}

func (b *Broker) registerSession(s *session.Session, conn *wire.Conn) {
	b.sessMu.Lock()
	b.sessions[s.ID] = &liveSession{sess: s, conn: conn}
	b.sessMu.Unlock()
}

func (b *Broker) closeSession(s *session.Session) {
	s.BeginClose()
	if s.CleanupOnDisconnect {
		b.mu.Lock()
		b.dispatch.CleanupSession(s)
		b.mu.Unlock()
	}
	b.sessMu.Lock()
	delete(b.sessions, s.ID)
	b.sessMu.Unlock()
	b.audit.Log(audit.EventSessionClose, "", map[string]any{"session": s.ID, "uid": s.UID})
}

func writeResponse(conn *wire.Conn, ep *transport.Endpoint, id auth.Identity, resp protocol.Response) error {
	payload, err := protocol.Encode(resp)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	if !ep.Trusted {
		payload, err = ep.Scheme.Wrap(payload, id)
		if err != nil {
			return fmt.Errorf("wrap response: %w", err)
		}
	}
	return conn.WriteFrame(payload)
}

// readRequest reads one frame, unwrapping it (and resolving the
// caller's identity) through ep's auth scheme when the endpoint is
// untrusted, and decodes the result as a protocol.Request.
func readRequest(conn *wire.Conn, ep *transport.Endpoint, id auth.Identity) (*protocol.Request, auth.Identity, error) {
	raw, err := conn.ReadFrame()
	if err != nil {
		return nil, id, err
	}
	payload := raw
	if !ep.Trusted {
		resolved, unwrapped, err := ep.Scheme.Unwrap(raw)
		if err != nil {
			return nil, id, err
		}
		id = resolved
		payload = unwrapped
	}
	req, err := protocol.Decode(payload)
	return req, id, err
}

func (b *Broker) handleConnection(ctx context.Context, ep *transport.Endpoint, conn *wire.Conn, id auth.Identity) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(HandshakeTimeout))

	req, id, err := readRequest(conn, ep, id)
	if err != nil {
		log.Warn("handshake read failed", "endpoint", ep.Name, "error", err)
		return
	}
	if req.Command != protocol.CmdClientHello {
		log.Warn("expected client hello", "endpoint", ep.Name, "got", req.Command)
		return
	}

	sess := session.New(uuid.New().String(), id.UID, id.GID)
	if err := sess.Activate(req.Hello.CleanupOnDisconnect); err != nil {
		log.Warn("session activation failed", "error", err)
		return
	}
	conn.SetDeadline(time.Time{})
	b.registerSession(sess, conn)
	b.audit.Log(audit.EventSessionOpen, "", map[string]any{"session": sess.ID, "uid": id.UID, "endpoint": ep.Name})
	log.Info("session opened", "session", sess.ID, "uid", id.UID, "endpoint", ep.Name)

	for {
		req, id, err = readRequest(conn, ep, id)
		if err != nil {
			break
		}

		resp := b.dispatchRequest(ctx, sess, id, req)
		if err := writeResponse(conn, ep, id, resp); err != nil {
			log.Warn("write response failed", "session", sess.ID, "error", err)
			break
		}
	}

	b.closeSession(sess)
	log.Info("session closed", "session", sess.ID)
}

// dispatchRequest runs req through the dispatcher under the global
// lock, except wait_x_state, which must release the lock before it
// sleeps.
func (b *Broker) dispatchRequest(ctx context.Context, sess *session.Session, id auth.Identity, req *protocol.Request) protocol.Response {
	if req.Command == protocol.CmdClientHello {
		return protocol.FromError(vserr.Newf(vserr.BadProtocol, "session %s: client hello already received", sess.ID))
	}

	if req.Command == protocol.CmdWaitXState {
		b.mu.Lock()
		servers, timeout, err := b.dispatch.ResolveWaitXState(sess, id, req.WaitXState, time.Duration(b.cfg.WaitXStateMaxTimeoutSeconds)*time.Second)
		b.mu.Unlock()
		if err != nil {
			return protocol.FromError(err)
		}
		if err := b.lifecycle.WaitState(ctx, servers, req.WaitXState.NewState, timeout); err != nil {
			return protocol.FromError(err)
		}
		return protocol.OK()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dispatch.Dispatch(ctx, sess, id, req)
}
