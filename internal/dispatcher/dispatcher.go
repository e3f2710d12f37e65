// Package dispatcher routes client commands: each decoded
// protocol.Request is validated against the caller's session and
// identity, routed to the matching allocator/inventory/xserver
// operation, and turned back into a protocol.Response. Dispatch itself
// assumes the caller (internal/broker) already holds the global broker
// lock; the one exception, wait_x_state, is split into a Resolve step
// (run under the lock) and a Wait step (run without it) so the broker
// can release the lock while it sleeps.
package dispatcher

import (
	"context"
	"sync"

	"github.com/vizstack/broker/internal/allocator"
	"github.com/vizstack/broker/internal/audit"
	"github.com/vizstack/broker/internal/auth"
	"github.com/vizstack/broker/internal/logging"
	"github.com/vizstack/broker/internal/protocol"
	"github.com/vizstack/broker/internal/resource"
	"github.com/vizstack/broker/internal/session"
	"github.com/vizstack/broker/internal/vserr"
	"github.com/vizstack/broker/internal/vsconfig"
	"github.com/vizstack/broker/internal/xserver"
)

var log = logging.L("dispatcher")

// ownedAllocation is an allocation still live in the broker, plus the
// uid of the identity that created it (for CanAttach's ownership check;
// resource.Allocation itself only tracks the owning session id).
type ownedAllocation struct {
	alloc    *resource.Allocation
	ownerUID uint32
}

// RGReloader reloads the resource-group catalog and template catalog
// from disk for refresh_resource_groups, grounded on vsconfig.Load's
// file-reading steps.
type RGReloader func() (map[string]*resource.ResourceGroup, vsconfig.TemplateCatalog, error)

// Dispatcher owns the live allocation registry and routes every command
// but client (hello) and wait_x_state, which internal/broker handles
// directly (hello drives session state; wait_x_state must not run under
// the global lock while it sleeps).
type Dispatcher struct {
	Inventory *allocator.Inventory
	Allocator *allocator.Allocator
	Lifecycle *xserver.Lifecycle
	Audit     *audit.Logger
	ReloadRG  RGReloader

	mu          sync.Mutex
	allocations map[int]*ownedAllocation
	templates   vsconfig.TemplateCatalog
}

// New builds a Dispatcher over the given broker state.
func New(inv *allocator.Inventory, alloc *allocator.Allocator, lc *xserver.Lifecycle, templates vsconfig.TemplateCatalog, al *audit.Logger, reload RGReloader) *Dispatcher {
	return &Dispatcher{
		Inventory:   inv,
		Allocator:   alloc,
		Lifecycle:   lc,
		Audit:       al,
		ReloadRG:    reload,
		allocations: make(map[int]*ownedAllocation),
		templates:   templates,
	}
}

// Dispatch routes req to its handler. Callers must hold the broker's
// global lock for every command except wait_x_state (see ResolveWaitXState).
func (d *Dispatcher) Dispatch(ctx context.Context, sess *session.Session, id auth.Identity, req *protocol.Request) protocol.Response {
	if err := sess.RequireActive(); err != nil {
		return protocol.FromError(err)
	}
	sess.Touch()

	switch req.Command {
	case protocol.CmdAllocate:
		return d.handleAllocate(ctx, sess, id, req.Allocate)
	case protocol.CmdAttach:
		return d.handleAttach(sess, id, req.Attach)
	case protocol.CmdDeallocate:
		return d.handleDeallocate(sess, id, req.Deallocate)
	case protocol.CmdQueryResource:
		return d.handleQueryResource(req.QueryResource)
	case protocol.CmdQueryAllocation:
		return d.handleQueryAllocation(sess, req.QueryAllocation)
	case protocol.CmdGetTemplates:
		return d.handleGetTemplates(req.GetTemplates)
	case protocol.CmdGetServerConfig:
		return d.handleGetServerConfig(req.GetServerConfig)
	case protocol.CmdUpdateServerConfig:
		return d.handleUpdateServerConfig(sess, id, req.UpdateServerConfig)
	case protocol.CmdStopXServer:
		return d.handleStopXServer(ctx, sess, id, req.StopXServer)
	case protocol.CmdRefreshResourceGroups:
		return d.handleRefreshResourceGroups(id)
	default:
		return protocol.FromError(vserr.Newf(vserr.BadProtocol, "dispatcher: unsupported command %q", req.Command))
	}
}

func allocResponse(alloc *resource.Allocation) protocol.Response {
	return protocol.Response{Allocation: alloc}
}

func ownershipDenied(allocID int) protocol.Response {
	return protocol.FromError(vserr.Newf(vserr.AccessDenied, "allocation %d is not owned by this session", allocID))
}

func noSuchAllocation(allocID int) protocol.Response {
	return protocol.FromError(vserr.Newf(vserr.NotConnected, "no such allocation %d", allocID))
}

// lookup returns the live ownedAllocation for id, if any.
func (d *Dispatcher) lookup(allocID int) (*ownedAllocation, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	oa, ok := d.allocations[allocID]
	return oa, ok
}

// canSee reports whether uid may read or act on an allocation owned by
// ownerUID: a caller with that same uid, or uid 0.
func canSee(callerUID, ownerUID uint32) bool {
	return session.CanAttach(callerUID, ownerUID)
}
