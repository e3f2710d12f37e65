package dispatcher

import (
	"context"
	"time"

	"github.com/vizstack/broker/internal/allocator"
	"github.com/vizstack/broker/internal/audit"
	"github.com/vizstack/broker/internal/auth"
	"github.com/vizstack/broker/internal/launcher"
	"github.com/vizstack/broker/internal/protocol"
	"github.com/vizstack/broker/internal/resource"
	"github.com/vizstack/broker/internal/session"
	"github.com/vizstack/broker/internal/vserr"
	"github.com/vizstack/broker/internal/xserver"
)

func (d *Dispatcher) handleAllocate(ctx context.Context, sess *session.Session, id auth.Identity, req *protocol.AllocateRequest) protocol.Response {
	alloc, err := d.Allocator.Allocate(ctx, allocator.Request{Items: req.Items, SearchNodes: req.SearchNodes})
	if err != nil {
		return protocol.FromError(err)
	}
	alloc.OwnerSessionID = sess.ID

	for _, item := range alloc.Resources() {
		if s, ok := item.(*resource.Server); ok && s.HasConfiguredScreen() {
			xserver.ApplyDefaultPolicy(s)
			if l, ok := d.launcherFor(alloc.ID, s.Host); ok {
				if err := d.Lifecycle.Start(ctx, s, l); err != nil {
					log.Warn("x server autostart failed", "allocationId", alloc.ID, "host", s.Host, "error", err)
				}
			}
		}
	}

	d.mu.Lock()
	d.allocations[alloc.ID] = &ownedAllocation{alloc: alloc, ownerUID: id.UID}
	d.mu.Unlock()
	sess.Own(alloc.ID)

	d.Audit.Log(audit.EventAllocate, "", map[string]any{"allocationId": alloc.ID, "uid": id.UID})
	return allocResponse(alloc)
}

func (d *Dispatcher) handleAttach(sess *session.Session, id auth.Identity, req *protocol.AllocIDRequest) protocol.Response {
	oa, ok := d.lookup(req.AllocID)
	if !ok {
		return noSuchAllocation(req.AllocID)
	}
	if !canSee(id.UID, oa.ownerUID) {
		return ownershipDenied(req.AllocID)
	}
	// Ownership transfers to this session; a stale owner's later cleanup
	// must not release it (see CleanupSession).
	oa.alloc.OwnerSessionID = sess.ID
	sess.Own(req.AllocID)
	d.Audit.Log(audit.EventAttach, "", map[string]any{"allocationId": req.AllocID, "uid": id.UID})
	return allocResponse(oa.alloc)
}

func (d *Dispatcher) handleDeallocate(sess *session.Session, id auth.Identity, req *protocol.AllocIDRequest) protocol.Response {
	oa, ok := d.lookup(req.AllocID)
	if !ok {
		// Deallocation is idempotent: a second deallocate of a retired id
		// is a no-op, not an error.
		sess.Disown(req.AllocID)
		return protocol.OK()
	}
	if !sess.Owns(req.AllocID) && !canSee(id.UID, oa.ownerUID) {
		return ownershipDenied(req.AllocID)
	}

	d.releaseAllocation(context.Background(), oa)
	sess.Disown(req.AllocID)

	d.Audit.Log(audit.EventDeallocate, "", map[string]any{"allocationId": req.AllocID, "uid": id.UID})
	return protocol.OK()
}

func (d *Dispatcher) handleQueryResource(req *protocol.QueryResourceRequest) protocol.Response {
	return protocol.Response{Resources: d.Inventory.QueryResources(req.Template)}
}

func (d *Dispatcher) handleQueryAllocation(sess *session.Session, req *protocol.QueryAllocationRequest) protocol.Response {
	if req.AllocID != nil {
		oa, ok := d.lookup(*req.AllocID)
		if !ok {
			return noSuchAllocation(*req.AllocID)
		}
		if !sess.Owns(*req.AllocID) {
			return ownershipDenied(*req.AllocID)
		}
		return allocResponse(oa.alloc)
	}

	var out []*resource.Allocation
	for _, allocID := range sess.OwnedAllocations() {
		if oa, ok := d.lookup(allocID); ok {
			out = append(out, oa.alloc)
		}
	}
	return protocol.Response{Allocations: out}
}

func (d *Dispatcher) handleGetTemplates(req *protocol.GetTemplatesRequest) protocol.Response {
	d.mu.Lock()
	templates := d.templates
	d.mu.Unlock()
	return protocol.Response{Resources: templates.Query(req.Template)}
}

func (d *Dispatcher) handleGetServerConfig(req *protocol.GetServerConfigRequest) protocol.Response {
	s, ok := d.Inventory.FindServer(req.Server.Host, derefIdx(req.Server.Index))
	if !ok {
		return protocol.FromError(vserr.Newf(vserr.BadResource, "no server :%d on %s", derefIdx(req.Server.Index), req.Server.Host))
	}
	return protocol.Response{ServerConfig: s}
}

func (d *Dispatcher) handleUpdateServerConfig(sess *session.Session, id auth.Identity, req *protocol.UpdateServerConfigRequest) protocol.Response {
	oa, ok := d.lookup(req.AllocID)
	if !ok {
		return noSuchAllocation(req.AllocID)
	}
	if !sess.Owns(req.AllocID) && !canSee(id.UID, oa.ownerUID) {
		return ownershipDenied(req.AllocID)
	}

	for _, update := range req.Servers {
		live, ok := d.Inventory.FindServer(update.Host, derefIdx(update.Index))
		if !ok {
			return protocol.FromError(vserr.Newf(vserr.BadResource, "no server :%d on %s", derefIdx(update.Index), update.Host))
		}
		if !oa.alloc.Holds(live) {
			return protocol.FromError(vserr.Newf(vserr.BadOperation, "server :%d on %s is not part of allocation %d", derefIdx(update.Index), update.Host, req.AllocID))
		}
		applyServerUpdate(live, update)
	}
	return protocol.OK()
}

// applyServerUpdate copies client-supplied runtime settings from update
// onto the live Server, leaving identity fields (Host, Index) untouched.
func applyServerUpdate(live, update *resource.Server) {
	if update.Type != "" {
		live.Type = update.Type
	}
	if update.Options != nil {
		live.Options = update.Options
	}
	if update.ExtensionOptions != nil {
		live.ExtensionOptions = update.ExtensionOptions
	}
	if update.Modules != nil {
		live.Modules = update.Modules
	}
	if update.Keyboard != nil {
		live.Keyboard = update.Keyboard
	}
	if update.Mouse != nil {
		live.Mouse = update.Mouse
	}
	if update.Screens != nil {
		live.Screens = update.Screens
	}
}

func (d *Dispatcher) handleStopXServer(ctx context.Context, sess *session.Session, id auth.Identity, req *protocol.StopXServerRequest) protocol.Response {
	oa, ok := d.lookup(req.AllocID)
	if !ok {
		return noSuchAllocation(req.AllocID)
	}
	if !sess.Owns(req.AllocID) && !canSee(id.UID, oa.ownerUID) {
		return ownershipDenied(req.AllocID)
	}

	targets := req.Servers
	if len(targets) == 0 {
		for _, item := range oa.alloc.Resources() {
			if s, ok := item.(*resource.Server); ok {
				targets = append(targets, s)
			}
		}
	}

	for _, tmpl := range targets {
		live, ok := d.Inventory.FindServer(tmpl.Host, derefIdx(tmpl.Index))
		if !ok || !oa.alloc.Holds(live) {
			return protocol.FromError(vserr.Newf(vserr.BadOperation, "server :%d on %s is not part of allocation %d", derefIdx(tmpl.Index), tmpl.Host, req.AllocID))
		}
		l, ok := d.launcherFor(req.AllocID, live.Host)
		if !ok {
			return protocol.FromError(vserr.Newf(vserr.InternalError, "no launcher bound to %s for allocation %d", live.Host, req.AllocID))
		}
		if err := d.Lifecycle.Stop(ctx, live, l); err != nil {
			return protocol.FromError(err)
		}
		d.Audit.Log(audit.EventXServerStop, "", map[string]any{"allocationId": req.AllocID, "host": live.Host, "display": derefIdx(live.Index)})
	}
	return protocol.OK()
}

func (d *Dispatcher) handleRefreshResourceGroups(id auth.Identity) protocol.Response {
	if !id.IsRoot() {
		return protocol.FromError(vserr.Newf(vserr.AccessDenied, "refresh_resource_groups requires uid 0"))
	}
	if d.ReloadRG == nil {
		return protocol.FromError(vserr.Newf(vserr.Unimplemented, "refresh_resource_groups not configured"))
	}
	catalog, templates, err := d.ReloadRG()
	if err != nil {
		return protocol.FromError(err)
	}
	d.Inventory.SetResourceGroupCatalog(catalog)
	d.mu.Lock()
	d.templates = templates
	d.mu.Unlock()

	d.Audit.Log(audit.EventResourceGroupsRefreshed, "", nil)
	return protocol.OK()
}

// ResolveWaitXState validates ownership and resolves the server set for
// a wait_x_state request, under the broker's global lock. The caller
// must release that lock before calling Lifecycle.WaitState with the
// returned servers and timeout, since the wait sleeps.
func (d *Dispatcher) ResolveWaitXState(sess *session.Session, id auth.Identity, req *protocol.WaitXStateRequest, maxTimeout time.Duration) ([]*resource.Server, time.Duration, error) {
	oa, ok := d.lookup(req.AllocID)
	if !ok {
		return nil, 0, vserr.Newf(vserr.NotConnected, "no such allocation %d", req.AllocID)
	}
	if !sess.Owns(req.AllocID) && !canSee(id.UID, oa.ownerUID) {
		return nil, 0, vserr.Newf(vserr.AccessDenied, "allocation %d is not owned by this session", req.AllocID)
	}

	targets := req.Servers
	if len(targets) == 0 {
		for _, item := range oa.alloc.Resources() {
			if s, ok := item.(*resource.Server); ok {
				targets = append(targets, s)
			}
		}
	}

	servers := make([]*resource.Server, 0, len(targets))
	for _, tmpl := range targets {
		live, ok := d.Inventory.FindServer(tmpl.Host, derefIdx(tmpl.Index))
		if !ok || !oa.alloc.Holds(live) {
			return nil, 0, vserr.Newf(vserr.BadOperation, "server :%d on %s is not part of allocation %d", derefIdx(tmpl.Index), tmpl.Host, req.AllocID)
		}
		servers = append(servers, live)
	}

	timeout := time.Duration(req.Timeout) * time.Second
	if timeout <= 0 || timeout > maxTimeout {
		timeout = xserver.DefaultBudget(len(servers))
		if timeout > maxTimeout {
			timeout = maxTimeout
		}
	}
	return servers, timeout, nil
}

// launcherFor returns the launcher bound to host by allocID's batch
// reservation, for running the X-server helper binaries there.
func (d *Dispatcher) launcherFor(allocID int, host string) (launcher.Launcher, bool) {
	r, ok := d.Allocator.ReservationFor(allocID)
	if !ok || r == nil {
		return nil, false
	}
	l, ok := r.Launchers[host]
	return l, ok
}

func derefIdx(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
