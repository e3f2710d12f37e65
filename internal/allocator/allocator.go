package allocator

import (
	"context"
	"sort"
	"sync"

	"github.com/vizstack/broker/internal/resource"
	"github.com/vizstack/broker/internal/scheduler"
	"github.com/vizstack/broker/internal/vserr"
)

// Handler shapes a ResourceGroup's resolved resources after allocation
// (e.g. configuring tiled-display screens). Implemented by
// internal/rghandler; kept as an interface here to avoid a dependency
// cycle (rghandler depends on allocator.Handler, not the reverse).
type Handler interface {
	Handle(group *resource.ResourceGroup) error
}

// Request is the allocator's input: an ordered list of request items
// (single resource, co-location list, or aggregate hint) plus an
// optional node restriction.
type Request struct {
	Items       []resource.TreeNode
	SearchNodes []string
}

// Allocator runs the Normalize -> Rank -> Fit -> Reserve -> Bind
// pipeline. It is not internally synchronized: callers
// (internal/broker) serialize access with the global broker lock.
type Allocator struct {
	inv       *Inventory
	scheduler *scheduler.Metascheduler
	handlers  map[string]Handler
	nextID    int

	resMu        sync.Mutex
	reservations map[int]*scheduler.Reservation
}

// New creates an allocator over inv, dispatching batch reservations
// through sched and resource-group post-allocation hooks through
// handlers (keyed by handler name, e.g. "tiled_display").
func New(inv *Inventory, sched *scheduler.Metascheduler, handlers map[string]Handler) *Allocator {
	return &Allocator{
		inv:          inv,
		scheduler:    sched,
		handlers:     handlers,
		nextID:       1,
		reservations: make(map[int]*scheduler.Reservation),
	}
}

// Allocate runs the full pipeline and returns a bound allocation, or a
// typed error naming the offending item with nothing tentatively held.
func (a *Allocator) Allocate(ctx context.Context, req Request) (*resource.Allocation, error) {
	a.inv.mu.Lock()
	defer a.inv.mu.Unlock()

	items, err := a.normalize(req.Items)
	if err != nil {
		return nil, err
	}
	ranked := a.rank(items)

	// Seed the tentative set with every resource already committed to a
	// prior allocation, so fit() treats them as unavailable alongside
	// whatever this allocation attempt claims as it proceeds.
	tentative := make(map[resourceKey]bool, len(a.inv.held))
	for k := range a.inv.held {
		tentative[k] = true
	}
	bound := make([]resource.TreeNode, len(ranked))
	nodesUsed := make(map[string]bool)

	for _, ri := range ranked {
		nodes, result, err := a.fit(ri.item, req.SearchNodes, tentative)
		if err != nil {
			// Atomicity: nothing has been committed to inv.held yet,
			// only to the local tentative set, so there is nothing to
			// roll back there. Release any batch reservations made so
			// far would happen here if Reserve ran per-item; it runs
			// once at the end instead, so no rollback is needed.
			return nil, vserr.Newf(vserr.UserError, "allocation failed on item %d: %v", ri.index, err)
		}
		bound[ri.index] = result
		for _, n := range nodes {
			nodesUsed[n] = true
		}
		for _, it := range result.Flatten() {
			tentative[keyOf(it)] = true
		}
	}

	nodeList := make([]string, 0, len(nodesUsed))
	for n := range nodesUsed {
		nodeList = append(nodeList, n)
	}
	sort.Strings(nodeList)

	var reservation *scheduler.Reservation
	if len(nodeList) > 0 {
		reservation, err = a.scheduler.Reserve(ctx, nodeList)
		if err != nil {
			return nil, vserr.Newf(vserr.UserError, "allocation failed reserving nodes %v: %v", nodeList, err)
		}
	}

	allocID := a.nextID
	a.nextID++

	for _, node := range bound {
		a.inv.commit(node.Flatten(), allocID)
	}

	alloc := &resource.Allocation{ID: allocID, Tree: bound}

	if err := a.bindHandlers(alloc); err != nil {
		// Allocate already holds inv.mu, so free the held entries
		// directly rather than through Release, which locks it again.
		for k, id := range a.inv.held {
			if id == allocID {
				delete(a.inv.held, k)
			}
		}
		if reservation != nil {
			_ = reservation.Release()
		}
		return nil, err
	}

	a.resMu.Lock()
	a.reservations[allocID] = reservation
	a.resMu.Unlock()

	log.Info("allocation granted", "allocationId", allocID, "nodes", nodeList)
	return alloc, nil
}

// ReservationFor returns the batch reservation (if any) backing allocID,
// so internal/dispatcher can find the launcher bound to a given node
// when starting or stopping its X-server.
func (a *Allocator) ReservationFor(allocID int) (*scheduler.Reservation, bool) {
	a.resMu.Lock()
	defer a.resMu.Unlock()
	r, ok := a.reservations[allocID]
	return r, ok
}

// bindHandlers invokes each ResourceGroup request item's handler hook.
// A handler error rolls the whole allocation back.
func (a *Allocator) bindHandlers(alloc *resource.Allocation) error {
	for _, node := range alloc.Tree {
		rg, ok := node.Aggregate.(*resource.ResourceGroup)
		if !ok || rg.Handler == "" {
			continue
		}
		h, ok := a.handlers[rg.Handler]
		if !ok {
			return vserr.Newf(vserr.Unimplemented, "no handler registered for %q", rg.Handler)
		}
		if err := h.Handle(rg); err != nil {
			return vserr.Newf(vserr.InternalError, "handler %q failed: %v", rg.Handler, err)
		}
	}
	return nil
}

// Deallocate releases allocID's resources and any batch reservation
// made for it. Idempotent: a second call on the same id is a no-op.
func (a *Allocator) Deallocate(allocID int) error {
	a.inv.Release(allocID)

	a.resMu.Lock()
	r, ok := a.reservations[allocID]
	delete(a.reservations, allocID)
	a.resMu.Unlock()

	if ok && r != nil {
		return r.Release()
	}
	return nil
}
