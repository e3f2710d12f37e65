package dispatcher

import (
	"context"
	"testing"
	"time"

	"github.com/vizstack/broker/internal/allocator"
	"github.com/vizstack/broker/internal/auth"
	"github.com/vizstack/broker/internal/protocol"
	"github.com/vizstack/broker/internal/resource"
	"github.com/vizstack/broker/internal/scheduler"
	"github.com/vizstack/broker/internal/session"
	"github.com/vizstack/broker/internal/vsconfig"
	"github.com/vizstack/broker/internal/vserr"
	"github.com/vizstack/broker/internal/xserver"
)

func intp(v int) *int { return &v }

// newTestDispatcher builds a dispatcher over a single node with the
// given GPU and Server slot counts.
func newTestDispatcher(t *testing.T, gpus, servers int) (*Dispatcher, *allocator.Inventory) {
	t.Helper()

	node := &allocator.Node{Name: "n0"}
	for i := 0; i < gpus; i++ {
		node.GPUs = append(node.GPUs, &resource.GPU{Index: intp(i), Host: "n0", Type: "Quadro FX 5600"})
	}
	for i := 0; i < servers; i++ {
		node.Servers = append(node.Servers, &resource.Server{Index: intp(i), Host: "n0"})
	}
	inv := allocator.NewInventory([]*allocator.Node{node}, map[string]*resource.ResourceGroup{})

	sched, err := scheduler.NewMetascheduler([]scheduler.Scheduler{scheduler.NewLocal([]string{"n0"})})
	if err != nil {
		t.Fatalf("NewMetascheduler() error = %v", err)
	}
	alloc := allocator.New(inv, sched, nil)
	lc := xserver.New(time.Millisecond)

	return New(inv, alloc, lc, vsconfig.TemplateCatalog{}, nil, nil), inv
}

func activeSession(t *testing.T, id string, uid uint32, cleanup bool) *session.Session {
	t.Helper()
	s := session.New(id, uid, uid)
	if err := s.Activate(cleanup); err != nil {
		t.Fatalf("Activate() error = %v", err)
	}
	return s
}

func allocateList(t *testing.T, d *Dispatcher, sess *session.Session, id auth.Identity) *resource.Allocation {
	t.Helper()
	resp := d.Dispatch(context.Background(), sess, id, &protocol.Request{
		Command: protocol.CmdAllocate,
		Allocate: &protocol.AllocateRequest{Items: []resource.TreeNode{
			{List: []resource.Item{&resource.Server{}, &resource.GPU{}}},
		}},
	})
	if resp.Status != 0 {
		t.Fatalf("allocate failed: status %d, %s", resp.Status, resp.Message)
	}
	if resp.Allocation == nil {
		t.Fatal("allocate succeeded but returned no allocation")
	}
	return resp.Allocation
}

func TestSessionCleanupReleasesEverything(t *testing.T) {
	d, inv := newTestDispatcher(t, 2, 4)
	sess := activeSession(t, "c1", 1000, true)
	id := auth.Identity{UID: 1000, GID: 1000}

	alloc := allocateList(t, d, sess, id)
	for _, r := range alloc.Resources() {
		if inv.HeldBy(r) != alloc.ID {
			t.Fatalf("resource %v not held by allocation %d after allocate", r, alloc.ID)
		}
	}

	d.CleanupSession(sess)

	for _, r := range alloc.Resources() {
		if inv.HeldBy(r) != 0 {
			t.Errorf("resource %v still held after session cleanup", r)
		}
	}
	if len(sess.OwnedAllocations()) != 0 {
		t.Errorf("session still owns %v after cleanup", sess.OwnedAllocations())
	}

	resp := d.Dispatch(context.Background(), sess, id, &protocol.Request{
		Command:         protocol.CmdQueryAllocation,
		QueryAllocation: &protocol.QueryAllocationRequest{},
	})
	if len(resp.Allocations) != 0 {
		t.Errorf("query_allocation returned %d allocations after cleanup, want 0", len(resp.Allocations))
	}
}

func TestAttachByOwnerAndDenied(t *testing.T) {
	d, _ := newTestDispatcher(t, 2, 4)
	c1 := activeSession(t, "c1", 1000, false)
	owner := auth.Identity{UID: 1000, GID: 1000}

	alloc := allocateList(t, d, c1, owner)

	// Same uid on a new connection may attach.
	c2 := activeSession(t, "c2", 1000, false)
	resp := d.Dispatch(context.Background(), c2, owner, &protocol.Request{
		Command: protocol.CmdAttach,
		Attach:  &protocol.AllocIDRequest{AllocID: alloc.ID},
	})
	if resp.Status != 0 {
		t.Fatalf("attach by owner uid failed: status %d, %s", resp.Status, resp.Message)
	}
	if !c2.Owns(alloc.ID) {
		t.Error("attaching session does not own the allocation")
	}

	// A different uid may not.
	c3 := activeSession(t, "c3", 1001, false)
	resp = d.Dispatch(context.Background(), c3, auth.Identity{UID: 1001, GID: 1001}, &protocol.Request{
		Command: protocol.CmdAttach,
		Attach:  &protocol.AllocIDRequest{AllocID: alloc.ID},
	})
	if resp.Status != int(vserr.AccessDenied) {
		t.Fatalf("attach by other uid: status %d, want ACCESS_DENIED", resp.Status)
	}

	// Root may always attach.
	c4 := activeSession(t, "c4", 0, false)
	resp = d.Dispatch(context.Background(), c4, auth.Identity{UID: 0, GID: 0}, &protocol.Request{
		Command: protocol.CmdAttach,
		Attach:  &protocol.AllocIDRequest{AllocID: alloc.ID},
	})
	if resp.Status != 0 {
		t.Fatalf("attach by root failed: status %d, %s", resp.Status, resp.Message)
	}
}

func TestAllocateAllOrNothing(t *testing.T) {
	d, inv := newTestDispatcher(t, 1, 1)
	sess := activeSession(t, "c1", 1000, false)
	id := auth.Identity{UID: 1000, GID: 1000}

	resp := d.Dispatch(context.Background(), sess, id, &protocol.Request{
		Command: protocol.CmdAllocate,
		Allocate: &protocol.AllocateRequest{Items: []resource.TreeNode{
			{List: []resource.Item{&resource.GPU{}, &resource.GPU{}}},
		}},
	})
	if resp.Status != int(vserr.UserError) {
		t.Fatalf("impossible allocate: status %d, want USER_ERROR", resp.Status)
	}

	// The one GPU must still be free.
	if held := inv.HeldBy(&resource.GPU{Index: intp(0), Host: "n0"}); held != 0 {
		t.Fatalf("GPU held by allocation %d after a failed allocate, want free", held)
	}
	if resp := d.Dispatch(context.Background(), sess, id, &protocol.Request{
		Command:  protocol.CmdAllocate,
		Allocate: &protocol.AllocateRequest{Items: []resource.TreeNode{{Single: &resource.GPU{}}}},
	}); resp.Status != 0 {
		t.Fatalf("allocate after rollback failed: status %d, %s", resp.Status, resp.Message)
	}
}

func TestDeallocateIsIdempotent(t *testing.T) {
	d, _ := newTestDispatcher(t, 2, 4)
	sess := activeSession(t, "c1", 1000, false)
	id := auth.Identity{UID: 1000, GID: 1000}

	alloc := allocateList(t, d, sess, id)
	req := &protocol.Request{
		Command:    protocol.CmdDeallocate,
		Deallocate: &protocol.AllocIDRequest{AllocID: alloc.ID},
	}

	if resp := d.Dispatch(context.Background(), sess, id, req); resp.Status != 0 {
		t.Fatalf("first deallocate: status %d, %s", resp.Status, resp.Message)
	}
	if resp := d.Dispatch(context.Background(), sess, id, req); resp.Status != 0 {
		t.Fatalf("second deallocate: status %d, want 0 (idempotent no-op)", resp.Status)
	}
}

func TestCleanupSkipsTransferredAllocation(t *testing.T) {
	d, inv := newTestDispatcher(t, 2, 4)
	c1 := activeSession(t, "c1", 1000, true)
	id := auth.Identity{UID: 1000, GID: 1000}

	alloc := allocateList(t, d, c1, id)

	c2 := activeSession(t, "c2", 1000, false)
	if resp := d.Dispatch(context.Background(), c2, id, &protocol.Request{
		Command: protocol.CmdAttach,
		Attach:  &protocol.AllocIDRequest{AllocID: alloc.ID},
	}); resp.Status != 0 {
		t.Fatalf("attach failed: status %d, %s", resp.Status, resp.Message)
	}

	// C1's disconnect cleanup must not tear down what C2 now owns.
	d.CleanupSession(c1)

	if _, ok := d.lookup(alloc.ID); !ok {
		t.Fatal("allocation was released by the previous owner's cleanup")
	}
	for _, r := range alloc.Resources() {
		if inv.HeldBy(r) != alloc.ID {
			t.Errorf("resource %v freed by the previous owner's cleanup", r)
		}
	}
}

func TestRefreshResourceGroupsRequiresRoot(t *testing.T) {
	d, _ := newTestDispatcher(t, 1, 1)
	sess := activeSession(t, "c1", 1000, false)

	resp := d.Dispatch(context.Background(), sess, auth.Identity{UID: 1000, GID: 1000}, &protocol.Request{
		Command: protocol.CmdRefreshResourceGroups,
	})
	if resp.Status != int(vserr.AccessDenied) {
		t.Fatalf("refresh_resource_groups by non-root: status %d, want ACCESS_DENIED", resp.Status)
	}
}
