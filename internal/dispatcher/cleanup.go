package dispatcher

import (
	"context"

	"github.com/vizstack/broker/internal/audit"
	"github.com/vizstack/broker/internal/resource"
	"github.com/vizstack/broker/internal/session"
	"github.com/vizstack/broker/internal/xserver"
)

// releaseAllocation tears one allocation down: any X-server still up on
// one of its Servers is killed first, then the allocator releases the
// resources and the batch reservation. Best-effort throughout; a kill
// that fails is logged and does not block the release.
func (d *Dispatcher) releaseAllocation(ctx context.Context, oa *ownedAllocation) {
	for _, item := range oa.alloc.Resources() {
		s, ok := item.(*resource.Server)
		if !ok {
			continue
		}
		if d.Lifecycle.State(s.Host, derefIdx(s.Index)) != xserver.StateUp {
			continue
		}
		l, ok := d.launcherFor(oa.alloc.ID, s.Host)
		if !ok {
			continue
		}
		if err := d.Lifecycle.Stop(ctx, s, l); err != nil {
			log.Warn("x server kill during release failed",
				"allocationId", oa.alloc.ID, "host", s.Host, "display", derefIdx(s.Index), "error", err)
		}
	}

	if err := d.Allocator.Deallocate(oa.alloc.ID); err != nil {
		log.Warn("deallocate during release failed", "allocationId", oa.alloc.ID, "error", err)
	}
	d.mu.Lock()
	delete(d.allocations, oa.alloc.ID)
	d.mu.Unlock()
}

// CleanupSession releases every allocation still owned by sess, for
// disconnect cleanup. Callers hold the broker's global lock.
// An allocation whose ownership was transferred away by attach is
// skipped even if sess's owned set still names it.
func (d *Dispatcher) CleanupSession(sess *session.Session) {
	for _, allocID := range sess.OwnedAllocations() {
		oa, ok := d.lookup(allocID)
		if !ok || oa.alloc.OwnerSessionID != sess.ID {
			sess.Disown(allocID)
			continue
		}
		d.releaseAllocation(context.Background(), oa)
		sess.Disown(allocID)
		d.Audit.Log(audit.EventDeallocate, "", map[string]any{
			"allocationId": allocID, "session": sess.ID, "reason": "session_cleanup",
		})
	}
}
