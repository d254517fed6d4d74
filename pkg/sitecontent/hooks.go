package sitecontent

import "context"

// AfterPutHook runs after a slot write succeeded. Hooks cannot fail the
// write; they observe it.
type AfterPutHook func(ctx context.Context, slot *Slot)

// Hooks defines the lifecycle hooks of the service
type Hooks struct {
	AfterPut []AfterPutHook
}

func (h *Hooks) runAfterPut(ctx context.Context, slot *Slot) {
	for _, hook := range h.AfterPut {
		hook(ctx, slot)
	}
}
