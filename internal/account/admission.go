package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/eleven-am/voice-relay/internal/pairing"
	"github.com/eleven-am/voice-relay/internal/shared"
)

// ApprovalGate admits customers freely and employees only when their account
// exists and is approved.
type ApprovalGate struct {
	store *Store
}

func NewApprovalGate(store *Store) *ApprovalGate {
	return &ApprovalGate{store: store}
}

func (g *ApprovalGate) Admit(ctx context.Context, role pairing.Role, id string) error {
	if role != pairing.RoleEmployee {
		return nil
	}
	u, err := g.store.Get(ctx, id)
	if errors.Is(err, shared.ErrNotFound) {
		return fmt.Errorf("employee %q is not registered: %w", id, shared.ErrForbidden)
	}
	if err != nil {
		return fmt.Errorf("lookup employee %q: %w", id, err)
	}
	if !u.Approved {
		return fmt.Errorf("employee %q is pending approval: %w", id, shared.ErrForbidden)
	}
	return nil
}
