package service

import "context"

// ChainHop is the result of advancing the approval chain: the next level
// with a resolvable approver, or the exhausted result (nil ApproverID)
// when no level up to and including the terminal one resolves.
type ChainHop struct {
	ApproverID *string
	Level      Level
	Role       string
}

// Exhausted reports whether the walk found no further approver.
func (h *ChainHop) Exhausted() bool {
	return h.ApproverID == nil
}

// ChainWalker advances the chain from a given level, skipping levels with
// no resolvable approver so an organizational gap (an entity with no HRBP
// on file, say) never stalls a request.
type ChainWalker struct {
	locator *ApproverLocator
}

// NewChainWalker creates a new ChainWalker.
func NewChainWalker(locator *ApproverLocator) *ChainWalker {
	return &ChainWalker{locator: locator}
}

// Walk probes levels fromLevel+1 through TerminalLevel in order and returns
// the first that resolves. The level space is fixed and small, so this is a
// plain bounded loop with a single exhausted exit.
func (w *ChainWalker) Walk(ctx context.Context, fromLevel Level, employeeID, entityID string) (*ChainHop, error) {
	for next := fromLevel + 1; next <= TerminalLevel; next++ {
		approverID, err := w.locator.Locate(ctx, next, employeeID, entityID)
		if err != nil {
			return nil, err
		}
		if approverID != nil {
			return &ChainHop{ApproverID: approverID, Level: next, Role: RoleForLevel(next)}, nil
		}
	}
	return &ChainHop{ApproverID: nil, Level: fromLevel + 1}, nil
}
