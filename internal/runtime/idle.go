package runtime

import "github.com/aretw0/callgate/pkg/ports"

// IdleSynchronizer aggregates every window-owning collaborator of the desktop.
type IdleSynchronizer struct {
	owners []ports.WindowOwner
}

// NewIdleSynchronizer creates a synchronizer over the given owners. Nil owners are skipped.
func NewIdleSynchronizer(owners ...ports.WindowOwner) *IdleSynchronizer {
	s := &IdleSynchronizer{}
	for _, o := range owners {
		s.Add(o)
	}
	return s
}

// Add registers another window owner.
func (s *IdleSynchronizer) Add(owner ports.WindowOwner) {
	if owner != nil {
		s.owners = append(s.owners, owner)
	}
}

// IsIdle is true iff no owner has a window or modal open. It has no side effects.
func (s *IdleSynchronizer) IsIdle() bool {
	for _, o := range s.owners {
		if o.IsAnyWindowOpen() {
			return false
		}
	}
	return true
}
