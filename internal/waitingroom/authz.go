package waitingroom

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrPermissionDenied = errors.New("permission denied")

type Capability string

const (
	CapAdmit      Capability = "admit"
	CapTransition Capability = "transition"
	CapPrioritize Capability = "prioritize"
	CapAnnotate   Capability = "annotate"
	CapDelete     Capability = "delete"
	CapRead       Capability = "read"
)

type capabilityKey struct{}

// WithCapabilities returns a context carrying the caller's capabilities.
// The presentation layer derives them from its own auth scheme; the core
// only checks membership.
func WithCapabilities(ctx context.Context, caps ...Capability) context.Context {
	set := make(map[Capability]struct{}, len(caps))
	for _, c := range caps {
		set[c] = struct{}{}
	}
	return context.WithValue(ctx, capabilityKey{}, set)
}

func hasCapability(ctx context.Context, c Capability) bool {
	set, ok := ctx.Value(capabilityKey{}).(map[Capability]struct{})
	if !ok {
		return false
	}
	_, ok = set[c]
	return ok
}

// Authorized wraps a Service with per-operation capability checks, keeping
// role enforcement out of the core engine.
type Authorized struct {
	svc *Service
}

func NewAuthorized(svc *Service) *Authorized {
	return &Authorized{svc: svc}
}

func (a *Authorized) Admit(ctx context.Context, input AdmitInput) (*WaitingEntry, error) {
	if !hasCapability(ctx, CapAdmit) {
		return nil, ErrPermissionDenied
	}
	return a.svc.Admit(ctx, input)
}

func (a *Authorized) Start(ctx context.Context, id uuid.UUID) (*WaitingEntry, error) {
	if !hasCapability(ctx, CapTransition) {
		return nil, ErrPermissionDenied
	}
	return a.svc.Start(ctx, id)
}

func (a *Authorized) Complete(ctx context.Context, id uuid.UUID) (*WaitingEntry, error) {
	if !hasCapability(ctx, CapTransition) {
		return nil, ErrPermissionDenied
	}
	return a.svc.Complete(ctx, id)
}

func (a *Authorized) Cancel(ctx context.Context, id uuid.UUID, reason string) (*WaitingEntry, error) {
	if !hasCapability(ctx, CapTransition) {
		return nil, ErrPermissionDenied
	}
	return a.svc.Cancel(ctx, id, reason)
}

func (a *Authorized) SetPriority(ctx context.Context, id uuid.UUID, priority Priority) (*WaitingEntry, error) {
	if !hasCapability(ctx, CapPrioritize) {
		return nil, ErrPermissionDenied
	}
	return a.svc.SetPriority(ctx, id, priority)
}

func (a *Authorized) AppendNote(ctx context.Context, id uuid.UUID, text string) (*WaitingEntry, error) {
	if !hasCapability(ctx, CapAnnotate) {
		return nil, ErrPermissionDenied
	}
	return a.svc.AppendNote(ctx, id, text)
}

func (a *Authorized) Delete(ctx context.Context, id uuid.UUID) error {
	if !hasCapability(ctx, CapDelete) {
		return ErrPermissionDenied
	}
	return a.svc.Delete(ctx, id)
}

func (a *Authorized) Get(ctx context.Context, id uuid.UUID) (*WaitingEntry, error) {
	if !hasCapability(ctx, CapRead) {
		return nil, ErrPermissionDenied
	}
	return a.svc.Get(ctx, id)
}

func (a *Authorized) Queue(ctx context.Context) ([]WaitingEntry, error) {
	if !hasCapability(ctx, CapRead) {
		return nil, ErrPermissionDenied
	}
	return a.svc.Queue(ctx)
}
