package engine

import (
	"log/slog"
	"time"

	"github.com/getmockd/mockresolver/pkg/pushback"
)

// Status classifies a resolution.
type Status string

const (
	StatusMatched       Status = "matched"
	StatusDefault       Status = "default"
	StatusNoMatch       Status = "no_match"
	StatusExtractFailed Status = "extract_failed"
	StatusRenderFailed  Status = "render_failed"
)

// ResolutionOutcome is reported to Hooks.OnResolved once per Resolve call.
type ResolutionOutcome struct {
	EndpointID  string
	CandidateID string
	Status      Status
	StatusCode  int
	Duration    time.Duration
	Pushback    bool
	Err         error
}

// Hooks receives notifications after resolution and pushback delivery.
// Implementations are called synchronously and must not block.
//
// OnPushback receives every pushback the resolver starts: a skipped one
// when response extraction fails, and otherwise the final delivery Result,
// called from the dispatcher's worker once the delivery finishes, fails or
// is dropped.
type Hooks interface {
	OnResolved(ResolutionOutcome)
	OnPushback(pushback.Result)
}

// NopHooks ignores every notification.
type NopHooks struct{}

func (NopHooks) OnResolved(ResolutionOutcome) {}
func (NopHooks) OnPushback(pushback.Result)   {}

// HookFuncs adapts plain functions to Hooks. Nil fields are skipped.
type HookFuncs struct {
	Resolved func(ResolutionOutcome)
	Pushback func(pushback.Result)
}

func (h HookFuncs) OnResolved(o ResolutionOutcome) {
	if h.Resolved != nil {
		h.Resolved(o)
	}
}

func (h HookFuncs) OnPushback(r pushback.Result) {
	if h.Pushback != nil {
		h.Pushback(r)
	}
}

// safeHooks isolates the resolver from panicking hooks.
type safeHooks struct {
	hooks Hooks
	log   *slog.Logger
}

func (s safeHooks) OnResolved(o ResolutionOutcome) {
	defer s.recover("OnResolved")
	s.hooks.OnResolved(o)
}

func (s safeHooks) OnPushback(r pushback.Result) {
	defer s.recover("OnPushback")
	s.hooks.OnPushback(r)
}

func (s safeHooks) recover(name string) {
	if r := recover(); r != nil {
		s.log.Error("hook panicked", "hook", name, "panic", r)
	}
}
