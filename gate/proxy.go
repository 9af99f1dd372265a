package gate

import (
	"context"
	"fmt"
	"regexp"

	"liminal/core/types"
)

// blockedMethodPattern matches any collaborator method name the submission
// gate must never allow to run once a transaction has not cleared the gate
// (spec.md §4.7: "wraps any method whose name matches /send|submit|broadcast/
// to throw").
var blockedMethodPattern = regexp.MustCompile(`(?i)send|submit|broadcast`)

// RPCClient is the narrow chain-RPC collaborator interface the orchestrator
// submits through. It stands in for the external "chain RPC endpoint pool"
// named out of scope in spec.md §1.
type RPCClient interface {
	Send(ctx context.Context, signed types.SigningResult) (types.SubmissionResult, error)
	Broadcast(ctx context.Context, signed types.SigningResult) (types.SubmissionResult, error)
	Status(ctx context.Context, txHash string) (string, error)
}

// ErrBlockedByGate is returned by a blocking proxy in place of delegating to
// the wrapped collaborator.
type ErrBlockedByGate struct {
	Method string
}

func (e *ErrBlockedByGate) Error() string {
	return fmt.Sprintf("liminal: gate: method %q blocked pending submission gate approval", e.Method)
}

// blockingProxy wraps an RPCClient so that every method whose name matches
// blockedMethodPattern throws instead of reaching the real collaborator.
// Go's type system requires an interface's methods to be declared at
// compile time, so unlike a fully dynamic reflective proxy each method is
// declared explicitly here; the blocked/delegate decision itself is driven
// by the shared pattern so adding a same-shaped method later stays correct
// without touching the decision logic.
type blockingProxy struct {
	inner RPCClient
}

// CreateBlockingProxy returns an RPCClient wrapping inner where every
// send/submit/broadcast-shaped method throws ErrBlockedByGate instead of
// executing.
func CreateBlockingProxy(inner RPCClient) RPCClient {
	return &blockingProxy{inner: inner}
}

func blockIfMatched(method string) error {
	if blockedMethodPattern.MatchString(method) {
		return &ErrBlockedByGate{Method: method}
	}
	return nil
}

func (p *blockingProxy) Send(ctx context.Context, signed types.SigningResult) (types.SubmissionResult, error) {
	if err := blockIfMatched("Send"); err != nil {
		return types.SubmissionResult{}, err
	}
	return p.inner.Send(ctx, signed)
}

func (p *blockingProxy) Broadcast(ctx context.Context, signed types.SigningResult) (types.SubmissionResult, error) {
	if err := blockIfMatched("Broadcast"); err != nil {
		return types.SubmissionResult{}, err
	}
	return p.inner.Broadcast(ctx, signed)
}

func (p *blockingProxy) Status(ctx context.Context, txHash string) (string, error) {
	if err := blockIfMatched("Status"); err != nil {
		return "", err
	}
	return p.inner.Status(ctx, txHash)
}

// unblockedProxy is the pass-through proxy handed to the orchestrator once
// the gate has approved submission: it delegates every call without
// blocking. Kept distinct from blockingProxy so the two states can never be
// confused at a call site.
type unblockedProxy struct {
	inner RPCClient
}

// CreateApprovedClient returns an RPCClient that delegates every call to
// inner, for use only after the gate has approved submission for a record.
func CreateApprovedClient(inner RPCClient) RPCClient {
	return &unblockedProxy{inner: inner}
}

func (p *unblockedProxy) Send(ctx context.Context, signed types.SigningResult) (types.SubmissionResult, error) {
	return p.inner.Send(ctx, signed)
}

func (p *unblockedProxy) Broadcast(ctx context.Context, signed types.SigningResult) (types.SubmissionResult, error) {
	return p.inner.Broadcast(ctx, signed)
}

func (p *unblockedProxy) Status(ctx context.Context, txHash string) (string, error) {
	return p.inner.Status(ctx, txHash)
}
