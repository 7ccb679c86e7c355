package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Document stores, local persistence
// and wallet transports return these (optionally wrapped) so the orchestrator
// can translate them into coded domain errors.
//
//   - ErrNotFound: document or persisted key does not exist
//   - ErrConflict: optimistic write lost a race and ran out of retries
//   - ErrInvalidState: value in storage cannot be decoded into the expected shape
//   - ErrUnavailable: backend or wallet transport unreachable
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
