// Package changerequest implements the change-request workflow of a skill:
// a request is created OPEN and resolved exactly once, by an owner or admin
// (approve, reject) or by its requester (withdraw).
//
// Approval bumps the skill version. Approve locks the skill row first and
// only then re-reads the request and checks that it is still OPEN. Two
// approvals of different requests both succeed, one after the other; two
// approvals of the same request yield one success and one ErrInvalidState.
//
// Notifications are dispatched only after the transaction has committed and
// never affect the result of the operation.
//
// Errors that callers act on are ErrNotFound, ErrForbidden, ErrInvalidState
// and ErrInvalidInput; Kind classifies any returned error.
package changerequest
