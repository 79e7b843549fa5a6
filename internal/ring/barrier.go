package ring

// This file documents the memory-ordering contract WriteSP/WriteMP and Read
// rely on; there is no portable fence primitive in Go, so the ordering
// comes entirely from sync/atomic's load/store semantics.
//
// A writer fills the frame bytes with plain slice writes, then publishes
// the new head with head.Store. A reader calls head.Load before touching
// any of the bytes beneath it. Per the Go memory model, a Store to an
// atomic.Uint32 synchronizes-with a later Load of the same variable that
// observes the stored value, and everything sequenced before the Store is
// visible to everything sequenced after the matching Load. That pairing is
// what makes the plain byte writes safe without an explicit fence: the
// fence is implicit in the atomic head/tail Store/Load pair.
//
// This only holds if every write to the payload happens before the
// head.Store that exposes it, and every read of the payload happens after
// the head.Load that admits it — both WriteSP/WriteMP and Read already
// follow that order.
