/*
Package store provides the pluggable storage abstraction for wastetrack.

# Collections

Three logical collections live behind one Store interface:

  - Events: raw waste measurement records, the source of truth
  - Aggregates: one document per (client, day) and per (client, month)
  - Config: per-tenant and per-collector-company configuration

# Write modes

Aggregate documents support two deliberately different write modes:

  - ApplyDeltas: transactional increment-in-place, used by the live event
    reactor. Each target document is read first to branch between "create
    with initial values" and "increment existing values"; the read and the
    write happen inside one transaction so concurrent reactors for the same
    client/day cannot lose updates. Conflicts are retried by the backend.
  - OverwriteDaily / OverwriteMonthly: full replacement, used by backfill.
    Overwrites are idempotent, which is what makes a failed backfill safe to
    simply re-run.

# Idempotent delta application

ApplyDeltas takes a Mark identifying the mutation notification. The mark is
persisted inside the same transaction as the increments, so an at-least-once
delivery pipeline can redeliver a notification without double counting: the
second application sees the mark and returns without touching anything.

# Backends

  - memory: mutex-guarded maps for tests and development
  - badger: BadgerDB (LSM tree) for production, with managed transactions
    providing the single-document atomicity the reactor depends on

Missing documents are never errors. A read of an absent aggregate returns
(nil, nil) and callers treat it as zero activity.
*/
package store
