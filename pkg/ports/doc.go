/*
Package ports defines the driven ports (interfaces) for the Weave engine.

These interfaces decouple the run controller from persistence backends and from
cross-process coordination.

# Key Interfaces

  - Store / Tx: an opaque transactional key/value store (Badger, Redis, Postgres, Memory).
  - Journal: record-level persistence of runs, steps and the step/node association.
  - Catalog: read-only queries used by the CLI and the HTTP API.
  - DistributedLocker: serializes writers of the same run across processes.

RunStoreContract and RunLockerContract are reusable suites every adapter runs in its tests.
*/
package ports
