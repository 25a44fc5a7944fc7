/*
Package ports defines the driven ports (interfaces) for the Arbor engine.

These interfaces decouple the core logic from external implementations,
allowing the engine to work with various transports and storage backends.

# Key Interfaces

  - Communicator: The pub/sub transport carrying control commands, replies
    and state broadcasts between panels, watchers and processes.
  - ProcessStore / WorkflowStore / LogStore: Persistence for process
    records, workflow trees and report logs.
  - CacheStore: Content-addressed storage backing the function cache.
  - DistributedLocker: Distributed locking for multi-instance deployments.

The package also ships contract suites (RunProcessStoreContract and
friends) that every adapter runs against its own backend.
*/
package ports
