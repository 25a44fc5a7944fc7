/*
Package domain contains the core domain models and business logic for the
Arbor engine.

It defines the process lifecycle state machine, the workflow tree, the
control wire shapes and the report log entries. This package is kept pure
and free of external dependencies like I/O or persistence, following
Hexagonal Architecture principles.

# Key Entities

  - ProcessRecord: A single process and its lifecycle state machine
    (created, running, waiting, finished, excepted, killed).
  - Workflow / Step: The aggregation tree; steps own attached calculation
    pks and nested sub-workflows.
  - ControlCommand / ControlReply: The correlated kill/pause/play wire
    shapes exchanged over the communicator.
  - LogEntry: One line of a workflow report, always owned by the tree root.
*/
package domain
