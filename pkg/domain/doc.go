/*
Package domain contains the core records and rules of the Weave engine.

It defines the entities a pipeline run is made of and the status machines that govern
them. This package is kept pure and free of I/O or persistence concerns, following
Hexagonal Architecture principles.

# Key Entities

  - Node: a unit of data with an ancestry map (step name -> ancestor node ID).
  - Step: one configured stage with status pending -> running -> {completed, errored}.
  - Run: one pipeline invocation with status running -> {finished, errored} and an
    immutable snapshot of its Config.
  - Edge: a derived lineage link, produced by Trace.
*/
package domain
