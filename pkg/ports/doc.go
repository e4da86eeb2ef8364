/*
Package ports defines the driven ports (interfaces) of the kmol core.

These interfaces decouple the project store and the script runner from their
implementations, so projects can be persisted to disk or kept in memory and
node content can be interpreted in-process, piped to an external interpreter,
or refused.

# Key Interfaces

  - ProjectCodec: loads and atomically saves a project tree.
  - ScriptEvaluator: executes node content, writing to the given streams.
  - OutputSink: receives script output and script error text.
*/
package ports
