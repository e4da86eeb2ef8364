// Package script executes node content and reports the outcome to an output sink.
//
// A Runner never returns an error to its caller: script output, failures,
// panics and timeouts all end up as text in the sink, and the project
// stores stay usable afterwards. This is error containment, not a security
// sandbox. Node content is untrusted input; hosts that cannot trust it should
// use a restricted evaluator or Disabled.
package script
