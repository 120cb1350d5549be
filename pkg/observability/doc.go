/*
Package observability turns engine lifecycle events into prometheus metrics and
structured log lines.

Both are delivered as domain.LifecycleHooks, so they compose with each other and
with caller hooks through domain.CombineHooks.
*/
package observability
