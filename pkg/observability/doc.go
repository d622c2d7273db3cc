/*
Package observability turns workflow lifecycle events into Prometheus metrics
and structured log records.

Both are exposed as domain.LifecycleHooks so they can be combined with
domain.CombineHooks and handed to the Assistant.
*/
package observability
