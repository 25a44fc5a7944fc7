/*
Package observability provides Prometheus instrumentation for the Arbor engine.

It bundles the collectors tracking control command round trips, process
launches and function cache effectiveness, and exposes them through a
standard scrape handler.
*/
package observability
