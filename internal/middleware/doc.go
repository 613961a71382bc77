// Package middleware provides the HTTP middleware chain: request IDs,
// W3C-style access logging through the logging package, and Prometheus
// request metrics labelled by route template.
package middleware
