// Package metrics holds the Prometheus collectors for the guest heap, the
// fault channel, the random bridge and the handle façade.
package metrics
