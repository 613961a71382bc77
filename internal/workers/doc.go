/*
Package workers sizes goroutine pools from the CPUs actually available.

runtime.NumCPU reports host CPUs; in a container limited to two cores on a
64-core node it still says 64. GOMAXPROCS follows the cgroup limit, so
every helper here scales from it:

	workers.ForCPU(8)   // one per CPU, at most 8
	workers.ForIO(16)   // two per CPU, at most 16
	workers.ForProbes(cfg.ProbeWorkers)

ForProbes is what the metadata prober pool uses. An explicit positive
override (PROBE_WORKERS) is taken as is.
*/
package workers
