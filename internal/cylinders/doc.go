// Package cylinders implements the hub and spoke roles and the contract
// between them.
//
// A cylinder is one full replica of the system: a hub driving the primal
// iteration plus one spoke per attached heuristic kind. The hub publishes
// its nonant values into a per-spoke window each iteration and polls every
// spoke's bound window; spokes spin-poll the hub's window, compute a
// candidate when new data appears, and report it back only on strict
// improvement. The hub's kill window is the sole termination mechanism.
//
// Two concrete spokes are provided: the slam heuristic (aggregation by an
// extremum over the scenario axis, reduced across replicas) and the
// look-ahead bounder (cache-driven evaluation of a bounded set of candidate
// scenario solutions). Both report inner bounds.
//
// Roles never call each other. All coupling is through windows, plus the
// slam spokes' cross-replica reduction, which is the only blocking
// collective on the spoke side.
package cylinders
