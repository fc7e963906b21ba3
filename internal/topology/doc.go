// Package topology derives and names the process groups a wheel runs over.
//
// Three nested groupings exist:
//
//   - the global group: every rank in the run
//   - a cylinder (star) group per replica: one hub plus one rank per spoke
//     kind, the scope over which windows are allocated
//   - a stratum group per role: the same role across all cylinders, the
//     scope of Variant A's collective reduction
//
// The hub is always rank 0 within its cylinder. Global ids are dense and
// deterministic: cylinder 0's ranks first, hub before spokes, then
// cylinder 1, and so on.
package topology
