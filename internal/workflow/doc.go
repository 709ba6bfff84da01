// Package workflow wires configuration, the codec engine, and the pack,
// unpack, and preview pipelines behind one Manager.
//
// Each Start call runs its pipeline as an operation.Handle. Starting a pack
// while another pack is running cancels the earlier one and begins only after
// it has settled; unpack and preview behave the same within their own
// category. Pack and unpack outcomes are written to the history store so the
// CLI can report recent runs, including runs interrupted by a crash.
//
// Shutdown cancels everything still in flight, waits for cleanup to finish,
// and purges the preview cache.
package workflow
