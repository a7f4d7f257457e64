// Package status models analysis status records and stores them.
//
// Records are written by the analysis pipeline and read by the subscription
// hub for snapshots. The only write made from the API side is Cancel, which
// moves a non-terminal record to cancelled in one atomic update.
//
// Progress never moves backwards: Apply keeps the larger of the stored and
// the patched value, and completing a record forces progress to 100.
package status
