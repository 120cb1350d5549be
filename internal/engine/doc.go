// Package engine drives pipeline runs: it wraps every step in the status and
// lineage bookkeeping (StepRunner) and sequences steps, restarts and resumes
// runs (Controller).
package engine
