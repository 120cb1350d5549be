// Package steps provides small text-processing step implementations used by
// the CLI and in tests: template transforms, length filters and splitters.
//
// Every executor derives new nodes from its inputs, so lineage records which
// input each output came from.
package steps
