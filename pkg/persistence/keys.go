package persistence

import "fmt"

// Key layout. Positions and link indexes are zero-padded so byte order equals numeric order.
//
//	run/<run>                 run record (steps excluded)
//	step/<run>/<pos>          step record
//	node/<node>               node record
//	io/<step>/in/<idx>        input association, value is a node ID
//	io/<step>/out/<idx>       output association, value is a node ID
const (
	runPrefix  = "run/"
	stepPrefix = "step/"
	nodePrefix = "node/"
	ioPrefix   = "io/"

	dirIn  = "in"
	dirOut = "out"
)

func runKey(runID string) string {
	return runPrefix + runID
}

func stepsPrefix(runID string) string {
	return stepPrefix + runID + "/"
}

func stepKey(runID string, position int) string {
	return fmt.Sprintf("%s%06d", stepsPrefix(runID), position)
}

func nodeKey(nodeID string) string {
	return nodePrefix + nodeID
}

func linksPrefix(stepID, dir string) string {
	return ioPrefix + stepID + "/" + dir + "/"
}

func linkKey(stepID, dir string, idx int) string {
	return fmt.Sprintf("%s%06d", linksPrefix(stepID, dir), idx)
}
