// Command weave runs durable, lineage-tracking text pipelines.
package main

func main() {
	Execute()
}
