/*
Package weave runs pipelines of text-processing steps over batches of nodes and records every step so that failed runs can be resumed.

# Concept

A pipeline is an ordered list of steps. Each step is implemented by an executor resolved from a registry by its type and method, takes the nodes produced by the previous step and emits new ones. Every node remembers, per step, which ancestor it was derived from, so any output can be traced back to the input that produced it.

The engine persists runs, steps and nodes through a key-value store (memory, Badger, Redis or Postgres). When a step fails, the run stops in the errored state with the failed step's inputs recorded; Resume re-runs that step with the same inputs and drives the rest of the pipeline.

# Usage

	eng, err := weave.New()
	if err != nil {
		log.Fatal(err)
	}
	defer eng.Close()

	cfg := domain.Config{
		Name: "shout",
		Pipeline: []domain.PipelineStep{
			{Type: "split", Method: "separator", Name: "words"},
			{Type: "transform", Method: "template", Name: "upper", Parameters: map[string]any{"template": "{{ upper . }}"}},
		},
	}

	run, out, err := eng.Run(ctx, cfg, []domain.Node{domain.NewNode("hello world")})

Pipelines can also be declared in YAML or JSON and loaded with the config package; the weave command line drives them against a persistent store.
*/
package weave
