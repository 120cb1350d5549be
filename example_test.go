package weave_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/weave"
	"github.com/aretw0/weave/pkg/domain"
	"github.com/aretw0/weave/pkg/steps"
)

// ExampleEngine_Run splits a sentence into words and upper-cases each of them.
func ExampleEngine_Run() {
	eng, err := weave.New()
	if err != nil {
		log.Fatal(err)
	}
	defer eng.Close()

	cfg := domain.Config{
		Name: "shout",
		Pipeline: []domain.PipelineStep{
			{Type: steps.TypeSplit, Method: steps.MethodSeparator, Name: "words"},
			{
				Type:       steps.TypeTransform,
				Method:     steps.MethodTemplate,
				Name:       "upper",
				Parameters: map[string]any{"template": "{{ upper . }}"},
			},
		},
	}

	run, out, err := eng.Run(context.Background(), cfg, []domain.Node{domain.NewNode("hello world")})
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(run.Status)
	for _, n := range out {
		fmt.Println(n.Value)
	}

	// Output:
	// finished
	// HELLO
	// WORLD
}
