package lib_test

import (
	"context"
	"fmt"

	"github.com/slok/runq/pkg/lib"
)

// This example runs the tasks once with an in-memory history and prints the result.
func Example_quickStart() {
	ctx := context.Background()

	client, err := lib.New(ctx, lib.Config{
		InMemory: true,
		Tasks: []lib.Task{
			{Name: "build", Command: []string{"true"}},
			{Name: "test", Command: []string{"true"}},
		},
	})
	if err != nil {
		panic(err)
	}
	defer client.Close()

	exec, out, err := client.Execute(ctx, nil)
	if err != nil {
		panic(err)
	}

	// Wait for the execution to end.
	if _, err := out.Lines(ctx); err != nil {
		panic(err)
	}

	st, err := client.Status(ctx, exec.ID)
	if err != nil {
		panic(err)
	}

	fmt.Printf("status: %s (%d/%d tasks)\n", st.Execution.Status, st.TasksDone, st.TasksTotal)

	// Output:
	// status: succeeded (2/2 tasks)
}
