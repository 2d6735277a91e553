// Package lib provides a Go SDK to run runq tasks programmatically.
//
// This package embeds the runq execution stack in an application without
// shelling out to the runq CLI binary or talking to a runq server. Executions
// are run one at a time by a single worker, in the order they were requested,
// and recorded in the execution history.
//
// # Quick Start
//
// Create a client with the tasks, request an execution and read its output:
//
//	client, err := lib.New(ctx, lib.Config{
//	    InMemory: true,
//	    Tasks: []lib.Task{
//	        {Name: "hello", Command: []string{"echo", "hello"}},
//	    },
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	exec, out, err := client.Execute(ctx, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for {
//	    line, err := out.Next(ctx)
//	    if errors.Is(err, io.EOF) {
//	        break
//	    }
//	    ...
//	}
//
//	st, err := client.Status(ctx, exec.ID)
//
// # Output
//
// The [Output] of an execution returns the task output and log records as text
// lines. Once the execution has ended and every line has been read, [Output.Next]
// returns io.EOF. The execution record is final by then, so [Client.Status]
// returns its final state.
//
// Executions requested with [Client.ExecuteDetached] don't have an output, their
// task output goes to [Config].Stdout and [Config].Stderr.
//
// # Storage
//
// By default the execution history is stored in ~/.runq/runq.db, the same
// database the runq CLI uses. Set [Config].InMemory to keep it in memory.
//
// # Errors
//
// Errors can be checked with [errors.Is] against [ErrNotFound],
// [ErrAlreadyExists] and [ErrNotValid].
package lib
