// Package lib provides a Go SDK to spawn runnables and read the history of their runs.
//
// A runnable is a named command (a build, a test suite, a dev server...) defined in a
// runnables file or passed directly in [Config]. This package allows applications to
// spawn them, follow their output and record their runs without shelling out to the
// runnables CLI.
//
// # Quick Start
//
// Create a client, spawn a runnable and wait for it:
//
//	client, err := lib.New(ctx, lib.Config{RunnablesFile: "runnables.yaml"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	h, err := client.Spawn(ctx, "build", nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	run, err := h.Wait(ctx)
//	fmt.Println(run.Status, run.ExitCode)
//
// # Runnables file
//
// The runnables file is YAML:
//
//	runnables:
//	  - name: build
//	    label: Build binaries
//	    command: go
//	    args: [build, ./...]
//	    env:
//	      CGO_ENABLED: "0"
//	  - name: test-linux
//	    command: go
//	    args: [test, ./...]
//	    docker:
//	      image: golang:1.25
//
// Output is captured unless capture_output is false. Relative working directories are
// resolved from the directory of the file.
//
// # Engines
//
//   - [EngineProcess]: Local child processes.
//   - [EngineDocker]: Docker containers, used by the runnables with a Docker image.
//   - [EngineFake]: Simulated runs for unit testing, see [FakeScript].
//
// # Following the output
//
// Output lines are delivered as they are produced:
//
//	h.Follow(ctx, func(line string) {
//	    fmt.Print(line)
//	})
//
// # Error Handling
//
// All methods return errors that can be inspected with [errors.Is]:
//
//   - [ErrNotFound]: The runnable or run does not exist.
//   - [ErrAlreadyExists]: The runnable is already running.
//   - [ErrNotValid]: Invalid input or operation (e.g. terminating a finished run).
//   - [ErrTerminated]: The run was terminated.
//
// # Testing
//
// Use [EngineFake] and in memory runs to write tests without running anything:
//
//	client, _ := lib.New(ctx, lib.Config{
//	    Runnables: []lib.Runnable{{Name: "build", Command: "make", CaptureOutput: true}},
//	    InMemory:  true,
//	    Engine:    lib.EngineFake,
//	    FakeScripts: map[string]lib.FakeScript{
//	        "build": {Stdout: []string{"ok"}},
//	    },
//	})
//	defer client.Close()
//
// # Thread Safety
//
// A [Client] is safe for concurrent use from multiple goroutines. The runs are recorded
// in SQLite with WAL mode, so several clients can share the same database.
package lib
