package lib_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/slok/runnables/pkg/lib"
)

// This example shows how to create a client using the fake engine for testing.
func Example_testing() {
	ctx := context.Background()

	client, err := lib.New(ctx, lib.Config{
		Runnables: []lib.Runnable{
			{Name: "build", Command: "make", Args: []string{"build"}, CaptureOutput: true},
		},
		InMemory: true,
		Engine:   lib.EngineFake,
		FakeScripts: map[string]lib.FakeScript{
			"build": {Stdout: []string{"compiling", "done"}},
		},
	})
	if err != nil {
		panic(err)
	}
	defer client.Close()

	h, err := client.Spawn(ctx, "build", nil)
	if err != nil {
		panic(err)
	}

	run, err := h.Wait(ctx)
	if err != nil {
		panic(err)
	}

	fmt.Printf("%s: %s\n", run.RunnableName, run.Status)
	fmt.Print(run.Output)

	// Output:
	// build: succeeded
	// compiling
	// done
}

// This example shows how to spawn a local process from a runnables file and follow its output.
func Example_runnablesFile() {
	ctx := context.Background()

	dir, err := os.MkdirTemp("", "runnables-example-*")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(dir)

	file := filepath.Join(dir, "runnables.yaml")
	err = os.WriteFile(file, []byte(`
runnables:
  - name: greet
    command: echo
    args: [hello, runnables]
`), 0644)
	if err != nil {
		panic(err)
	}

	client, err := lib.New(ctx, lib.Config{
		RunnablesFile: file,
		DBPath:        filepath.Join(dir, "runnables.db"),
	})
	if err != nil {
		panic(err)
	}
	defer client.Close()

	h, err := client.Spawn(ctx, "greet", nil)
	if err != nil {
		panic(err)
	}

	err = h.Follow(ctx, func(line string) {
		fmt.Print(strings.ToUpper(line))
	})
	if err != nil {
		panic(err)
	}

	run, err := h.Wait(ctx)
	if err != nil {
		panic(err)
	}
	fmt.Println(run.Status)

	// Output:
	// HELLO RUNNABLES
	// succeeded
}

// This example shows how to check SDK errors.
func Example_errors() {
	ctx := context.Background()

	client, err := lib.New(ctx, lib.Config{
		Runnables: []lib.Runnable{{Name: "serve", Command: "make", Args: []string{"serve"}}},
		InMemory:  true,
		Engine:    lib.EngineFake,
		FakeScripts: map[string]lib.FakeScript{
			"serve": {Hang: true},
		},
	})
	if err != nil {
		panic(err)
	}
	defer client.Close()

	_, err = client.Spawn(ctx, "deploy", nil)
	fmt.Println(errors.Is(err, lib.ErrNotFound))

	_, err = client.Spawn(ctx, "serve", nil)
	if err != nil {
		panic(err)
	}
	_, err = client.Spawn(ctx, "serve", nil)
	fmt.Println(errors.Is(err, lib.ErrAlreadyExists))

	// Output:
	// true
	// true
}
