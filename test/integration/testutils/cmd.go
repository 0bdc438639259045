package testutils

import (
	"bytes"
	"context"
	"os"
	"os/exec"
)

// RunRunnablesArgs executes the runnables binary with the given arguments.
//
// The process inherits the test environment, env entries are appended so they win over it.
func RunRunnablesArgs(ctx context.Context, env []string, binary string, args []string, nolog bool) (stdout, stderr []byte, err error) {
	cmd := exec.CommandContext(ctx, binary, args...)

	var outData, errData bytes.Buffer
	cmd.Stdout = &outData
	cmd.Stderr = &errData

	cmd.Env = append(os.Environ(), env...)
	if nolog {
		cmd.Env = append(cmd.Env, "RUNNABLES_NO_LOG=true")
	}
	// Runnables inherit the env too, keep their output free of color codes.
	cmd.Env = append(cmd.Env, "NO_COLOR=1")

	err = cmd.Run()

	return outData.Bytes(), errData.Bytes(), err
}
