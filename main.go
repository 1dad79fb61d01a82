// sensorstream serves depth sensor frames to a single TCP client.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"sensorstream/cmd"
	sserr "sensorstream/internal/errors"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cmd.Execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "sensorstream: %v\n", err)
		cancel()
		os.Exit(sserr.ExitCode(err))
	}
}
