// Command xcapture captures one X post, its same-author thread and any
// linked long-form article into a local JSON and Markdown archive.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "xcapture:", err)
	}
	os.Exit(exitCode(err))
}
