//go:build unix

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gosuda/ephemeral-chat/client"
)

// notifyVisibility reports Foreground whenever the process is resumed with
// SIGCONT, e.g. `fg` after Ctrl-Z. Suspension itself needs no event.
func notifyVisibility(ctx context.Context) <-chan client.Visibility {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGCONT)
	out := make(chan client.Visibility, 1)
	go func() {
		defer signal.Stop(sigs)
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case <-sigs:
				select {
				case out <- client.Foreground:
				default:
				}
			}
		}
	}()
	return out
}
