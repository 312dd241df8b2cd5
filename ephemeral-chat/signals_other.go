//go:build !unix

package main

import (
	"context"

	"github.com/gosuda/ephemeral-chat/client"
)

// notifyVisibility has no signal to watch here; /reconnect still works.
func notifyVisibility(ctx context.Context) <-chan client.Visibility {
	out := make(chan client.Visibility)
	go func() {
		<-ctx.Done()
		close(out)
	}()
	return out
}
