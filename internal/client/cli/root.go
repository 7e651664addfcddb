package cli

import (
	"context"
)

// Root restores any stored session, then runs the REPL on the app's input.
func (a *App) Root(ctx context.Context) {
	printlnFn("Welcome to reviewdesk (type 'help' for commands)")

	if err := a.session.RestoreSession(ctx); err != nil {
		a.log.Warn(ctx, "stored session could not be restored", "error", err)
		printlnFn("Your previous session could not be restored:", err)
	}

	runREPL(ctx, a, a.state.Prompt, a.reader)
}
