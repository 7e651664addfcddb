package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn and printFn are test seams for user-facing output. In tests,
// replace them with a stub.
var printlnFn = fmt.Println
var printFn = fmt.Print

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	touch(ctx context.Context)
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	WhoAmI(ctx context.Context) error
	Status(ctx context.Context) error
	Refresh(ctx context.Context) error
	Rename(ctx context.Context, args []string) error
	Stats(ctx context.Context) error
}

// runREPL starts a simple read-eval-print loop for the reviewdesk CLI.
//
// It reads a line from reader, parses the first token as the command, and
// dispatches to methods on 'a'. Every non-empty line counts as keyboard
// activity for the session. Command errors are printed and the loop goes
// on. The loop exits on EOF, when ctx is done, or when the user types
// "exit" or "quit".
//
// Prompt & Commands
//
// The prompt comes from promptFn and accepts:
//
//	Not logged in:
//	  - help           - show available commands
//	  - register       - create an account and sign in
//	  - login          - authenticate
//	  - status         - show session state
//	  - stats          - show session counters
//	  - exit | quit    - leave the program
//
//	Logged in:
//	  - whoami         - show the signed-in user
//	  - status         - show session state and refresh timers
//	  - refresh        - renew the access token now
//	  - rename [name]  - change the display name
//	  - stats          - show session counters
//	  - logout         - sign out
//	  - exit | quit    - leave the program
//
// The reader is shared with the interactive prompts of the commands.
func runREPL(ctx context.Context, a execIface, promptFn func() string, reader *bufio.Reader) {
	for ctx.Err() == nil {
		printFn(promptFn())
		line, err := readLine(reader)
		if err != nil {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		a.touch(ctx)

		var cmdErr error
		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: whoami, status, refresh, rename, stats, logout, exit")
			} else {
				printlnFn("Available commands: register, login, status, stats, exit")
			}

		case "register":
			cmdErr = a.Register(ctx)

		case "login":
			cmdErr = a.Login(ctx)

		case "logout":
			cmdErr = a.Logout(ctx)

		case "whoami":
			cmdErr = a.WhoAmI(ctx)

		case "status":
			cmdErr = a.Status(ctx)

		case "refresh":
			cmdErr = a.Refresh(ctx)

		case "rename":
			cmdErr = a.Rename(ctx, args)

		case "stats":
			cmdErr = a.Stats(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if cmdErr != nil {
			printlnFn("Error:", cmdErr)
		}
	}
}
