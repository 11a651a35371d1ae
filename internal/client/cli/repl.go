package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/spendsmart/internal/client/identity"
	"github.com/dmitrijs2005/spendsmart/internal/client/rolegate"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	state() identity.State
	views() rolegate.Views

	Signup(ctx context.Context) error
	Verify(ctx context.Context) error
	Cancel(ctx context.Context) error
	Login(ctx context.Context) error
	Forgot(ctx context.Context) error
	Profile(ctx context.Context) error
	DeleteAccount(ctx context.Context) error
	Logout(ctx context.Context) error
	WhoAmI(ctx context.Context) error

	List(ctx context.Context) error
	Summary(ctx context.Context) error
	Add(ctx context.Context) error
	Edit(ctx context.Context, id string) error
	Remove(ctx context.Context, id string) error

	Users(ctx context.Context) error
	User(ctx context.Context, id string) error
	Role(ctx context.Context, id, role string) error
	DeleteUser(ctx context.Context, id string) error
}

// runREPL starts a simple read-eval-print loop for the SpendSmart CLI.
//
// It reads a line from reader, parses the first token as the command, and
// dispatches to methods on 'a'. The same reader serves the prompts issued by
// the commands. The loop exits on EOF or when the user types "exit" or
// "quit".
//
// The prompt shows the current status (from statusFn). Which commands help
// lists depends on the identity state and, once signed in, on the role.
//
// Errors returned by command handlers are ignored here; handlers report
// their own errors.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("ss> %s > ", statusFn()))
		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			printlnFn(helpText(a.state(), a.views()))

		case "signup":
			_ = a.Signup(ctx)
		case "verify":
			_ = a.Verify(ctx)
		case "cancel":
			_ = a.Cancel(ctx)
		case "login":
			_ = a.Login(ctx)
		case "forgot":
			_ = a.Forgot(ctx)
		case "profile":
			_ = a.Profile(ctx)
		case "delete-account":
			_ = a.DeleteAccount(ctx)
		case "logout":
			_ = a.Logout(ctx)
		case "whoami":
			_ = a.WhoAmI(ctx)

		case "l", "list":
			_ = a.List(ctx)
		case "summary":
			_ = a.Summary(ctx)
		case "add":
			_ = a.Add(ctx)
		case "edit":
			if len(args) != 1 {
				printlnFn("Usage: edit <id>")
				continue
			}
			_ = a.Edit(ctx, args[0])
		case "remove", "rm":
			if len(args) != 1 {
				printlnFn("Usage: remove <id>")
				continue
			}
			_ = a.Remove(ctx, args[0])

		case "users":
			_ = a.Users(ctx)
		case "user":
			if len(args) != 1 {
				printlnFn("Usage: user <id>")
				continue
			}
			_ = a.User(ctx, args[0])
		case "role":
			if len(args) != 2 {
				printlnFn("Usage: role <id> <user|admin>")
				continue
			}
			_ = a.Role(ctx, args[0], args[1])
		case "deluser":
			if len(args) != 1 {
				printlnFn("Usage: deluser <id>")
				continue
			}
			_ = a.DeleteUser(ctx, args[0])

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			return
		}
	}
}

func helpText(st identity.State, v rolegate.Views) string {
	var cmds []string
	switch st {
	case identity.Anonymous:
		cmds = []string{"signup", "login", "forgot"}
	case identity.PendingVerification:
		cmds = []string{"verify", "cancel"}
	case identity.Authenticated:
		cmds = []string{"whoami", "profile", "delete-account", "logout"}
		if v.TransactionEditor {
			cmds = append(cmds, "(l)ist", "summary", "add", "edit <id>", "remove <id>")
		}
		if v.Admin {
			cmds = append(cmds, "users", "user <id>", "role <id> <role>", "deluser <id>")
		}
	}
	cmds = append(cmds, "exit")
	return "Available commands: " + strings.Join(cmds, ", ")
}
