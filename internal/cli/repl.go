package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Contacts(ctx context.Context) error
	Inbox(ctx context.Context) error
	Search(ctx context.Context, query string) error
	OpenChat(ctx context.Context, name string) error
	Send(ctx context.Context, text string) error
	SendSecret(ctx context.Context, text string) error
	CloseChat(ctx context.Context) error
	Logout(ctx context.Context) error
}

// runREPL starts a simple read-eval-print loop for the securechat CLI.
//
// It reads a line from the provided scanner, parses the first token as the
// command, and dispatches to methods on 'a'. Unknown commands are reported
// back to the user. The loop exits on scanner EOF or when the user types
// "exit" or "quit".
//
// Prompt & Commands
//
// The prompt shows the current status (from statusFn) and accepts commands:
//
//	Not logged in:
//	  - help           — show available commands
//	  - register       — create an account
//	  - login          — authenticate
//	  - exit | quit    — leave the program
//
//	Logged in:
//	  - help           — show available commands
//	  - contacts       — list known contacts
//	  - (i)nbox        — list conversations, newest first
//	  - search <q>     — filter conversations by contact name
//	  - open <name>    — open the conversation with a contact
//	  - send <text>    — send a message in the open conversation
//	  - secret <text>  — send a self-destructing message
//	  - close          — close the open conversation
//	  - logout         — log out
//	  - exit | quit    — leave the program
//
// Any errors returned by command handlers are ignored here; handlers should
// log their own errors. This keeps the REPL loop resilient and focused on I/O.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("sc> %s > ", statusFn()))
		if !scanner.Scan() {
			return
		}
		line := scanner.Text()
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]
		rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), cmd))

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: contacts, (i)nbox, search <q>, open <name>, send <text>, secret <text>, close, logout, exit")
			} else {
				printlnFn("Available commands: register, login, exit")
			}

		case "register":
			_ = a.Register(ctx)

		case "login":
			_ = a.Login(ctx)

		case "contacts":
			_ = a.Contacts(ctx)

		case "i", "inbox":
			_ = a.Inbox(ctx)

		case "search":
			_ = a.Search(ctx, rest)

		case "open":
			_ = a.OpenChat(ctx, rest)

		case "send":
			_ = a.Send(ctx, rest)

		case "secret":
			_ = a.SendSecret(ctx, rest)

		case "close":
			_ = a.CloseChat(ctx)

		case "logout":
			_ = a.Logout(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
