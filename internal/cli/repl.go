package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// printlnFn is a test seam for REPL output.
var printlnFn = fmt.Println

// execIface is the command surface the REPL needs. App satisfies it; tests
// use a stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Verify(ctx context.Context, args []string) error
	Login(ctx context.Context) error
	Enable2FA(ctx context.Context) error
	Disable2FA(ctx context.Context) error
	WhoAmI(ctx context.Context) error
	Profile(ctx context.Context) error
	Passwd(ctx context.Context) error
	Audit(ctx context.Context, args []string) error
	Logout(ctx context.Context) error
}

// runREPL reads commands from reader until EOF, "exit" or "quit".
//
//	Not logged in:
//	  - register          create an account
//	  - verify [code]     confirm the email address
//	  - login             authenticate
//	  - exit | quit       leave the program
//
//	Logged in:
//	  - whoami            show the account
//	  - profile           change username or names
//	  - passwd            change the password
//	  - 2fa-enable        enroll an authenticator app
//	  - 2fa-disable       remove the second factor
//	  - audit [n]         show the latest audit entries
//	  - logout            end the session
//	  - exit | quit       leave the program
//
// Handler errors are printed and the loop continues. Commands share reader
// with the handlers' prompts, so nothing is read ahead.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("credcore (%s)> ", statusFn()))
		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var cmdErr error
		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: whoami, profile, passwd, 2fa-enable, 2fa-disable, audit, logout, exit")
			} else {
				printlnFn("Available commands: register, verify, login, exit")
			}
		case "register":
			cmdErr = a.Register(ctx)
		case "verify":
			cmdErr = a.Verify(ctx, args)
		case "login":
			cmdErr = a.Login(ctx)
		case "whoami":
			cmdErr = a.WhoAmI(ctx)
		case "profile":
			cmdErr = a.Profile(ctx)
		case "passwd":
			cmdErr = a.Passwd(ctx)
		case "2fa-enable":
			cmdErr = a.Enable2FA(ctx)
		case "2fa-disable":
			cmdErr = a.Disable2FA(ctx)
		case "audit":
			cmdErr = a.Audit(ctx, args)
		case "logout":
			cmdErr = a.Logout(ctx)
		case "exit", "quit":
			printlnFn("Bye!")
			return
		default:
			printlnFn("Unknown command:", cmd)
		}

		if cmdErr != nil {
			printlnFn("Error:", describeError(cmdErr))
		}
	}
}
