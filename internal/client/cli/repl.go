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
	Login(ctx context.Context) error
	Signup(ctx context.Context) error
	Logout(ctx context.Context) error
	WhoAmI(ctx context.Context) error
	Profile(ctx context.Context, args []string) error
	AddToCart(ctx context.Context, args []string) error
	RemoveFromCart(ctx context.Context, args []string) error
	UpdateQuantity(ctx context.Context, args []string) error
	ShowCart(ctx context.Context) error
	ClearCart(ctx context.Context) error
	Sync(ctx context.Context) error
}

const (
	helpSignedOut = "Available commands: login, signup, whoami, add, remove, qty, cart, clear, sync, exit"
	helpSignedIn  = "Available commands: whoami, profile, logout, add, remove, qty, cart, clear, sync, exit"
)

// runREPL starts a simple read–eval–print loop for the tradeclub CLI.
//
// It reads a line from reader, parses the first token as the command, and
// dispatches to methods on 'a'. The loop exits on EOF, when ctx is done, or
// when the user types "exit" or "quit".
//
// Commands
//
//	help                                                     — show available commands
//	login | signup | logout                                  — session
//	whoami                                                   — show the current session
//	profile name=.. email=.. avatar=..                       — edit the profile
//	add <product> [size|-|size=<v>] [qty] [price] [name..]   — add to cart
//	remove <product> [size|-]                                — remove a cart line
//	qty <product> [size|-] <n>                               — set a line's quantity
//	cart | clear                                             — show or empty the cart
//	sync                                                     — re-read the shared session now
//	exit | quit                                              — leave the program
//
// Errors returned by handlers are printed and the loop continues.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		if ctx.Err() != nil {
			return
		}
		printlnFn(fmt.Sprintf("tc %s> ", statusFn()))
		line, err := readLine(reader)
		if err != nil {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn(helpSignedIn)
			} else {
				printlnFn(helpSignedOut)
			}
		case "login":
			err = a.Login(ctx)
		case "signup":
			err = a.Signup(ctx)
		case "logout":
			err = a.Logout(ctx)
		case "whoami":
			err = a.WhoAmI(ctx)
		case "profile":
			err = a.Profile(ctx, args)
		case "add":
			err = a.AddToCart(ctx, args)
		case "remove", "rm":
			err = a.RemoveFromCart(ctx, args)
		case "qty":
			err = a.UpdateQuantity(ctx, args)
		case "cart":
			err = a.ShowCart(ctx)
		case "clear":
			err = a.ClearCart(ctx)
		case "sync":
			err = a.Sync(ctx)
		case "exit", "quit":
			printlnFn("Bye!")
			return
		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			printlnFn("Error:", err)
		}
	}
}
