// Package cli implements the wellnest command line client.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

type streams struct {
	out io.Writer
	err io.Writer
}

// Run parses args, dispatches to the matching subcommand and returns the
// process exit code.
func Run(args []string) int {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return run(ctx, args, streams{out: os.Stdout, err: os.Stderr})
}

func run(ctx context.Context, args []string, s streams) int {
	if len(args) == 0 {
		printUsage(s.err)
		return 2
	}

	rest := args[1:]
	switch args[0] {
	case "status":
		return runStatus(ctx, s, rest)
	case "register":
		return runRegister(ctx, s, rest)
	case "verify":
		return runVerify(ctx, s, rest)
	case "login":
		return runLogin(ctx, s, rest)
	case "logout":
		return runLogout(ctx, s, rest)
	case "guest":
		return runGuest(ctx, s, rest)
	case "forgot":
		return runForgot(ctx, s, rest)
	case "reset":
		return runReset(ctx, s, rest)
	case "profile":
		return runProfile(ctx, s, rest)
	case "services":
		return runServices(ctx, s, rest)
	case "bookings":
		return runBookings(ctx, s, rest)
	case "book":
		return runBook(ctx, s, rest)
	case "cancel":
		return runCancel(ctx, s, rest)
	case "messages":
		return runMessages(ctx, s, rest)
	case "notifications":
		return runNotifications(ctx, s, rest)
	case "invest":
		return runInvest(ctx, s, rest)
	case "watch":
		return runWatch(ctx, s, rest)
	case "-h", "--help", "help":
		printUsage(s.out)
		return 0
	default:
		fmt.Fprintf(s.err, "unknown command %q\n\n", args[0])
		printUsage(s.err)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `Usage: wellnest <command> [flags]

Account:
  status                       show session mode, expiry and API host
  register -name -email        create an account (password from -password or WELLNEST_PASSWORD)
  verify -code [-resend]       confirm the pending registration
  login -email                 sign in
  logout                       sign out
  guest                        continue without an account
  forgot -email                request a password reset code
  reset -code -password        finish a password reset
  profile [-name -phone -postcode]

Services:
  services [-search -category -postcode]
  bookings
  book -service -at RFC3339
  cancel -id
  messages [-conversation [-send text]]
  notifications [-read id]
  invest [-location -amount]

Background:
  watch                        poll notifications and session expiry; serves /metrics when metrics.addr is set

Every command accepts -config <file>.
`)
}
