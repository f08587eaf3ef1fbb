package cli

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"time"

	"wellnest/core/internal/api"
	"wellnest/core/internal/models"
)

func runStatus(ctx context.Context, s streams, args []string) int {
	cmd := newCommand("status", s)
	a, code := cmd.open(ctx, args)
	if a == nil {
		return code
	}
	defer a.close()

	mode, err := a.session.Mode(ctx)
	if err != nil {
		return cmd.fail(err)
	}
	fmt.Fprintf(s.out, "mode:     %s\n", mode)

	expiry, ok, err := a.session.Expiry(ctx)
	if err != nil {
		return cmd.fail(err)
	}
	if ok {
		state := "valid"
		if !expiry.After(time.Now()) {
			state = "expired"
		}
		fmt.Fprintf(s.out, "expires:  %s (%s)\n", expiry.Local().Format(time.RFC1123), state)
	}
	fmt.Fprintf(s.out, "primary:  %s\n", a.resolver.Primary())
	fmt.Fprintf(s.out, "fallback: %s\n", a.resolver.Secondary())
	return 0
}

func runRegister(ctx context.Context, s streams, args []string) int {
	cmd := newCommand("register", s)
	var in api.RegisterInput
	in.Password = envOr("WELLNEST_PASSWORD", "")
	cmd.fs.StringVar(&in.Name, "name", "", "Full name")
	cmd.fs.StringVar(&in.Email, "email", "", "Email address")
	cmd.fs.StringVar(&in.Password, "password", in.Password, "Password (or WELLNEST_PASSWORD)")
	a, code := cmd.open(ctx, args)
	if a == nil {
		return code
	}
	defer a.close()

	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.Email) == "" || in.Password == "" {
		return cmd.usage("-name, -email and a password are required")
	}
	if err := a.client.Register(ctx, in); err != nil {
		return cmd.fail(err)
	}
	fmt.Fprintf(s.out, "verification code sent to %s; run `wellnest verify -code <code>`\n", strings.TrimSpace(in.Email))
	return 0
}

func runVerify(ctx context.Context, s streams, args []string) int {
	cmd := newCommand("verify", s)
	var code string
	var resend bool
	cmd.fs.StringVar(&code, "code", "", "Six digit verification code")
	cmd.fs.BoolVar(&resend, "resend", false, "Send a new code instead")
	a, exit := cmd.open(ctx, args)
	if a == nil {
		return exit
	}
	defer a.close()

	if resend {
		if err := a.client.ResendVerification(ctx); err != nil {
			return cmd.fail(err)
		}
		fmt.Fprintln(s.out, "a new verification code is on its way")
		return 0
	}
	if code == "" && cmd.fs.NArg() == 1 {
		code = cmd.fs.Arg(0)
	}
	if code == "" {
		return cmd.usage("-code is required")
	}

	user, err := a.client.VerifyEmail(ctx, code)
	if err != nil {
		return cmd.fail(err)
	}
	fmt.Fprintf(s.out, "verified, signed in as %s\n", user.Email)
	return 0
}

func runLogin(ctx context.Context, s streams, args []string) int {
	cmd := newCommand("login", s)
	email := envOr("WELLNEST_EMAIL", "")
	password := envOr("WELLNEST_PASSWORD", "")
	cmd.fs.StringVar(&email, "email", email, "Email address (or WELLNEST_EMAIL)")
	cmd.fs.StringVar(&password, "password", password, "Password (or WELLNEST_PASSWORD)")
	a, code := cmd.open(ctx, args)
	if a == nil {
		return code
	}
	defer a.close()

	if email == "" || password == "" {
		return cmd.usage("-email and a password are required")
	}
	user, err := a.client.Login(ctx, email, password)
	if err != nil {
		return cmd.fail(err)
	}
	fmt.Fprintf(s.out, "signed in as %s\n", user.Email)
	return 0
}

func runLogout(ctx context.Context, s streams, args []string) int {
	cmd := newCommand("logout", s)
	a, code := cmd.open(ctx, args)
	if a == nil {
		return code
	}
	defer a.close()

	if err := a.client.Logout(ctx); err != nil {
		return cmd.fail(err)
	}
	fmt.Fprintln(s.out, "signed out")
	return 0
}

func runGuest(ctx context.Context, s streams, args []string) int {
	cmd := newCommand("guest", s)
	a, code := cmd.open(ctx, args)
	if a == nil {
		return code
	}
	defer a.close()

	if err := a.client.ContinueAsGuest(ctx); err != nil {
		return cmd.fail(err)
	}
	fmt.Fprintln(s.out, "browsing as guest")
	return 0
}

func runForgot(ctx context.Context, s streams, args []string) int {
	cmd := newCommand("forgot", s)
	var email string
	cmd.fs.StringVar(&email, "email", "", "Email address")
	a, code := cmd.open(ctx, args)
	if a == nil {
		return code
	}
	defer a.close()

	if email == "" {
		return cmd.usage("-email is required")
	}
	if err := a.client.ForgotPassword(ctx, email); err != nil {
		return cmd.fail(err)
	}
	fmt.Fprintln(s.out, "if the address is registered, a reset code has been sent")
	return 0
}

func runReset(ctx context.Context, s streams, args []string) int {
	cmd := newCommand("reset", s)
	var code string
	password := envOr("WELLNEST_PASSWORD", "")
	cmd.fs.StringVar(&code, "code", "", "Reset code from the email")
	cmd.fs.StringVar(&password, "password", password, "New password (or WELLNEST_PASSWORD)")
	a, exit := cmd.open(ctx, args)
	if a == nil {
		return exit
	}
	defer a.close()

	if code == "" || password == "" {
		return cmd.usage("-code and a new password are required")
	}
	if err := a.client.VerifyResetCode(ctx, code); err != nil {
		return cmd.fail(err)
	}
	if err := a.client.ResetPassword(ctx, password); err != nil {
		return cmd.fail(err)
	}
	fmt.Fprintln(s.out, "password updated, sign in again")
	return 0
}

func runProfile(ctx context.Context, s streams, args []string) int {
	cmd := newCommand("profile", s)
	var name, phone, postcode string
	cmd.fs.StringVar(&name, "name", "", "New display name")
	cmd.fs.StringVar(&phone, "phone", "", "New phone number")
	cmd.fs.StringVar(&postcode, "postcode", "", "New postcode")
	a, code := cmd.open(ctx, args)
	if a == nil {
		return code
	}
	defer a.close()

	var update models.ProfileUpdate
	cmd.fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "name":
			update.Name = &name
		case "phone":
			update.Phone = &phone
		case "postcode":
			update.Postcode = &postcode
		}
	})

	var (
		user models.User
		err  error
	)
	if update == (models.ProfileUpdate{}) {
		user, err = a.client.Me(ctx)
	} else {
		user, err = a.client.UpdateProfile(ctx, update)
	}
	if err != nil {
		return cmd.fail(err)
	}

	fmt.Fprintf(s.out, "name:     %s\n", user.Name)
	fmt.Fprintf(s.out, "email:    %s\n", user.Email)
	if user.Phone != "" {
		fmt.Fprintf(s.out, "phone:    %s\n", user.Phone)
	}
	if user.Postcode != "" {
		fmt.Fprintf(s.out, "postcode: %s\n", user.Postcode)
	}
	return 0
}
