package authctl

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aussiebroadwan/authclient/pkg/authstate"
)

// maxCodeAttempts bounds the TOTP prompt during enrollment.
const maxCodeAttempts = 3

func (c *CLI) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.errOut)
	return fs
}

func (c *CLI) cmdStatus(_ context.Context, args []string) error {
	if err := c.flags("status").Parse(args); err != nil {
		return err
	}

	sess, ok := c.store.Current()
	if !ok {
		fmt.Fprintln(c.out, "not signed in")
		return nil
	}

	fmt.Fprintf(c.out, "signed in as %s\n", sess.User.Email)
	fmt.Fprintf(c.out, "  user id:   %s\n", sess.User.ID)
	fmt.Fprintf(c.out, "  confirmed: %t\n", sess.User.EmailVerified)
	if sess.Expired(time.Now()) {
		fmt.Fprintf(c.out, "  expired:   %s\n", sess.ExpiresAt.Format(time.RFC3339))
	} else {
		fmt.Fprintf(c.out, "  expires:   %s\n", sess.ExpiresAt.Format(time.RFC3339))
	}
	return nil
}

func (c *CLI) cmdSignIn(ctx context.Context, args []string) error {
	fs := c.flags("signin")
	email := fs.String("email", "", "account email")
	if err := fs.Parse(args); err != nil {
		return err
	}

	addr, err := c.emailArg(*email)
	if err != nil {
		return err
	}
	password, err := c.askSecret("password")
	if err != nil {
		return err
	}

	sess, err := submit(c, func() authstate.Result[authstate.Session] {
		return c.ops.SignIn(ctx, addr, password)
	})
	if err != nil {
		return err
	}

	c.println(authstate.MsgSignedIn)
	fmt.Fprintf(c.out, "  %s\n", sess.User.Email)
	return nil
}

func (c *CLI) cmdSignUp(ctx context.Context, args []string) error {
	fs := c.flags("signup")
	email := fs.String("email", "", "account email")
	if err := fs.Parse(args); err != nil {
		return err
	}

	addr, err := c.emailArg(*email)
	if err != nil {
		return err
	}
	password, err := c.newPassword()
	if err != nil {
		return err
	}

	out, err := submit(c, func() authstate.Result[authstate.SignUpOutcome] {
		return c.ops.SignUp(ctx, addr, password, authstate.WithRedirectTo(c.cfg.RedirectURL))
	})
	if err != nil {
		return err
	}

	if out.ConfirmationPending {
		c.println(authstate.MsgSignUpPending)
		return nil
	}
	c.println(authstate.MsgSignedIn)
	fmt.Fprintf(c.out, "  %s\n", out.User.Email)
	return nil
}

func (c *CLI) cmdSignOut(ctx context.Context, args []string) error {
	if err := c.flags("signout").Parse(args); err != nil {
		return err
	}

	_, err := submit(c, func() authstate.Result[struct{}] {
		return c.ops.SignOut(ctx)
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, "signed out")
	return nil
}

func (c *CLI) cmdForgotPassword(ctx context.Context, args []string) error {
	fs := c.flags("forgot-password")
	email := fs.String("email", "", "account email")
	if err := fs.Parse(args); err != nil {
		return err
	}

	addr, err := c.emailArg(*email)
	if err != nil {
		return err
	}

	_, err = submit(c, func() authstate.Result[struct{}] {
		return c.ops.ResetPassword(ctx, addr, authstate.WithRedirectTo(c.cfg.RedirectURL))
	})
	if err != nil {
		return err
	}
	c.println(authstate.MsgResetSent)
	return nil
}

// cmdResetPassword accepts either the emailed /verify link or the address
// the browser landed on after following it.
func (c *CLI) cmdResetPassword(ctx context.Context, args []string) error {
	fs := c.flags("reset-password")
	link := fs.String("link", "", "recovery link or landing address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *link == "" {
		return errors.New("-link is required")
	}

	address := *link
	if isVerifyLink(address) {
		loc, err := c.client.FollowVerifyLink(ctx, address)
		if err != nil {
			return err
		}
		address = loc.String()
	}

	recovery := authstate.NewRecovery(c.ops)
	rc := recovery.Derive(ctx, address)
	if cond := rc.Condition(); cond != nil {
		return cond
	}
	if !rc.Active() {
		return errors.New("not a password recovery link")
	}

	password, err := c.newPassword()
	if err != nil {
		return err
	}

	if _, err := submit(c, func() authstate.Result[authstate.User] {
		return recovery.UpdatePassword(ctx, password)
	}); err != nil {
		return err
	}
	c.println(authstate.MsgPasswordUpdated)
	return nil
}

func (c *CLI) cmdMFA(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("mfa needs a subcommand: list, enroll or unenroll")
	}

	switch args[0] {
	case "list":
		return c.cmdMFAList(ctx, args[1:])
	case "enroll":
		return c.cmdMFAEnroll(ctx, args[1:])
	case "unenroll":
		return c.cmdMFAUnenroll(ctx, args[1:])
	default:
		return fmt.Errorf("unknown mfa subcommand %q", args[0])
	}
}

func (c *CLI) cmdMFAList(ctx context.Context, args []string) error {
	if err := c.flags("mfa list").Parse(args); err != nil {
		return err
	}

	factors, err := c.enrollment.ListFactors(ctx).Unwrap()
	if err != nil {
		return err
	}
	if len(factors) == 0 {
		fmt.Fprintln(c.out, "no factors")
		return nil
	}
	for _, f := range factors {
		name := f.FriendlyName
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(c.out, "%s\t%s\t%s\t%s\n", f.ID, f.Type, name, f.CreatedAt.Format(time.RFC3339))
	}
	return nil
}

func (c *CLI) cmdMFAEnroll(ctx context.Context, args []string) error {
	fs := c.flags("mfa enroll")
	name := fs.String("name", "", "friendly name shown in listings")
	issuer := fs.String("issuer", "", "issuer shown by authenticator apps")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if _, err := c.enrollment.ListFactors(ctx).Unwrap(); err != nil {
		return err
	}

	var opts []authstate.EnrollOption
	if *name != "" {
		opts = append(opts, authstate.WithFriendlyName(*name))
	}
	if *issuer != "" {
		opts = append(opts, authstate.WithIssuer(*issuer))
	}

	challenge, err := submit(c, func() authstate.Result[authstate.EnrollmentChallenge] {
		return c.enrollment.Enroll(ctx, opts...)
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(c.out, "add this account to your authenticator app:")
	fmt.Fprintf(c.out, "  uri:    %s\n", challenge.URI)
	fmt.Fprintf(c.out, "  secret: %s\n", challenge.Secret)

	for attempt := 1; ; attempt++ {
		code, err := c.ask("code")
		if err != nil {
			c.enrollment.Abandon(ctx)
			return err
		}

		_, err = submit(c, func() authstate.Result[authstate.Factor] {
			return c.enrollment.Verify(ctx, challenge, code)
		})
		if err == nil {
			break
		}
		if authstate.KindOf(err) != authstate.KindInvalidCode || attempt == maxCodeAttempts {
			c.enrollment.Abandon(ctx)
			return err
		}
		c.report(err)
	}

	c.println(authstate.MsgMFAEnabled)
	return nil
}

func (c *CLI) cmdMFAUnenroll(ctx context.Context, args []string) error {
	fs := c.flags("mfa unenroll")
	id := fs.String("id", "", "factor id")
	yes := fs.Bool("yes", false, "do not ask for confirmation")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return errors.New("-id is required")
	}

	if _, err := c.enrollment.ListFactors(ctx).Unwrap(); err != nil {
		return err
	}

	if !*yes {
		answer, err := c.ask(c.msgs.Text(authstate.MsgMFAConfirmRemove) + " [y/N]")
		if err != nil {
			return err
		}
		switch strings.ToLower(answer) {
		case "y", "yes", "j", "ja":
		default:
			fmt.Fprintln(c.out, "aborted")
			return nil
		}
	}

	if _, err := submit(c, func() authstate.Result[struct{}] {
		return c.enrollment.Unenroll(ctx, *id)
	}); err != nil {
		return err
	}
	c.println(authstate.MsgMFADisabled)
	return nil
}

// cmdWatch runs background refresh and prints every Store transition until
// ctx is cancelled.
func (c *CLI) cmdWatch(ctx context.Context, args []string) error {
	fs := c.flags("watch")
	interval := fs.Duration("interval", 30*time.Second, "how often to check the session")
	if err := fs.Parse(args); err != nil {
		return err
	}

	unsubscribe := c.store.Subscribe(func(ch authstate.Change) {
		who := "-"
		if ch.Session != nil {
			who = ch.Session.User.Email
		}
		fmt.Fprintf(c.out, "%s %s %s\n", ch.At.Format(time.RFC3339), ch.Event, who)
	})
	defer unsubscribe()

	stop := c.gateway.StartAutoRefresh(*interval)
	defer stop()

	if sess, ok := c.store.Current(); ok {
		fmt.Fprintf(c.out, "watching %s (expires %s)\n", sess.User.Email, sess.ExpiresAt.Format(time.RFC3339))
	} else {
		fmt.Fprintln(c.out, "watching (not signed in)")
	}

	<-ctx.Done()
	return nil
}

func (c *CLI) emailArg(flagValue string) (string, error) {
	email := flagValue
	if email == "" {
		var err error
		if email, err = c.ask("email"); err != nil {
			return "", err
		}
	}
	if e := c.msgs.ValidateEmail(email); e != nil {
		return "", e
	}
	return strings.TrimSpace(email), nil
}

func (c *CLI) newPassword() (string, error) {
	password, err := c.askSecret("password")
	if err != nil {
		return "", err
	}
	if e := c.msgs.ValidatePassword(password); e != nil {
		return "", e
	}
	confirmation, err := c.askSecret("confirm password")
	if err != nil {
		return "", err
	}
	if e := c.msgs.ConfirmPasswords(password, confirmation); e != nil {
		return "", e
	}
	return password, nil
}

func isVerifyLink(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return strings.HasSuffix(u.Path, "/verify") && u.Query().Get("token") != ""
}
