// Package authctl is a terminal front end for the authentication core. It
// drives authstate exactly like a UI would: one Store, stateless
// Operations, an Enrollment machine and a Recovery derived from a link.
package authctl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"
	"golang.org/x/term"

	"github.com/aussiebroadwan/authclient/pkg/authsdk"
	"github.com/aussiebroadwan/authclient/pkg/authstate"
	"github.com/aussiebroadwan/authclient/pkg/slogx"
	"github.com/aussiebroadwan/authclient/pkg/tokenstore"
)

// Prompter asks the user for one line of input. secret input must not be
// echoed.
type Prompter func(label string, secret bool) (string, error)

// CLI holds the wired core for one invocation.
type CLI struct {
	cfg    Config
	out    io.Writer
	errOut io.Writer
	prompt Prompter
	logger *slog.Logger
	msgs   *authstate.Messages

	storage    authsdk.Storage
	client     *authsdk.SDKClient
	gateway    *authstate.GoTrueGateway
	store      *authstate.Store
	ops        *authstate.Operations
	enrollment *authstate.Enrollment
	guard      authstate.SubmitGuard

	closers []func() error
}

type Option func(*CLI)

// WithOutput redirects normal and error output.
func WithOutput(out, errOut io.Writer) Option {
	return func(c *CLI) {
		c.out = out
		c.errOut = errOut
	}
}

// WithPrompter replaces the terminal prompt.
func WithPrompter(p Prompter) Option {
	return func(c *CLI) { c.prompt = p }
}

// WithStorage replaces the backend selected by Config.Storage.
func WithStorage(s authsdk.Storage) Option {
	return func(c *CLI) { c.storage = s }
}

// WithLogger replaces the logger built from Config.
func WithLogger(l *slog.Logger) Option {
	return func(c *CLI) { c.logger = l }
}

// New wires the SDK client, session persistence and the authstate core.
func New(cfg Config, opts ...Option) (*CLI, error) {
	c := &CLI{cfg: cfg, out: os.Stdout, errOut: os.Stderr}
	for _, opt := range opts {
		opt(c)
	}
	if c.prompt == nil {
		c.prompt = terminalPrompter(os.Stdin, c.errOut)
	}
	if c.logger == nil {
		c.logger = slogx.New(slogx.Config{
			Service: "authctl",
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
			Output:  c.errOut,
		})
	}
	c.msgs = authstate.NewMessages(cfg.Locale)

	storage := c.storage
	if storage == nil {
		var err error
		if storage, err = c.openStorage(); err != nil {
			return nil, err
		}
	}

	c.client = authsdk.NewSDKClient(cfg.ProviderURL,
		authsdk.WithAPIKey(cfg.APIKey),
		authsdk.WithStorage(storage),
		authsdk.WithLogger(c.logger),
		authsdk.WithRefreshBuffer(cfg.RefreshMargin),
		authsdk.WithHTTPClient(&http.Client{
			Timeout:   cfg.HTTPTimeout,
			Transport: &slogx.Transport{Logger: c.logger},
		}),
	)

	core := []authstate.Option{
		authstate.WithLogger(c.logger),
		authstate.WithMessages(c.msgs),
	}
	c.gateway = authstate.NewGoTrueGateway(c.client, c.logger)
	c.store = authstate.NewStore(c.gateway, core...)
	c.ops = authstate.NewOperations(c.gateway, c.store, core...)
	c.enrollment = authstate.NewEnrollment(c.gateway, c.store, core...)

	return c, nil
}

func (c *CLI) openStorage() (authsdk.Storage, error) {
	switch c.cfg.Storage {
	case StorageMemory:
		return tokenstore.NewMemory(), nil
	case StorageRedis:
		rdb := redis.NewClient(&redis.Options{Addr: c.cfg.RedisAddr})
		c.closers = append(c.closers, rdb.Close)
		return tokenstore.NewRedis(rdb, c.cfg.RedisKey), nil
	case StorageFile, "":
		return tokenstore.NewFile(c.cfg.StoragePath), nil
	default:
		return nil, fmt.Errorf("unknown storage %q", c.cfg.Storage)
	}
}

// Close releases the Store subscription and any storage connection.
func (c *CLI) Close() error {
	c.store.Close()
	var errs []error
	for _, fn := range c.closers {
		errs = append(errs, fn())
	}
	return errors.Join(errs...)
}

const usage = `usage: authctl <command> [flags]

commands:
  status                          show the current session
  signin [-email E]               sign in with email and password
  signup [-email E]               create an account
  signout                         end the current session
  forgot-password [-email E]      email a password recovery link
  reset-password -link URL        set a new password from a recovery link
  mfa list                        list verified TOTP factors
  mfa enroll [-name N]            add a TOTP factor
  mfa unenroll -id ID [-yes]      remove a TOTP factor
  watch [-interval D]             keep the session fresh and print changes
`

// Run executes one command and returns the process exit code.
func (c *CLI) Run(ctx context.Context, args []string) int {
	if len(args) == 0 {
		fmt.Fprint(c.errOut, usage)
		return 2
	}

	c.store.Init(ctx)

	var err error
	switch args[0] {
	case "status":
		err = c.cmdStatus(ctx, args[1:])
	case "signin":
		err = c.cmdSignIn(ctx, args[1:])
	case "signup":
		err = c.cmdSignUp(ctx, args[1:])
	case "signout":
		err = c.cmdSignOut(ctx, args[1:])
	case "forgot-password":
		err = c.cmdForgotPassword(ctx, args[1:])
	case "reset-password":
		err = c.cmdResetPassword(ctx, args[1:])
	case "mfa":
		err = c.cmdMFA(ctx, args[1:])
	case "watch":
		err = c.cmdWatch(ctx, args[1:])
	case "help", "-h", "--help":
		fmt.Fprint(c.out, usage)
		return 0
	default:
		fmt.Fprintf(c.errOut, "unknown command %q\n\n%s", args[0], usage)
		return 2
	}

	if err != nil {
		c.report(err)
		return 1
	}
	return 0
}

// report prints the localised message of a core error, or the error text.
func (c *CLI) report(err error) {
	var ae *authstate.Error
	if errors.As(err, &ae) && ae.Message != "" {
		fmt.Fprintln(c.errOut, ae.Message)
		return
	}
	fmt.Fprintln(c.errOut, "error:", err)
}

// submit runs one operation under the guard.
func submit[T any](c *CLI, fn func() authstate.Result[T]) (T, error) {
	release, ok := c.guard.TryAcquire()
	if !ok {
		var zero T
		return zero, authstate.NewError(authstate.KindInvalidState, errors.New("another request is in progress"))
	}
	defer release()
	return fn().Unwrap()
}

func (c *CLI) println(key string) {
	fmt.Fprintln(c.out, c.msgs.Text(key))
}

func (c *CLI) ask(label string) (string, error) {
	v, err := c.prompt(label, false)
	return strings.TrimSpace(v), err
}

func (c *CLI) askSecret(label string) (string, error) {
	return c.prompt(label, true)
}

// terminalPrompter reads secrets without echo when in is a terminal and
// falls back to plain line reads otherwise, so input can be piped.
func terminalPrompter(in *os.File, promptOut io.Writer) Prompter {
	lines := bufio.NewReader(in)
	return func(label string, secret bool) (string, error) {
		fmt.Fprintf(promptOut, "%s: ", label)
		if secret && term.IsTerminal(int(in.Fd())) {
			b, err := term.ReadPassword(int(in.Fd()))
			fmt.Fprintln(promptOut)
			if err != nil {
				return "", fmt.Errorf("failed to read %s: %w", label, err)
			}
			return string(b), nil
		}
		line, err := lines.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return "", fmt.Errorf("failed to read %s: %w", label, err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}
}
