package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"wellness-chat/internal/app"
	"wellness-chat/internal/config"
	"wellness-chat/internal/core"
	"wellness-chat/internal/identity"
	"wellness-chat/internal/logging"
	"wellness-chat/internal/transport"
)

// rootOptions holds the persistent flags.
type rootOptions struct {
	configPath   string
	serverURL    string
	identityPath string
	local        bool
}

// backend is what a session needs from its transport.
type backend interface {
	core.SessionStore
	core.Completer
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the Ayurvedic wellness assistant",
		Long: `Chat with the Ayurvedic wellness assistant from your terminal.

Your conversation is kept on the server and resumes where you left it.
Type /end to close the session and erase it, /retry to re-send messages
that could not be saved, or /quit to leave without ending the session.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), opts)
		},
	}

	f := root.PersistentFlags()
	f.StringVarP(&opts.configPath, "config", "c", os.Getenv("CHAT_CONFIG"), "path to config.yaml")
	f.StringVar(&opts.serverURL, "server", "", "chat server URL (overrides chat.server_url)")
	f.StringVar(&opts.identityPath, "identity", "", "file holding this device's session id")
	f.BoolVar(&opts.local, "local", false, "use the configured database and model directly instead of a server")

	root.AddCommand(
		&cobra.Command{
			Use:   "chat",
			Short: "Start or resume the conversation (default)",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runChat(cmd.Context(), opts)
			},
		},
		&cobra.Command{
			Use:   "end",
			Short: "End the stored session and erase it from the server",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runEnd(cmd.Context(), opts)
			},
		},
		&cobra.Command{
			Use:   "whoami",
			Short: "Print this device's session id",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runWhoami(cmd.OutOrStdout(), opts)
			},
		},
	)
	return root
}

// session bundles a started-or-startable controller with its cleanup.
type session struct {
	ctrl    *core.Controller
	log     *zap.Logger
	closers []func() error
}

func (s *session) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			s.log.Warn("close failed", zap.Error(err))
		}
	}
	_ = s.log.Sync()
}

// openSession loads config and wires identity, transport and controller.
func openSession(ctx context.Context, opts *rootOptions) (*session, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return nil, err
	}
	s := &session{log: log}

	kv, err := identity.OpenBoltKV(identityPath(cfg, opts))
	if err != nil {
		s.Close()
		return nil, err
	}
	s.closers = append(s.closers, kv.Close)

	var be backend
	if opts.local {
		b, err := app.Open(ctx, cfg, log)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.closers = append(s.closers, b.Close)
		be = b.Direct
	} else {
		url := cfg.Chat.ServerURL
		if opts.serverURL != "" {
			url = opts.serverURL
		}
		// The controller bounds completions itself; leave headroom for
		// the round trip.
		be = transport.NewClient(url, cfg.Completion.Timeout+10*time.Second)
	}

	s.ctrl = core.NewController(identity.NewStore(kv), be, be, core.Options{
		MaxTurns:          cfg.Chat.MaxTurns,
		CompletionTimeout: cfg.Completion.Timeout,
		Reporter:          core.NewZapReporter(log),
	})
	return s, nil
}

func identityPath(cfg *config.Config, opts *rootOptions) string {
	if opts.identityPath != "" {
		return opts.identityPath
	}
	return cfg.Chat.IdentityPath
}

func runChat(ctx context.Context, opts *rootOptions) error {
	s, err := openSession(ctx, opts)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.ctrl.Start(ctx); err != nil {
		return err
	}
	return newREPL(s.ctrl, os.Stdin, os.Stdout).Run(ctx)
}

func runEnd(ctx context.Context, opts *rootOptions) error {
	s, err := openSession(ctx, opts)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.ctrl.Start(ctx); err != nil {
		return err
	}
	res, err := s.ctrl.Terminate(ctx)
	if res != nil {
		printNotice(os.Stdout, res.Purged, res.Notice)
	}
	return err
}

func runWhoami(out io.Writer, opts *rootOptions) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	kv, err := identity.OpenBoltKV(identityPath(cfg, opts))
	if err != nil {
		return err
	}
	defer kv.Close()

	id, err := identity.NewStore(kv).Resolve()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, id)
	return err
}
