// Command chatctl drives a chat from the terminal: send and watch messages,
// issue and revoke auth keys, and tail the push queue.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Goden-Gun/chat-bindings/pkg/bootstrap"
	"github.com/Goden-Gun/chat-bindings/pkg/codes"
	"github.com/Goden-Gun/chat-bindings/pkg/config"
	"github.com/Goden-Gun/chat-bindings/pkg/engine"
	log "github.com/Goden-Gun/chat-bindings/pkg/logger"
)

const service = "chatctl"

type app struct {
	configPath string
	userID     string
	cfg        config.Config
	shutdown   bootstrap.ShutdownFunc
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		if code, ok := codes.Of(err); ok {
			fmt.Fprintf(os.Stderr, "%s (%d): %v\n", code.Symbol, code.Numeric, err)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           service,
		Short:         "Chat command line client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if a.shutdown == nil {
				return nil
			}
			return a.shutdown(context.WithoutCancel(cmd.Context()))
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "./configs", "directory holding config_<APP_ENV>.yaml")
	root.PersistentFlags().StringVar(&a.userID, "user", "", "act as this user id")

	root.AddCommand(
		newSendCommand(a),
		newListenCommand(a),
		newHistoryCommand(a),
		newTokenCommand(a),
		newPushesCommand(a),
	)
	return root
}

func (a *app) setup(ctx context.Context) error {
	if err := config.LoadConfigWithSecrets(&a.cfg, a.cfg.Secrets(), config.LoadOptions{
		ConfigPath:    a.configPath,
		EnvPrefix:     "CHAT",
		AllowNoConfig: true,
	}); err != nil {
		return err
	}
	if a.userID != "" {
		a.cfg.Chat.UserID = a.userID
	}
	a.cfg.ApplyDefaults()
	if err := bootstrap.InitLogger(a.cfg.Log, a.cfg.LogFile, service); err != nil {
		return err
	}
	shutdown, err := bootstrap.InitTracing(ctx, a.cfg.Tracing)
	if err != nil {
		log.Component(service).WithError(err).Warn("tracing disabled")
		shutdown = nil
	}
	a.shutdown = shutdown
	return nil
}

func (a *app) runtime(ctx context.Context) (*bootstrap.Runtime, error) {
	if a.cfg.Chat.UserID == "" {
		return nil, errors.New("no user id: pass --user or set chat.user_id")
	}
	return bootstrap.NewRuntime(ctx, &a.cfg)
}

// channelType maps the --type flag.
func channelType(name string) (engine.ChannelType, error) {
	switch t := engine.ChannelType(name); t {
	case engine.ChannelGroup, engine.ChannelPublic, engine.ChannelDirect:
		return t, nil
	default:
		return "", fmt.Errorf("unknown channel type %q", name)
	}
}
