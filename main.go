package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mailnotify/delivery"
	"mailnotify/health"
	"mailnotify/internal/audit"
	"mailnotify/internal/config"
	"mailnotify/internal/dkim"
	"mailnotify/notify"
	"mailnotify/storage"
	"mailnotify/tlsconfig"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := execute(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		stop()
		os.Exit(1)
	}
}

// app holds everything a subcommand needs once configuration is loaded.
type app struct {
	cfgFile     string
	envFiles    []string
	metricsAddr string

	cfg      *config.Config
	log      *zap.SugaredLogger
	sender   *delivery.RetryingSender
	notifier *notify.Notifier
	health   *http.Server
}

// execute runs the command line in args. Whatever setup acquired is released
// afterwards, including when the command fails.
func execute(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	a := &app{}
	root := a.rootCmd(stdout, stderr)
	root.SetIn(stdin)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	return errors.Join(err, a.close())
}

func (a *app) rootCmd(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:   "mailnotify",
		Short: "Send transactional notification emails",
		Long: `mailnotify composes the transactional emails of the platform
(welcome, verification codes, password resets, admin alerts, deposit and
withdrawal confirmations, broadcasts and contact-form messages) and delivers
them over SMTP, retrying failed attempts.

Configuration is read from defaults, an optional YAML file and the
environment (a .env file is loaded when present).

Example:
  mailnotify welcome user@example.com
  mailnotify otp user@example.com 482913
  mailnotify broadcast --recipients users.txt --subject "News" --message-file news.txt`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd.ErrOrStderr())
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "YAML configuration file")
	root.PersistentFlags().StringSliceVar(&a.envFiles, "env-file", []string{".env"}, "dotenv files to load")
	root.PersistentFlags().StringVar(&a.metricsAddr, "metrics-addr", "", "serve /healthz and /metrics on this address")

	root.AddCommand(
		a.welcomeCmd(),
		a.otpCmd(),
		a.resetCmd(),
		a.adminAlertCmd(),
		a.transactionCmd("deposit", "Confirm a successful deposit", (*notify.Notifier).DepositNotice),
		a.transactionCmd("withdrawal", "Confirm a successful withdrawal", (*notify.Notifier).WithdrawalNotice),
		a.contactCmd(),
		a.broadcastCmd(),
	)
	return root
}

// setup loads configuration and wires the delivery pipeline.
func (a *app) setup(logOut io.Writer) error {
	if err := config.LoadDotEnv(a.envFiles...); err != nil {
		return fmt.Errorf("load env: %w", err)
	}
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	audit.Set(cfg.Debug)
	a.cfg = cfg
	a.log = audit.NewLogger(logOut)

	transport, err := buildTransport(cfg, a.log)
	if err != nil {
		return err
	}
	a.sender = delivery.NewRetryingSender(transport, delivery.RetryPolicy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		Backoff:     cfg.Retry.Backoff,
	}, a.log)
	policy := a.sender.Policy()
	a.log.Infow("Delivery configured",
		"transport", transport.Name(),
		"maxAttempts", policy.Attempts(),
		"backoff", policy.Backoff,
		"debug", audit.Enabled(),
	)

	composer, err := notify.NewComposer(notify.SettingsFromConfig(cfg.Sender))
	if err != nil {
		return err
	}
	spool := storage.NewSpool(cfg.SpoolDir)
	a.notifier = notify.NewNotifier(composer, a.sender, a.log, notify.WithDeadLetter(spool))

	if a.metricsAddr != "" {
		srv, ln, err := health.StartHealthServer(a.metricsAddr)
		if err != nil {
			return err
		}
		a.health = srv
		a.log.Infow("Serving health and metrics", "addr", ln.Addr().String())
	}
	return nil
}

func (a *app) close() error {
	var errs []error
	if a.health != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		errs = append(errs, a.health.Shutdown(ctx))
		a.health = nil
	}
	if a.log != nil {
		// Sync fails on terminals; nothing useful to report.
		_ = a.log.Sync()
	}
	return errors.Join(errs...)
}

// buildTransport selects the transport named in the configuration.
func buildTransport(cfg *config.Config, log *zap.SugaredLogger) (delivery.Transport, error) {
	var signer delivery.Signer
	s, err := dkim.New(cfg.DKIM)
	if err != nil {
		return nil, err
	}
	if s != nil {
		signer = s
		log.Infow("DKIM signing enabled", "selector", s.Selector(), "domain", s.Domain())
	}

	switch cfg.Transport {
	case config.TransportLog:
		return delivery.NewLogTransport(log), nil
	case config.TransportDirect:
		tlsFor := func(host string) (*tls.Config, error) {
			return tlsconfig.Client(host, cfg.SMTP.InsecureSkipVerify, cfg.SMTP.CAFile)
		}
		return delivery.NewDirectTransport(cfg.Hostname, tlsFor, signer, log), nil
	default:
		tlsConf, err := tlsconfig.Client(cfg.SMTP.Host, cfg.SMTP.InsecureSkipVerify, cfg.SMTP.CAFile)
		if err != nil {
			return nil, err
		}
		return delivery.NewRelayTransport(delivery.RelayConfig{
			Host:      cfg.SMTP.Host,
			Port:      cfg.SMTP.Port,
			Username:  cfg.SMTP.Username,
			Password:  cfg.SMTP.Password,
			LocalName: cfg.Hostname,
		}, tlsConf, signer, log), nil
	}
}
