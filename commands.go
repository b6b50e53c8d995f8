package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"mailnotify/notify"
)

// printResult writes res as JSON and turns a failed result into an error so
// the process exits non-zero.
func printResult(w io.Writer, res any, ok bool, failure string) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("notification not delivered: %s", failure)
	}
	return nil
}

func (a *app) print(cmd *cobra.Command, res notify.Result) error {
	return printResult(cmd.OutOrStdout(), res, res.OK(), res.Error)
}

func (a *app) welcomeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "welcome EMAIL",
		Short: "Greet a newly registered user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.print(cmd, a.notifier.WelcomeNotice(cmd.Context(), args[0]))
		},
	}
}

func (a *app) otpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "otp EMAIL CODE",
		Short: "Send a one-time verification code",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.print(cmd, a.notifier.OtpNotice(cmd.Context(), args[0], args[1]))
		},
	}
}

func (a *app) resetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset EMAIL",
		Short: "Send the password reset link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.print(cmd, a.notifier.PasswordResetNotice(cmd.Context(), args[0]))
		},
	}
}

func (a *app) adminAlertCmd() *cobra.Command {
	var req notify.AdminAlertRequest
	cmd := &cobra.Command{
		Use:   "admin-alert",
		Short: "Tell the administrator about a pending deposit or withdrawal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.print(cmd, a.notifier.AdminAlert(cmd.Context(), req))
		},
	}
	cmd.Flags().StringVar(&req.UserEmail, "user", "", "email of the user who made the request")
	cmd.Flags().StringVar(&req.Amount, "amount", "", "requested amount")
	cmd.Flags().StringVar(&req.Date, "date", "", "date of the request")
	cmd.Flags().StringVar(&req.Kind, "kind", "withdrawal", "request type (deposit or withdrawal)")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

type transactionNotice func(*notify.Notifier, context.Context, notify.Transaction) notify.Result

func (a *app) transactionCmd(use, short string, notice transactionNotice) *cobra.Command {
	var tx notify.Transaction
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.print(cmd, notice(a.notifier, cmd.Context(), tx))
		},
	}
	cmd.Flags().StringVar(&tx.Email, "email", "", "recipient address")
	cmd.Flags().StringVar(&tx.FullName, "name", "", "full name of the account holder")
	cmd.Flags().StringVar(&tx.Amount, "amount", "", "transaction amount")
	cmd.Flags().StringVar(&tx.Date, "date", "", "transaction date")
	for _, f := range []string{"email", "name", "amount", "date"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

func (a *app) contactCmd() *cobra.Command {
	var (
		req         notify.ContactRequest
		messageFile string
	)
	cmd := &cobra.Command{
		Use:   "contact",
		Short: "Forward a contact-form message to support",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := readText(req.Message, messageFile, cmd.InOrStdin())
			if err != nil {
				return err
			}
			req.Message = msg
			return a.print(cmd, a.notifier.ContactFormNotice(cmd.Context(), req))
		},
	}
	cmd.Flags().StringVar(&req.Name, "name", "", "name of the sender")
	cmd.Flags().StringVar(&req.Email, "email", "", "reply address of the sender")
	cmd.Flags().StringVar(&req.Subject, "subject", "", "message subject")
	cmd.Flags().StringVar(&req.Message, "message", "", "message text")
	cmd.Flags().StringVar(&messageFile, "message-file", "", `read the message from a file ("-" for stdin)`)
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("subject")
	cmd.MarkFlagsMutuallyExclusive("message", "message-file")
	return cmd
}

// readText returns inline unless file is set, in which case the file (or
// stdin for "-") is read instead.
func readText(inline, file string, stdin io.Reader) (string, error) {
	switch file {
	case "":
		return inline, nil
	case "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return strings.TrimRight(string(data), "\r\n"), nil
	default:
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", file, err)
		}
		return strings.TrimRight(string(data), "\r\n"), nil
	}
}
