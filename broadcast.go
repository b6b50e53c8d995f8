package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"mailnotify/delivery"
	"mailnotify/notify"
	"mailnotify/queue"
)

const defaultBatchSize = 50

// broadcastSummary is printed once every batch has finished.
type broadcastSummary struct {
	Recipients int             `json:"recipients"`
	Batches    int             `json:"batches"`
	Failed     int             `json:"failed"`
	Results    []notify.Result `json:"results"`
}

func (a *app) broadcastCmd() *cobra.Command {
	var (
		recipientsFile string
		subject        string
		message        string
		messageFile    string
		batchSize      int
	)
	cmd := &cobra.Command{
		Use:   "broadcast",
		Short: "Send one message to a list of recipients",
		Long: `Send one message to every address in the recipients file.

Recipients are read one per line (commas also separate addresses, blank
lines and lines starting with # are skipped) and grouped into batches.
Each batch is a single message and batches are delivered concurrently by
the queue workers.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readText(message, messageFile, cmd.InOrStdin())
			if err != nil {
				return err
			}
			recipients, err := loadRecipients(recipientsFile, cmd.InOrStdin())
			if err != nil {
				return err
			}
			summary := a.broadcast(cmd.Context(), batches(recipients, batchSize), subject, text)
			return printResult(cmd.OutOrStdout(), summary, summary.Failed == 0,
				fmt.Sprintf("%d of %d batches failed", summary.Failed, summary.Batches))
		},
	}
	cmd.Flags().StringVarP(&recipientsFile, "recipients", "r", "", `file with recipient addresses ("-" for stdin)`)
	cmd.Flags().StringVar(&subject, "subject", "", "message subject")
	cmd.Flags().StringVar(&message, "message", "", "message text")
	cmd.Flags().StringVar(&messageFile, "message-file", "", `read the message from a file ("-" for stdin)`)
	cmd.Flags().IntVar(&batchSize, "batch-size", defaultBatchSize, "recipients per message")
	_ = cmd.MarkFlagRequired("recipients")
	_ = cmd.MarkFlagRequired("subject")
	cmd.MarkFlagsMutuallyExclusive("message", "message-file")
	return cmd
}

// broadcast composes one message per batch and runs them through the queue.
// Batches beyond the queue size wait for a free slot rather than being dropped.
func (a *app) broadcast(ctx context.Context, groups [][]string, subject, text string) broadcastSummary {
	summary := broadcastSummary{Batches: len(groups), Results: make([]notify.Result, len(groups))}

	m := queue.NewManager(a.sender, a.cfg.Queue.Workers, a.cfg.Queue.Size, a.log)
	m.Start()

	var mu sync.Mutex
	for i, group := range groups {
		summary.Recipients += len(group)

		msg, err := a.notifier.Composer().Broadcast(group, subject, text)
		if err != nil {
			summary.Results[i] = notify.Result{Error: err.Error()}
			continue
		}

		_, err = m.EnqueueWait(ctx, queue.Job{
			Kind:    "broadcast",
			Message: msg,
			Done: func(job queue.Job, out delivery.Outcome) {
				res := a.notifier.Record(job.Kind, job.Message, out)
				mu.Lock()
				summary.Results[i] = res
				mu.Unlock()
			},
		})
		if err != nil {
			summary.Results[i] = notify.Result{Error: err.Error()}
		}
	}

	if err := m.Stop(ctx); err != nil {
		a.log.Warnw("Broadcast interrupted", "error", err)
	}

	mu.Lock()
	defer mu.Unlock()
	for i, res := range summary.Results {
		if res.Error == "" && res.Receipt == nil {
			summary.Results[i].Error = "not sent"
		}
		if !summary.Results[i].OK() {
			summary.Failed++
		}
	}
	return summary
}

func loadRecipients(path string, stdin io.Reader) ([]string, error) {
	if path == "-" {
		return readRecipients(stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open recipients: %w", err)
	}
	defer f.Close()
	return readRecipients(f)
}

// readRecipients parses addresses separated by newlines or commas, skipping
// blank lines, # comments and duplicates.
func readRecipients(r io.Reader) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		for _, addr := range strings.Split(line, ",") {
			addr = strings.TrimSpace(addr)
			key := strings.ToLower(addr)
			if addr == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, addr)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read recipients: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("read recipients: no addresses")
	}
	return out, nil
}

// batches splits list into groups of at most size entries.
func batches(list []string, size int) [][]string {
	if size < 1 {
		size = defaultBatchSize
	}
	var out [][]string
	for len(list) > size {
		out = append(out, list[:size:size])
		list = list[size:]
	}
	if len(list) > 0 {
		out = append(out, list)
	}
	return out
}
