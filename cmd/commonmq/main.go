package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/freundallein/commonmq/chassis/config"
	log "github.com/freundallein/commonmq/chassis/logging"
	"github.com/freundallein/commonmq/chassis/protocol"
	"github.com/freundallein/commonmq/chassis/queue"
)

type options struct {
	configPath      string
	queueURL        string
	badMessageQueue string
	logLevel        string
	timeout         time.Duration
}

// newClient is replaced in tests.
var newClient = queue.New

func (o *options) queueConfig() (queue.Config, error) {
	appCfg := config.Default()
	if o.configPath != "" {
		var err error
		if appCfg, err = config.ReadFile(o.configPath); err != nil {
			return queue.Config{}, err
		}
	}
	cfg := appCfg.QueueConfig()
	if o.queueURL != "" {
		cfg.Queue = o.queueURL
	}
	if o.badMessageQueue != "" {
		cfg.BadMessageQueue = o.badMessageQueue
	}
	return cfg, nil
}

// withClient runs fn against a client built from the flags and closes it afterwards.
func (o *options) withClient(fn func(ctx context.Context, client queue.Client) error) error {
	cfg, err := o.queueConfig()
	if err != nil {
		return err
	}
	client, err := newClient(cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx := context.Background()
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}
	return fn(ctx, client)
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &options{}
	rootCmd := &cobra.Command{
		Use:   "commonmq",
		Short: "Send, receive and acknowledge messages on rsmq, sqs and pg queues",
		Long: `commonmq talks to any supported message queue through one URL:

  rsmq://[host[:port]/]queue
  sqs://region/accountId/queue
  pg://host[:port]/database/queue

SQS needs the receipt of the delivery to extend or delete a message, so for sqs
queues use "receive --delete" or "receive --bad" instead of separate commands.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log.Init("commonmq", opts.logLevel)
		},
	}
	rootCmd.SetOut(out)

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "yaml config file")
	rootCmd.PersistentFlags().StringVarP(&opts.queueURL, "queue", "q", "", "queue URL (default "+queue.DefaultQueue+")")
	rootCmd.PersistentFlags().StringVar(&opts.badMessageQueue, "bad-message-queue", "", "bad message queue URL")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "loglevel", "error", "error|warn|info|debug")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 0, "give up after this long, 0 waits forever")

	rootCmd.AddCommand(sendCmd(opts))
	rootCmd.AddCommand(receiveCmd(opts))
	rootCmd.AddCommand(extendCmd(opts))
	rootCmd.AddCommand(deleteCmd(opts))
	return rootCmd
}

func sendCmd(opts *options) *cobra.Command {
	var method string
	var params map[string]string
	cmd := &cobra.Command{
		Use:   "send [body]",
		Short: "Send a message and print its id",
		Long: `Send a raw body, or with --method a JSON-RPC request the consumer can dispatch:

  commonmq send '{"any":"payload"}'
  commonmq send --method log --param objectID=1`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := messageBody(method, params, args)
			if err != nil {
				return err
			}
			return opts.withClient(func(ctx context.Context, client queue.Client) error {
				id, err := client.Send(ctx, body)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), id)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&method, "method", "", "send a JSON-RPC request calling this method")
	cmd.Flags().StringToStringVar(&params, "param", nil, "request param as key=value, repeatable")
	return cmd
}

func messageBody(method string, params map[string]string, args []string) (string, error) {
	if method == "" {
		if len(params) > 0 {
			return "", errors.New("--param requires --method")
		}
		if len(args) != 1 {
			return "", errors.New("send needs a body or --method")
		}
		return args[0], nil
	}
	if len(args) > 0 {
		return "", errors.New("a body can't be combined with --method")
	}
	if params == nil {
		params = map[string]string{}
	}
	return protocol.NewRequest(method, params).JSON()
}

func receiveCmd(opts *options) *cobra.Command {
	var del, bad bool
	cmd := &cobra.Command{
		Use:   "receive",
		Short: "Wait for a message and print its id and body",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if del && bad {
				return errors.New("--delete and --bad are mutually exclusive")
			}
			return opts.withClient(func(ctx context.Context, client queue.Client) error {
				msg, err := client.Receive(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s\t%s\n", msg.ID, msg.Body)
				switch {
				case del:
					return client.Delete(ctx, msg.ID)
				case bad:
					newID, err := client.BadMessage(ctx, msg.ID, msg.Body)
					if newID != "" {
						fmt.Fprintf(out, "moved to bad message queue as %s\n", newID)
					}
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&del, "delete", false, "delete the message after printing it")
	cmd.Flags().BoolVar(&bad, "bad", false, "move the message to the bad message queue")
	return cmd
}

func extendCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "extend <id> <seconds>",
		Short: "Extend the visibility timeout of a received message",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			seconds, err := strconv.Atoi(args[1])
			if err != nil || seconds < 0 {
				return fmt.Errorf("invalid seconds %q", args[1])
			}
			return opts.withClient(func(ctx context.Context, client queue.Client) error {
				return client.ExtendVisibilityTimeout(ctx, args[0], seconds)
			})
		},
	}
}

func deleteCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withClient(func(ctx context.Context, client queue.Client) error {
				return client.Delete(ctx, args[0])
			})
		},
	}
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}
