package main

import (
	"fmt"
	"strings"

	"github.com/andrelcunha/ottermock/pkg/amqp"
	"github.com/andrelcunha/ottermock/pkg/routing"
	amqp091 "github.com/rabbitmq/amqp091-go"
	"github.com/spf13/cobra"
)

// bindingTarget stands in for the queue a binding would deliver to.
type bindingTarget string

func (b bindingTarget) Name() string                             { return string(b) }
func (b bindingTarget) DestinationKind() routing.DestinationKind { return routing.QueueDestination }

type matchOptions struct {
	kind     string
	bindings []string
	key      string
	headers  map[string]string
	args     map[string]string
}

func newMatchCommand() *cobra.Command {
	opts := &matchOptions{}
	cmd := &cobra.Command{
		Use:   "match",
		Short: "Check which bindings a routing key or header set would match",
		Example: `  ottermock match --kind topic --binding 'orders.*.created' --key orders.eu.created
  ottermock match --kind headers --arg x-match=any --arg format=pdf --header format=pdf`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMatch(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.kind, "kind", "direct", "exchange kind: direct, fanout, topic or headers")
	cmd.Flags().StringArrayVar(&opts.bindings, "binding", nil, "binding key (repeatable)")
	cmd.Flags().StringVar(&opts.key, "key", "", "routing key of the published message")
	cmd.Flags().StringToStringVar(&opts.headers, "header", nil, "message header key=value (repeatable)")
	cmd.Flags().StringToStringVar(&opts.args, "arg", nil, "binding argument key=value for headers exchanges (repeatable)")
	return cmd
}

func runMatch(cmd *cobra.Command, opts *matchOptions) error {
	kind, err := amqp.ParseExchangeKind(opts.kind)
	if err != nil {
		return err
	}
	router, err := routing.NewRouter(kind)
	if err != nil {
		return err
	}

	bindings := opts.bindings
	if len(bindings) == 0 {
		// headers and fanout exchanges ignore the key
		bindings = []string{""}
	}
	args := toTable(opts.args)
	if kind == amqp.HEADERS && !routing.ValidMatchMode(args) {
		return fmt.Errorf("invalid x-match value %q", opts.args[amqp.ARG_X_MATCH])
	}

	out := cmd.OutOrStdout()
	matched := 0
	for _, key := range bindings {
		table := routing.NewTable()
		table.Add(key, bindingTarget(key), args)
		hit := len(router.Route(table, opts.key, toTable(opts.headers))) > 0
		if hit {
			matched++
		}
		fmt.Fprintf(out, "%-8s %s\n", verdict(hit), describe(kind, key))
	}
	fmt.Fprintf(out, "%d of %d binding(s) matched\n", matched, len(bindings))
	return nil
}

func verdict(hit bool) string {
	if hit {
		return "match"
	}
	return "no-match"
}

func describe(kind amqp.ExchangeKind, key string) string {
	if kind == amqp.HEADERS || kind == amqp.FANOUT {
		return fmt.Sprintf("%s binding", kind)
	}
	return fmt.Sprintf("%s binding %q", kind, key)
}

func toTable(m map[string]string) amqp091.Table {
	if len(m) == 0 {
		return nil
	}
	t := make(amqp091.Table, len(m))
	for k, v := range m {
		t[strings.TrimSpace(k)] = v
	}
	return t
}
