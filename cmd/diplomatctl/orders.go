package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/freeeve/diplomat/internal/model"
	"github.com/freeeve/diplomat/internal/service"
)

func newOrdersCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Submit and inspect orders for the current phase",
	}
	cmd.AddCommand(newOrdersSubmitCommand())
	cmd.AddCommand(newOrdersListCommand())
	cmd.AddCommand(newOrdersClearCommand())
	cmd.AddCommand(newOrdersReadyCommand())
	return cmd
}

func newOrdersSubmitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "submit <game-id> [file]",
		Short: "Submit orders from a file or stdin",
		Long: `Submit orders for your power in the current phase. Orders are read
from the given file, or from stdin when no file is given. One order per
line, in standard notation:

  A par - bur
  A mar S A par - bur
  F bre - mao

Resubmitting replaces earlier orders for the same units.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				text []byte
				err  error
			)
			if len(args) == 2 {
				text, err = os.ReadFile(args[1])
			} else {
				text, err = io.ReadAll(os.Stdin)
			}
			if err != nil {
				return err
			}

			var resp struct {
				Receipts []service.Receipt `json:"receipts"`
			}
			body := map[string]string{"orders": string(text)}
			if err := newAPIClient().post("/games/"+args[0]+"/orders", body, &resp); err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ORDER\tACCEPTED\tREASON")
			for _, rc := range resp.Receipts {
				mark := "yes"
				if !rc.Accepted {
					mark = "no"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", rc.Order, mark, rc.Reason)
			}
			return w.Flush()
		},
	}
}

func newOrdersListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list <game-id>",
		Short: "List your submitted orders for the current phase",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var orders []model.Order
			if err := newAPIClient().get("/games/"+args[0]+"/orders", &orders); err != nil {
				return err
			}
			if len(orders) == 0 {
				fmt.Println("No orders submitted.")
				return nil
			}
			for _, o := range orders {
				fmt.Println(o.Text)
			}
			return nil
		},
	}
}

func newOrdersClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear <game-id>",
		Short: "Clear your submitted orders for the current phase",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newAPIClient()
			if err := c.do(http.MethodDelete, "/games/"+args[0]+"/orders", nil, nil); err != nil {
				return err
			}
			fmt.Println("Orders cleared.")
			return nil
		},
	}
}

func newOrdersReadyCommand() *cobra.Command {
	var unmark bool

	cmd := &cobra.Command{
		Use:   "ready <game-id>",
		Short: "Mark yourself ready (resolves early once all powers are ready)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newAPIClient()
			if unmark {
				if err := c.do(http.MethodDelete, "/games/"+args[0]+"/orders/ready", nil, nil); err != nil {
					return err
				}
				fmt.Println("Ready mark removed.")
				return nil
			}
			var resp struct {
				ReadyCount  int  `json:"ready_count"`
				TotalPowers int  `json:"total_powers"`
				AllReady    bool `json:"all_ready"`
			}
			if err := c.post("/games/"+args[0]+"/orders/ready", nil, &resp); err != nil {
				return err
			}
			if resp.AllReady {
				fmt.Println("All powers ready, phase resolving.")
			} else {
				fmt.Printf("Ready (%d/%d powers).\n", resp.ReadyCount, resp.TotalPowers)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&unmark, "undo", false, "Remove your ready mark instead")
	return cmd
}
