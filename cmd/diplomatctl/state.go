package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/freeeve/diplomat/internal/service"
	"github.com/freeeve/diplomat/pkg/diplomacy"
)

func newStateCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "state <game-id>",
		Short: "Show the current board state of a game",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var view service.StateView
			if err := newAPIClient().get("/games/"+args[0]+"/state", &view); err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(view)
			}
			return printState(view)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw state view as JSON")
	return cmd
}

func printState(view service.StateView) error {
	fmt.Printf("Game:   %s (%s)\n", view.GameID, view.Status)
	if view.Winner != "" {
		fmt.Printf("Winner: %s\n", view.Winner)
	}
	if view.Turn > 0 {
		fmt.Printf("Turn:   %d, %s %d, %s phase\n", view.Turn, view.Season, view.Year, view.Phase)
	}
	if view.Deadline != nil {
		remaining := time.Until(*view.Deadline).Round(time.Minute)
		fmt.Printf("Deadline: %s (%s remaining)\n", view.Deadline.Format(time.RFC3339), remaining)
	}
	if len(view.OrdersSubmitted) > 0 {
		fmt.Printf("Orders in: %s\n", strings.Join(view.OrdersSubmitted, ", "))
	}
	if len(view.ReadyPowers) > 0 {
		fmt.Printf("Ready:     %s\n", strings.Join(view.ReadyPowers, ", "))
	}
	if len(view.State) == 0 {
		return nil
	}

	var st diplomacy.State
	if err := json.Unmarshal(view.State, &st); err != nil {
		return fmt.Errorf("decoding board state: %w", err)
	}

	centers := make(map[diplomacy.Power]int)
	for _, p := range st.SupplyCenters {
		centers[p]++
	}

	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "POWER\tCENTERS\tUNITS")
	for _, p := range diplomacy.AllPowers() {
		var units []string
		for _, u := range st.Units {
			if u.Power != p {
				continue
			}
			loc := u.Province
			if u.Coast != "" {
				loc += "/" + string(u.Coast)
			}
			units = append(units, u.Kind.Letter()+" "+loc)
		}
		sort.Strings(units)
		fmt.Fprintf(w, "%s\t%d\t%s\n", p, centers[p], strings.Join(units, ", "))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if len(st.Dislodged) > 0 {
		fmt.Println("\nDislodged (must retreat or disband):")
		for _, d := range st.Dislodged {
			fmt.Printf("  %s %s %s (attacked from %s)\n",
				d.Unit.Power, d.Unit.Kind.Letter(), d.Unit.Province, d.AttackerOrigin)
		}
	}
	return nil
}
