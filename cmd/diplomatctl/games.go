package main

import (
	"fmt"
	"net/url"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/freeeve/diplomat/internal/model"
)

func newGamesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "games",
		Short: "List and manage games",
	}
	cmd.AddCommand(newGamesListCommand())
	cmd.AddCommand(newGamesCreateCommand())
	cmd.AddCommand(newGamesJoinCommand())
	cmd.AddCommand(newGamesStartCommand())
	return cmd
}

func newGamesListCommand() *cobra.Command {
	var (
		filter string
		search string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List games",
		Long: `List games. By default shows forming games open to join.

Examples:
  diplomatctl games list
  diplomatctl games list --filter my
  diplomatctl games list --filter completed --search western`,
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if filter != "" {
				q.Set("filter", filter)
			}
			if search != "" {
				q.Set("search", search)
			}
			path := "/games"
			if len(q) > 0 {
				path += "?" + q.Encode()
			}

			var games []model.Game
			if err := newAPIClient().get(path, &games); err != nil {
				return err
			}
			if len(games) == 0 {
				fmt.Println("No games found.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tSTATUS\tTURN\tSEASON\tYEAR\tWINNER")
			for _, g := range games {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%d\t%s\n",
					g.ID, g.Name, g.Status, g.Turn, g.Season, g.Year, g.Winner)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&filter, "filter", "", "Filter: my, completed (default open games)")
	cmd.Flags().StringVar(&search, "search", "", "Name search for completed games")
	return cmd
}

func newGamesCreateCommand() *cobra.Command {
	var mapName string

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new game",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]string{"name": args[0]}
			if mapName != "" {
				body["map"] = mapName
			}
			var game model.Game
			if err := newAPIClient().post("/games", body, &game); err != nil {
				return err
			}
			fmt.Println("Game created")
			fmt.Printf("  ID:     %s\n", game.ID)
			fmt.Printf("  Name:   %s\n", game.Name)
			fmt.Printf("  Map:    %s\n", game.MapName)
			fmt.Printf("  Status: %s\n", game.Status)
			return nil
		},
	}

	cmd.Flags().StringVar(&mapName, "map", "", "Map name (default standard)")
	return cmd
}

func newGamesJoinCommand() *cobra.Command {
	var power string

	cmd := &cobra.Command{
		Use:   "join <game-id>",
		Short: "Join a forming game",
		Long: `Join a forming game, claiming a power slot.

Without --power a random vacant power is assigned.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]string{}
			if power != "" {
				body["power"] = power
			}
			var resp struct {
				Status string `json:"status"`
				Power  string `json:"power"`
			}
			if err := newAPIClient().post("/games/"+args[0]+"/join", body, &resp); err != nil {
				return err
			}
			fmt.Printf("Joined as %s\n", resp.Power)
			return nil
		},
	}

	cmd.Flags().StringVar(&power, "power", "", "Power to claim (austria, england, france, germany, italy, russia, turkey)")
	return cmd
}

func newGamesStartCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "start <game-id>",
		Short: "Start a forming game (creator only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var game model.Game
			if err := newAPIClient().post("/games/"+args[0]+"/start", nil, &game); err != nil {
				return err
			}
			fmt.Printf("Game started: %s %d, turn %d\n", game.Season, game.Year, game.Turn)
			for _, gp := range game.Powers {
				seat := gp.UserID
				if seat == "" {
					seat = "(civil disorder)"
				}
				fmt.Printf("  %-8s %s\n", gp.Power, seat)
			}
			return nil
		},
	}
}
