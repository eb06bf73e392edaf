package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newProcessCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "process <game-id>",
		Short: "Resolve the current phase now (creator only)",
		Long: `Resolve the current phase immediately instead of waiting for the
deadline. Powers without submitted orders hold.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := newAPIClient().post("/games/"+args[0]+"/process", nil, nil); err != nil {
				return err
			}
			fmt.Println("Phase processed.")
			return nil
		},
	}
}

func newDeadlineCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deadline",
		Short: "Manage phase deadlines",
	}
	cmd.AddCommand(newDeadlineSetCommand())
	return cmd
}

func newDeadlineSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set <game-id> <when>",
		Short: "Set the current phase deadline (creator only)",
		Long: `Set the current phase deadline. <when> is either a duration from
now (for example 48h or 30m) or an absolute RFC 3339 timestamp.

Examples:
  diplomatctl deadline set 4f1c... 48h
  diplomatctl deadline set 4f1c... 2026-09-01T18:00:00Z`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			deadline, err := parseDeadline(args[1])
			if err != nil {
				return err
			}
			body := map[string]string{"deadline": deadline.Format(time.RFC3339)}
			var resp struct {
				Deadline string `json:"deadline"`
			}
			if err := newAPIClient().put("/games/"+args[0]+"/deadline", body, &resp); err != nil {
				return err
			}
			fmt.Printf("Deadline set to %s\n", resp.Deadline)
			return nil
		},
	}
}

func parseDeadline(s string) (time.Time, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return time.Now().Add(d), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is neither a duration nor an RFC 3339 timestamp", s)
	}
	return t, nil
}
