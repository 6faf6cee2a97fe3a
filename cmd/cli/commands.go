package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hamed0406/alarmwatch/internal/client"
	"github.com/hamed0406/alarmwatch/internal/domain"
)

type cli struct {
	api     string
	timeout time.Duration
	out     io.Writer
}

func (c *cli) client() *client.Client { return client.New(c.api, c.timeout) }

func rootCmd(apiBase string, out io.Writer) *cobra.Command {
	c := &cli{api: apiBase, timeout: 10 * time.Second, out: out}
	cmd := &cobra.Command{
		Use:          "alarmctl",
		Short:        "manage alarms and groups",
		SilenceUsage: true,
	}
	cmd.SetOut(out)
	fs := cmd.PersistentFlags()
	fs.StringVar(&c.api, "api", apiBase, "alarm API base URL (env API_BASE)")
	fs.DurationVar(&c.timeout, "timeout", c.timeout, "request timeout")

	cmd.AddCommand(
		listCmd(c),
		addCmd(c),
		doneCmd(c),
		deleteCmd(c),
		groupsCmd(c),
		groupAddCmd(c),
		groupDeleteCmd(c),
	)
	return cmd
}

func listCmd(c *cli) *cobra.Command {
	var group int64
	cmd := &cobra.Command{
		Use:   "list",
		Short: "list alarms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				alarms []domain.Alarm
				err    error
			)
			if group > 0 {
				alarms, err = c.client().GroupAlarms(cmd.Context(), domain.GroupID(group))
			} else {
				alarms, err = c.client().Alarms(cmd.Context())
			}
			if err != nil {
				return err
			}
			printAlarms(c.out, alarms, time.Now())
			return nil
		},
	}
	cmd.Flags().Int64VarP(&group, "group", "g", 0, "only alarms of this group id")
	return cmd
}

func addCmd(c *cli) *cobra.Command {
	var in client.NewAlarm
	var group int64
	cmd := &cobra.Command{
		Use:   "add",
		Short: "add an alarm",
		Long:  `add an alarm; --at takes YYYY-MM-DDTHH:MM in the server's zone, or RFC 3339.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			in.GroupID = domain.GroupID(group)
			if in.GroupID == 0 {
				id, err := generalGroup(ctx, c.client())
				if err != nil {
					return err
				}
				in.GroupID = id
			}
			a, err := c.client().AddAlarm(ctx, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "added alarm %d (%s) at %s\n", a.ID, a.Title, a.AlarmTime.Format(time.RFC3339))
			return nil
		},
	}
	fs := cmd.Flags()
	fs.StringVarP(&in.Title, "title", "t", "", "alarm title")
	fs.StringVarP(&in.Description, "description", "d", "", "notification body")
	fs.StringVar(&in.AlarmTime, "at", "", "alarm time")
	fs.IntVarP(&in.NotifyBeforeMinutes, "before", "b", 0, "minutes of early warning")
	fs.Int64VarP(&group, "group", "g", 0, "group id (default General)")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("at")
	return cmd
}

func doneCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "done <id>",
		Short: "toggle an alarm's done flag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := c.client().ToggleDone(cmd.Context(), domain.AlarmID(id))
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "alarm %d done=%t\n", a.ID, a.IsDone)
			return nil
		},
	}
}

func deleteCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "delete an alarm",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := c.client().DeleteAlarm(cmd.Context(), domain.AlarmID(id)); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "deleted alarm %d\n", id)
			return nil
		},
	}
}

func groupsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "groups",
		Short: "list groups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gs, err := c.client().Groups(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME")
			for _, g := range gs {
				fmt.Fprintf(tw, "%d\t%s\n", g.ID, g.Name)
			}
			return tw.Flush()
		},
	}
}

func groupAddCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "group-add <name>",
		Short: "create a group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := c.client().AddGroup(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "added group %d (%s)\n", g.ID, g.Name)
			return nil
		},
	}
}

func groupDeleteCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "group-delete <id>",
		Short: "delete a group and its alarms",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := c.client().DeleteGroup(cmd.Context(), domain.GroupID(id)); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "deleted group %d\n", id)
			return nil
		},
	}
}

func generalGroup(ctx context.Context, cl *client.Client) (domain.GroupID, error) {
	gs, err := cl.Groups(ctx)
	if err != nil {
		return 0, err
	}
	for _, g := range gs {
		if g.Name == domain.GeneralGroup {
			return g.ID, nil
		}
	}
	return 0, errors.New("no General group on the server")
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func printAlarms(w io.Writer, alarms []domain.Alarm, now time.Time) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tALARM TIME\tBEFORE\tSTATE")
	for _, a := range alarms {
		state := "pending"
		switch {
		case a.IsDone:
			state = "done"
		case a.Due(now):
			state = "due"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%dm\t%s\n",
			a.ID, a.Title, a.AlarmTime.Local().Format("2006-01-02 15:04"), a.NotifyBeforeMinutes, state)
	}
	tw.Flush()
}
