package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/go-go-golems/scout/pkg/store"
	"github.com/spf13/cobra"
)

func newChatsCommand() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "chats [chat-id]",
		Short: "List stored chats, or the messages of one chat",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings()
			if err != nil {
				return err
			}
			st, err := store.Open(s.Store.Driver, s.Store.DSN)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			ctx := cmd.Context()
			w := cmd.OutOrStdout()

			if len(args) == 0 {
				chats, err := st.ListChats(ctx)
				if err != nil {
					return err
				}
				if output != "text" {
					return printStructured(w, output, chats)
				}
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tCREATED\tTITLE")
				for _, c := range chats {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", c.ID, c.CreatedAt.Local().Format(time.DateTime), c.Title)
				}
				return tw.Flush()
			}

			msgs, err := st.ListMessages(ctx, args[0])
			if err != nil {
				return err
			}
			if output != "text" {
				return printStructured(w, output, msgs)
			}
			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "MESSAGE\tSTATUS\tBLOCKS\tQUERY")
			for _, m := range msgs {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", m.MessageID, m.Status, len(m.Blocks), m.Query)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "text", "text, json or yaml")
	return cmd
}
