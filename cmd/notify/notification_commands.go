package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	notify "github.com/insider-one/notifications-go-client"
)

func newNotificationCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notification",
		Short: "Inspect sent notifications",
	}
	cmd.AddCommand(newNotificationGetCommand(ctx))
	cmd.AddCommand(newNotificationListCommand(ctx))
	cmd.AddCommand(newNotificationPDFCommand(ctx))
	return cmd
}

func newNotificationGetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a notification and its status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(cmd, func(client *notify.Client) error {
				n, err := client.GetNotificationByID(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return ctx.printResult(cmd, n, func() [][2]string {
					return [][2]string{
						{"ID", n.ID},
						{"Type", n.Type},
						{"Status", n.Status},
						{"Recipient", n.Recipient()},
						{"Reference", deref(n.Reference)},
						{"Template", fmt.Sprintf("%s (v%d)", n.Template.ID, n.Template.Version)},
						{"Subject", deref(n.Subject)},
						{"Body", n.Body},
						{"Postage", deref(n.Postage)},
						{"Created", formatTime(&n.CreatedAt)},
						{"Sent", formatTime(n.SentAt)},
						{"Completed", formatTime(n.CompletedAt)},
					}
				})
			})
		},
	}
}

func newNotificationListCommand(ctx *commandContext) *cobra.Command {
	var filter notify.NotificationFilter
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List notifications, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(cmd, func(client *notify.Client) error {
				notifications := make([]notify.Notification, 0)
				for n, err := range client.AllNotifications(cmd.Context(), filter) {
					if err != nil {
						return err
					}
					notifications = append(notifications, n)
					if limit > 0 && len(notifications) >= limit {
						break
					}
				}

				if ctx.jsonOutput() {
					return writeJSON(cmd, notifications)
				}
				if len(notifications) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No notifications")
					return nil
				}

				rows := make([][]string, 0, len(notifications))
				for _, n := range notifications {
					rows = append(rows, []string{
						n.ID,
						n.Type,
						n.Status,
						n.Recipient(),
						deref(n.Reference),
						formatTime(&n.CreatedAt),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Type", "Status", "Recipient", "Reference", "Created"},
					rows, nil,
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&filter.Status, "status", "", "Only notifications with this status")
	cmd.Flags().StringVar(&filter.TemplateType, "type", "", "Only email, sms or letter")
	cmd.Flags().StringVar(&filter.Reference, "reference", "", "Only notifications with this reference")
	cmd.Flags().StringVar(&filter.OlderThan, "older-than", "", "Start after this notification ID")
	cmd.Flags().BoolVar(&filter.IncludeJobs, "include-jobs", false, "Include notifications sent from CSV uploads")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum notifications to list (0 for all)")
	return cmd
}

func newNotificationPDFCommand(ctx *commandContext) *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "pdf <id>",
		Short: "Download the PDF of a letter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if outPath == "" {
				outPath = args[0] + ".pdf"
			}
			return ctx.withClient(cmd, func(client *notify.Client) error {
				pdf, err := client.GetPDFForLetter(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if outPath == "-" {
					_, err := cmd.OutOrStdout().Write(pdf)
					return err
				}
				if err := os.WriteFile(outPath, pdf, 0o644); err != nil {
					return fmt.Errorf("write pdf: %w", err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d bytes to %s\n", len(pdf), outPath)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&outPath, "file", "f", "", "Output file (default <id>.pdf, - for stdout)")
	return cmd
}
