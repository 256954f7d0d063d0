package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	notify "github.com/insider-one/notifications-go-client"
)

func newReceivedTextsCommand(ctx *commandContext) *cobra.Command {
	var olderThan string
	var all bool

	cmd := &cobra.Command{
		Use:   "received-texts",
		Short: "List text messages sent to the service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(cmd, func(client *notify.Client) error {
				texts := make([]notify.ReceivedText, 0)
				if all {
					for rt, err := range client.AllReceivedTexts(cmd.Context()) {
						if err != nil {
							return err
						}
						texts = append(texts, rt)
					}
				} else {
					page, err := client.GetReceivedTexts(cmd.Context(), olderThan)
					if err != nil {
						return err
					}
					texts = append(texts, page.ReceivedTexts...)
				}

				if ctx.jsonOutput() {
					return writeJSON(cmd, texts)
				}
				if len(texts) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No received texts")
					return nil
				}

				rows := make([][]string, 0, len(texts))
				for _, rt := range texts {
					rows = append(rows, []string{rt.ID, rt.UserNumber, rt.NotifyNumber, rt.Content, formatTime(&rt.CreatedAt)})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "From", "To", "Message", "Received"},
					rows, nil,
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&olderThan, "older-than", "", "Start after this message ID")
	cmd.Flags().BoolVar(&all, "all", false, "Fetch every page")
	return cmd
}

func newPrepareUploadCommand(ctx *commandContext) *cobra.Command {
	var filename string
	var confirmEmail bool
	var retention string

	cmd := &cobra.Command{
		Use:   "prepare-upload <file>",
		Short: "Print the personalisation value that attaches a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			opts := []notify.UploadOption{}
			if filename != "" {
				opts = append(opts, notify.WithFilename(filename))
			}
			if cmd.Flags().Changed("confirm-email") {
				opts = append(opts, notify.WithConfirmEmailBeforeDownload(confirmEmail))
			}
			if retention != "" {
				opts = append(opts, notify.WithRetentionPeriod(retention))
			}

			doc, err := notify.PrepareUploadFrom(f, opts...)
			if err != nil {
				return err
			}
			return writeJSON(cmd, doc)
		},
	}

	cmd.Flags().StringVar(&filename, "filename", "", "Filename shown to the recipient")
	cmd.Flags().BoolVar(&confirmEmail, "confirm-email", false, "Require the recipient to confirm their email address")
	cmd.Flags().StringVar(&retention, "retention", "", "How long the file stays available, for example \"52 weeks\"")
	return cmd
}

func newVersionCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the client version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if ctx.jsonOutput() {
				return writeJSON(cmd, map[string]string{"version": notify.Version})
			}
			fmt.Fprintln(cmd.OutOrStdout(), notify.Version)
			return nil
		},
	}
}
