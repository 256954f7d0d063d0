package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	notify "github.com/insider-one/notifications-go-client"
)

func newTemplateCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Inspect and preview templates",
	}
	cmd.AddCommand(newTemplateGetCommand(ctx))
	cmd.AddCommand(newTemplateListCommand(ctx))
	cmd.AddCommand(newTemplatePreviewCommand(ctx))
	return cmd
}

func templateFields(t *notify.Template) [][2]string {
	return [][2]string{
		{"ID", t.ID},
		{"Name", t.Name},
		{"Type", t.Type},
		{"Version", strconv.Itoa(t.Version)},
		{"Subject", deref(t.Subject)},
		{"Body", t.Body},
		{"Placeholders", strings.Join(t.Placeholders(), ", ")},
		{"Created by", t.CreatedBy},
		{"Created", formatTime(&t.CreatedAt)},
		{"Updated", formatTime(t.UpdatedAt)},
	}
}

func newTemplateGetCommand(ctx *commandContext) *cobra.Command {
	var version int

	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(cmd, func(client *notify.Client) error {
				var (
					t   *notify.Template
					err error
				)
				if version > 0 {
					t, err = client.GetTemplateVersion(cmd.Context(), args[0], version)
				} else {
					t, err = client.GetTemplate(cmd.Context(), args[0])
				}
				if err != nil {
					return err
				}
				return ctx.printResult(cmd, t, func() [][2]string {
					return templateFields(t)
				})
			})
		},
	}

	cmd.Flags().IntVar(&version, "version", 0, "Template version (default latest)")
	return cmd
}

func newTemplateListCommand(ctx *commandContext) *cobra.Command {
	var templateType string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(cmd, func(client *notify.Client) error {
				templates, err := client.GetAllTemplates(cmd.Context(), templateType)
				if err != nil {
					return err
				}

				if ctx.jsonOutput() {
					return writeJSON(cmd, templates)
				}
				if len(templates) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No templates")
					return nil
				}

				rows := make([][]string, 0, len(templates))
				for _, t := range templates {
					rows = append(rows, []string{t.ID, t.Name, t.Type, strconv.Itoa(t.Version)})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Name", "Type", "Version"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&templateType, "type", "", "Only email, sms or letter")
	return cmd
}

func newTemplatePreviewCommand(ctx *commandContext) *cobra.Command {
	var p personalisationFlags

	cmd := &cobra.Command{
		Use:   "preview <id>",
		Short: "Render a template with personalisation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			personalisation, err := p.build()
			if err != nil {
				return err
			}

			return ctx.withClient(cmd, func(client *notify.Client) error {
				preview, err := client.PostTemplatePreview(cmd.Context(), args[0], personalisation)
				if err != nil {
					return err
				}
				return ctx.printResult(cmd, preview, func() [][2]string {
					return [][2]string{
						{"ID", preview.ID},
						{"Type", preview.Type},
						{"Version", strconv.Itoa(preview.Version)},
						{"Subject", deref(preview.Subject)},
						{"Body", preview.Body},
					}
				})
			})
		},
	}

	addPersonalisationFlags(cmd, &p)
	return cmd
}
