package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	notify "github.com/insider-one/notifications-go-client"
)

func addPersonalisationFlags(cmd *cobra.Command, p *personalisationFlags) {
	cmd.Flags().StringArrayVarP(&p.values, "personalisation", "p", nil, "Placeholder value as key=value (repeatable)")
}

func addAttachmentFlags(cmd *cobra.Command, p *personalisationFlags) {
	cmd.Flags().StringArrayVar(&p.attachments, "attach", nil, "Attach a file as key=path (repeatable)")
	cmd.Flags().BoolVar(&p.confirmEmail, "confirm-email", false, "Require recipients to confirm their email before downloading attachments")
	cmd.Flags().StringVar(&p.retention, "retention", "", "How long attachments stay available, for example \"26 weeks\"")
}

func newSendEmailCommand(ctx *commandContext) *cobra.Command {
	var req notify.EmailRequest
	var p personalisationFlags

	cmd := &cobra.Command{
		Use:   "send-email",
		Short: "Send an email",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			personalisation, err := p.build()
			if err != nil {
				return err
			}
			req.Personalisation = personalisation

			return ctx.withClient(cmd, func(client *notify.Client) error {
				resp, err := client.SendEmail(cmd.Context(), req)
				if err != nil {
					return err
				}
				return ctx.printResult(cmd, resp, func() [][2]string {
					return [][2]string{
						{"ID", resp.ID},
						{"Reference", deref(resp.Reference)},
						{"Template", fmt.Sprintf("%s (v%d)", resp.Template.ID, resp.Template.Version)},
						{"From", resp.Content.FromEmail},
						{"Subject", resp.Content.Subject},
						{"Body", resp.Content.Body},
					}
				})
			})
		},
	}

	cmd.Flags().StringVar(&req.EmailAddress, "to", "", "Recipient email address")
	cmd.Flags().StringVarP(&req.TemplateID, "template", "t", "", "Template ID")
	cmd.Flags().StringVar(&req.Reference, "reference", "", "Reference to identify the notification")
	cmd.Flags().StringVar(&req.EmailReplyToID, "reply-to", "", "Reply-to address ID")
	cmd.Flags().StringVar(&req.OneClickUnsubscribeURL, "unsubscribe-url", "", "One-click unsubscribe URL")
	addPersonalisationFlags(cmd, &p)
	addAttachmentFlags(cmd, &p)
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("template")
	return cmd
}

func newSendSMSCommand(ctx *commandContext) *cobra.Command {
	var req notify.SMSRequest
	var p personalisationFlags

	cmd := &cobra.Command{
		Use:   "send-sms",
		Short: "Send a text message",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			personalisation, err := p.build()
			if err != nil {
				return err
			}
			req.Personalisation = personalisation

			return ctx.withClient(cmd, func(client *notify.Client) error {
				resp, err := client.SendSMS(cmd.Context(), req)
				if err != nil {
					return err
				}
				return ctx.printResult(cmd, resp, func() [][2]string {
					return [][2]string{
						{"ID", resp.ID},
						{"Reference", deref(resp.Reference)},
						{"Template", fmt.Sprintf("%s (v%d)", resp.Template.ID, resp.Template.Version)},
						{"From", resp.Content.FromNumber},
						{"Body", resp.Content.Body},
					}
				})
			})
		},
	}

	cmd.Flags().StringVar(&req.PhoneNumber, "to", "", "Recipient phone number")
	cmd.Flags().StringVarP(&req.TemplateID, "template", "t", "", "Template ID")
	cmd.Flags().StringVar(&req.Reference, "reference", "", "Reference to identify the notification")
	cmd.Flags().StringVar(&req.SMSSenderID, "sender", "", "SMS sender ID")
	addPersonalisationFlags(cmd, &p)
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("template")
	return cmd
}

func newSendLetterCommand(ctx *commandContext) *cobra.Command {
	var req notify.LetterRequest
	var p personalisationFlags

	cmd := &cobra.Command{
		Use:   "send-letter",
		Short: "Send a letter",
		Long: "Send a letter from a template. The address is given as personalisation:\n" +
			"  -p address_line_1=\"A Person\" -p address_line_2=\"1 High Street\" -p address_line_3=\"SW1A 1AA\"",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			personalisation, err := p.build()
			if err != nil {
				return err
			}
			req.Personalisation = personalisation

			return ctx.withClient(cmd, func(client *notify.Client) error {
				resp, err := client.SendLetter(cmd.Context(), req)
				if err != nil {
					return err
				}
				return ctx.printResult(cmd, resp, func() [][2]string {
					return [][2]string{
						{"ID", resp.ID},
						{"Reference", deref(resp.Reference)},
						{"Template", fmt.Sprintf("%s (v%d)", resp.Template.ID, resp.Template.Version)},
						{"Subject", resp.Content.Subject},
						{"Body", resp.Content.Body},
					}
				})
			})
		},
	}

	cmd.Flags().StringVarP(&req.TemplateID, "template", "t", "", "Template ID")
	cmd.Flags().StringVar(&req.Reference, "reference", "", "Reference to identify the notification")
	addPersonalisationFlags(cmd, &p)
	_ = cmd.MarkFlagRequired("template")
	return cmd
}

func newSendPrecompiledLetterCommand(ctx *commandContext) *cobra.Command {
	var reference string
	var postage string

	cmd := &cobra.Command{
		Use:   "send-precompiled-letter <file.pdf>",
		Short: "Send a letter from a PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pdf, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read letter: %w", err)
			}

			return ctx.withClient(cmd, func(client *notify.Client) error {
				resp, err := client.SendPrecompiledLetter(cmd.Context(), reference, pdf, postage)
				if err != nil {
					return err
				}
				return ctx.printResult(cmd, resp, func() [][2]string {
					return [][2]string{
						{"ID", resp.ID},
						{"Reference", resp.Reference},
						{"Postage", resp.Postage},
					}
				})
			})
		},
	}

	cmd.Flags().StringVar(&reference, "reference", "", "Reference to identify the letter")
	cmd.Flags().StringVar(&postage, "postage", "", "first, second, economy, europe or rest-of-world")
	_ = cmd.MarkFlagRequired("reference")
	return cmd
}
