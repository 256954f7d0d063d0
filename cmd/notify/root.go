package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	ctx := newCommandContext()

	rootCmd := &cobra.Command{
		Use:           "notify",
		Short:         "Command line client for the GOV.UK Notify API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return ctx.validateOutput()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&ctx.apiKey, "api-key", "", "API key (defaults to $NOTIFY_API_KEY)")
	flags.StringVar(&ctx.baseURL, "base-url", "", "API base URL (defaults to $NOTIFY_BASE_URL or the production API)")
	flags.StringVarP(&ctx.output, "output", "o", outputTable, "Output format: table or json")
	flags.DurationVar(&ctx.timeout, "timeout", 0, "Request timeout (0 uses the client default)")
	flags.Float64Var(&ctx.ratePerSec, "rate", 0, "Maximum requests per second (0 for no limit)")
	flags.BoolVarP(&ctx.verbose, "verbose", "v", false, "Log requests to stderr")

	rootCmd.AddCommand(newSendEmailCommand(ctx))
	rootCmd.AddCommand(newSendSMSCommand(ctx))
	rootCmd.AddCommand(newSendLetterCommand(ctx))
	rootCmd.AddCommand(newSendPrecompiledLetterCommand(ctx))
	rootCmd.AddCommand(newNotificationCommand(ctx))
	rootCmd.AddCommand(newTemplateCommand(ctx))
	rootCmd.AddCommand(newReceivedTextsCommand(ctx))
	rootCmd.AddCommand(newPrepareUploadCommand(ctx))
	rootCmd.AddCommand(newVersionCommand(ctx))

	return rootCmd
}
