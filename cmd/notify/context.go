package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	notify "github.com/insider-one/notifications-go-client"
)

const (
	outputTable = "table"
	outputJSON  = "json"
)

type commandContext struct {
	apiKey     string
	baseURL    string
	output     string
	timeout    time.Duration
	ratePerSec float64
	verbose    bool
}

func newCommandContext() *commandContext {
	return &commandContext{output: outputTable}
}

func (c *commandContext) validateOutput() error {
	switch c.output {
	case outputTable, outputJSON:
		return nil
	default:
		return fmt.Errorf("unknown output format %q: use table or json", c.output)
	}
}

func (c *commandContext) jsonOutput() bool {
	return c.output == outputJSON
}

func (c *commandContext) newClient(cmd *cobra.Command) (*notify.Client, error) {
	key := strings.TrimSpace(c.apiKey)
	if key == "" {
		key = strings.TrimSpace(os.Getenv("NOTIFY_API_KEY"))
	}
	if key == "" {
		return nil, errors.New("no API key: pass --api-key or set NOTIFY_API_KEY")
	}

	opts := []notify.Option{}

	baseURL := c.baseURL
	if baseURL == "" {
		baseURL = os.Getenv("NOTIFY_BASE_URL")
	}
	if baseURL != "" {
		opts = append(opts, notify.WithBaseURL(baseURL))
	}
	if c.timeout > 0 {
		opts = append(opts, notify.WithTimeout(c.timeout))
	}
	if c.ratePerSec > 0 {
		burst := max(int(c.ratePerSec), 1)
		opts = append(opts, notify.WithLimiter(rate.NewLimiter(rate.Limit(c.ratePerSec), burst)))
	}
	if c.verbose {
		logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug}))
		opts = append(opts, notify.WithLogger(logger))
	}

	return notify.New(key, opts...)
}

func (c *commandContext) withClient(cmd *cobra.Command, fn func(*notify.Client) error) error {
	client, err := c.newClient(cmd)
	if err != nil {
		return err
	}
	return fn(client)
}

// describeError turns client errors into a single readable line
func describeError(err error) string {
	var notFound *notify.NotFoundError
	var httpErr *notify.HTTPError
	var reqErr *notify.RequestError
	switch {
	case errors.As(err, &notFound):
		return fmt.Sprintf("not found (%d): %s", notFound.StatusCode, notFound.Message())
	case errors.As(err, &httpErr):
		return fmt.Sprintf("API error (%d): %s", httpErr.StatusCode, httpErr.Message())
	case errors.As(err, &reqErr):
		if cause := errors.Unwrap(reqErr); cause != nil {
			return fmt.Sprintf("%s: %v", reqErr.Message, cause)
		}
		return reqErr.Message
	default:
		return err.Error()
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
