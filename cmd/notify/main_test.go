package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	notify "github.com/insider-one/notifications-go-client"
	"github.com/insider-one/notifications-go-client/internal/notifytest"
)

func runCLI(t *testing.T, srv *notifytest.Server, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{}
	if srv != nil {
		flags = append(flags, "--api-key", srv.APIKey, "--base-url", srv.URL)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func ptr(s string) *string {
	return &s
}

func lastRequestBody(t *testing.T, srv *notifytest.Server) map[string]any {
	t.Helper()
	req, ok := srv.LastRequest()
	require.True(t, ok)
	var body map[string]any
	require.NoError(t, json.Unmarshal(req.Body, &body))
	return body
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestSendEmailCommand(t *testing.T) {
	srv := notifytest.NewServer(t)
	tmpl := srv.AddTemplate(notifytest.Template{
		Name:    "Welcome",
		Type:    "email",
		Subject: ptr("Hello ((name))"),
		Body:    "Your code is ((code))",
	})

	stdout, _, err := runCLI(t, srv,
		"send-email",
		"--to", "ada@example.com",
		"-t", tmpl.ID,
		"-p", "name=Ada",
		"-p", "code=1234",
		"--reference", "signup-1",
	)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Hello Ada")
	assert.Contains(t, stdout, "Your code is 1234")
	assert.Contains(t, stdout, "signup-1")

	body := lastRequestBody(t, srv)
	assert.Equal(t, "ada@example.com", body["email_address"])
	assert.Equal(t, tmpl.ID, body["template_id"])
	assert.Equal(t, map[string]any{"name": "Ada", "code": "1234"}, body["personalisation"])
}

func TestSendEmailWithAttachment(t *testing.T) {
	srv := notifytest.NewServer(t)
	tmpl := srv.AddTemplate(notifytest.Template{Type: "email", Subject: ptr("Report"), Body: "((report))"})
	path := writeTempFile(t, "report.csv", "a,b\n1,2\n")

	_, _, err := runCLI(t, srv,
		"send-email",
		"--to", "ada@example.com",
		"-t", tmpl.ID,
		"--attach", "report="+path,
		"--confirm-email",
		"--retention", "26 weeks",
	)
	require.NoError(t, err)

	body := lastRequestBody(t, srv)
	personalisation, ok := body["personalisation"].(map[string]any)
	require.True(t, ok)
	doc, ok := personalisation["report"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("a,b\n1,2\n")), doc["file"])
	assert.Equal(t, "report.csv", doc["filename"])
	assert.Equal(t, true, doc["confirm_email_before_download"])
	assert.Equal(t, "26 weeks", doc["retention_period"])
}

func TestSendSMSCommandJSON(t *testing.T) {
	srv := notifytest.NewServer(t)
	tmpl := srv.AddTemplate(notifytest.Template{Type: "sms", Body: "Your code is ((code))"})

	stdout, _, err := runCLI(t, srv,
		"-o", "json",
		"send-sms",
		"--to", "07700900000",
		"-t", tmpl.ID,
		"-p", "code=42",
	)
	require.NoError(t, err)

	var resp notify.SMSResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, "Your code is 42", resp.Content.Body)
	assert.Equal(t, tmpl.ID, resp.Template.ID)
	assert.Nil(t, resp.Reference)
}

func TestSendLetterCommand(t *testing.T) {
	srv := notifytest.NewServer(t)
	tmpl := srv.AddTemplate(notifytest.Template{Type: "letter", Subject: ptr("Notice"), Body: "Dear ((name))"})

	stdout, _, err := runCLI(t, srv,
		"send-letter",
		"-t", tmpl.ID,
		"-p", "address_line_1=A Person",
		"-p", "address_line_2=1 High Street",
		"-p", "address_line_3=SW1A 1AA",
		"-p", "name=Ada",
	)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Dear Ada")

	notifications := srv.Notifications()
	require.Len(t, notifications, 1)
	assert.Equal(t, "letter", notifications[0].Type)
}

func TestSendPrecompiledLetterCommand(t *testing.T) {
	srv := notifytest.NewServer(t)
	path := writeTempFile(t, "letter.pdf", "%PDF-1.4 test")

	stdout, _, err := runCLI(t, srv,
		"-o", "json",
		"send-precompiled-letter", path,
		"--reference", "letter-1",
		"--postage", "first",
	)
	require.NoError(t, err)

	var resp notify.PrecompiledLetterResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "letter-1", resp.Reference)
	assert.Equal(t, "first", resp.Postage)

	body := lastRequestBody(t, srv)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("%PDF-1.4 test")), body["content"])
}

func TestSendCommandErrors(t *testing.T) {
	srv := notifytest.NewServer(t)
	tmpl := srv.AddTemplate(notifytest.Template{Type: "sms", Body: "hi"})

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{
			name:    "missing recipient",
			args:    []string{"send-sms", "-t", tmpl.ID},
			wantErr: `required flag(s) "to" not set`,
		},
		{
			name:    "malformed personalisation",
			args:    []string{"send-sms", "--to", "07700900000", "-t", tmpl.ID, "-p", "name"},
			wantErr: "expected key=value",
		},
		{
			name:    "missing letter file",
			args:    []string{"send-precompiled-letter", filepath.Join(t.TempDir(), "missing.pdf"), "--reference", "r"},
			wantErr: "read letter",
		},
		{
			name:    "invalid postage",
			args:    []string{"send-precompiled-letter", writeTempFile(t, "l.pdf", "%PDF"), "--reference", "r", "--postage", "third"},
			wantErr: "postage",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := runCLI(t, srv, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNotificationGetCommand(t *testing.T) {
	srv := notifytest.NewServer(t)
	n := srv.AddNotification(notifytest.Notification{
		Type:         "email",
		Status:       "delivered",
		EmailAddress: ptr("ada@example.com"),
		Reference:    ptr("ref-1"),
		Body:         "hello",
	})

	stdout, _, err := runCLI(t, srv, "notification", "get", n.ID)
	require.NoError(t, err)
	assert.Contains(t, stdout, n.ID)
	assert.Contains(t, stdout, "delivered")
	assert.Contains(t, stdout, "ada@example.com")
	assert.Contains(t, stdout, "ref-1")

	stdout, _, err = runCLI(t, srv, "-o", "json", "notification", "get", n.ID)
	require.NoError(t, err)
	var got notify.Notification
	require.NoError(t, json.Unmarshal([]byte(stdout), &got))
	assert.Equal(t, n.ID, got.ID)
	assert.Equal(t, "delivered", got.Status)
	assert.Equal(t, "ada@example.com", got.Recipient())
}

func TestNotificationListCommand(t *testing.T) {
	srv := notifytest.NewServer(t)
	srv.PageSize = 2

	var ids []string
	for i, status := range []string{"delivered", "sending", "delivered"} {
		n := srv.AddNotification(notifytest.Notification{
			Type:        "sms",
			Status:      status,
			PhoneNumber: ptr("0770090000" + string(rune('0'+i))),
		})
		ids = append(ids, n.ID)
	}

	tests := []struct {
		name    string
		args    []string
		wantIDs []string
	}{
		{
			name:    "all pages newest first",
			args:    []string{"--limit", "0"},
			wantIDs: []string{ids[2], ids[1], ids[0]},
		},
		{
			name:    "limit",
			args:    []string{"--limit", "1"},
			wantIDs: []string{ids[2]},
		},
		{
			name:    "status filter",
			args:    []string{"--status", "delivered"},
			wantIDs: []string{ids[2], ids[0]},
		},
		{
			name:    "no match",
			args:    []string{"--type", "letter"},
			wantIDs: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"-o", "json", "notification", "list"}, tt.args...)
			stdout, _, err := runCLI(t, srv, args...)
			require.NoError(t, err)

			var got []notify.Notification
			require.NoError(t, json.Unmarshal([]byte(stdout), &got))
			gotIDs := make([]string, 0, len(got))
			for _, n := range got {
				gotIDs = append(gotIDs, n.ID)
			}
			assert.Equal(t, tt.wantIDs, gotIDs)
		})
	}

	t.Run("table", func(t *testing.T) {
		stdout, _, err := runCLI(t, srv, "notification", "list", "--status", "sending")
		require.NoError(t, err)
		assert.Contains(t, stdout, ids[1])
		assert.Contains(t, stdout, "07700900001")
		assert.NotContains(t, stdout, ids[0])
	})

	t.Run("empty table", func(t *testing.T) {
		stdout, _, err := runCLI(t, srv, "notification", "list", "--type", "letter")
		require.NoError(t, err)
		assert.Equal(t, "No notifications\n", stdout)
	})
}

func TestNotificationPDFCommand(t *testing.T) {
	srv := notifytest.NewServer(t)
	letter := srv.AddNotification(notifytest.Notification{Type: "letter", Status: "received"})
	email := srv.AddNotification(notifytest.Notification{Type: "email"})

	out := filepath.Join(t.TempDir(), "letter.pdf")
	_, stderr, err := runCLI(t, srv, "notification", "pdf", letter.ID, "-f", out)
	require.NoError(t, err)
	assert.Contains(t, stderr, "Wrote")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "%PDF-1.4"))

	stdout, _, err := runCLI(t, srv, "notification", "pdf", letter.ID, "-f", "-")
	require.NoError(t, err)
	assert.Equal(t, string(data), stdout)

	_, _, err = runCLI(t, srv, "notification", "pdf", email.ID, "-f", out)
	require.Error(t, err)
	assert.Contains(t, describeError(err), "API error (400)")
}

func TestTemplateCommands(t *testing.T) {
	srv := notifytest.NewServer(t)
	v1 := srv.AddTemplate(notifytest.Template{
		Name:    "Welcome",
		Type:    "email",
		Subject: ptr("Hi ((name))"),
		Body:    "Welcome ((name)), your code is ((code))",
	})
	srv.AddTemplate(notifytest.Template{
		ID:      v1.ID,
		Name:    "Welcome",
		Type:    "email",
		Subject: ptr("Hello ((name))"),
		Body:    "Welcome back ((name))",
	})
	sms := srv.AddTemplate(notifytest.Template{Name: "Code", Type: "sms", Body: "Code ((code))"})

	t.Run("get latest", func(t *testing.T) {
		stdout, _, err := runCLI(t, srv, "template", "get", v1.ID)
		require.NoError(t, err)
		assert.Contains(t, stdout, "Welcome back ((name))")
		assert.Contains(t, stdout, "Placeholders")
	})

	t.Run("get version", func(t *testing.T) {
		stdout, _, err := runCLI(t, srv, "-o", "json", "template", "get", v1.ID, "--version", "1")
		require.NoError(t, err)
		var got notify.Template
		require.NoError(t, json.Unmarshal([]byte(stdout), &got))
		assert.Equal(t, 1, got.Version)
		assert.ElementsMatch(t, []string{"name", "code"}, got.Placeholders())
	})

	t.Run("list by type", func(t *testing.T) {
		stdout, _, err := runCLI(t, srv, "-o", "json", "template", "list", "--type", "sms")
		require.NoError(t, err)
		var got []notify.Template
		require.NoError(t, json.Unmarshal([]byte(stdout), &got))
		require.Len(t, got, 1)
		assert.Equal(t, sms.ID, got[0].ID)
	})

	t.Run("list table", func(t *testing.T) {
		stdout, _, err := runCLI(t, srv, "template", "list")
		require.NoError(t, err)
		assert.Contains(t, stdout, v1.ID)
		assert.Contains(t, stdout, sms.ID)
	})

	t.Run("preview", func(t *testing.T) {
		stdout, _, err := runCLI(t, srv, "-o", "json", "template", "preview", v1.ID, "-p", "name=Ada")
		require.NoError(t, err)
		var got notify.TemplatePreview
		require.NoError(t, json.Unmarshal([]byte(stdout), &got))
		assert.Equal(t, "Welcome back Ada", got.Body)
		require.NotNil(t, got.Subject)
		assert.Equal(t, "Hello Ada", *got.Subject)
	})

	t.Run("unknown template", func(t *testing.T) {
		_, _, err := runCLI(t, srv, "template", "get", uuid.NewString())
		require.Error(t, err)
		var notFound *notify.NotFoundError
		assert.ErrorAs(t, err, &notFound)
		assert.Contains(t, describeError(err), "not found (404)")
	})
}

func TestReceivedTextsCommand(t *testing.T) {
	srv := notifytest.NewServer(t)
	srv.PageSize = 2
	for _, content := range []string{"first", "second", "third"} {
		srv.AddReceivedText(notifytest.ReceivedText{
			NotifyNumber: "07700900111",
			UserNumber:   "447700900222",
			Content:      content,
		})
	}

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{name: "first page", args: nil, want: []string{"third", "second"}},
		{name: "all pages", args: []string{"--all"}, want: []string{"third", "second", "first"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"-o", "json", "received-texts"}, tt.args...)
			stdout, _, err := runCLI(t, srv, args...)
			require.NoError(t, err)

			var got []notify.ReceivedText
			require.NoError(t, json.Unmarshal([]byte(stdout), &got))
			contents := make([]string, 0, len(got))
			for _, rt := range got {
				contents = append(contents, rt.Content)
			}
			assert.Equal(t, tt.want, contents)
		})
	}

	t.Run("table", func(t *testing.T) {
		stdout, _, err := runCLI(t, srv, "received-texts")
		require.NoError(t, err)
		assert.Contains(t, stdout, "447700900222")
		assert.Contains(t, stdout, "third")
	})
}

func TestPrepareUploadCommand(t *testing.T) {
	path := writeTempFile(t, "data.csv", "hello")

	stdout, _, err := runCLI(t, nil,
		"prepare-upload", path,
		"--filename", "report.csv",
		"--confirm-email=false",
		"--retention", "4 weeks",
	)
	require.NoError(t, err)

	var doc notify.UploadedDocument
	require.NoError(t, json.Unmarshal([]byte(stdout), &doc))
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("hello")), doc.File)
	assert.Equal(t, "report.csv", doc.Filename)
	require.NotNil(t, doc.ConfirmEmailBeforeDownload)
	assert.False(t, *doc.ConfirmEmailBeforeDownload)
	require.NotNil(t, doc.RetentionPeriod)
	assert.Equal(t, "4 weeks", *doc.RetentionPeriod)

	_, _, err = runCLI(t, nil, "prepare-upload", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	stdout, _, err := runCLI(t, nil, "version")
	require.NoError(t, err)
	assert.Equal(t, notify.Version+"\n", stdout)
}

func TestGlobalFlagErrors(t *testing.T) {
	t.Setenv("NOTIFY_API_KEY", "")

	t.Run("unknown output format", func(t *testing.T) {
		_, _, err := runCLI(t, nil, "-o", "yaml", "version")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown output format")
	})

	t.Run("missing API key", func(t *testing.T) {
		_, _, err := runCLI(t, nil, "notification", "get", uuid.NewString())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no API key")
	})

	t.Run("API key from environment", func(t *testing.T) {
		srv := notifytest.NewServer(t)
		n := srv.AddNotification(notifytest.Notification{Type: "sms", PhoneNumber: ptr("07700900000")})
		t.Setenv("NOTIFY_API_KEY", srv.APIKey)
		t.Setenv("NOTIFY_BASE_URL", srv.URL)

		stdout, _, err := runCLI(t, nil, "notification", "get", n.ID)
		require.NoError(t, err)
		assert.Contains(t, stdout, n.ID)
	})
}

func TestDescribeError(t *testing.T) {
	srv := notifytest.NewServer(t)
	tmpl := srv.AddTemplate(notifytest.Template{Type: "sms", Body: "hi"})

	srv.FailNext(400, `{"status_code":400,"errors":[{"error":"BadRequestError","message":"Can't send to this recipient using a team-only API key"}]}`)
	_, _, err := runCLI(t, srv, "send-sms", "--to", "07700900000", "-t", tmpl.ID)
	require.Error(t, err)
	assert.Equal(t, "API error (400): Can't send to this recipient using a team-only API key", describeError(err))

	closed := notifytest.NewServer(t)
	closed.Close()
	_, _, err = runCLI(t, closed, "notification", "get", uuid.NewString())
	require.Error(t, err)
	var reqErr *notify.RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.True(t, strings.HasPrefix(describeError(err), notify.RequestErrorMessage))
}
