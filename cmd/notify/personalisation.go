package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	notify "github.com/insider-one/notifications-go-client"
)

type personalisationFlags struct {
	values       []string
	attachments  []string
	confirmEmail bool
	retention    string
}

// build turns key=value pairs and key=path attachments into personalisation.
// A key given twice keeps the last value.
func (f *personalisationFlags) build() (notify.Personalisation, error) {
	if len(f.values) == 0 && len(f.attachments) == 0 {
		return nil, nil
	}

	p := notify.Personalisation{}
	for _, kv := range f.values {
		key, value, err := splitPair(kv)
		if err != nil {
			return nil, fmt.Errorf("personalisation: %w", err)
		}
		p[key] = value
	}

	for _, kv := range f.attachments {
		key, path, err := splitPair(kv)
		if err != nil {
			return nil, fmt.Errorf("attachment: %w", err)
		}
		doc, err := f.prepare(path)
		if err != nil {
			return nil, fmt.Errorf("attachment %s: %w", key, err)
		}
		p[key] = doc
	}

	return p, nil
}

func (f *personalisationFlags) prepare(path string) (*notify.UploadedDocument, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	opts := []notify.UploadOption{notify.WithFilename(filepath.Base(path))}
	if f.confirmEmail {
		opts = append(opts, notify.WithConfirmEmailBeforeDownload(true))
	}
	if f.retention != "" {
		opts = append(opts, notify.WithRetentionPeriod(f.retention))
	}
	return notify.PrepareUploadFrom(file, opts...)
}

func splitPair(kv string) (string, string, error) {
	key, value, ok := strings.Cut(kv, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", "", fmt.Errorf("expected key=value, got %q", kv)
	}
	return key, value, nil
}
