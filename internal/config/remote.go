// Package config — remote.go loads the run-time configuration the bot keeps
// on a wiki page as a JSON blob. Keeping it on-wiki lets local admins flip
// the enable switch or rename target pages without redeploying the bot.
package config

import (
	"context"
	"encoding/json"
	"fmt"
)

// PageSource is the single wiki-client method the remote loader needs.
type PageSource interface {
	PageText(ctx context.Context, title string) (string, error)
}

// Remote is the wiki-hosted part of the configuration.
type Remote struct {
	// Enable gates the whole run. False means exit without doing anything.
	Enable bool `json:"enable"`

	// Target pages.
	ExportPage string `json:"export_page"`
	ReportPage string `json:"report_page"`

	// Edit summaries for the three write stages.
	ExportSummary string `json:"export_summary"`
	NoticeSummary string `json:"notice_summary"`
	ReportSummary string `json:"report_summary"`

	// ReportFlag is the marker string on the escalation page; new entries
	// are inserted immediately before it.
	ReportFlag string `json:"report_flag"`
}

// FetchRemote reads and decodes the configuration page.
func FetchRemote(ctx context.Context, src PageSource, title string) (*Remote, error) {
	text, err := src.PageText(ctx, title)
	if err != nil {
		return nil, fmt.Errorf("failed to read config page %q: %w", title, err)
	}
	var remote Remote
	if err := json.Unmarshal([]byte(text), &remote); err != nil {
		return nil, fmt.Errorf("failed to decode config page %q: %w", title, err)
	}
	return &remote, nil
}
