// Package notice freezes the privacy notice a visitor saw into a snapshot
// stored on the consent record.
package notice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"consentd/internal/consent/models"
	widgetModels "consentd/internal/widget/models"
)

// Renderer produces notice HTML for a widget's activities.
type Renderer interface {
	GeneratePrivacyNoticeHTML(ctx context.Context, activities []widgetModels.Activity, domain string) (string, error)
}

// Sanitizer cleans rendered HTML before it is stored.
type Sanitizer interface {
	Sanitize(html string) string
}

var ErrEmptyNotice = errors.New("rendered notice is empty")

// Builder assembles snapshots.
type Builder struct {
	renderer  Renderer
	sanitizer Sanitizer
}

func NewBuilder(renderer Renderer, sanitizer Sanitizer) *Builder {
	return &Builder{renderer: renderer, sanitizer: sanitizer}
}

// Build returns a snapshot for widget as seen on page. The returned snapshot
// is always usable: when rendering fails its HTML is empty and the error
// reports why, but the page metadata used for matching is still present.
func (b *Builder) Build(ctx context.Context, widget *widgetModels.Widget, page models.PageMetadata, pageURL string, now time.Time) (*models.NoticeSnapshot, error) {
	snap := &models.NoticeSnapshot{
		NoticeVersion: widget.NoticeVersion,
		Domain:        widget.Domain,
		ActivityIDs:   widget.ActivityIDs(),
		Metadata: models.SnapshotMetadata{
			CurrentURL:    pageURL,
			NormalizedURL: NormalizeURL(pageURL),
			PageTitle:     page.PageTitle,
		},
		GeneratedAt: now,
	}

	html, err := b.render(ctx, widget)
	if err != nil {
		return snap, err
	}
	snap.HTML = html
	return snap, nil
}

func (b *Builder) render(ctx context.Context, widget *widgetModels.Widget) (html string, err error) {
	if b.renderer == nil {
		return "", errors.New("no notice renderer configured")
	}
	defer func() {
		if rec := recover(); rec != nil {
			html, err = "", fmt.Errorf("notice renderer panicked: %v", rec)
		}
	}()

	raw, err := b.renderer.GeneratePrivacyNoticeHTML(ctx, widget.Activities, widget.Domain)
	if err != nil {
		return "", fmt.Errorf("render notice: %w", err)
	}
	if b.sanitizer != nil {
		raw = b.sanitizer.Sanitize(raw)
	}
	if strings.TrimSpace(raw) == "" {
		return "", ErrEmptyNotice
	}
	return raw, nil
}
