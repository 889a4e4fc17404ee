package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/url"
	"strings"

	"github.com/screengrab/backend/internal/logging"
	"github.com/screengrab/backend/internal/metrics"
)

const (
	// AnonymousRequester is shown to owners when the viewer left no email.
	AnonymousRequester = "Anonymous"

	ownerRequestSubject   = "Someone requested your expired video"
	videoAvailableSubject = "Video you requested is now available"

	kindOwnerRequest   = "owner_request"
	kindVideoAvailable = "video_available"
)

// OwnerRequest describes a viewer asking the owner to share an expired video again.
type OwnerRequest struct {
	OwnerEmail     string
	OwnerName      string
	VideoID        string
	Filename       string
	RequesterEmail string
}

// Notifier renders and sends the transactional emails of the request workflow.
type Notifier struct {
	sender Sender
	from   string
	appURL string
}

// NewNotifier constructs a Notifier. A nil sender disables delivery.
func NewNotifier(sender Sender, from, appURL string) *Notifier {
	if sender == nil {
		sender = NopSender{}
	}
	return &Notifier{
		sender: sender,
		from:   from,
		appURL: strings.TrimRight(appURL, "/"),
	}
}

// NotifyOwnerRequest emails the owner that a viewer asked for their expired video.
func (n *Notifier) NotifyOwnerRequest(ctx context.Context, req OwnerRequest) error {
	if strings.TrimSpace(req.OwnerEmail) == "" {
		return errors.New("notify: owner email is required")
	}

	requester := strings.TrimSpace(req.RequesterEmail)
	if requester == "" {
		requester = AnonymousRequester
	}

	body, err := render(ownerRequestTemplate, struct {
		OwnerName    string
		Filename     string
		Requester    string
		VideoID      string
		DashboardURL string
	}{
		OwnerName:    req.OwnerName,
		Filename:     req.Filename,
		Requester:    requester,
		VideoID:      req.VideoID,
		DashboardURL: n.appURL + "/dashboard.html",
	})
	if err != nil {
		return err
	}

	return n.send(ctx, kindOwnerRequest, Message{
		From:    n.from,
		To:      req.OwnerEmail,
		Subject: ownerRequestSubject,
		HTML:    body,
	})
}

// NotifyVideoAvailable tells a requester the video is shareable again.
func (n *Notifier) NotifyVideoAvailable(ctx context.Context, to, videoID, filename string) error {
	if strings.TrimSpace(to) == "" {
		return errors.New("notify: recipient is required")
	}

	body, err := render(videoAvailableTemplate, struct {
		Filename string
		WatchURL string
	}{
		Filename: filename,
		WatchURL: ShareURL(n.appURL, videoID),
	})
	if err != nil {
		return err
	}

	return n.send(ctx, kindVideoAvailable, Message{
		From:    n.from,
		To:      to,
		Subject: videoAvailableSubject,
		HTML:    body,
	})
}

// ShareURL builds the public watch page link for a video.
func ShareURL(appURL, videoID string) string {
	return strings.TrimRight(appURL, "/") + "/video.html?v=" + url.QueryEscape(videoID)
}

func (n *Notifier) send(ctx context.Context, kind string, msg Message) error {
	if _, disabled := n.sender.(NopSender); disabled {
		metrics.RecordNotification(kind, metrics.StatusSkipped)
		return n.sender.Send(ctx, msg)
	}

	if err := n.sender.Send(ctx, msg); err != nil {
		metrics.RecordNotification(kind, metrics.StatusFailure)
		return fmt.Errorf("send %s email: %w", kind, err)
	}

	metrics.RecordNotification(kind, metrics.StatusSuccess)
	logging.FromContext(ctx).Info("email sent", slog.String("kind", kind))
	return nil
}

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s email: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}
