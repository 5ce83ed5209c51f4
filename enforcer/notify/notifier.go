// Package notify renders and sends the messages owners and reporters receive about a decision.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"

	"github.com/bluesky-social/marshal/enforcer/action"
	"github.com/bluesky-social/marshal/enforcer/gate"
	"github.com/bluesky-social/marshal/enforcer/mailer"
	"github.com/bluesky-social/marshal/enforcer/siteurl"
	"github.com/bluesky-social/marshal/models"

	"github.com/flosch/pongo2/v6"
)

// DeliveryError wraps failures handing messages to the mail sender.
type DeliveryError struct {
	// "owner" or "reporter"
	Path string
	Err  error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivering %s notification: %v", e.Path, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

type Config struct {
	// prefix of every subject line, eg "Add-ons"
	SiteName string
	// sender for notices threaded into a content item's activity
	FromAddress       string
	PolicyDocumentURL string
}

type Notifier struct {
	Config
	Renderer *Renderer
	Locales  *Locales
	Sender   mailer.Sender
	URLs     *siteurl.Builder
	Gates    gate.Gate
	Logger   *slog.Logger
}

func NewNotifier(cfg Config, sender mailer.Sender, urls *siteurl.Builder, gates gate.Gate, logger *slog.Logger) (*Notifier, error) {
	if logger == nil {
		logger = slog.Default()
	}
	locales, err := NewLocales()
	if err != nil {
		return nil, fmt.Errorf("loading translations: %w", err)
	}
	return &Notifier{
		Config:   cfg,
		Renderer: DefaultRenderer(),
		Locales:  locales,
		Sender:   sender,
		URLs:     urls,
		Gates:    gates,
		Logger:   logger.With("system", "notify"),
	}, nil
}

// OwnerNotice is what the owner notice needs beyond the action itself.
type OwnerNotice struct {
	// audit entry the action produced, zero if none
	LogEntryID uint
	// replaces the list of cited policies when set
	PolicyText string
	// extra template variables, eg the rejected version list
	Extra map[string]any
}

func dedupToken(logEntryID uint) string {
	if logEntryID != 0 {
		return strconv.FormatUint(uint64(logEntryID), 10)
	}
	return strconv.Itoa(rand.IntN(100000))
}

// NotifyOwners tells the owners of the target what was decided. Notices about content items go
// through the item's integration channel; everything else is mailed to each owner directly.
func (n *Notifier) NotifyOwners(ctx context.Context, act action.Action, notice OwnerNotice) error {
	dec := act.Decision()
	ref := dec.ReferenceID()
	logger := n.Logger.With("decision", ref, "outcome", act.Outcome())

	owners := act.Owners()
	if len(owners) == 0 {
		logger.Debug("no owners to notify")
		return nil
	}
	tmpl, ok := ownerTemplates[act.Outcome()]
	if !ok {
		return &action.ConfigurationError{Reason: fmt.Sprintf("no owner template for %s", act.Outcome())}
	}

	p := n.Locales.Printer(DefaultLanguage)
	name := act.TargetName(p)
	data := pongo2.Context{
		"additional_reasoning":     dec.Notes,
		"is_third_party_initiated": dec.ThirdPartyInitiated,
		"name":                     pongo2.AsSafeValue(name),
		"policy_document_url":      n.PolicyDocumentURL,
		"reference_id":             "reference:" + ref,
		"target_url":               n.URLs.Absolutify(act.Target().URLPath()),
		"type":                     act.TargetType(p),
		"SITE_URL":                 n.URLs.SiteURL(),
	}
	if notice.PolicyText != "" {
		data["manual_policy_text"] = notice.PolicyText
	} else {
		data["policies"] = dec.Policies
	}
	if notice.Extra != nil {
		data.Update(pongo2.Context(notice.Extra))
	}
	if dec.CanBeAppealed(false, nil) && (dec.ThirdPartyInitiated || n.Gates.IsActive(ctx, gate.AppealsReview)) {
		appealURL, err := n.URLs.AppealAuthorURL(ref)
		if err != nil {
			return fmt.Errorf("building appeal URL: %w", err)
		}
		data["appeal_url"] = appealURL
	}

	body, err := n.Renderer.Render("", tmpl, data)
	if err != nil {
		return err
	}
	msg := mailer.Message{
		Subject: fmt.Sprintf("%s: %s [reference:%s]", n.SiteName, name, ref),
		Body:    body,
	}

	if version := act.ContentVersion(); version != nil {
		for _, o := range owners {
			if o.Email != "" {
				msg.Recipients = append(msg.Recipients, o.Email)
			}
		}
		if len(msg.Recipients) == 0 {
			logger.Warn("no owner has an email address")
			notificationsSkippedCount.WithLabelValues("owner").Inc()
			return nil
		}
		if err := n.Sender.SendThroughIntegrationChannel(ctx, msg, version, n.FromAddress, dedupToken(notice.LogEntryID)); err != nil {
			notificationErrorCount.WithLabelValues("owner").Inc()
			return &DeliveryError{Path: "owner", Err: err}
		}
		notificationsSentCount.WithLabelValues("owner", "integration").Inc()
		logger.Info("notified owners", "count", len(msg.Recipients), "version", version.ID)
		return nil
	}

	var errs []error
	for _, o := range owners {
		if o.Email == "" {
			logger.Warn("owner has no email address", "account", o.ID)
			notificationsSkippedCount.WithLabelValues("owner").Inc()
			continue
		}
		msg.Recipients = []string{o.Email}
		if err := n.Sender.Send(ctx, msg); err != nil {
			notificationErrorCount.WithLabelValues("owner").Inc()
			errs = append(errs, fmt.Errorf("account %d: %w", o.ID, err))
			continue
		}
		notificationsSentCount.WithLabelValues("owner", "direct").Inc()
	}
	if len(errs) > 0 {
		return &DeliveryError{Path: "owner", Err: errors.Join(errs...)}
	}
	return nil
}

// NotifyReporters tells each reporter, in their own language, what came of their report. Every report
// is attempted; delivery failures are returned together afterwards.
func (n *Notifier) NotifyReporters(ctx context.Context, act action.Action, reports []*models.Report, isAppeal bool) error {
	tmpl := reporterTemplateFor(act.Outcome(), isAppeal)
	if tmpl == "" || len(reports) == 0 {
		return nil
	}

	dec := act.Decision()
	ref := dec.ReferenceID()
	logger := n.Logger.With("decision", ref, "outcome", act.Outcome())
	targetURL := n.URLs.Absolutify(act.Target().URLPath())

	var errs []error
	for _, r := range reports {
		addr, ok := action.ContactFor(r).Address()
		if !ok {
			logger.Debug("reporter can't be contacted", "report", r.ID)
			notificationsSkippedCount.WithLabelValues("reporter").Inc()
			continue
		}

		tag := n.Locales.Match(r.ApplicationLocale)
		p := n.Locales.Printer(tag)
		name := act.TargetName(p)
		data := pongo2.Context{
			"name":                pongo2.AsSafeValue(name),
			"policy_document_url": n.PolicyDocumentURL,
			"reference_id":        fmt.Sprintf("reference:%s/%d", ref, r.ID),
			"target_url":          targetURL,
			"type":                act.TargetType(p),
			"SITE_URL":            n.URLs.SiteURL(),
		}
		if dec.CanBeAppealed(true, r) {
			appealURL, err := n.URLs.AppealReporterURL(r.ID, ref)
			if err != nil {
				return fmt.Errorf("building appeal URL: %w", err)
			}
			data["appeal_url"] = appealURL
		}

		body, err := n.Renderer.Render(templateDir(tag), tmpl, data)
		if err != nil {
			return err
		}
		msg := mailer.Message{
			Subject:    fmt.Sprintf("%s: %s [reference:%s/%d]", n.SiteName, name, ref, r.ID),
			Body:       body,
			Recipients: []string{addr},
		}
		if err := n.Sender.Send(ctx, msg); err != nil {
			notificationErrorCount.WithLabelValues("reporter").Inc()
			errs = append(errs, fmt.Errorf("report %d: %w", r.ID, err))
			continue
		}
		notificationsSentCount.WithLabelValues("reporter", "direct").Inc()
	}
	if len(errs) > 0 {
		return &DeliveryError{Path: "reporter", Err: errors.Join(errs...)}
	}
	return nil
}
