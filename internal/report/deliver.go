package report

import (
	"context"
	"log/slog"
	"path"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultURLTTL is how long a signed report link stays valid.
const DefaultURLTTL = 168 * time.Hour

// Delivery outcomes.
const (
	DeliveredRemote = "remote"
	DeliveredLocal  = "local"
	DeliveryFailed  = "failed"
)

// Deliverer renders a report and stores it, preferring remote storage and
// falling back to the local directory.
type Deliverer struct {
	renderer Renderer
	remote   BlobStore
	local    *LocalStore
	folder   string
	ttl      time.Duration
	logger   *slog.Logger
	outcomes *prometheus.CounterVec
}

// DeliverOption configures a Deliverer.
type DeliverOption func(*Deliverer)

// WithRemote sets the remote store. Without one, documents go straight to
// local storage.
func WithRemote(store BlobStore) DeliverOption {
	return func(d *Deliverer) {
		d.remote = store
	}
}

// WithLocal sets the local fallback store.
func WithLocal(store *LocalStore) DeliverOption {
	return func(d *Deliverer) {
		d.local = store
	}
}

// WithFolder sets the remote key prefix.
func WithFolder(folder string) DeliverOption {
	return func(d *Deliverer) {
		d.folder = folder
	}
}

// WithURLTTL sets how long signed links last.
func WithURLTTL(ttl time.Duration) DeliverOption {
	return func(d *Deliverer) {
		if ttl > 0 {
			d.ttl = ttl
		}
	}
}

// WithDeliveryLogger sets the logger.
func WithDeliveryLogger(logger *slog.Logger) DeliverOption {
	return func(d *Deliverer) {
		d.logger = logger
	}
}

// WithRegisterer counts delivery outcomes in reg.
func WithRegisterer(reg prometheus.Registerer) DeliverOption {
	return func(d *Deliverer) {
		d.outcomes = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scoutgraph_report_deliveries_total",
				Help: "Scouting report deliveries by outcome.",
			},
			[]string{"outcome"},
		)
		reg.MustRegister(d.outcomes)
	}
}

// NewDeliverer creates a Deliverer around renderer.
func NewDeliverer(renderer Renderer, opts ...DeliverOption) *Deliverer {
	d := &Deliverer{
		renderer: renderer,
		folder:   "scouting-reports",
		ttl:      DefaultURLTTL,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// documentName keys a document by player and report so that reports on the
// same player never replace each other.
func documentName(playerName, reportID string) string {
	name := Slug(playerName)
	if reportID != "" {
		name += "_" + Slug(reportID)
	}
	return name
}

// Deliver stores the report for playerName and returns a link to it. It
// returns "" when the document could not be rendered or stored anywhere;
// delivery problems are logged, never returned.
func (d *Deliverer) Deliver(ctx context.Context, playerName string, r *Report) string {
	doc, err := d.renderer.Render(ctx, r)
	if err != nil {
		d.logger.Warn("report render failed", "player", playerName, "error", err)
		d.count(DeliveryFailed)
		return ""
	}
	name := documentName(playerName, r.ReportID) + doc.Ext

	if d.remote != nil {
		key := path.Join(d.folder, name)
		link, err := d.upload(ctx, key, doc)
		if err == nil {
			d.count(DeliveredRemote)
			return link
		}
		d.logger.Warn("remote report upload failed, using local storage", "key", key, "error", err)
	}

	if d.local == nil {
		d.count(DeliveryFailed)
		return ""
	}
	link, err := d.local.Save(name, doc)
	if err != nil {
		d.logger.Warn("local report save failed", "name", name, "error", err)
		d.count(DeliveryFailed)
		return ""
	}
	d.count(DeliveredLocal)
	return link
}

func (d *Deliverer) upload(ctx context.Context, key string, doc Document) (string, error) {
	if err := d.remote.Upload(ctx, key, doc); err != nil {
		return "", err
	}
	return d.remote.Sign(key, d.ttl)
}

func (d *Deliverer) count(outcome string) {
	if d.outcomes != nil {
		d.outcomes.WithLabelValues(outcome).Inc()
	}
}
