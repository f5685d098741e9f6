// Package runner drives a sync pass over one collection: list candidates,
// decide per record, estimate, write back and keep the audit tally.
package runner

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/harrisonrobin/estima/pkg/audit"
	"github.com/harrisonrobin/estima/pkg/classify"
	"github.com/harrisonrobin/estima/pkg/fingerprint"
	"github.com/harrisonrobin/estima/pkg/history"
	"github.com/harrisonrobin/estima/pkg/llm"
	"github.com/harrisonrobin/estima/pkg/model"
	"github.com/harrisonrobin/estima/pkg/util"
)

// ErrNonPositive is returned when the provider estimates zero or less.
var ErrNonPositive = eris.New("non-positive estimate")

// Audit fields of a record whose inputs could not be gathered.
const (
	actionRead       = "read"
	reasonUnreadable = "inputs unreadable"
)

// Store is the record store as seen by a pass.
type Store interface {
	Query(ctx context.Context, databaseID string, filter *model.Filter) ([]model.Record, error)
	Page(ctx context.Context, pageID string) (model.Record, error)
	Content(ctx context.Context, pageID string) (string, error)
	Update(ctx context.Context, pageID string, patch model.Patch) error
	EnsureProperty(ctx context.Context, databaseID, name string, kind model.Kind) error
}

// Estimator produces quantized numbers for a subject.
type Estimator interface {
	Weeks(ctx context.Context, s llm.Subject) (float64, error)
	Minutes(ctx context.Context, s llm.Subject) (float64, error)
}

// Options tune a Runner.
type Options struct {
	Engine  string
	LogDir  string
	Debug   bool
	Workers int
	Logger  *zap.Logger
	Now     func() time.Time
}

// Runner runs sync passes.
type Runner struct {
	store     Store
	estimator Estimator
	opts      Options
	logger    *zap.Logger
}

// New creates a Runner.
func New(store Store, estimator Estimator, opts Options) *Runner {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Runner{store: store, estimator: estimator, opts: opts, logger: opts.Logger}
}

// pass is the state shared by the records of a single Run.
type pass struct {
	profile    Profile
	databaseID string
	records    []model.Record
	filtered   bool
	log        *audit.Log

	historyOnce sync.Once
	history     *history.Builder
}

// EnsureSchema adds the fingerprint property to the collection if it is missing.
func (r *Runner) EnsureSchema(ctx context.Context, p Profile, databaseID string) error {
	if p.Fingerprint == "" {
		return nil
	}
	if err := r.store.EnsureProperty(ctx, databaseID, p.Fingerprint, model.KindText); err != nil {
		return eris.Wrapf(err, "ensure property %q", p.Fingerprint)
	}
	return nil
}

// Run performs one pass over the collection and returns its audit log. Only
// a failure to list the collection is returned as an error; per-record
// failures are tallied.
func (r *Runner) Run(ctx context.Context, p Profile, databaseID string) (*audit.Log, error) {
	logger := r.logger.With(zap.String("flow", p.Flow), zap.String("database_id", databaseID))
	if r.opts.Debug {
		logger.Info("debug mode: no write-back")
	} else if err := r.EnsureSchema(ctx, p, databaseID); err != nil {
		logger.Warn("could not verify schema", zap.Error(err))
	}

	ps := &pass{
		profile:    p,
		databaseID: databaseID,
		log:        audit.New(p.Flow, r.opts.Engine, databaseID, r.opts.Debug, r.opts.Now()),
	}
	records, filtered, err := r.candidates(ctx, p, databaseID, logger)
	if err != nil {
		return nil, err
	}
	ps.records, ps.filtered = records, filtered
	ps.log.Scanned(len(records))
	logger.Info("candidates listed", zap.Int("count", len(records)))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)
	for _, rec := range records {
		g.Go(func() error {
			r.process(gctx, ps, rec, logger)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s := ps.log.Snapshot()
	logger.Info("pass complete",
		zap.Int("total", s.Total),
		zap.Int("updated", s.Updated),
		zap.Int("failed", s.Failed),
		zap.Int("skipped", s.Skipped),
	)
	if r.opts.LogDir != "" {
		if path, err := ps.log.Save(r.opts.LogDir); err != nil {
			logger.Warn("audit log not saved", zap.Error(err))
		} else {
			logger.Info("audit log saved", zap.String("path", path))
		}
	}
	return ps.log, nil
}

// candidates lists the collection, using the leaf filter when the profile
// has one and falling back to a full listing if the store rejects it.
func (r *Runner) candidates(ctx context.Context, p Profile, databaseID string, logger *zap.Logger) ([]model.Record, bool, error) {
	if p.Leaf != "" {
		records, err := r.store.Query(ctx, databaseID, &model.Filter{EmptyRelation: p.Leaf})
		if err == nil {
			return records, true, nil
		}
		logger.Warn("filtered query failed, listing everything", zap.Error(err))
	}
	records, err := r.store.Query(ctx, databaseID, nil)
	if err != nil {
		return nil, false, eris.Wrapf(err, "list %s", p.Flow)
	}
	return records, false, nil
}

func (r *Runner) loadHistory(ctx context.Context, ps *pass) *history.Builder {
	ps.historyOnce.Do(func() {
		records := ps.records
		if ps.filtered {
			var err error
			records, err = r.store.Query(ctx, ps.databaseID, nil)
			if err != nil {
				r.logger.Warn("history not loaded", zap.String("flow", ps.profile.Flow), zap.Error(err))
				records = nil
			}
		}
		ps.history = history.New(ps.profile.History, records)
		r.logger.Debug("history loaded", zap.String("flow", ps.profile.Flow), zap.Int("count", ps.history.Len()))
	})
	return ps.history
}

func (r *Runner) process(ctx context.Context, ps *pass, rec model.Record, logger *zap.Logger) {
	p := ps.profile
	name := rec.TextOr(p.Title, "Sans nom")
	logger = logger.With(zap.String("record_id", rec.ID), zap.String("record_name", name))

	if p.Leaf != "" && !rec.Get(p.Leaf).Empty() {
		logger.Debug("skip parent")
		ps.log.Skip()
		return
	}
	if p.Category != "" && !rec.Get(p.Category).Has(p.CategoryValue) {
		logger.Debug("skip wrong category", zap.String("category", rec.Get(p.Category).String()))
		ps.log.Skip()
		return
	}

	in := classify.Input{
		Excluded: p.Lifecycle != "" && rec.Get(p.Lifecycle).Contains(p.ExcludedMarker),
		Estimate: model.Estimate{
			Initial: model.QuantityOf(rec.Get(p.Initial)),
			Current: model.QuantityOf(rec.Get(p.Current)),
		},
		Stored: rec.Get(p.Fingerprint).String(),
	}

	var (
		subject llm.Subject
		extra   string
	)
	if !in.Excluded {
		var err error
		subject, err = r.subject(ctx, p, rec, name, logger)
		if err != nil {
			logger.Warn("inputs unreadable", zap.Error(err))
			ps.log.Add(rec.ID, audit.Entry{
				Name:   name,
				Action: actionRead,
				Reason: reasonUnreadable,
				Status: audit.StatusFailed,
				Error:  err.Error(),
			})
			return
		}
		extra = extraContext(p, rec)
		in.Fingerprint = fingerprint.Record(name, subject.Description, subject.Content, subject.Summary, extra)
	}

	d := classify.Classify(in)
	switch d.Action {
	case classify.SkipUnchanged:
		logger.Debug("skip", zap.String("reason", d.Reason))
		ps.log.Skip()
	case classify.Clear:
		logger.Info("clearing estimate", zap.String("reason", d.Reason))
		entry := audit.Entry{Name: name, Action: d.Action.String(), Reason: d.Reason}
		r.write(ctx, ps, rec.ID, model.Patch{p.Current: model.Absent(model.KindNumber)}, entry, logger)
	case classify.Estimate:
		logger.Info("estimating", zap.String("reason", d.Reason), zap.Bool("initial", d.IsInitial))
		r.estimate(ctx, ps, rec, name, subject, extra, in.Fingerprint, d, logger)
	}
}

// subject gathers the provider context of a record. The description and
// summary returned are the exact inputs hashed into its fingerprint, so a
// read failure is returned rather than hashed as empty text.
func (r *Runner) subject(ctx context.Context, p Profile, rec model.Record, name string, logger *zap.Logger) (llm.Subject, error) {
	s := llm.Subject{Name: name, Description: rec.TextOr(p.Description, "")}

	content, err := r.store.Content(ctx, rec.ID)
	if err != nil {
		return s, eris.Wrap(err, "read content")
	}
	s.Content = content

	if p.Children != "" {
		s.Summary, err = r.childrenSummary(ctx, p, rec, logger)
		if err != nil {
			return s, err
		}
	}
	return s, nil
}

func (r *Runner) estimate(ctx context.Context, ps *pass, rec model.Record, name string, s llm.Subject, extra, fp string, d classify.Decision, logger *zap.Logger) {
	p := ps.profile
	entry := audit.Entry{Name: name, Action: d.Action.String(), Reason: d.Reason}

	hist := r.loadHistory(ctx, ps)
	var (
		value float64
		err   error
	)
	switch p.Unit {
	case Weeks:
		s.Description = s.Description + "\n\nCONTEXTE: " + extra
		s.History = hist.For(rec.ID, nil, p.HistoryLimit)
		value, err = r.estimator.Weeks(ctx, s)
		if err == nil {
			entry.WrittenWeeks = &value
		}
	case Minutes:
		var group []string
		if p.Group != "" {
			group = append([]string{}, rec.Get(p.Group).List...)
		}
		s.Summary = extra
		s.History = hist.For(rec.ID, group, p.HistoryLimit)
		var minutes float64
		minutes, err = r.estimator.Minutes(ctx, s)
		if err == nil && minutes <= 0 {
			err = eris.Wrapf(ErrNonPositive, "%v minutes", minutes)
		}
		if err == nil {
			value = util.MinutesToHours(minutes)
			entry.EstimatedMinutes = &minutes
			entry.WrittenHours = &value
		}
	}
	if err != nil {
		logger.Warn("estimation failed", zap.Error(err))
		entry.Status = audit.StatusFailed
		entry.Error = err.Error()
		ps.log.Add(rec.ID, entry)
		return
	}

	patch := model.Patch{p.Current: model.Number(model.KindNumber, value)}
	if d.IsInitial {
		patch[p.Initial] = model.Number(model.KindNumber, value)
	}
	if p.Fingerprint != "" {
		patch[p.Fingerprint] = model.Text(model.KindText, fp)
	}
	r.write(ctx, ps, rec.ID, patch, entry, logger.With(zap.Float64("value", value)))
}

func (r *Runner) write(ctx context.Context, ps *pass, id string, patch model.Patch, entry audit.Entry, logger *zap.Logger) {
	switch {
	case r.opts.Debug:
		logger.Info("simulated write")
		entry.Status = audit.StatusSimulated
	default:
		if err := r.store.Update(ctx, id, patch); err != nil {
			logger.Warn("write failed", zap.Error(err))
			entry.Status = audit.StatusFailed
			entry.Error = err.Error()
		} else {
			logger.Info("written")
			entry.Status = audit.StatusWritten
		}
	}
	ps.log.Add(id, entry)
}
