package accredit

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/mspdash/internal/model"
	"github.com/sells-group/mspdash/pkg/nsi"
)

// Service runs the accreditation sync workflow: one registry lookup per
// identifier, snapshots upserted into the store, per-item outcomes reported
// back in identifier sort order.
type Service struct {
	client  nsi.Client
	store   Store
	limiter *rate.Limiter
	now     func() time.Time
}

// ServiceOption configures the service.
type ServiceOption func(*Service)

// WithRateLimit paces registry lookups at rps requests per second. Zero or
// negative disables pacing.
func WithRateLimit(rps float64) ServiceOption {
	return func(s *Service) {
		if rps > 0 {
			s.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		} else {
			s.limiter = nil
		}
	}
}

// WithClock overrides the time source; tests pin CheckedAt with it.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a sync service over the given registry client and store.
func NewService(client nsi.Client, store Store, opts ...ServiceOption) *Service {
	s := &Service{
		client:  client,
		store:   store,
		limiter: rate.NewLimiter(rate.Limit(1), 1),
		now:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Sync fetches accreditation info for the given INNs and persists it.
// Input is deduplicated and sorted; lookups run sequentially and a failing
// identifier never aborts the rest. The returned outcomes follow the sorted
// identifier order. Only store and context failures are returned as errors.
func (s *Service) Sync(ctx context.Context, inns []string) ([]model.SyncOutcome, error) {
	unique := dedupe(inns)
	log := zap.L().With(zap.Int("identifiers", len(unique)))
	log.Info("starting accreditation sync")

	startedAt := s.now().UTC()
	outcomes := make([]model.SyncOutcome, 0, len(unique))
	failed := 0

	for _, inn := range unique {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return outcomes, eris.Wrap(err, "accredit: rate wait")
			}
		}

		item, err := s.client.Lookup(ctx, inn)
		if err != nil {
			if ctx.Err() != nil {
				return outcomes, eris.Wrap(ctx.Err(), "accredit: sync cancelled")
			}
			log.Warn("accreditation lookup failed",
				zap.String("inn", inn),
				zap.Bool("transport", nsi.IsTransport(err)),
				zap.Error(err),
			)
			outcomes = append(outcomes, model.SyncOutcome{INN: inn, Success: false, Error: err.Error()})
			failed++
			continue
		}

		snapshot := s.buildSnapshot(inn, item)
		if err := s.store.Upsert(ctx, snapshot); err != nil {
			return outcomes, eris.Wrapf(err, "accredit: upsert %s", inn)
		}
		outcomes = append(outcomes, model.SyncOutcome{INN: inn, Success: true, Status: snapshot.Status})
	}

	batch := model.SyncBatch{
		ID:         uuid.New().String(),
		Requested:  len(unique),
		Succeeded:  len(unique) - failed,
		Failed:     failed,
		StartedAt:  startedAt,
		FinishedAt: s.now().UTC(),
	}
	if err := s.store.LogSync(ctx, batch); err != nil {
		// The snapshots are already persisted; a missing log row is not
		// worth failing the batch over.
		log.Warn("sync batch log failed", zap.Error(err))
	}

	log.Info("accreditation sync complete",
		zap.Int("succeeded", batch.Succeeded),
		zap.Int("failed", batch.Failed),
	)
	return outcomes, nil
}

// Snapshots bulk-loads stored accreditation snapshots keyed by INN, for
// attachment onto dataset records.
func (s *Service) Snapshots(ctx context.Context, inns []string) (map[string]*model.Accreditation, error) {
	return s.store.GetForINNs(ctx, inns)
}

func (s *Service) buildSnapshot(inn string, item *nsi.Item) *model.Accreditation {
	checkedAt := s.now().UTC()

	if item == nil {
		return &model.Accreditation{
			INN:        inn,
			Name:       inn,
			Status:     model.AccreditationNotFound,
			RawPayload: []byte("{}"),
			CheckedAt:  checkedAt,
		}
	}

	attrs := item.Attributes
	status := attrs.Status
	if status == "" {
		status = model.AccreditationUnknown
	}
	name := attrs.NameOrganization
	if name == "" {
		name = attrs.NameINN
	}
	if name == "" {
		name = inn
	}

	return &model.Accreditation{
		INN:                inn,
		Name:               name,
		Status:             status,
		DecisionNumber:     attrs.NumberDecision,
		DecisionDate:       parseAPIDate(attrs.DateDecision),
		RegistryRecordDate: parseAPIDate(attrs.DateRecord),
		RawPayload:         item.Raw,
		CheckedAt:          checkedAt,
	}
}

// dedupe trims, drops empties, deduplicates, and sorts the identifiers.
func dedupe(inns []string) []string {
	set := make(map[string]struct{}, len(inns))
	for _, inn := range inns {
		inn = strings.TrimSpace(inn)
		if inn != "" {
			set[inn] = struct{}{}
		}
	}
	unique := make([]string, 0, len(set))
	for inn := range set {
		unique = append(unique, inn)
	}
	sort.Strings(unique)
	return unique
}

// parseAPIDate parses the registry's YYYY-MM-DD date strings; anything else
// is nil.
func parseAPIDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil
	}
	return &t
}
