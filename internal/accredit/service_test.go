package accredit

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/mspdash/internal/model"
	"github.com/sells-group/mspdash/pkg/nsi"
)

type fakeClient struct {
	items map[string]*nsi.Item
	errs  map[string]error
	calls []string
}

func (f *fakeClient) Lookup(ctx context.Context, inn string) (*nsi.Item, error) {
	f.calls = append(f.calls, inn)
	if err := f.errs[inn]; err != nil {
		return nil, err
	}
	return f.items[inn], nil
}

type memStore struct {
	snapshots map[string]*model.Accreditation
	batches   []model.SyncBatch
	upserts   int
}

func newMemStore() *memStore {
	return &memStore{snapshots: make(map[string]*model.Accreditation)}
}

func (m *memStore) GetByINN(ctx context.Context, inn string) (*model.Accreditation, error) {
	return m.snapshots[inn], nil
}

func (m *memStore) GetForINNs(ctx context.Context, inns []string) (map[string]*model.Accreditation, error) {
	result := make(map[string]*model.Accreditation)
	for _, inn := range inns {
		if s, ok := m.snapshots[inn]; ok {
			result[inn] = s
		}
	}
	return result, nil
}

func (m *memStore) Upsert(ctx context.Context, snapshot *model.Accreditation) error {
	m.upserts++
	m.snapshots[snapshot.INN] = snapshot
	return nil
}

func (m *memStore) LogSync(ctx context.Context, batch model.SyncBatch) error {
	m.batches = append(m.batches, batch)
	return nil
}

func (m *memStore) LastSync(ctx context.Context) (*model.SyncBatch, error) {
	if len(m.batches) == 0 {
		return nil, nil
	}
	return &m.batches[len(m.batches)-1], nil
}

func (m *memStore) Migrate(ctx context.Context) error { return nil }
func (m *memStore) Close() error                      { return nil }

func registryItem(attrs nsi.Attributes) *nsi.Item {
	raw, _ := json.Marshal(map[string]any{"attributeValues": attrs})
	return &nsi.Item{Attributes: attrs, Raw: raw}
}

func newTestService(client nsi.Client, store Store, opts ...ServiceOption) *Service {
	opts = append([]ServiceOption{WithRateLimit(0)}, opts...)
	return NewService(client, store, opts...)
}

func TestSync_DedupesAndSorts(t *testing.T) {
	client := &fakeClient{}
	store := newMemStore()
	svc := newTestService(client, store)

	outcomes, err := svc.Sync(context.Background(), []string{"222", "111", " 111 ", ""})
	require.NoError(t, err)

	require.Len(t, outcomes, 2)
	assert.Equal(t, "111", outcomes[0].INN)
	assert.Equal(t, "222", outcomes[1].INN)
	assert.Equal(t, []string{"111", "222"}, client.calls)
}

func TestSync_NotFoundUpsertsPlaceholder(t *testing.T) {
	client := &fakeClient{}
	store := newMemStore()
	svc := newTestService(client, store)

	outcomes, err := svc.Sync(context.Background(), []string{"7700000001"})
	require.NoError(t, err)

	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Success)
	assert.Equal(t, model.AccreditationNotFound, outcomes[0].Status)

	snapshot := store.snapshots["7700000001"]
	require.NotNil(t, snapshot)
	assert.Equal(t, "7700000001", snapshot.Name)
	assert.Equal(t, model.AccreditationNotFound, snapshot.Status)
	assert.JSONEq(t, "{}", string(snapshot.RawPayload))
	assert.False(t, snapshot.CheckedAt.IsZero())
}

func TestSync_PartialFailureContinues(t *testing.T) {
	client := &fakeClient{
		errs: map[string]error{
			"A": &nsi.TransportError{Err: eris.New("nsi: send request: connection refused")},
		},
		items: map[string]*nsi.Item{
			"B": registryItem(nsi.Attributes{Status: model.AccreditationActive, NameOrganization: "ООО Бета"}),
		},
	}
	store := newMemStore()
	svc := newTestService(client, store)

	outcomes, err := svc.Sync(context.Background(), []string{"A", "B"})
	require.NoError(t, err)
	require.Len(t, outcomes, 2)

	assert.False(t, outcomes[0].Success)
	assert.Contains(t, outcomes[0].Error, "connection refused")
	assert.True(t, outcomes[1].Success)
	assert.Equal(t, model.AccreditationActive, outcomes[1].Status)

	// The failed identifier must leave no trace in the store.
	assert.Nil(t, store.snapshots["A"])
	assert.NotNil(t, store.snapshots["B"])

	require.Len(t, store.batches, 1)
	assert.Equal(t, 2, store.batches[0].Requested)
	assert.Equal(t, 1, store.batches[0].Succeeded)
	assert.Equal(t, 1, store.batches[0].Failed)
}

func TestSync_Idempotent(t *testing.T) {
	item := registryItem(nsi.Attributes{
		Status:           model.AccreditationActive,
		NameOrganization: "ООО Ромашка",
		NumberDecision:   "АО-20230915-1",
		DateDecision:     "2023-09-15",
		DateRecord:       "2023-09-20",
	})
	client := &fakeClient{items: map[string]*nsi.Item{"7701234567": item}}
	store := newMemStore()

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(client, store, WithClock(func() time.Time { return now }))

	_, err := svc.Sync(context.Background(), []string{"7701234567"})
	require.NoError(t, err)
	first := *store.snapshots["7701234567"]

	now = now.Add(time.Hour)
	_, err = svc.Sync(context.Background(), []string{"7701234567"})
	require.NoError(t, err)
	second := *store.snapshots["7701234567"]

	assert.Len(t, store.snapshots, 1)
	assert.Equal(t, 2, store.upserts)

	assert.True(t, second.CheckedAt.After(first.CheckedAt))
	assert.Equal(t, first.Name, second.Name)
	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.DecisionNumber, second.DecisionNumber)
	assert.Equal(t, first.DecisionDate, second.DecisionDate)
}

func TestSync_SnapshotFields(t *testing.T) {
	t.Run("name falls back through alternates", func(t *testing.T) {
		client := &fakeClient{items: map[string]*nsi.Item{
			"1": registryItem(nsi.Attributes{NameINN: "ИП Иванов"}),
			"2": registryItem(nsi.Attributes{}),
		}}
		store := newMemStore()
		svc := newTestService(client, store)

		_, err := svc.Sync(context.Background(), []string{"1", "2"})
		require.NoError(t, err)

		assert.Equal(t, "ИП Иванов", store.snapshots["1"].Name)
		assert.Equal(t, "2", store.snapshots["2"].Name)
		assert.Equal(t, model.AccreditationUnknown, store.snapshots["2"].Status)
	})

	t.Run("dates parsed leniently", func(t *testing.T) {
		client := &fakeClient{items: map[string]*nsi.Item{
			"1": registryItem(nsi.Attributes{
				Status:       model.AccreditationActive,
				DateDecision: "2023-01-15",
				DateRecord:   "15.01.2023",
			}),
		}}
		store := newMemStore()
		svc := newTestService(client, store)

		_, err := svc.Sync(context.Background(), []string{"1"})
		require.NoError(t, err)

		snapshot := store.snapshots["1"]
		require.NotNil(t, snapshot.DecisionDate)
		assert.Equal(t, time.Date(2023, 1, 15, 0, 0, 0, 0, time.UTC), *snapshot.DecisionDate)
		assert.Nil(t, snapshot.RegistryRecordDate)
	})
}

func TestSnapshots(t *testing.T) {
	store := newMemStore()
	store.snapshots["1"] = &model.Accreditation{INN: "1", Status: model.AccreditationActive}
	svc := newTestService(&fakeClient{}, store)

	result, err := svc.Snapshots(context.Background(), []string{"1", "2"})
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, model.AccreditationActive, result["1"].Status)
}
