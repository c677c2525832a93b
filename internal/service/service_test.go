package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/abgdnv/catalog/internal/domain"
	perrors "github.com/abgdnv/catalog/internal/errors"
	"github.com/abgdnv/catalog/internal/store"
	"github.com/abgdnv/catalog/pkg/messaging"
	"github.com/abgdnv/catalog/pkg/messaging/events"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

var (
	ctx       = context.Background()
	productID = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	fixedNow  = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
)

// mockProductStore is a mock implementation of the ProductStore interface
type mockProductStore struct {
	mock.Mock
}

func (m *mockProductStore) Create(ctx context.Context, product domain.Product) error {
	return m.Called(ctx, product).Error(0)
}

func (m *mockProductStore) FindByID(ctx context.Context, id string) (domain.Product, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Product), args.Error(1)
}

func (m *mockProductStore) FindAll(ctx context.Context) ([]domain.Product, error) {
	args := m.Called(ctx)
	products, _ := args.Get(0).([]domain.Product)
	return products, args.Error(1)
}

func (m *mockProductStore) Update(ctx context.Context, id string, patch domain.ProductPatch) (domain.Product, error) {
	args := m.Called(ctx, id, patch)
	return args.Get(0).(domain.Product), args.Error(1)
}

func (m *mockProductStore) DeleteByID(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockProductStore) Count(ctx context.Context) int {
	return m.Called(ctx).Int(0)
}

// newMockStore returns a store mock that reports stored products to the gauge
// callback, which runs on every metrics collection.
func newMockStore(stored int) *mockProductStore {
	m := new(mockProductStore)
	m.On("Count", mock.Anything).Return(stored).Maybe()
	return m
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, event messaging.Event) error {
	return m.Called(ctx, event).Error(0)
}

func widget() domain.Product {
	return domain.Product{
		ID:          productID,
		Name:        "Widget1",
		Description: "A widget",
		Price:       9.99,
		Quantity:    3,
		Category:    domain.CategoryToys,
	}
}

func ptr[T any](v T) *T { return &v }

func newTestService(t *testing.T, repo store.ProductStore, pub messaging.Publisher) (*Service, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	svc, err := NewService(repo, pub, mp.Meter("catalog-test"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	svc.now = func() time.Time { return fixedNow }
	return svc, reader
}

// counterValue returns the operations counter value for one operation/outcome pair.
func counterValue(t *testing.T, reader *sdkmetric.ManualReader, operation, outcome string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	want := attribute.NewSet(attribute.String("operation", operation), attribute.String("outcome", outcome))
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "catalog_product_operations" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				if dp.Attributes.Equals(&want) {
					return dp.Value
				}
			}
		}
	}
	return 0
}

func gaugeValue(t *testing.T, reader *sdkmetric.ManualReader) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "catalog_products_stored" {
				continue
			}
			gauge, ok := m.Data.(metricdata.Gauge[int64])
			require.True(t, ok)
			require.Len(t, gauge.DataPoints, 1)
			return gauge.DataPoints[0].Value
		}
	}
	t.Fatal("gauge not found")
	return 0
}

func Test_ProductService_Create(t *testing.T) {
	testCases := []struct {
		name            string
		storeErr        error
		expectError     error
		expectPublished bool
		outcome         string
	}{
		{name: "Success - product created", expectPublished: true, outcome: outcomeOK},
		{name: "Error - conflict", storeErr: perrors.ErrProductConflict, expectError: perrors.ErrProductConflict, outcome: outcomeConflict},
		{name: "Error - unexpected", storeErr: errors.New("boom"), expectError: nil, outcome: outcomeError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			repo := newMockStore(0)
			repo.On("Create", mock.Anything, widget()).Return(tc.storeErr).Once()
			pub := new(mockPublisher)
			if tc.expectPublished {
				pub.On("Publish", mock.Anything, events.ProductCreatedEvent{
					Product:    snapshot(widget()),
					OccurredAt: fixedNow,
				}).Return(nil).Once()
			}
			svc, reader := newTestService(t, repo, pub)

			// when
			created, err := svc.Create(ctx, widget())

			// then
			if tc.storeErr != nil {
				require.Error(t, err)
				if tc.expectError != nil {
					assert.ErrorIs(t, err, tc.expectError)
				}
				assert.Nil(t, created)
			} else {
				require.NoError(t, err)
				assert.Equal(t, widget(), *created)
			}
			repo.AssertExpectations(t)
			pub.AssertExpectations(t)
			assert.Equal(t, int64(1), counterValue(t, reader, "create", tc.outcome))
		})
	}
}

func Test_ProductService_Create_PublishFailureIgnored(t *testing.T) {
	// given
	repo := newMockStore(0)
	repo.On("Create", mock.Anything, widget()).Return(nil).Once()
	pub := new(mockPublisher)
	pub.On("Publish", mock.Anything, mock.Anything).Return(errors.New("broker down")).Once()
	svc, _ := newTestService(t, repo, pub)

	// when
	created, err := svc.Create(ctx, widget())

	// then
	require.NoError(t, err)
	assert.Equal(t, productID, created.ID)
	pub.AssertExpectations(t)
}

func Test_ProductService_FindByID(t *testing.T) {
	testCases := []struct {
		name        string
		stored      domain.Product
		storeErr    error
		expected    *domain.Product
		expectError error
	}{
		{name: "Success - product found", stored: widget(), expected: ptr(widget())},
		{name: "Error - product not found", storeErr: perrors.ErrProductNotFound, expectError: perrors.ErrProductNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			repo := newMockStore(0)
			repo.On("FindByID", mock.Anything, productID.String()).Return(tc.stored, tc.storeErr).Once()
			svc, _ := newTestService(t, repo, new(mockPublisher))

			product, err := svc.FindByID(ctx, productID.String())

			if tc.expectError != nil {
				require.ErrorIs(t, err, tc.expectError)
				assert.Contains(t, err.Error(), productID.String())
				assert.Nil(t, product)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, product)
		})
	}
}

func Test_ProductService_FindAll(t *testing.T) {
	repo := newMockStore(0)
	repo.On("FindAll", mock.Anything).Return([]domain.Product{widget()}, nil).Once()
	svc, reader := newTestService(t, repo, new(mockPublisher))

	products, err := svc.FindAll(ctx)

	require.NoError(t, err)
	assert.Equal(t, []domain.Product{widget()}, products)
	assert.Equal(t, int64(1), counterValue(t, reader, "find_all", outcomeOK))
}

func Test_ProductService_Update(t *testing.T) {
	patch := domain.ProductPatch{Quantity: ptr(5), Name: ptr("Renamed")}
	updated := widget()
	updated.Quantity = 5
	updated.Name = "Renamed"

	t.Run("Success - publishes changed fields", func(t *testing.T) {
		repo := newMockStore(0)
		repo.On("Update", mock.Anything, productID.String(), patch).Return(updated, nil).Once()
		pub := new(mockPublisher)
		pub.On("Publish", mock.Anything, events.ProductUpdatedEvent{
			Product:    snapshot(updated),
			Fields:     []string{"name", "quantity"},
			OccurredAt: fixedNow,
		}).Return(nil).Once()
		svc, _ := newTestService(t, repo, pub)

		result, err := svc.Update(ctx, productID, patch)

		require.NoError(t, err)
		assert.Equal(t, updated, *result)
		pub.AssertExpectations(t)
	})

	t.Run("Error - not found publishes nothing", func(t *testing.T) {
		repo := newMockStore(0)
		repo.On("Update", mock.Anything, productID.String(), patch).Return(domain.Product{}, perrors.ErrProductNotFound).Once()
		pub := new(mockPublisher)
		svc, reader := newTestService(t, repo, pub)

		result, err := svc.Update(ctx, productID, patch)

		require.ErrorIs(t, err, perrors.ErrProductNotFound)
		assert.Nil(t, result)
		pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
		assert.Equal(t, int64(1), counterValue(t, reader, "update", outcomeNotFound))
	})
}

func Test_ProductService_DeleteByID(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		repo := newMockStore(0)
		repo.On("DeleteByID", mock.Anything, productID.String()).Return(nil).Once()
		pub := new(mockPublisher)
		pub.On("Publish", mock.Anything, events.ProductDeletedEvent{ProductID: productID, OccurredAt: fixedNow}).Return(nil).Once()
		svc, _ := newTestService(t, repo, pub)

		require.NoError(t, svc.DeleteByID(ctx, productID.String()))
		pub.AssertExpectations(t)
	})

	t.Run("Error - not found", func(t *testing.T) {
		repo := newMockStore(0)
		repo.On("DeleteByID", mock.Anything, productID.String()).Return(perrors.ErrProductNotFound).Once()
		pub := new(mockPublisher)
		svc, _ := newTestService(t, repo, pub)

		err := svc.DeleteByID(ctx, productID.String())

		require.ErrorIs(t, err, perrors.ErrProductNotFound)
		pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	})
}

func Test_ProductService_StoredGauge(t *testing.T) {
	// given a real store so the gauge reflects actual state
	repo := store.NewInMemoryStore()
	svc, reader := newTestService(t, repo, messaging.NoopPublisher{})
	assert.Equal(t, int64(0), gaugeValue(t, reader))

	// when
	_, err := svc.Create(ctx, widget())
	require.NoError(t, err)

	// then
	assert.Equal(t, int64(1), gaugeValue(t, reader))
	assert.Equal(t, 1, svc.Count(ctx))
}

func Test_ProductService_StoredGauge_ReadsStoreCount(t *testing.T) {
	// given
	repo := newMockStore(7)
	repo.On("FindByID", mock.Anything, productID.String()).Return(widget(), nil).Once()
	svc, reader := newTestService(t, repo, new(mockPublisher))

	// when
	_, err := svc.FindByID(ctx, productID.String())
	require.NoError(t, err)

	// then
	assert.Equal(t, int64(7), gaugeValue(t, reader))
	assert.Equal(t, int64(1), counterValue(t, reader, "find", outcomeOK))
	repo.AssertCalled(t, "Count", mock.Anything)
}

// recordingPublisher keeps published events in arrival order.
type recordingPublisher struct {
	mu     sync.Mutex
	delay  time.Duration
	events []messaging.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event messaging.Event) error {
	time.Sleep(p.delay)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func Test_ProductService_Update_EventsFollowStoreOrder(t *testing.T) {
	// given
	repo := store.NewInMemoryStore()
	pub := &recordingPublisher{delay: time.Millisecond}
	svc, _ := newTestService(t, repo, pub)
	_, err := svc.Create(ctx, widget())
	require.NoError(t, err)

	// when concurrent writers race on the same product
	for range 20 {
		var wg sync.WaitGroup
		for q := 1; q <= 8; q++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := svc.Update(ctx, productID, domain.ProductPatch{Quantity: ptr(q)})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		// then the last event always describes the stored state
		stored, err := repo.FindByID(ctx, productID.String())
		require.NoError(t, err)
		pub.mu.Lock()
		last, ok := pub.events[len(pub.events)-1].(events.ProductUpdatedEvent)
		pub.mu.Unlock()
		require.True(t, ok)
		assert.Equal(t, stored.Quantity, last.Product.Quantity)
	}
}
