package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/abgdnv/catalog/internal/domain"
	perrors "github.com/abgdnv/catalog/internal/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ctx = context.Background()

const widgetID = "11111111-1111-1111-1111-111111111111"

func ptr[T any](v T) *T { return &v }

func widget() domain.Product {
	return domain.Product{
		ID:          uuid.MustParse(widgetID),
		Name:        "Widget1",
		Description: "A widget",
		Price:       9.99,
		Quantity:    3,
		Category:    domain.CategoryToys,
	}
}

func productNamed(name string) domain.Product {
	return domain.Product{
		ID:       uuid.New(),
		Name:     name,
		Price:    1,
		Quantity: 1,
		Category: domain.CategoryBooks,
	}
}

func Test_InMemory_CreateAndFind(t *testing.T) {
	// given
	s := NewInMemoryStore()
	// when
	require.NoError(t, s.Create(ctx, widget()))
	found, err := s.FindByID(ctx, widgetID)
	// then
	require.NoError(t, err)
	assert.Equal(t, widget(), found)
	assert.Equal(t, 1, s.Count(ctx))
}

func Test_InMemory_FindByID_CaseInsensitive(t *testing.T) {
	s := NewInMemoryStore()
	p := widget()
	p.ID = uuid.MustParse("a0eebc99-9c0b-4ef8-bb6d-6bb9bd380a11")
	require.NoError(t, s.Create(ctx, p))

	found, err := s.FindByID(ctx, strings.ToUpper(p.ID.String()))
	require.NoError(t, err)
	assert.Equal(t, p.ID, found.ID)
}

func Test_InMemory_Create_Conflict(t *testing.T) {
	// given
	s := NewInMemoryStore()
	require.NoError(t, s.Create(ctx, widget()))
	other := widget()
	other.Name = "Another name"

	// when
	err := s.Create(ctx, other)

	// then
	require.ErrorIs(t, err, perrors.ErrProductConflict)
	found, err := s.FindByID(ctx, widgetID)
	require.NoError(t, err)
	assert.Equal(t, "Widget1", found.Name, "store must be unchanged after a conflict")
	assert.Equal(t, 1, s.Count(ctx))
}

func Test_InMemory_Create_ConcurrentSameID(t *testing.T) {
	// given
	s := NewInMemoryStore()
	const workers = 64
	var successes, conflicts atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})

	// when
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p := widget()
			p.Name = fmt.Sprintf("Widget-%02d", i)
			<-start
			switch err := s.Create(ctx, p); {
			case err == nil:
				successes.Add(1)
			case assert.ErrorIs(t, err, perrors.ErrProductConflict):
				conflicts.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	// then
	assert.Equal(t, int32(1), successes.Load())
	assert.Equal(t, int32(workers-1), conflicts.Load())
	all, err := s.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func Test_InMemory_Update(t *testing.T) {
	testCases := []struct {
		name     string
		patch    domain.ProductPatch
		expected domain.Product
	}{
		{
			name:  "only patched field changes",
			patch: domain.ProductPatch{Quantity: ptr(5)},
			expected: func() domain.Product {
				p := widget()
				p.Quantity = 5
				return p
			}(),
		},
		{
			name:     "empty patch is a no-op",
			patch:    domain.ProductPatch{},
			expected: widget(),
		},
		{
			name:     "identity is never altered",
			patch:    domain.ProductPatch{ID: ptr(uuid.New())},
			expected: widget(),
		},
		{
			name:  "category and price change together",
			patch: domain.ProductPatch{Category: ptr(domain.CategoryBooks), Price: ptr(0.5)},
			expected: func() domain.Product {
				p := widget()
				p.Category = domain.CategoryBooks
				p.Price = 0.5
				return p
			}(),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			s := NewInMemoryStore()
			require.NoError(t, s.Create(ctx, widget()))
			// when
			updated, err := s.Update(ctx, widgetID, tc.patch)
			// then
			require.NoError(t, err)
			assert.Equal(t, tc.expected, updated)
			found, err := s.FindByID(ctx, widgetID)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, found)
		})
	}
}

func Test_InMemory_NotFoundSymmetry(t *testing.T) {
	s := NewInMemoryStore()
	missing := uuid.NewString()

	_, err := s.FindByID(ctx, missing)
	assert.ErrorIs(t, err, perrors.ErrProductNotFound)

	_, err = s.Update(ctx, missing, domain.ProductPatch{Quantity: ptr(2)})
	assert.ErrorIs(t, err, perrors.ErrProductNotFound)

	err = s.DeleteByID(ctx, missing)
	assert.ErrorIs(t, err, perrors.ErrProductNotFound)

	_, err = s.FindByID(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, perrors.ErrProductNotFound)
	assert.Zero(t, s.Count(ctx))
}

func Test_InMemory_DeleteIdempotence(t *testing.T) {
	// given
	s := NewInMemoryStore()
	require.NoError(t, s.Create(ctx, widget()))
	// when
	first := s.DeleteByID(ctx, widgetID)
	second := s.DeleteByID(ctx, widgetID)
	// then
	assert.NoError(t, first)
	assert.ErrorIs(t, second, perrors.ErrProductNotFound)
	_, err := s.FindByID(ctx, widgetID)
	assert.ErrorIs(t, err, perrors.ErrProductNotFound)
}

func Test_InMemory_FindAll_InsertionOrder(t *testing.T) {
	s := NewInMemoryStore()
	names := []string{"Product C", "Product A", "Product B"}
	for _, name := range names {
		require.NoError(t, s.Create(ctx, productNamed(name)))
	}

	all, err := s.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i, name := range names {
		assert.Equal(t, name, all[i].Name)
	}
}

func Test_InMemory_FindAll_Empty(t *testing.T) {
	all, err := NewInMemoryStore().FindAll(ctx)
	require.NoError(t, err)
	assert.NotNil(t, all)
	assert.Empty(t, all)
}

func Test_InMemory_SnapshotIsolation(t *testing.T) {
	// given
	s := NewInMemoryStore()
	require.NoError(t, s.Create(ctx, widget()))
	second := productNamed("Second product")
	require.NoError(t, s.Create(ctx, second))
	snapshot, err := s.FindAll(ctx)
	require.NoError(t, err)

	// when
	_, err = s.Update(ctx, widgetID, domain.ProductPatch{Name: ptr("Renamed widget")})
	require.NoError(t, err)
	require.NoError(t, s.DeleteByID(ctx, second.Key()))

	// then
	require.Len(t, snapshot, 2)
	assert.Equal(t, "Widget1", snapshot[0].Name)
	assert.Equal(t, "Second product", snapshot[1].Name)
}

func Test_InMemory_ReturnedCopiesAreDetached(t *testing.T) {
	s := NewInMemoryStore()
	require.NoError(t, s.Create(ctx, widget()))

	found, err := s.FindByID(ctx, widgetID)
	require.NoError(t, err)
	found.Name = "Mutated outside"

	again, err := s.FindByID(ctx, widgetID)
	require.NoError(t, err)
	assert.Equal(t, "Widget1", again.Name)
}

func Test_InMemory_ConcurrentUpdatesAreAtomic(t *testing.T) {
	// given
	s := NewInMemoryStore()
	require.NoError(t, s.Create(ctx, widget()))
	var wg sync.WaitGroup

	// when each writer sets name and quantity together, readers must never see a mix
	for q := 1; q <= 10; q++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				_, err := s.Update(ctx, widgetID, domain.ProductPatch{
					Name:     ptr(fmt.Sprintf("Widget-%02d", q)),
					Quantity: ptr(q),
				})
				assert.NoError(t, err)
			}
		}()
	}
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 200 {
				p, err := s.FindByID(ctx, widgetID)
				if !assert.NoError(t, err) {
					return
				}
				if p.Name != "Widget1" {
					assert.Equal(t, fmt.Sprintf("Widget-%02d", p.Quantity), p.Name)
				}
			}
		}()
	}
	wg.Wait()

	// then
	final, err := s.FindByID(ctx, widgetID)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("Widget-%02d", final.Quantity), final.Name)
}
