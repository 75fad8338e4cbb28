package itip

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stalledStore struct {
	MockStore
}

func (s *stalledStore) GetItems(context.Context, string) <-chan mo.Result[[]*Item] {
	return make(chan mo.Result[[]*Item])
}

func TestReconcilerFind(t *testing.T) {
	item := NewMockEvent("uid-1", "Standup", "mailto:boss@example.com")
	stored := NewItemBuilder(item).Generation(2).Build()
	other := NewItemBuilder(item).Generation(9).Build()

	tests := []struct {
		name      string
		items     []*Item
		err       error
		wantOK    bool
		wantOp    Operation
		wantFound *Item
	}{
		{name: "not found", items: nil, wantOK: true, wantOp: OpAdd},
		{name: "found", items: []*Item{stored}, wantOK: true, wantOp: OpUpdate, wantFound: stored},
		{name: "first match wins", items: []*Item{stored, other}, wantOK: true, wantOp: OpUpdate, wantFound: stored},
		{name: "lookup error", err: errors.New("storage unavailable"), wantOK: false, wantOp: OpUndetermined},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &MockStore{}
			store.On("GetItems", "uid-1").Return(tt.items, tt.err).Once()

			got := NewReconciler(testLogger()).Find(context.Background(), item, mo.Some[Store](store))
			assert.Equal(t, tt.wantOK, got.OK)
			assert.Equal(t, tt.wantOp, got.Op)
			if tt.err != nil {
				assert.ErrorIs(t, got.Err, tt.err)
			}
			if tt.wantFound != nil {
				found, ok := got.Existing.Get()
				require.True(t, ok)
				assert.Same(t, tt.wantFound, found)
			} else {
				assert.True(t, got.Existing.IsAbsent())
			}
			store.AssertExpectations(t)
		})
	}
}

func TestReconcilerWithoutStore(t *testing.T) {
	item := NewMockEvent("uid-1", "Standup", "")
	got := NewReconciler(nil).Find(context.Background(), item, mo.None[Store]())
	assert.True(t, got.OK)
	assert.Equal(t, OpUndetermined, got.Op)
	assert.True(t, got.Existing.IsAbsent())
}

func TestReconcilerContextCancelled(t *testing.T) {
	item := NewMockEvent("uid-1", "Standup", "")
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	got := NewReconciler(nil).Find(ctx, item, mo.Some[Store](&stalledStore{}))
	assert.False(t, got.OK)
	assert.ErrorIs(t, got.Err, context.DeadlineExceeded)
}
