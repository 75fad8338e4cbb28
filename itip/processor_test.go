package itip

import (
	"context"
	"errors"
	"testing"

	"github.com/emersion/go-ical"
	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type schedulingByUID map[string]Attendee

func (s schedulingByUID) InvitedAttendee(item *Item) mo.Option[Attendee] {
	if a, ok := s[item.ID()]; ok {
		return mo.Some(a)
	}
	return mo.None[Attendee]()
}

func TestProcessPublishAddsItem(t *testing.T) {
	tr := &recordingTransport{scheme: "mailto"}
	p, d := newTestProcessor(t, tr)

	store := &MockStore{}
	original := NewMockEvent("uid-1", "Town hall", "mailto:boss@example.com")
	store.On("GetItems", "uid-1").Return([]*Item(nil), nil).Once()
	var added *Item
	store.On("AddItem", mock.AnythingOfType("*itip.Item")).
		Run(func(args mock.Arguments) { added = args.Get(0).(*Item) }).
		Return().Once()

	msg := &Message{
		ReceivedMethod: MethodPublish,
		TargetCalendar: mo.Some[Store](store),
		Items:          []*Item{original},
	}
	listener := &recordingListener{}
	require.NoError(t, p.Process(context.Background(), msg, listener))
	d.Wait()

	store.AssertExpectations(t)
	require.NotNil(t, added)
	assert.NotSame(t, original, added)
	assert.Equal(t, "uid-1", added.ID())
	assert.Empty(t, tr.responses())

	done := listener.byKind(CompletionProcess)
	require.Len(t, done, 1)
	assert.NoError(t, done[0].Err)
	assert.Len(t, listener.byKind(CompletionAdd), 1)
}

func TestProcessRequestRepliesToOrganizer(t *testing.T) {
	tr := &recordingTransport{scheme: "mailto"}
	p, d := newTestProcessor(t, &recordingTransport{scheme: "mailto"})

	store := &MockStore{Properties: map[string]any{PropTransport: tr}}
	original := NewMockEvent("uid-1", "Design review", "mailto:boss@example.com",
		Attendee{ID: "mailto:a@b", Status: PartStatAccepted},
		Attendee{ID: "mailto:c@d", Status: PartStatNeedsAction},
	)
	store.On("GetItems", "uid-1").Return([]*Item{}, nil).Once()
	store.On("AddItem", mock.AnythingOfType("*itip.Item")).Return().Once()

	msg := &Message{
		ReceivedMethod: MethodRequest,
		TargetCalendar: mo.Some[Store](store),
		Identity:       "a@b",
		Items:          []*Item{original},
	}
	require.NoError(t, p.Process(context.Background(), msg, nil))
	d.Wait()

	store.AssertExpectations(t)
	added := store.Calls[1].Arguments.Get(0).(*Item)
	assert.Len(t, added.Attendees(), 2)

	sent := tr.responses()
	require.Len(t, sent, 1)
	require.Len(t, sent[0].recipients, 1)
	assert.Equal(t, "mailto:boss@example.com", sent[0].recipients[0].ID)

	resp := sent[0].msg
	assert.Equal(t, MethodReply, resp.ResponseMethod)
	assert.Equal(t, MethodRequest, resp.ReceivedMethod)
	require.Len(t, resp.Items, 1)
	attendees := resp.Items[0].Attendees()
	require.Len(t, attendees, 1)
	assert.Equal(t, "mailto:a@b", attendees[0].ID)
	assert.Equal(t, "mailto:boss@example.com", resp.Items[0].Organizer().MustGet().ID)

	assert.Equal(t, Method(""), msg.ResponseMethod)
	assert.Len(t, msg.Items[0].Attendees(), 2)
}

func TestProcessRequestNotInvited(t *testing.T) {
	tr := &recordingTransport{scheme: "mailto"}
	p, d := newTestProcessor(t, tr)

	store := &MockStore{Properties: map[string]any{PropTransport: tr}}
	store.On("GetItems", "uid-1").Return([]*Item(nil), nil).Once()

	msg := &Message{
		ReceivedMethod: MethodRequest,
		TargetCalendar: mo.Some[Store](store),
		Identity:       "stranger@example.com",
		Items: []*Item{NewMockEvent("uid-1", "Board meeting", "mailto:boss@example.com",
			Attendee{ID: "mailto:a@b", Status: PartStatAccepted})},
	}
	require.NotPanics(t, func() {
		require.NoError(t, p.Process(context.Background(), msg, nil))
	})
	d.Wait()

	store.AssertNotCalled(t, "AddItem", mock.Anything)
	store.AssertNotCalled(t, "ModifyItem", mock.Anything, mock.Anything)
	assert.Empty(t, tr.responses())
}

func TestProcessRequestDeclined(t *testing.T) {
	tr := &recordingTransport{scheme: "mailto"}
	p, d := newTestProcessor(t, tr)

	store := &MockStore{Properties: map[string]any{PropTransport: tr}}
	store.On("GetItems", "uid-1").Return([]*Item(nil), nil).Once()

	msg := &Message{
		ReceivedMethod: MethodRequest,
		TargetCalendar: mo.Some[Store](store),
		Identity:       "a@b",
		Items: []*Item{NewMockEvent("uid-1", "Late call", "mailto:boss@example.com",
			Attendee{ID: "mailto:a@b", Status: PartStatDeclined},
			Attendee{ID: "mailto:c@d"})},
	}
	require.NoError(t, p.Process(context.Background(), msg, nil))
	d.Wait()

	store.AssertNotCalled(t, "AddItem", mock.Anything)
	store.AssertNotCalled(t, "ModifyItem", mock.Anything, mock.Anything)

	sent := tr.responses()
	require.Len(t, sent, 1)
	attendees := sent[0].msg.Items[0].Attendees()
	require.Len(t, attendees, 1)
	assert.Equal(t, PartStatDeclined, attendees[0].Status)
}

func TestProcessRequestUpdatesExisting(t *testing.T) {
	tr := &recordingTransport{scheme: "mailto"}
	p, d := newTestProcessor(t, tr)

	store := &MockStore{Properties: map[string]any{PropTransport: tr}}
	existing := NewItemBuilder(NewMockEvent("uid-1", "Old title", "mailto:boss@example.com")).
		Generation(3).
		Calendar(mo.Some[Store](store)).
		Build()
	store.On("GetItems", "uid-1").Return([]*Item{existing}, nil).Once()
	store.On("ModifyItem", mock.AnythingOfType("*itip.Item"), existing).Return().Once()

	msg := &Message{
		ReceivedMethod: MethodRequest,
		TargetCalendar: mo.Some[Store](store),
		Identity:       "a@b",
		Items: []*Item{NewMockEvent("uid-1", "New title", "mailto:boss@example.com",
			Attendee{ID: "mailto:a@b", Status: PartStatTentative})},
	}
	listener := &recordingListener{}
	require.NoError(t, p.Process(context.Background(), msg, listener))
	d.Wait()

	store.AssertExpectations(t)
	modified := listener.byKind(CompletionModify)
	require.Len(t, modified, 1)
	assert.Equal(t, 3, modified[0].Item.Generation())
	assert.Equal(t, "New title", modified[0].Item.Summary())
	assert.Len(t, tr.responses(), 1)
}

func TestProcessValidationErrors(t *testing.T) {
	journal := ical.NewComponent(ical.CompJournal)
	journal.Props.SetText(ical.PropUID, "journal-1")

	tests := []struct {
		name    string
		msg     *Message
		wantErr error
	}{
		{name: "nil message", msg: nil, wantErr: ErrInvalidArgument},
		{name: "empty item list", msg: &Message{ReceivedMethod: MethodPublish}, wantErr: ErrEmptyItemList},
		{name: "nil item", msg: &Message{ReceivedMethod: MethodPublish, Items: []*Item{nil}}, wantErr: ErrInvalidArgument},
		{name: "unknown method", msg: &Message{ReceivedMethod: "POLLSTATUS", Items: []*Item{NewMockEvent("uid-1", "x", "")}}, wantErr: ErrUnknownMethod},
		{name: "unknown item type", msg: &Message{ReceivedMethod: MethodPublish, Items: []*Item{NewItem(journal)}}, wantErr: ErrUnknownItemType},
		{name: "refresh cannot be answered with request", msg: &Message{ReceivedMethod: MethodRefresh, Items: []*Item{NewMockEvent("uid-1", "x", "")}}, wantErr: ErrInvalidResponseMethod},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := newTestProcessor(t, &recordingTransport{scheme: "mailto"})
			store := &MockStore{}
			if tt.msg != nil {
				tt.msg.TargetCalendar = mo.Some[Store](store)
			}

			err := p.Process(context.Background(), tt.msg, nil)
			assert.ErrorIs(t, err, tt.wantErr)
			store.AssertNotCalled(t, "GetItems", mock.Anything)
			store.AssertNotCalled(t, "AddItem", mock.Anything)
		})
	}
}

func TestProcessUnimplementedMethods(t *testing.T) {
	for _, m := range []Method{MethodReply, MethodAdd, MethodCancel, MethodCounter, MethodDeclineCounter} {
		t.Run(string(m), func(t *testing.T) {
			p, _ := newTestProcessor(t, &recordingTransport{scheme: "mailto"})
			msg := &Message{ReceivedMethod: m, Items: []*Item{NewMockTodo("todo-1", "Chore", "mailto:boss@example.com")}}

			listener := &recordingListener{}
			err := p.Process(context.Background(), msg, listener)
			assert.ErrorIs(t, err, ErrNotImplemented)

			done := listener.byKind(CompletionProcess)
			require.Len(t, done, 1)
			assert.ErrorIs(t, done[0].Err, ErrNotImplemented)
		})
	}
}

func TestProcessPublishWithoutCalendar(t *testing.T) {
	p, _ := newTestProcessor(t, &recordingTransport{scheme: "mailto"})
	msg := &Message{ReceivedMethod: MethodPublish, Items: []*Item{NewMockEvent("uid-1", "Holiday", "")}}

	err := p.Process(context.Background(), msg, nil)
	assert.ErrorIs(t, err, ErrUndefinedOperation)
}

func TestProcessLookupFailureHaltsItem(t *testing.T) {
	tr := &recordingTransport{scheme: "mailto"}
	p, d := newTestProcessor(t, tr)

	store := &MockStore{}
	lookupErr := errors.New("storage unavailable")
	store.On("GetItems", "uid-1").Return(nil, lookupErr).Once()
	store.On("GetItems", "uid-2").Return([]*Item(nil), nil).Once()
	store.On("AddItem", mock.AnythingOfType("*itip.Item")).Return().Once()

	msg := &Message{
		ReceivedMethod: MethodPublish,
		TargetCalendar: mo.Some[Store](store),
		Items: []*Item{
			NewMockEvent("uid-1", "First", ""),
			NewMockEvent("uid-2", "Second", ""),
		},
	}
	listener := &recordingListener{}
	require.NoError(t, p.Process(context.Background(), msg, listener))
	d.Wait()

	store.AssertExpectations(t)
	lookups := listener.byKind(CompletionLookup)
	require.Len(t, lookups, 1)
	assert.Equal(t, "uid-1", lookups[0].ItemID)
	assert.ErrorIs(t, lookups[0].Err, lookupErr)
	added := listener.byKind(CompletionAdd)
	require.Len(t, added, 1)
	assert.Equal(t, "uid-2", added[0].ItemID)
}

func TestProcessKeepsEarlierItemsOnFailure(t *testing.T) {
	p, _ := newTestProcessor(t, &recordingTransport{scheme: "mailto"})

	store := &MockStore{Scheduling: schedulingByUID{
		"uid-1": {ID: "mailto:a@b", Status: PartStatAccepted},
	}}
	target := mo.Some[Store](store)
	store.On("GetItems", "uid-1").Return([]*Item(nil), nil).Once()
	store.On("GetItems", "uid-2").Return([]*Item(nil), nil).Once()
	store.On("AddItem", mock.AnythingOfType("*itip.Item")).Return().Once()

	first := NewItemBuilder(NewMockEvent("uid-1", "First", "mailto:boss@example.com",
		Attendee{ID: "mailto:a@b", Status: PartStatAccepted})).Calendar(target).Build()
	second := NewItemBuilder(NewMockEvent("uid-2", "Second", "mailto:boss@example.com",
		Attendee{ID: "mailto:a@b", Status: PartStatAccepted})).Calendar(target).Build()

	msg := &Message{
		ReceivedMethod: MethodRequest,
		TargetCalendar: target,
		Identity:       "a@b",
		Items:          []*Item{first, second},
	}
	err := p.Process(context.Background(), msg, nil)
	assert.ErrorIs(t, err, ErrTransportUnsupported)
	store.AssertNumberOfCalls(t, "AddItem", 1)
}
