package itip

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuggestResponse(t *testing.T) {
	tests := []struct {
		received Method
		want     Method
	}{
		{MethodRequest, MethodReply},
		{MethodRefresh, MethodRequest},
		{MethodCounter, MethodRequest},
		{MethodPublish, MethodPublish},
		{MethodReply, MethodReply},
		{MethodAdd, MethodAdd},
		{MethodCancel, MethodCancel},
		{MethodDeclineCounter, MethodDeclineCounter},
	}

	for _, tt := range tests {
		t.Run(string(tt.received), func(t *testing.T) {
			got, err := SuggestResponse(tt.received)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			again, err := SuggestResponse(tt.received)
			require.NoError(t, err)
			assert.Equal(t, got, again)
		})
	}
}

func TestSuggestResponseUnknownMethod(t *testing.T) {
	for _, m := range []Method{"", "DELETE", "request", "FOO"} {
		_, err := SuggestResponse(m)
		assert.ErrorIs(t, err, ErrUnknownMethod, "method %q", m)
	}
}

func TestIsValidPair(t *testing.T) {
	tests := []struct {
		name     string
		received Method
		response Method
		itemType ItemType
		want     bool
	}{
		{"add answered with add", MethodAdd, MethodAdd, ItemEvent, true},
		{"add answered with refresh for event", MethodAdd, MethodRefresh, ItemEvent, false},
		{"add answered with refresh for todo", MethodAdd, MethodRefresh, ItemTodo, false},
		{"add answered with refresh for other types", MethodAdd, MethodRefresh, ItemUnknown, true},
		{"add answered with reply", MethodAdd, MethodReply, ItemEvent, false},
		{"counter answered with request", MethodCounter, MethodRequest, ItemEvent, true},
		{"counter answered with declinecounter", MethodCounter, MethodDeclineCounter, ItemTodo, true},
		{"counter answered with reply", MethodCounter, MethodReply, ItemEvent, false},
		{"request answered with reply", MethodRequest, MethodReply, ItemEvent, true},
		{"request answered with reply for todo", MethodRequest, MethodReply, ItemTodo, true},
		{"request delegated", MethodRequest, MethodRequest, ItemEvent, true},
		{"request countered", MethodRequest, MethodCounter, ItemEvent, true},
		{"request answered with publish", MethodRequest, MethodPublish, ItemEvent, false},
		{"request answered with publish for todo", MethodRequest, MethodPublish, ItemTodo, false},
		{"request answered with cancel", MethodRequest, MethodCancel, ItemEvent, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := IsValidPair(tt.received, tt.response, tt.itemType)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsValidPairRefresh(t *testing.T) {
	for _, itemType := range []ItemType{ItemEvent, ItemTodo} {
		for _, response := range Methods {
			got, err := IsValidPair(MethodRefresh, response, itemType)
			require.NoError(t, err)
			assert.Equal(t, response != MethodRequest, got, "REFRESH -> %s (%s)", response, itemType)
		}
	}
}

func TestIsValidPairSymmetric(t *testing.T) {
	symmetric := []Method{MethodPublish, MethodCancel, MethodReply, MethodDeclineCounter}
	for _, itemType := range []ItemType{ItemEvent, ItemTodo} {
		for _, received := range symmetric {
			for _, response := range Methods {
				got, err := IsValidPair(received, response, itemType)
				require.NoError(t, err)
				assert.Equal(t, received == response, got, "%s -> %s (%s)", received, response, itemType)
			}
		}
	}
}

func TestIsValidPairUnknownMethod(t *testing.T) {
	_, err := IsValidPair("DELETE", MethodReply, ItemEvent)
	assert.ErrorIs(t, err, ErrUnknownMethod)
}

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod(" request ")
	require.NoError(t, err)
	assert.Equal(t, MethodRequest, m)

	m, err = ParseMethod("DeclineCounter")
	require.NoError(t, err)
	assert.Equal(t, MethodDeclineCounter, m)

	_, err = ParseMethod("POLLSTATUS")
	assert.ErrorIs(t, err, ErrUnknownMethod)
}

func TestParseItemType(t *testing.T) {
	typ, err := ParseItemType("vevent")
	require.NoError(t, err)
	assert.Equal(t, ItemEvent, typ)

	typ, err = ParseItemType("VTODO")
	require.NoError(t, err)
	assert.Equal(t, ItemTodo, typ)

	typ, err = ParseItemType("VJOURNAL")
	assert.ErrorIs(t, err, ErrUnknownItemType)
	assert.Equal(t, ItemUnknown, typ)
}
