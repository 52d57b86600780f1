package notifier

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/dynoinc/discussbridge/internal/notifier/mocks"
	"github.com/dynoinc/discussbridge/internal/payload"
)

var testDest = Destination{Team: "test-team", Channel: "test-channel"}

func discussionEvent(t *testing.T, action any, discussion any) []byte {
	t.Helper()

	event := map[string]any{}
	if action != nil {
		event["action"] = action
	}
	if discussion != nil {
		event["discussion"] = discussion
	}

	raw, err := json.Marshal(event)
	require.NoError(t, err)
	return raw
}

func wellFormed() map[string]any {
	return map[string]any{
		"title":    "Hello",
		"body":     "World",
		"html_url": "https://x/1",
		"user":     map[string]any{"login": "alice"},
	}
}

func TestFormat(t *testing.T) {
	msg := Format(Discussion{Author: "alice", Title: "Hello", Body: "World", URL: "https://x/1"})
	require.Equal(t, "New Discussion Created by _alice_:\n*Hello*\nWorld\n\nopen: https://x/1", msg)
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"empty", "", ""},
		{"short", "World", "World"},
		{"exactly limit", strings.Repeat("a", 200), strings.Repeat("a", 200)},
		{"over limit", strings.Repeat("a", 201), strings.Repeat("a", 200) + "..."},
		{"multibyte at byte limit", strings.Repeat("é", 100), strings.Repeat("é", 100)},
		// 101 runes fit under the rune limit but 202 bytes exceed the byte limit.
		{"multibyte under rune limit", strings.Repeat("é", 101), strings.Repeat("é", 101) + "..."},
		{"multibyte over rune limit", strings.Repeat("é", 250), strings.Repeat("é", 200) + "..."},
		{"emoji", strings.Repeat("👍", 201), strings.Repeat("👍", 200) + "..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, truncate(tt.body))
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		event      payload.Object
		actionable bool
	}{
		{payload.Object{}, true},
		{payload.Object{"action": nil}, true},
		{payload.Object{"action": "created"}, true},
		{payload.Object{"action": "edited"}, false},
		{payload.Object{"action": "deleted"}, false},
		{payload.Object{"action": "Created"}, false},
		{payload.Object{"action": ""}, false},
		{payload.Object{"action": 1.0}, false},
		{payload.Object{"action": []any{"created"}}, false},
	}

	for _, tt := range tests {
		_, actionable := Classify(tt.event)
		assert.Equal(t, tt.actionable, actionable, "event %v", tt.event)
	}
}

func TestExtract(t *testing.T) {
	d, err := Extract(payload.Object{"discussion": wellFormed()})
	require.NoError(t, err)
	require.Equal(t, Discussion{Author: "alice", Title: "Hello", Body: "World", URL: "https://x/1"}, d)

	noBody := wellFormed()
	delete(noBody, "body")
	d, err = Extract(payload.Object{"discussion": noBody})
	require.NoError(t, err)
	require.Equal(t, "<empty body>", d.Body)

	nullBody := wellFormed()
	nullBody["body"] = nil
	d, err = Extract(payload.Object{"discussion": nullBody})
	require.NoError(t, err)
	require.Equal(t, "<empty body>", d.Body)

	for _, discussion := range []any{nil, "discussion", 12.0, []any{wellFormed()}} {
		_, err := Extract(payload.Object{"discussion": discussion})
		require.ErrorIs(t, err, ErrNotDiscussion)
	}
	_, err = Extract(payload.Object{})
	require.ErrorIs(t, err, ErrNotDiscussion)
}

func TestExtractRequiredFields(t *testing.T) {
	tests := []struct {
		field  string
		mutate func(map[string]any)
	}{
		{"discussion.title", func(d map[string]any) { delete(d, "title") }},
		{"discussion.title", func(d map[string]any) { d["title"] = 5 }},
		{"discussion.html_url", func(d map[string]any) { delete(d, "html_url") }},
		{"discussion.html_url", func(d map[string]any) { d["html_url"] = false }},
		{"discussion.user", func(d map[string]any) { delete(d, "user") }},
		{"discussion.user", func(d map[string]any) { d["user"] = "alice" }},
		{"discussion.user.login", func(d map[string]any) { d["user"] = map[string]any{} }},
		{"discussion.user.login", func(d map[string]any) { d["user"] = map[string]any{"login": 7} }},
	}

	for _, tt := range tests {
		d := wellFormed()
		tt.mutate(d)

		_, err := Extract(payload.Object{"discussion": d})
		require.ErrorIs(t, err, payload.ErrRequiredField)

		var fieldErr *payload.FieldError
		require.True(t, errors.As(err, &fieldErr))
		require.Equal(t, tt.field, fieldErr.Field)
	}
}

func TestHandleSends(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := mocks.NewMockSink(ctrl)
	h := New(sink, testDest)

	want := "New Discussion Created by _alice_:\n*Hello*\nWorld\n\nopen: https://x/1"
	sink.EXPECT().Send(gomock.Any(), "test-team", "test-channel", want).Return(nil).Times(2)

	before := testutil.ToFloat64(eventsTotal.WithLabelValues(string(OutcomeSent)))

	outcome, err := h.Handle(t.Context(), discussionEvent(t, "created", wellFormed()))
	require.NoError(t, err)
	require.Equal(t, OutcomeSent, outcome)

	// A missing action is treated as created.
	outcome, err = h.Handle(t.Context(), discussionEvent(t, nil, wellFormed()))
	require.NoError(t, err)
	require.Equal(t, OutcomeSent, outcome)

	require.Equal(t, before+2, testutil.ToFloat64(eventsTotal.WithLabelValues(string(OutcomeSent))))
}

func TestHandleSkipsNonCreatedActions(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := New(mocks.NewMockSink(ctrl), testDest)

	for _, action := range []any{"edited", "deleted", "answered", "pinned", "", 3.0, true} {
		outcome, err := h.Handle(t.Context(), discussionEvent(t, action, wellFormed()))
		require.NoError(t, err)
		require.Equal(t, OutcomeNotActionable, outcome, "action %v", action)
	}
}

func TestHandleSkipsNonDiscussion(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := New(mocks.NewMockSink(ctrl), testDest)

	events := [][]byte{
		[]byte(`{"action":"created"}`),
		[]byte(`{"action":"created","discussion":null}`),
		[]byte(`{"action":"created","discussion":"text"}`),
		[]byte(`{"action":"created","discussion":[1,2]}`),
		[]byte(`{"discussion":42}`),
	}
	for _, event := range events {
		outcome, err := h.Handle(t.Context(), event)
		require.NoError(t, err)
		require.Equal(t, OutcomeNotDiscussion, outcome, string(event))
	}
}

func TestHandleSkipsUnrecognizedPayload(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := New(mocks.NewMockSink(ctrl), testDest)

	for _, event := range []string{`[]`, `"created"`, `null`, `{not json`} {
		outcome, err := h.Handle(t.Context(), []byte(event))
		require.NoError(t, err)
		require.Equal(t, OutcomeUnrecognized, outcome, event)
	}
}

func TestHandleMissingTitle(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := New(mocks.NewMockSink(ctrl), testDest)

	d := wellFormed()
	delete(d, "title")

	outcome, err := h.Handle(t.Context(), discussionEvent(t, "created", d))
	require.ErrorIs(t, err, payload.ErrRequiredField)
	require.Equal(t, OutcomeMalformed, outcome)
}

func TestHandleBodyPlaceholderAndTruncation(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := mocks.NewMockSink(ctrl)
	h := New(sink, testDest)

	noBody := wellFormed()
	delete(noBody, "body")
	sink.EXPECT().
		Send(gomock.Any(), "test-team", "test-channel", "New Discussion Created by _alice_:\n*Hello*\n<empty body>\n\nopen: https://x/1").
		Return(nil)
	_, err := h.Handle(t.Context(), discussionEvent(t, "created", noBody))
	require.NoError(t, err)

	long := wellFormed()
	long["body"] = strings.Repeat("b", 300)
	sink.EXPECT().
		Send(gomock.Any(), "test-team", "test-channel", "New Discussion Created by _alice_:\n*Hello*\n"+strings.Repeat("b", 200)+"...\n\nopen: https://x/1").
		Return(nil)
	_, err = h.Handle(t.Context(), discussionEvent(t, "created", long))
	require.NoError(t, err)
}

func TestHandleSendFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	sink := mocks.NewMockSink(ctrl)
	h := New(sink, testDest)

	sendErr := errors.New("channel_not_found")
	sink.EXPECT().Send(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(sendErr).Times(1)

	outcome, err := h.Handle(t.Context(), discussionEvent(t, "created", wellFormed()))
	require.ErrorIs(t, err, sendErr)
	require.Equal(t, OutcomeSendFailed, outcome)
}
