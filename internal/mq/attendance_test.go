package mq

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/control-eventos/apiserver/types"
	"github.com/stretchr/testify/require"
)

type loopbackBackend struct {
	published []Message
	channels  []string
}

func (l *loopbackBackend) Publish(_ context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	l.channels = append(l.channels, channel)
	l.published = append(l.published, Message{ID: "m1", Data: data, Attributes: attrs})
	return "m1", nil
}

func (l *loopbackBackend) Subscribe(ctx context.Context, _ string, handler Handler) error {
	var errs []error
	for _, msg := range l.published {
		if err := handler(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (l *loopbackBackend) Close() error { return nil }

func TestAttendanceChannelRoundTrip(t *testing.T) {
	backend := &loopbackBackend{}
	channel := NewAttendanceChannel(New(backend), "attendance-registered")

	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, channel.PublishAttendance(context.Background(), types.AttendanceMessage{EventID: 7, UserEmail: "ana@example.com", At: at}))
	require.Equal(t, []string{"attendance-registered"}, backend.channels)
	require.Equal(t, EventAttendanceRegistered, backend.published[0].Attributes[AttributeEventType])
	require.Equal(t, "7", backend.published[0].Attributes["event_id"])

	var got []types.AttendanceMessage
	err := channel.Consume(context.Background(), func(_ context.Context, msg types.AttendanceMessage) error {
		got = append(got, msg)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, 7, got[0].EventID)
	require.Equal(t, "ana@example.com", got[0].UserEmail)
	require.True(t, at.Equal(got[0].At))
}

func TestAttendanceChannelSkipsMalformed(t *testing.T) {
	backend := &loopbackBackend{published: []Message{
		{ID: "bad", Data: []byte("{not json")},
		{ID: "other", Data: []byte(`{"event_id":1,"user_email":"a@b.c"}`), Attributes: map[string]string{AttributeEventType: "something.else"}},
	}}
	channel := NewAttendanceChannel(New(backend), "attendance-registered")

	calls := 0
	err := channel.Consume(context.Background(), func(context.Context, types.AttendanceMessage) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	require.Zero(t, calls)
}

func TestAttendanceChannelPropagatesHandlerError(t *testing.T) {
	backend := &loopbackBackend{published: []Message{
		{ID: "ok", Data: []byte(`{"event_id":1,"user_email":"a@b.c"}`)},
	}}
	channel := NewAttendanceChannel(New(backend), "attendance-registered")

	err := channel.Consume(context.Background(), func(context.Context, types.AttendanceMessage) error {
		return errors.New("db down")
	})
	require.ErrorContains(t, err, "db down")
}

func TestDecodeAttendanceRejectsIncomplete(t *testing.T) {
	_, err := DecodeAttendance(Message{ID: "x", Data: []byte(`{"event_id":0,"user_email":""}`)})
	require.Error(t, err)
}

func TestOpenDisabled(t *testing.T) {
	m, err := Open(context.Background(), configWithBackend("none"))
	require.NoError(t, err)
	require.Nil(t, m)
	require.NoError(t, m.Close())

	_, err = Open(context.Background(), configWithBackend("kafka"))
	require.Error(t, err)
}
