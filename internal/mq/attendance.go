package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/control-eventos/apiserver/types"
)

const (
	AttributeEventType   = "event_type"
	AttributeContentType = "content_type"

	EventAttendanceRegistered = "attendance.registered"
)

// AttendanceChannel publishes and consumes check-in notifications on one channel.
type AttendanceChannel struct {
	mq      *MQ
	channel string
}

func NewAttendanceChannel(m *MQ, channel string) *AttendanceChannel {
	return &AttendanceChannel{mq: m, channel: channel}
}

// PublishAttendance implements the check-in notifier used by the attendance service.
func (a *AttendanceChannel) PublishAttendance(ctx context.Context, msg types.AttendanceMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode attendance message: %w", err)
	}
	_, err = a.mq.Publish(ctx, a.channel, data, map[string]string{
		AttributeEventType:   EventAttendanceRegistered,
		AttributeContentType: "application/json",
		"event_id":           strconv.Itoa(msg.EventID),
	})
	return err
}

// Consume decodes every attendance message and hands it to handle.
// Malformed payloads are dropped since redelivery cannot fix them.
func (a *AttendanceChannel) Consume(ctx context.Context, handle func(context.Context, types.AttendanceMessage) error) error {
	return a.mq.Subscribe(ctx, a.channel, func(ctx context.Context, msg Message) error {
		if kind := msg.Attributes[AttributeEventType]; kind != "" && kind != EventAttendanceRegistered {
			return nil
		}
		decoded, err := DecodeAttendance(msg)
		if err != nil {
			return nil
		}
		return handle(ctx, decoded)
	})
}

func DecodeAttendance(msg Message) (types.AttendanceMessage, error) {
	var decoded types.AttendanceMessage
	if err := json.Unmarshal(msg.Data, &decoded); err != nil {
		return types.AttendanceMessage{}, fmt.Errorf("decode attendance message %s: %w", msg.ID, err)
	}
	if decoded.EventID < 1 || decoded.UserEmail == "" {
		return types.AttendanceMessage{}, fmt.Errorf("attendance message %s is incomplete", msg.ID)
	}
	return decoded, nil
}
