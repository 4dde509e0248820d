package queue

import (
	"context"
	"testing"
	"time"
)

func TestInMemoryPublishConsume(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewInMemory(4)
	msg, err := NewAttendanceMessage(AttendanceRecorded{RecordID: "r1", LessonID: "l1", StudentID: "s1"})
	if err != nil {
		t.Fatalf("NewAttendanceMessage: %v", err)
	}
	if err := q.Publish(ctx, msg); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	out, err := q.Consume(ctx)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	select {
	case got := <-out:
		if got.Type != TypeAttendance {
			t.Errorf("Type = %q", got.Type)
		}
		evt, err := DecodeAttendance(got)
		if err != nil {
			t.Fatalf("DecodeAttendance: %v", err)
		}
		if evt.RecordID != "r1" || evt.LessonID != "l1" || evt.StudentID != "s1" {
			t.Errorf("evt = %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatal("no message consumed")
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	msg := Message{Type: TypeAttendance, Body: []byte(`{"lesson_id":"l|1"}`)}
	got, err := deserialize(serialize(msg))
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	if got.Type != msg.Type || string(got.Body) != string(msg.Body) {
		t.Errorf("got %+v, want %+v", got, msg)
	}
}
