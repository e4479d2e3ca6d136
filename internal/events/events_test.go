package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestMessage(t *testing.T) {
	at := time.Date(2025, 1, 5, 14, 30, 0, 0, time.UTC)
	msg, err := message(Event{
		ID:          "evt-1",
		Type:        TypeConversionCompleted,
		FileName:    "inventory.csv",
		TargetTable: "units",
		MappedCount: 4,
		Rows:        10,
		At:          at,
	})
	if err != nil {
		t.Fatalf("message() error = %v", err)
	}

	if string(msg.Key) != "evt-1" {
		t.Errorf("Key = %q, want %q", msg.Key, "evt-1")
	}
	if !msg.Time.Equal(at) {
		t.Errorf("Time = %v, want %v", msg.Time, at)
	}
	if len(msg.Headers) != 1 || string(msg.Headers[0].Value) != TypeConversionCompleted {
		t.Errorf("Headers = %+v", msg.Headers)
	}

	var back map[string]any
	if err := json.Unmarshal(msg.Value, &back); err != nil {
		t.Fatalf("value is not JSON: %v", err)
	}
	if back["target_table"] != "units" || back["mapped_count"] != float64(4) {
		t.Errorf("value = %v", back)
	}
	if _, ok := back["inserted"]; ok {
		t.Error("zero inserted count should be omitted")
	}
}

func TestMessage_FillsIdentity(t *testing.T) {
	msg, err := message(Event{Type: TypeIngestionCompleted})
	if err != nil {
		t.Fatalf("message() error = %v", err)
	}
	if len(msg.Key) == 0 {
		t.Error("Key is empty, want generated id")
	}
	if msg.Time.IsZero() {
		t.Error("Time is zero, want now")
	}
}

func TestNewKafkaPublisher_Validation(t *testing.T) {
	if _, err := NewKafkaPublisher(nil, "t"); err == nil {
		t.Error("expected error without brokers")
	}
	if _, err := NewKafkaPublisher([]string{"localhost:9092"}, ""); err == nil {
		t.Error("expected error without topic")
	}
	p, err := NewKafkaPublisher([]string{"localhost:9092"}, "t")
	if err != nil {
		t.Fatalf("NewKafkaPublisher() error = %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	if err := p.Publish(context.Background(), Event{}); err != nil {
		t.Errorf("Publish() error = %v", err)
	}
}
