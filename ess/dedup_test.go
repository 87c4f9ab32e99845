package ess

import "testing"

func TestDeduplicator_RepeatDelivery(t *testing.T) {
	d, err := newDeduplicator(100)
	if err != nil {
		t.Fatalf("newDeduplicator: %v", err)
	}

	event := Event{Name: "Death", Payload: Payload{
		"timestamp":    "1700000000",
		"character_id": "123",
		"world_id":     "17",
	}}

	if d.seen(event) {
		t.Error("first delivery reported as duplicate")
	}
	if !d.seen(event) {
		t.Error("second delivery not reported as duplicate")
	}
}

func TestDeduplicator_DistinctEvents(t *testing.T) {
	d, err := newDeduplicator(100)
	if err != nil {
		t.Fatalf("newDeduplicator: %v", err)
	}

	a := Event{Name: "Death", Payload: Payload{"timestamp": "1", "character_id": "123"}}
	b := Event{Name: "Death", Payload: Payload{"timestamp": "2", "character_id": "123"}}
	c := Event{Name: "PlayerLogin", Payload: Payload{"timestamp": "1", "character_id": "123"}}

	if d.seen(a) || d.seen(b) || d.seen(c) {
		t.Error("distinct events reported as duplicates")
	}
	if d.len() != 3 {
		t.Errorf("len = %d, want 3", d.len())
	}
}

func TestDeduplicator_NoTimestampFallsBackToPayloadHash(t *testing.T) {
	d, err := newDeduplicator(100)
	if err != nil {
		t.Fatalf("newDeduplicator: %v", err)
	}

	a := Event{Name: ServerHealthUpdate, Payload: Payload{"world_id": "1"}}
	b := Event{Name: ServerHealthUpdate, Payload: Payload{"world_id": "2"}}

	if d.seen(a) {
		t.Error("first heartbeat reported as duplicate")
	}
	if d.seen(b) {
		t.Error("different heartbeat reported as duplicate")
	}
	if !d.seen(a) {
		t.Error("repeated heartbeat not reported as duplicate")
	}
}
