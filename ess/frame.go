package ess

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// subscribeFrame is the outbound subscription message. Dimensions carry the
// "all" sentinel when unrestricted.
type subscribeFrame struct {
	Service    string   `json:"service"`
	Action     string   `json:"action"`
	Characters []string `json:"characters"`
	Worlds     []string `json:"worlds"`
	EventNames []string `json:"eventNames"`
}

func newSubscribeFrame(agg Subscription) subscribeFrame {
	return subscribeFrame{
		Service:    "event",
		Action:     "subscribe",
		Characters: agg.Characters,
		Worlds:     agg.Worlds,
		EventNames: agg.Events,
	}
}

// clearSubscribeFrame drops the entire upstream subscription. Sent on Close
// so a half-closed connection does not keep streaming into the void.
type clearSubscribeFrame struct {
	Service string `json:"service"`
	Action  string `json:"action"`
	All     string `json:"all"`
}

func newClearSubscribeFrame() clearSubscribeFrame {
	return clearSubscribeFrame{Service: "event", Action: "clearSubscribe", All: "true"}
}

// subscriptionAck echoes the subscription the upstream now holds for this
// connection. Observational only, never gates delivery.
type subscriptionAck struct {
	EventNames     []string `json:"eventNames"`
	Worlds         []string `json:"worlds"`
	CharacterCount int64    `json:"characterCount"`
}

type frameKind int

const (
	frameConnected frameKind = iota
	frameSubscription
	frameEvent
	frameHeartbeat
)

// frame is one classified inbound message.
type frame struct {
	kind  frameKind
	event Event           // frameEvent and frameHeartbeat
	ack   subscriptionAck // frameSubscription
}

// errUnknownFrame marks frames with no recognized shape; callers drop them
// with a diagnostic and keep reading.
var errUnknownFrame = errors.New("unrecognized frame shape")

// parseFrame classifies one inbound text frame. Malformed JSON and
// unrecognized shapes both surface as errors; neither reaches consumers.
func parseFrame(data []byte) (frame, error) {
	var raw struct {
		Connected    json.RawMessage  `json:"connected"`
		Subscription *subscriptionAck `json:"subscription"`
		Payload      Payload          `json:"payload"`
		Online       Payload          `json:"online"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return frame{}, fmt.Errorf("malformed frame: %w", err)
	}

	switch {
	case isTruthy(raw.Connected):
		return frame{kind: frameConnected}, nil

	case raw.Subscription != nil:
		return frame{kind: frameSubscription, ack: *raw.Subscription}, nil

	case raw.Payload != nil:
		name, ok := raw.Payload.Str(eventNameField)
		if !ok || name == "" {
			return frame{}, errUnknownFrame
		}
		delete(raw.Payload, eventNameField)
		return frame{kind: frameEvent, event: Event{Name: name, Payload: raw.Payload}}, nil

	case raw.Online != nil:
		return frame{kind: frameHeartbeat, event: Event{Name: ServerHealthUpdate, Payload: raw.Online}}, nil
	}

	return frame{}, errUnknownFrame
}

// isTruthy accepts both the string "true" the service sends and a bare JSON
// true.
func isTruthy(raw json.RawMessage) bool {
	switch {
	case len(raw) == 0:
		return false
	case bytes.Equal(raw, []byte(`"true"`)):
		return true
	case bytes.Equal(raw, []byte(`true`)):
		return true
	}
	return false
}
