package main

import (
	"errors"
	"testing"
)

func TestDecodePositionUpdate(t *testing.T) {
	msg, err := decodeClientMessage([]byte(`{"type":"position_update","lat":12.97,"lng":77.59}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	pos, ok := msg.(PositionUpdateMsg)
	if !ok {
		t.Fatalf("expected PositionUpdateMsg, got %T", msg)
	}
	if pos.Lat != 12.97 || pos.Lng != 77.59 {
		t.Errorf("unexpected coordinates %+v", pos)
	}
}

func TestDecodePositionUpdateBadCoordsDropped(t *testing.T) {
	// missing, null and non-numeric coordinates are all silent drops:
	// no transition, no error frame
	cases := []string{
		`{"type":"position_update"}`,
		`{"type":"position_update","lat":12.97}`,
		`{"type":"position_update","lng":77.59}`,
		`{"type":"position_update","lat":null,"lng":77.59}`,
		`{"type":"position_update","lat":"12.97","lng":"77.59"}`,
		`{"type":"position_update","lat":[12.97],"lng":77.59}`,
	}
	for _, raw := range cases {
		msg, err := decodeClientMessage([]byte(raw))
		if msg != nil {
			t.Errorf("%s: expected nil message, got %v", raw, msg)
		}
		if !errors.Is(err, errIgnoreMessage) {
			t.Errorf("%s: expected errIgnoreMessage, got %v", raw, err)
		}
	}
}

func TestDecodeUsePowerup(t *testing.T) {
	msg, err := decodeClientMessage([]byte(`{"type":"use_powerup","powerup_id":"shield"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	use, ok := msg.(UsePowerupMsg)
	if !ok {
		t.Fatalf("expected UsePowerupMsg, got %T", msg)
	}
	if use.PowerupID != "shield" {
		t.Errorf("unexpected powerup id %q", use.PowerupID)
	}

	_, err = decodeClientMessage([]byte(`{"type":"use_powerup"}`))
	if !errors.Is(err, errIgnoreMessage) {
		t.Errorf("missing powerup_id should be dropped, got %v", err)
	}
}

func TestDecodePing(t *testing.T) {
	msg, err := decodeClientMessage([]byte(`{"type":"ping"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := msg.(PingMsg); !ok {
		t.Fatalf("expected PingMsg, got %T", msg)
	}
}

func TestDecodeUnknownType(t *testing.T) {
	_, err := decodeClientMessage([]byte(`{"type":"teleport"}`))
	if err == nil || errors.Is(err, errIgnoreMessage) {
		t.Errorf("unknown type should be a hard error, got %v", err)
	}
}

func TestDecodeMalformedJSON(t *testing.T) {
	_, err := decodeClientMessage([]byte(`{"type":`))
	if err == nil || errors.Is(err, errIgnoreMessage) {
		t.Errorf("malformed JSON should be a hard error, got %v", err)
	}
}
