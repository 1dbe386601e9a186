// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package link_test

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"

	"github.com/fleetward/spark/internal/link"
)

func roundTrip[T any](t *testing.T, v T, want string) T {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != want {
		t.Fatalf("marshal: got %s, want %s", b, want)
	}
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return out
}

func TestSyn_RoundTrips(t *testing.T) {
	id := uuid.New()
	syn := link.Syn{Hostname: "alpha", Token: id}
	b, err := json.Marshal(syn)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out link.Syn
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Hostname != "alpha" || out.Token != id {
		t.Fatalf("unexpected round trip: %+v", out)
	}
}

func TestAck_RoundTrips(t *testing.T) {
	out := roundTrip(t, link.Ack{Kind: link.AckOk}, `"Ok"`)
	if out.Kind != link.AckOk {
		t.Fatalf("unexpected: %+v", out)
	}

	out = roundTrip(t, link.Ack{Kind: link.AckBadToken, Message: "nope"}, `{"BadToken":"nope"}`)
	if out.Kind != link.AckBadToken || out.Message != "nope" {
		t.Fatalf("unexpected: %+v", out)
	}

	out = roundTrip(t, link.Ack{Kind: link.AckInvalidValue, Message: "bad hostname"}, `{"InvalidValue":"bad hostname"}`)
	if out.Kind != link.AckInvalidValue || out.Message != "bad hostname" {
		t.Fatalf("unexpected: %+v", out)
	}

	de := link.Ack{Kind: link.AckDeserializationError, ExpectedType: "Command", Error: "eof"}
	b, err := json.Marshal(de)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var deOut link.Ack
	if err := json.Unmarshal(b, &deOut); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if deOut.Kind != link.AckDeserializationError || deOut.ExpectedType != "Command" || deOut.Error != "eof" {
		t.Fatalf("unexpected: %+v", deOut)
	}
}

func TestCommand_UnitVariantsRoundTrip(t *testing.T) {
	for _, kind := range []link.CommandKind{link.CommandHeartbeat, link.CommandReload, link.CommandVersion} {
		out := roundTrip(t, link.Command{Kind: kind}, `"`+string(kind)+`"`)
		if out.Kind != kind {
			t.Fatalf("unexpected kind: %+v", out)
		}
	}
}

func TestCommand_HeartbeatIsHeartbeat(t *testing.T) {
	if !(link.Command{Kind: link.CommandHeartbeat}).IsHeartbeat() {
		t.Fatal("expected heartbeat command to report IsHeartbeat")
	}
	if (link.Command{Kind: link.CommandVersion}).IsHeartbeat() {
		t.Fatal("expected version command to not report IsHeartbeat")
	}
}

func TestCommand_MusicRoundTrips(t *testing.T) {
	idx := uint32(2)
	user := "alice"
	cmd := link.Command{Kind: link.CommandMusic, Music: &link.MusicCommand{
		Index:    &idx,
		Username: &user,
		Command:  link.MusicCmdKind{Kind: link.MusicFrwd},
	}}
	b, err := json.Marshal(cmd)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out link.Command
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Kind != link.CommandMusic || out.Music == nil {
		t.Fatalf("unexpected: %+v", out)
	}
	if *out.Music.Index != idx || *out.Music.Username != user || out.Music.Command.Kind != link.MusicFrwd {
		t.Fatalf("unexpected music payload: %+v", out.Music)
	}
}

func TestMusicCmdKind_UnitVariantsRoundTrip(t *testing.T) {
	for _, kind := range []string{link.MusicFrwd, link.MusicBack, link.MusicCyclePause, link.MusicCurrent} {
		out := roundTrip(t, link.MusicCmdKind{Kind: kind}, `"`+kind+`"`)
		if out.Kind != kind {
			t.Fatalf("unexpected kind: %+v", out)
		}
	}
}

func TestMusicCmdKind_ChangeVolumeRoundTrips(t *testing.T) {
	amount := int32(-5)
	b, err := json.Marshal(link.MusicCmdKind{Kind: link.MusicChangeVol, Amount: &amount})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"ChangeVolume":{"amount":-5}}` {
		t.Fatalf("unexpected wire shape: %s", b)
	}
	var out link.MusicCmdKind
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Kind != link.MusicChangeVol || out.Amount == nil || *out.Amount != amount {
		t.Fatalf("unexpected: %+v", out)
	}
}

func TestMusicCmdKind_QueueRoundTrips(t *testing.T) {
	query := "daft punk"
	search := true
	b, err := json.Marshal(link.MusicCmdKind{Kind: link.MusicQueue, Query: &query, Search: &search})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out link.MusicCmdKind
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Kind != link.MusicQueue || *out.Query != query || *out.Search != search {
		t.Fatalf("unexpected: %+v", out)
	}
}

func TestMusicCmdKind_NowRoundTrips(t *testing.T) {
	now := uint32(42)
	b, err := json.Marshal(link.MusicCmdKind{Kind: link.MusicNow, Now: &now})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out link.MusicCmdKind
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Kind != link.MusicNow || out.Now == nil || *out.Now != now {
		t.Fatalf("unexpected: %+v", out)
	}
}

func TestCommand_RejectsUnknownString(t *testing.T) {
	var c link.Command
	if err := json.Unmarshal([]byte(`"Bogus"`), &c); err == nil {
		t.Fatal("expected error for unknown command string")
	}
}

func TestAck_RejectsUnrecognizedObject(t *testing.T) {
	var a link.Ack
	if err := json.Unmarshal([]byte(`{"Bogus":"x"}`), &a); err == nil {
		t.Fatal("expected error for unrecognized ack object")
	}
}
