// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package link implements the bidirectional, line-framed JSON protocol
// spoken between the server and each agent's persistent connection:
// handshake, command dispatch, and typed responses.
package link

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Syn is the first message an agent sends on a new connection.
type Syn struct {
	Hostname string    `json:"hostname"`
	Token    uuid.UUID `json:"token"`
}

// AckKind tags the server's handshake reply.
type AckKind string

const (
	AckOk                   AckKind = "Ok"
	AckBadToken             AckKind = "BadToken"
	AckInvalidValue         AckKind = "InvalidValue"
	AckDeserializationError AckKind = "DeserializationError"
)

// Ack is the server's reply to Syn.
type Ack struct {
	Kind                AckKind
	Message             string // BadToken / InvalidValue payload
	ExpectedType, Error string // DeserializationError payload
}

func (a Ack) MarshalJSON() ([]byte, error) {
	switch a.Kind {
	case AckOk:
		return json.Marshal("Ok")
	case AckBadToken:
		return json.Marshal(map[string]string{"BadToken": a.Message})
	case AckInvalidValue:
		return json.Marshal(map[string]string{"InvalidValue": a.Message})
	case AckDeserializationError:
		return json.Marshal(map[string]any{
			"DeserializationError": map[string]string{
				"expected_type": a.ExpectedType,
				"error":         a.Error,
			},
		})
	default:
		return nil, fmt.Errorf("link: unknown ack kind %q", a.Kind)
	}
}

func (a *Ack) UnmarshalJSON(b []byte) error {
	var asString string
	if err := json.Unmarshal(b, &asString); err == nil {
		if asString != "Ok" {
			return fmt.Errorf("link: unknown ack string %q", asString)
		}
		*a = Ack{Kind: AckOk}
		return nil
	}

	var asObject map[string]json.RawMessage
	if err := json.Unmarshal(b, &asObject); err != nil {
		return fmt.Errorf("link: ack: %w", err)
	}
	if raw, ok := asObject["BadToken"]; ok {
		var msg string
		if err := json.Unmarshal(raw, &msg); err != nil {
			return err
		}
		*a = Ack{Kind: AckBadToken, Message: msg}
		return nil
	}
	if raw, ok := asObject["InvalidValue"]; ok {
		var msg string
		if err := json.Unmarshal(raw, &msg); err != nil {
			return err
		}
		*a = Ack{Kind: AckInvalidValue, Message: msg}
		return nil
	}
	if raw, ok := asObject["DeserializationError"]; ok {
		var payload struct {
			ExpectedType string `json:"expected_type"`
			Error        string `json:"error"`
		}
		if err := json.Unmarshal(raw, &payload); err != nil {
			return err
		}
		*a = Ack{Kind: AckDeserializationError, ExpectedType: payload.ExpectedType, Error: payload.Error}
		return nil
	}
	return fmt.Errorf("link: unrecognized ack object %s", string(b))
}

// CommandKind tags a server-to-agent Command.
type CommandKind string

const (
	CommandHeartbeat CommandKind = "Heartbeat"
	CommandReload    CommandKind = "Reload"
	CommandVersion   CommandKind = "Version"
	CommandMusic     CommandKind = "Music"
)

// Command is the tagged union the server sends down the link.
type Command struct {
	Kind  CommandKind
	Music *MusicCommand
}

func (c Command) MarshalJSON() ([]byte, error) {
	switch c.Kind {
	case CommandHeartbeat, CommandReload, CommandVersion:
		return json.Marshal(string(c.Kind))
	case CommandMusic:
		if c.Music == nil {
			return nil, fmt.Errorf("link: Music command missing payload")
		}
		return json.Marshal(map[string]*MusicCommand{"Music": c.Music})
	default:
		return nil, fmt.Errorf("link: unknown command kind %q", c.Kind)
	}
}

func (c *Command) UnmarshalJSON(b []byte) error {
	var asString string
	if err := json.Unmarshal(b, &asString); err == nil {
		switch CommandKind(asString) {
		case CommandHeartbeat, CommandReload, CommandVersion:
			*c = Command{Kind: CommandKind(asString)}
			return nil
		default:
			return fmt.Errorf("link: unknown command string %q", asString)
		}
	}

	var asObject struct {
		Music *MusicCommand `json:"Music"`
	}
	if err := json.Unmarshal(b, &asObject); err != nil {
		return fmt.Errorf("link: command: %w", err)
	}
	if asObject.Music == nil {
		return fmt.Errorf("link: unrecognized command object %s", string(b))
	}
	*c = Command{Kind: CommandMusic, Music: asObject.Music}
	return nil
}

// IsHeartbeat reports whether c is the liveness probe, used to suppress
// noisy per-command logging the way the sweeper's traffic does.
func (c Command) IsHeartbeat() bool { return c.Kind == CommandHeartbeat }

// MusicCommand targets one music operation at an optional player index and
// username.
type MusicCommand struct {
	Index    *uint32      `json:"index"`
	Username *string      `json:"username"`
	Command  MusicCmdKind `json:"command"`
}

// MusicCmdKind is the tagged union of agent-side music operations.
type MusicCmdKind struct {
	Kind   string
	Amount *int32  // ChangeVolume
	Query  *string // Queue
	Search *bool   // Queue
	Now    *uint32 // Now
}

const (
	MusicFrwd        = "Frwd"
	MusicBack        = "Back"
	MusicCyclePause  = "CyclePause"
	MusicCurrent     = "Current"
	MusicChangeVol   = "ChangeVolume"
	MusicQueue       = "Queue"
	MusicNow         = "Now"
)

func (m MusicCmdKind) MarshalJSON() ([]byte, error) {
	switch m.Kind {
	case MusicFrwd, MusicBack, MusicCyclePause, MusicCurrent:
		return json.Marshal(m.Kind)
	case MusicChangeVol:
		var amount int32
		if m.Amount != nil {
			amount = *m.Amount
		}
		return json.Marshal(map[string]any{MusicChangeVol: map[string]int32{"amount": amount}})
	case MusicQueue:
		var query string
		var search bool
		if m.Query != nil {
			query = *m.Query
		}
		if m.Search != nil {
			search = *m.Search
		}
		return json.Marshal(map[string]any{MusicQueue: map[string]any{"query": query, "search": search}})
	case MusicNow:
		return json.Marshal(map[string]any{MusicNow: map[string]any{"amount": m.Now}})
	default:
		return nil, fmt.Errorf("link: unknown music command kind %q", m.Kind)
	}
}

func (m *MusicCmdKind) UnmarshalJSON(b []byte) error {
	var asString string
	if err := json.Unmarshal(b, &asString); err == nil {
		switch asString {
		case MusicFrwd, MusicBack, MusicCyclePause, MusicCurrent:
			*m = MusicCmdKind{Kind: asString}
			return nil
		default:
			return fmt.Errorf("link: unknown music command string %q", asString)
		}
	}

	var asObject map[string]json.RawMessage
	if err := json.Unmarshal(b, &asObject); err != nil {
		return fmt.Errorf("link: music command: %w", err)
	}
	if raw, ok := asObject[MusicChangeVol]; ok {
		var payload struct {
			Amount int32 `json:"amount"`
		}
		if err := json.Unmarshal(raw, &payload); err != nil {
			return err
		}
		*m = MusicCmdKind{Kind: MusicChangeVol, Amount: &payload.Amount}
		return nil
	}
	if raw, ok := asObject[MusicQueue]; ok {
		var payload struct {
			Query  string `json:"query"`
			Search bool   `json:"search"`
		}
		if err := json.Unmarshal(raw, &payload); err != nil {
			return err
		}
		*m = MusicCmdKind{Kind: MusicQueue, Query: &payload.Query, Search: &payload.Search}
		return nil
	}
	if raw, ok := asObject[MusicNow]; ok {
		var payload struct {
			Amount *uint32 `json:"amount"`
		}
		if err := json.Unmarshal(raw, &payload); err != nil {
			return err
		}
		*m = MusicCmdKind{Kind: MusicNow, Now: payload.Amount}
		return nil
	}
	return fmt.Errorf("link: unrecognized music command object %s", string(b))
}
