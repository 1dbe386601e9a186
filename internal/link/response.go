// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package link

import (
	"encoding/json"
	"fmt"
)

// SuccessfulResponse is the tagged union of agent replies.
type SuccessfulResponse struct {
	Kind string

	Version string  // Version
	Title   string  // Title
	Paused  bool    // PlayState
	Volume  int32   // Volume
	Current *string // Current (opaque snapshot, agent-defined shape)

	QueueFrom     *int32  // QueueSummary
	QueueMovedTo  *int32  // QueueSummary
	QueueCurrent  *string // QueueSummary

	NowBefore  []string // Now
	NowCurrent *string  // Now
	NowAfter   []string // Now
}

const (
	RespUnit         = "Unit"
	RespVersion      = "Version"
	RespTitle        = "Title"
	RespPlayState    = "PlayState"
	RespVolume       = "Volume"
	RespCurrent      = "Current"
	RespQueueSummary = "QueueSummary"
	RespNow          = "Now"
)

func (r SuccessfulResponse) MarshalJSON() ([]byte, error) {
	switch r.Kind {
	case RespUnit:
		return json.Marshal("Unit")
	case RespVersion:
		return json.Marshal(map[string]string{RespVersion: r.Version})
	case RespTitle:
		return json.Marshal(map[string]any{RespTitle: map[string]string{"title": r.Title}})
	case RespPlayState:
		return json.Marshal(map[string]any{RespPlayState: map[string]bool{"paused": r.Paused}})
	case RespVolume:
		return json.Marshal(map[string]any{RespVolume: map[string]int32{"volume": r.Volume}})
	case RespCurrent:
		return json.Marshal(map[string]any{RespCurrent: map[string]any{"current": r.Current}})
	case RespQueueSummary:
		return json.Marshal(map[string]any{RespQueueSummary: map[string]any{
			"from": r.QueueFrom, "moved_to": r.QueueMovedTo, "current": r.QueueCurrent,
		}})
	case RespNow:
		return json.Marshal(map[string]any{RespNow: map[string]any{
			"before": r.NowBefore, "current": r.NowCurrent, "after": r.NowAfter,
		}})
	default:
		return nil, fmt.Errorf("link: unknown successful response kind %q", r.Kind)
	}
}

func (r *SuccessfulResponse) UnmarshalJSON(b []byte) error {
	var asString string
	if err := json.Unmarshal(b, &asString); err == nil {
		if asString != RespUnit {
			return fmt.Errorf("link: unknown successful response string %q", asString)
		}
		*r = SuccessfulResponse{Kind: RespUnit}
		return nil
	}

	var asObject map[string]json.RawMessage
	if err := json.Unmarshal(b, &asObject); err != nil {
		return fmt.Errorf("link: successful response: %w", err)
	}
	for kind, raw := range asObject {
		switch kind {
		case RespVersion:
			var v string
			if err := json.Unmarshal(raw, &v); err != nil {
				return err
			}
			*r = SuccessfulResponse{Kind: RespVersion, Version: v}
		case RespTitle:
			var p struct {
				Title string `json:"title"`
			}
			if err := json.Unmarshal(raw, &p); err != nil {
				return err
			}
			*r = SuccessfulResponse{Kind: RespTitle, Title: p.Title}
		case RespPlayState:
			var p struct {
				Paused bool `json:"paused"`
			}
			if err := json.Unmarshal(raw, &p); err != nil {
				return err
			}
			*r = SuccessfulResponse{Kind: RespPlayState, Paused: p.Paused}
		case RespVolume:
			var p struct {
				Volume int32 `json:"volume"`
			}
			if err := json.Unmarshal(raw, &p); err != nil {
				return err
			}
			*r = SuccessfulResponse{Kind: RespVolume, Volume: p.Volume}
		case RespCurrent:
			var p struct {
				Current *string `json:"current"`
			}
			if err := json.Unmarshal(raw, &p); err != nil {
				return err
			}
			*r = SuccessfulResponse{Kind: RespCurrent, Current: p.Current}
		case RespQueueSummary:
			var p struct {
				From    *int32  `json:"from"`
				MovedTo *int32  `json:"moved_to"`
				Current *string `json:"current"`
			}
			if err := json.Unmarshal(raw, &p); err != nil {
				return err
			}
			*r = SuccessfulResponse{Kind: RespQueueSummary, QueueFrom: p.From, QueueMovedTo: p.MovedTo, QueueCurrent: p.Current}
		case RespNow:
			var p struct {
				Before  []string `json:"before"`
				Current *string  `json:"current"`
				After   []string `json:"after"`
			}
			if err := json.Unmarshal(raw, &p); err != nil {
				return err
			}
			*r = SuccessfulResponse{Kind: RespNow, NowBefore: p.Before, NowCurrent: p.Current, NowAfter: p.After}
		default:
			return fmt.Errorf("link: unrecognized successful response kind %q", kind)
		}
		return nil
	}
	return fmt.Errorf("link: empty successful response object")
}

// ErrorResponse is the tagged union of agent/relay failures.
type ErrorResponse struct {
	Kind    string
	Message string // IoError, DeserializingCommand, ForwardedError, RelayError, RequestFailed, NetworkError
	Status  int    // HttpError
}

const (
	ErrIoError              = "IoError"
	ErrDeserializingCommand = "DeserializingCommand"
	ErrForwardedError       = "ForwardedError"
	ErrRelayError           = "RelayError"
	ErrRequestFailed        = "RequestFailed"
	ErrHttpError            = "HttpError"
	ErrNetworkError         = "NetworkError"
)

func (e ErrorResponse) Error() string {
	if e.Kind == ErrHttpError {
		return fmt.Sprintf("%s: %d %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e ErrorResponse) MarshalJSON() ([]byte, error) {
	switch e.Kind {
	case ErrIoError, ErrDeserializingCommand, ErrForwardedError, ErrRelayError, ErrRequestFailed, ErrNetworkError:
		return json.Marshal(map[string]string{e.Kind: e.Message})
	case ErrHttpError:
		return json.Marshal(map[string]any{ErrHttpError: map[string]any{"status": e.Status, "message": e.Message}})
	default:
		return nil, fmt.Errorf("link: unknown error response kind %q", e.Kind)
	}
}

func (e *ErrorResponse) UnmarshalJSON(b []byte) error {
	var asObject map[string]json.RawMessage
	if err := json.Unmarshal(b, &asObject); err != nil {
		return fmt.Errorf("link: error response: %w", err)
	}
	for kind, raw := range asObject {
		switch kind {
		case ErrIoError, ErrDeserializingCommand, ErrForwardedError, ErrRelayError, ErrRequestFailed, ErrNetworkError:
			var msg string
			if err := json.Unmarshal(raw, &msg); err != nil {
				return err
			}
			*e = ErrorResponse{Kind: kind, Message: msg}
		case ErrHttpError:
			var p struct {
				Status  int    `json:"status"`
				Message string `json:"message"`
			}
			if err := json.Unmarshal(raw, &p); err != nil {
				return err
			}
			*e = ErrorResponse{Kind: ErrHttpError, Status: p.Status, Message: p.Message}
		default:
			return fmt.Errorf("link: unrecognized error response kind %q", kind)
		}
		return nil
	}
	return fmt.Errorf("link: empty error response object")
}

// Response is the top-level Result<SuccessfulResponse, ErrorResponse>.
type Response struct {
	Ok  *SuccessfulResponse `json:"Ok,omitempty"`
	Err *ErrorResponse      `json:"Err,omitempty"`
}
