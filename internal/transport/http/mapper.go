package http

import (
	"encoding/json"

	"github.com/vovakirdan/ephemeral-chat/internal/core"
	"github.com/vovakirdan/ephemeral-chat/internal/proto"
)

func badRequest(msg string) *proto.Error {
	return &proto.Error{Code: core.ErrCodeBadRequest, Msg: msg}
}

func inboundToCommand(inbound proto.Inbound) (*core.Command, *proto.Error, error) {
	switch inbound.Type {
	case proto.InboundTypeJoin:
		var join proto.JoinData
		if err := json.Unmarshal(inbound.Data, &join); err != nil {
			return nil, nil, err
		}
		if join.Topic == "" {
			return nil, badRequest("topic is required"), nil
		}
		return &core.Command{
			Kind:          core.CommandJoin,
			Ref:           inbound.Ref,
			Topic:         join.Topic,
			PresenceKey:   join.Config.Presence.Key,
			BroadcastSelf: join.Config.Broadcast.Self,
		}, nil, nil
	case proto.InboundTypeLeave, proto.InboundTypeUntrack:
		var leave proto.LeaveData
		if err := json.Unmarshal(inbound.Data, &leave); err != nil {
			return nil, nil, err
		}
		if leave.Topic == "" {
			return nil, badRequest("topic is required"), nil
		}
		kind := core.CommandLeave
		if inbound.Type == proto.InboundTypeUntrack {
			kind = core.CommandUntrack
		}
		return &core.Command{Kind: kind, Ref: inbound.Ref, Topic: leave.Topic}, nil, nil
	case proto.InboundTypeBroadcast:
		var msg proto.BroadcastData
		if err := json.Unmarshal(inbound.Data, &msg); err != nil {
			return nil, nil, err
		}
		if msg.Topic == "" || msg.Event == "" {
			return nil, badRequest("topic and event are required"), nil
		}
		return &core.Command{
			Kind:    core.CommandBroadcast,
			Ref:     inbound.Ref,
			Topic:   msg.Topic,
			Event:   msg.Event,
			Payload: msg.Payload,
		}, nil, nil
	case proto.InboundTypeTrack:
		var track proto.TrackData
		if err := json.Unmarshal(inbound.Data, &track); err != nil {
			return nil, nil, err
		}
		if track.Topic == "" {
			return nil, badRequest("topic is required"), nil
		}
		return &core.Command{
			Kind:    core.CommandTrack,
			Ref:     inbound.Ref,
			Topic:   track.Topic,
			Payload: track.Payload,
		}, nil, nil
	case proto.InboundTypeHello:
		return nil, badRequest("already authenticated"), nil
	default:
		return nil, &proto.Error{Code: "invalid_message", Msg: "unknown message type"}, nil
	}
}

func toProtoError(err *core.CoreError) *proto.Error {
	if err == nil {
		return nil
	}
	return &proto.Error{Code: err.Code, Msg: err.Message}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventReply:
		status := proto.ReplyStatusOK
		if event.Error != nil {
			status = proto.ReplyStatusError
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeReply,
			Ref:   event.Ref,
			Data:  proto.ReplyData{Topic: event.Topic, Status: status},
			Error: toProtoError(event.Error),
		}
	case core.EventBroadcast:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventBroadcast,
			Data: proto.EventBroadcastData{
				Topic:   event.Topic,
				Event:   event.Name,
				Payload: event.Payload,
			},
		}
	case core.EventPresenceState:
		state := event.Presence
		if state == nil {
			state = map[string][]json.RawMessage{}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventPresenceState,
			Data:  proto.EventPresenceStateData{Topic: event.Topic, State: state},
		}
	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Ref: event.Ref, Error: &proto.Error{Code: "unknown", Msg: "unknown error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Ref:   event.Ref,
			Error: toProtoError(event.Error),
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}
