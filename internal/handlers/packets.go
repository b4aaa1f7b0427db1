// internal/handlers/packets.go
package handlers

import (
	"encoding/json"
	"fmt"

	"github.com/jason-s-yu/duel/internal/models"
	"github.com/jason-s-yu/duel/internal/session"
)

// Inbound packet types.
const (
	PacketJoinRandom      = "join-random"
	PacketJoinNamed       = "join-named"
	PacketAction          = "action"
	PacketLoss            = "loss"
	PacketRematchRequest  = "rematch-request"
	PacketFindNewOpponent = "find-new-opponent"
)

// Packet is the envelope of every client message.
type Packet struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// JoinNamedData is the payload of a join-named packet.
type JoinNamedData struct {
	Color    string `json:"color"`
	RoomName string `json:"roomName"`
}

// decodeEvent turns a packet from conn into a dispatcher event.
func decodeEvent(conn models.ConnID, p Packet) (session.Event, error) {
	switch p.Type {
	case PacketJoinRandom:
		attr, err := decodeAttr(p.Data)
		if err != nil {
			return nil, err
		}
		return session.JoinRandom{Conn: conn, Attr: attr}, nil

	case PacketJoinNamed:
		var data JoinNamedData
		if err := json.Unmarshal(p.Data, &data); err != nil {
			return nil, fmt.Errorf("invalid join-named payload: %w", err)
		}
		if data.RoomName == "" {
			return nil, fmt.Errorf("join-named requires a roomName")
		}
		return session.JoinNamed{Conn: conn, RoomName: data.RoomName, Attr: data.Color}, nil

	case PacketAction:
		return session.Action{Conn: conn, Payload: p.Data}, nil

	case PacketLoss:
		return session.Loss{Conn: conn, Payload: p.Data}, nil

	case PacketRematchRequest:
		return session.RematchRequest{Conn: conn}, nil

	case PacketFindNewOpponent:
		attr, err := decodeAttr(p.Data)
		if err != nil {
			return nil, err
		}
		return session.FindNewOpponent{Conn: conn, Attr: attr}, nil

	default:
		return nil, fmt.Errorf("unknown packet type: %q", p.Type)
	}
}

// decodeAttr accepts a bare JSON string or nothing at all.
func decodeAttr(data json.RawMessage) (string, error) {
	if len(data) == 0 || string(data) == "null" {
		return "", nil
	}
	var attr string
	if err := json.Unmarshal(data, &attr); err != nil {
		return "", fmt.Errorf("attribute must be a string: %w", err)
	}
	return attr, nil
}
