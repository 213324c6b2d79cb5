package model

import (
	"strings"
	"time"
)

type ConnectionType string

const (
	ConnectionConnect    ConnectionType = "CONNECT"
	ConnectionMentorship ConnectionType = "MENTORSHIP"
)

func ParseConnectionType(s string) (ConnectionType, bool) {
	t := ConnectionType(strings.ToUpper(strings.TrimSpace(s)))
	switch t {
	case ConnectionConnect, ConnectionMentorship:
		return t, true
	}
	return "", false
}

type ConnectionStatus string

const (
	StatusPending  ConnectionStatus = "PENDING"
	StatusAccepted ConnectionStatus = "ACCEPTED"
	StatusDeclined ConnectionStatus = "DECLINED"
)

func ParseConnectionStatus(s string) (ConnectionStatus, bool) {
	st := ConnectionStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case StatusPending, StatusAccepted, StatusDeclined:
		return st, true
	}
	return "", false
}

// Connection is a request from requester to target, answered by the target.
type Connection struct {
	ID          string           `json:"id" bson:"_id"`
	RequesterID string           `json:"requesterId" bson:"requester_id"`
	TargetID    string           `json:"targetId" bson:"target_id"`
	Type        ConnectionType   `json:"type" bson:"type"`
	Status      ConnectionStatus `json:"status" bson:"status"`
	RequestedAt time.Time        `json:"requestedAt" bson:"requested_at"`
	RespondedAt *time.Time       `json:"respondedAt,omitempty" bson:"responded_at,omitempty"`
}

type ConnectionView struct {
	ID            string           `json:"id"`
	RequesterID   string           `json:"requesterId"`
	TargetID      string           `json:"targetId"`
	Type          ConnectionType   `json:"type"`
	Status        ConnectionStatus `json:"status"`
	RequestedAt   string           `json:"requestedAt"`
	RespondedAt   *string          `json:"respondedAt"`
	RequesterName *string          `json:"requesterName"`
	TargetName    *string          `json:"targetName"`
}

func (c *Connection) View(requesterName, targetName *string) ConnectionView {
	return ConnectionView{
		ID:            c.ID,
		RequesterID:   c.RequesterID,
		TargetID:      c.TargetID,
		Type:          c.Type,
		Status:        c.Status,
		RequestedAt:   FormatTime(c.RequestedAt),
		RespondedAt:   FormatTimePtr(c.RespondedAt),
		RequesterName: requesterName,
		TargetName:    targetName,
	}
}
