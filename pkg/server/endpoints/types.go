package endpoints

import (
	"time"

	"github.com/mavrin/vpncore/pkg/model"
)

type credentialResponse struct {
	CredentialID string     `json:"credential_id"`
	UserID       string     `json:"user_id"`
	NodeID       string     `json:"node_id"`
	Status       string     `json:"status"`
	AccessToken  string     `json:"access_token,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func newCredentialResponse(c *model.Credential) credentialResponse {
	return credentialResponse{
		CredentialID: c.CredentialID,
		UserID:       c.UserID,
		NodeID:       c.NodeID,
		Status:       c.Status.String(),
		AccessToken:  c.AccessToken,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

type subscriptionResponse struct {
	ID       uint      `json:"id"`
	UserID   string    `json:"user_id"`
	Status   string    `json:"status"`
	StartAt  time.Time `json:"start_at"`
	EndAt    time.Time `json:"end_at"`
	PlanType string    `json:"plan_type,omitempty"`
}

func newSubscriptionResponse(s *model.Subscription) subscriptionResponse {
	return subscriptionResponse{
		ID:       s.ID,
		UserID:   s.UserID,
		Status:   s.Status.String(),
		StartAt:  s.StartAt,
		EndAt:    s.EndAt,
		PlanType: s.PlanType,
	}
}

type nodeResponse struct {
	NodeID      string     `json:"node_id"`
	Adapter     string     `json:"adapter"`
	URL         string     `json:"url"`
	Capacity    int        `json:"capacity"`
	ActiveCount int        `json:"active_count"`
	Health      string     `json:"health"`
	LastSeenAt  *time.Time `json:"last_seen_at,omitempty"`
}

func newNodeResponse(n *model.Node) nodeResponse {
	return nodeResponse{
		NodeID:      n.NodeID,
		Adapter:     n.Adapter,
		URL:         n.URL,
		Capacity:    n.Capacity,
		ActiveCount: n.ActiveCount,
		Health:      n.Health.String(),
		LastSeenAt:  n.LastSeenAt,
	}
}
