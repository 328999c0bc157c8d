package server

import (
	"time"

	"conciera/internal/domain"
	"conciera/internal/workflow"
)

type UserResponse struct {
	ID        string   `json:"id"`
	AuthID    string   `json:"auth_id"`
	FirstName string   `json:"first_name"`
	Role      string   `json:"role"`
	Active    bool     `json:"active"`
	ZoneIDs   []string `json:"zone_ids,omitempty"`
}

type ResidenceResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ShortCode string `json:"short_code"`
	ZoneID    string `json:"zone_id"`
}

type TaskResponse struct {
	ID      string `json:"id"`
	DueDate string `json:"due_date"`

	Apartment   string `json:"apartment,omitempty"`
	Residence   string `json:"residence,omitempty"`
	ResidenceID string `json:"residence_id,omitempty"`

	TypeCode  string `json:"type_code,omitempty"`
	TypeBadge string `json:"type_badge"`

	StatusCode  string `json:"status_code"`
	StatusLabel string `json:"status_label"`
	StatusColor string `json:"status_color"`

	StartTime *string  `json:"start_time,omitempty"`
	EndTime   *string  `json:"end_time,omitempty"`
	Duration  string   `json:"duration,omitempty"`
	Comment   *string  `json:"comment,omitempty"`
	Photos    []string `json:"photos,omitempty"`

	LinenReplacement bool    `json:"linen_replacement"`
	Problem          bool    `json:"problem"`
	AgentVerifiedAt  *string `json:"agent_verified_at,omitempty"`
	ReadOnly         bool    `json:"read_only"`

	UpdatedAt string `json:"updated_at"`
}

type MessageResponse struct {
	ID          string  `json:"id"`
	SenderID    string  `json:"sender_id"`
	Subject     *string `json:"subject,omitempty"`
	Body        string  `json:"body"`
	Priority    string  `json:"priority"`
	Read        bool    `json:"read"`
	Archived    bool    `json:"archived"`
	DisplayDate *string `json:"display_date,omitempty"`
	CreatedAt   string  `json:"created_at"`
	InboxStamp  string  `json:"inbox_stamp"`
}

type VerificationRequest struct {
	StartTime string   `json:"start_time,omitempty"`
	EndTime   string   `json:"end_time,omitempty"`
	Comment   string   `json:"comment,omitempty"`
	Photos    []string `json:"photos,omitempty"`
}

type ComposeMessageRequest struct {
	RecipientID string  `json:"recipient_id"`
	Subject     *string `json:"subject,omitempty"`
	Body        string  `json:"body"`
	Priority    string  `json:"priority,omitempty" enum:"normale,urgente,"`
}

func userResponse(u domain.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		AuthID:    u.AuthID,
		FirstName: u.FirstName,
		Role:      u.Role,
		Active:    u.Active,
		ZoneIDs:   u.ZoneIDs,
	}
}

func residenceResponse(r domain.Residence) ResidenceResponse {
	return ResidenceResponse{ID: r.ID, Name: r.Name, ShortCode: r.ShortCode, ZoneID: r.ZoneID}
}

func taskResponse(t domain.Task) TaskResponse {
	resp := TaskResponse{
		ID:               t.ID,
		DueDate:          t.DueDate,
		StatusCode:       t.StatusCode(),
		StatusLabel:      workflow.StatusLabel(t.StatusCode()),
		StatusColor:      workflow.StatusColor(t.StatusCode()),
		StartTime:        t.StartTime,
		EndTime:          t.EndTime,
		Comment:          t.AgentComment,
		Photos:           t.AgentPhotos,
		LinenReplacement: t.LinenReplacement,
		Problem:          t.Problem,
		AgentVerifiedAt:  t.AgentVerifiedAt,
		ReadOnly:         t.StatusCode() == domain.StatusConciergeValidated,
		UpdatedAt:        t.UpdatedAt,
	}
	if t.Type != nil {
		resp.TypeCode = t.Type.Code
	}
	resp.TypeBadge = workflow.TypeBadge(resp.TypeCode)
	if t.StartTime != nil && t.EndTime != nil {
		resp.Duration = workflow.Duration(*t.StartTime, *t.EndTime)
	}
	if t.Apartment != nil {
		resp.Apartment = t.Apartment.Name
		resp.ResidenceID = t.Apartment.ResidenceID
		if t.Apartment.Residence != nil {
			resp.Residence = t.Apartment.Residence.Name
		}
	}
	return resp
}

func mapTasks(tasks []domain.Task) []TaskResponse {
	out := make([]TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, taskResponse(t))
	}
	return out
}

func messageResponse(m domain.Message, now time.Time) MessageResponse {
	return MessageResponse{
		ID:          m.ID,
		SenderID:    m.SenderID,
		Subject:     m.Subject,
		Body:        m.Body,
		Priority:    m.Priority,
		Read:        m.Read,
		Archived:    m.Archived,
		DisplayDate: m.DisplayDate,
		CreatedAt:   m.CreatedAt,
		InboxStamp:  workflow.InboxStamp(m.CreatedAt, now),
	}
}

func mapMessages(msgs []domain.Message, now time.Time) []MessageResponse {
	out := make([]MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, messageResponse(m, now))
	}
	return out
}
