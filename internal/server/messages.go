package server

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"conciera/internal/domain"
	"conciera/internal/events"
	"conciera/internal/session"
)

type inboxBody struct {
	Items       []MessageResponse `json:"items"`
	UnreadCount int               `json:"unread_count"`
	Error       string            `json:"error,omitempty"`
}

func registerMessages(api huma.API, cfg Config, states *stateRegistry) {
	resolver := session.Resolver{Repo: cfg.Repo}

	huma.Register(api, huma.Operation{
		OperationID: "list-messages",
		Method:      http.MethodGet,
		Path:        "/messages",
		Summary:     "Current agent's inbox",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Archived bool `query:"archived" doc:"Return the archived tab instead of the inbox"`
	}) (*struct {
		Body inboxBody `json:"body"`
	}, error) {
		p, _ := principalFromContext(ctx)
		u, err := resolver.CurrentUser(ctx, p)
		if err != nil {
			return nil, handleError(err)
		}
		st := states.forAuth(u.AuthID)
		st.Msgs.Load(ctx, u.ID)
		body := inboxBody{
			UnreadCount: st.Msgs.UnreadCount(),
			Error:       st.Msgs.Err(),
		}
		now := cfg.Now()
		if input.Archived {
			body.Items = mapMessages(st.Msgs.Archived(), now)
		} else {
			body.Items = mapMessages(st.Msgs.Messages(), now)
		}
		return &struct {
			Body inboxBody `json:"body"`
		}{Body: body}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "send-message",
		Method:        http.MethodPost,
		Path:          "/messages",
		Summary:       "Send a message",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body ComposeMessageRequest `json:"body"`
	}) (*struct {
		Body MessageResponse `json:"body"`
	}, error) {
		p, _ := principalFromContext(ctx)
		u, err := resolver.CurrentUser(ctx, p)
		if err != nil {
			return nil, handleError(err)
		}
		if input.Body.RecipientID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "recipient_id is required", nil)
		}
		if input.Body.Body == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body is required", nil)
		}
		priority := input.Body.Priority
		if priority == "" {
			priority = domain.PriorityNormal
		}
		now := cfg.Now()
		msg := domain.Message{
			ID:          uuid.NewString(),
			SenderID:    u.ID,
			RecipientID: input.Body.RecipientID,
			Subject:     input.Body.Subject,
			Body:        input.Body.Body,
			Priority:    priority,
			CreatedAt:   now.UTC().Format(time.RFC3339),
		}
		if err := cfg.Repo.InsertMessage(ctx, msg); err != nil {
			return nil, handleError(err)
		}
		if err := cfg.Events.Append(ctx, "message.sent", "message", msg.ID, u.ID, events.EventPayload{
			"recipient_id": msg.RecipientID,
			"priority":     msg.Priority,
		}); err != nil {
			cfg.Logger.Error().Err(err).Str("message_id", msg.ID).Msg("append event failed")
		}
		return &struct {
			Body MessageResponse `json:"body"`
		}{Body: messageResponse(msg, now)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "read-message",
		Method:      http.MethodPost,
		Path:        "/messages/{id}/read",
		Summary:     "Mark a message read",
		Errors: []int{
			http.StatusUnauthorized,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body inboxBody `json:"body"`
	}, error) {
		st, u, err := loadInbox(ctx, resolver, states)
		if err != nil {
			return nil, handleError(err)
		}
		if err := st.Msgs.MarkAsRead(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		if err := cfg.Events.Append(ctx, "message.read", "message", input.ID, u.ID, nil); err != nil {
			cfg.Logger.Error().Err(err).Str("message_id", input.ID).Msg("append event failed")
		}
		return inboxResult(st, cfg.Now()), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "archive-message",
		Method:      http.MethodPost,
		Path:        "/messages/{id}/archive",
		Summary:     "Toggle a message between inbox and archive",
		Errors: []int{
			http.StatusUnauthorized,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body inboxBody `json:"body"`
	}, error) {
		st, _, err := loadInbox(ctx, resolver, states)
		if err != nil {
			return nil, handleError(err)
		}
		if err := st.Msgs.ToggleArchive(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		return inboxResult(st, cfg.Now()), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-message",
		Method:      http.MethodDelete,
		Path:        "/messages/{id}",
		Summary:     "Delete a message",
		Errors: []int{
			http.StatusUnauthorized,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		st, _, err := loadInbox(ctx, resolver, states)
		if err != nil {
			return nil, handleError(err)
		}
		if err := st.Msgs.Delete(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerBanner(api huma.API, cfg Config, states *stateRegistry) {
	resolver := session.Resolver{Repo: cfg.Repo}

	type bannerBody struct {
		Message *MessageResponse `json:"message,omitempty"`
	}
	huma.Register(api, huma.Operation{
		OperationID: "get-banner",
		Method:      http.MethodGet,
		Path:        "/banner",
		Summary:     "Urgent banner message, if any",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body bannerBody `json:"body"`
	}, error) {
		st, _, err := loadInbox(ctx, resolver, states)
		if err != nil {
			return nil, handleError(err)
		}
		body := bannerBody{}
		if m, ok := st.Banner.Current(st.Msgs.Messages()); ok {
			resp := messageResponse(m, cfg.Now())
			body.Message = &resp
		}
		return &struct {
			Body bannerBody `json:"body"`
		}{Body: body}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "dismiss-banner",
		Method:      http.MethodPost,
		Path:        "/banner/{id}/dismiss",
		Summary:     "Dismiss the banner for this session",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		authID, authErr := authIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		states.forAuth(authID).Banner.Dismiss(input.ID)
		return &struct{}{}, nil
	})
}

func loadInbox(ctx context.Context, resolver session.Resolver, states *stateRegistry) (*agentState, domain.User, error) {
	p, _ := principalFromContext(ctx)
	u, err := resolver.CurrentUser(ctx, p)
	if err != nil {
		return nil, domain.User{}, err
	}
	st := states.forAuth(u.AuthID)
	st.Msgs.Load(ctx, u.ID)
	return st, u, nil
}

func inboxResult(st *agentState, now time.Time) *struct {
	Body inboxBody `json:"body"`
} {
	return &struct {
		Body inboxBody `json:"body"`
	}{Body: inboxBody{
		Items:       mapMessages(st.Msgs.Messages(), now),
		UnreadCount: st.Msgs.UnreadCount(),
		Error:       st.Msgs.Err(),
	}}
}
