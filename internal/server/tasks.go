package server

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"conciera/internal/domain"
	"conciera/internal/repo"
	"conciera/internal/session"
	"conciera/internal/workflow"
)

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerMe(api huma.API, cfg Config) {
	resolver := session.Resolver{Repo: cfg.Repo}
	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Current user",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body UserResponse `json:"body"`
	}, error) {
		p, _ := principalFromContext(ctx)
		u, err := resolver.CurrentUser(ctx, p)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body UserResponse `json:"body"`
		}{Body: userResponse(u)}, nil
	})
}

func registerResidences(api huma.API, cfg Config, states *stateRegistry) {
	resolver := session.Resolver{Repo: cfg.Repo}
	huma.Register(api, huma.Operation{
		OperationID: "list-residences",
		Method:      http.MethodGet,
		Path:        "/residences",
		Summary:     "Residences reachable by the current agent",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []ResidenceResponse `json:"body"`
	}, error) {
		p, _ := principalFromContext(ctx)
		u, err := resolver.CurrentUser(ctx, p)
		if err != nil {
			return nil, handleError(err)
		}
		items, err := cfg.Repo.ListResidencesByZones(ctx, u.ZoneIDs)
		if err != nil {
			return nil, handleError(err)
		}
		out := make([]ResidenceResponse, 0, len(items))
		for _, r := range items {
			out = append(out, residenceResponse(r))
		}
		return &struct {
			Body []ResidenceResponse `json:"body"`
		}{Body: out}, nil
	})
}

type taskListBody struct {
	Items []TaskResponse `json:"items"`
	Error string         `json:"error,omitempty"`
}

func registerTasks(api huma.API, cfg Config, states *stateRegistry) {
	resolver := session.Resolver{Repo: cfg.Repo}

	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks",
		Summary:     "List the current agent's tasks",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Date        string `query:"date" doc:"Calendar day (YYYY-MM-DD), all days when empty"`
		ResidenceID string `query:"residence_id" doc:"Residence filter, empty for all"`
	}) (*struct {
		Body taskListBody `json:"body"`
	}, error) {
		authID, authErr := authIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		st := states.forAuth(authID)
		st.Tasks.SetResidenceFilter(input.ResidenceID)
		st.Tasks.Load(ctx, authID)
		body := taskListBody{Error: st.Tasks.Err()}
		if input.Date != "" {
			body.Items = mapTasks(st.Tasks.TasksForDay(input.Date))
		} else {
			body.Items = mapTasks(st.Tasks.FilteredTasks())
		}
		return &struct {
			Body taskListBody `json:"body"`
		}{Body: body}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/tasks/{id}",
		Summary:     "Get task",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body TaskResponse `json:"body"`
	}, error) {
		t, err := cfg.Repo.GetTask(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskResponse `json:"body"`
		}{Body: taskResponse(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "save-verification",
		Method:      http.MethodPost,
		Path:        "/tasks/{id}/verification",
		Summary:     "Save a verification entry",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		ID   string              `path:"id"`
		Body VerificationRequest `json:"body"`
	}) (*struct {
		Body TaskResponse `json:"body"`
	}, error) {
		p, _ := principalFromContext(ctx)
		agent, err := resolver.CurrentUser(ctx, p)
		if err != nil {
			return nil, handleError(err)
		}
		st := states.forAuth(agent.AuthID)
		entry := workflow.Entry{
			StartTime: workflow.NormalizeTimeInput("", input.Body.StartTime),
			EndTime:   workflow.NormalizeTimeInput("", input.Body.EndTime),
			Comment:   input.Body.Comment,
			Photos:    input.Body.Photos,
		}
		if err := st.Engine.Save(ctx, agent, input.ID, entry); err != nil {
			return nil, handleError(err)
		}
		t, err := cfg.Repo.GetTask(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskResponse `json:"body"`
		}{Body: taskResponse(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPatch,
		Path:        "/tasks/{id}",
		Summary:     "Partially update a task",
		Description: "Omitted fields are left alone; an explicit empty string clears a field.",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		Body struct {
			StartTime *string  `json:"start_time,omitempty"`
			EndTime   *string  `json:"end_time,omitempty"`
			Comment   *string  `json:"comment,omitempty"`
			Photos    []string `json:"photos,omitempty"`
		} `json:"body"`
	}) (*struct {
		Body TaskResponse `json:"body"`
	}, error) {
		authID, authErr := authIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := cfg.Repo.GetTask(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if t.StatusCode() == domain.StatusConciergeValidated {
			return nil, handleError(workflow.ErrReadOnly)
		}
		patch := repo.TaskPatch{UpdatedAt: cfg.Now().UTC().Format(time.RFC3339)}
		if input.Body.StartTime != nil {
			if *input.Body.StartTime == "" {
				patch.ClearStartTime = true
			} else {
				patch.StartTime = input.Body.StartTime
			}
		}
		if input.Body.EndTime != nil {
			if *input.Body.EndTime == "" {
				patch.ClearEndTime = true
			} else {
				patch.EndTime = input.Body.EndTime
			}
		}
		if input.Body.Comment != nil {
			if *input.Body.Comment == "" {
				patch.ClearComment = true
			} else {
				patch.AgentComment = input.Body.Comment
			}
		}
		if input.Body.Photos != nil {
			patch.AgentPhotos = input.Body.Photos
		}
		st := states.forAuth(authID)
		if err := st.Tasks.UpdateTask(ctx, input.ID, patch); err != nil {
			return nil, handleError(err)
		}
		t, err = cfg.Repo.GetTask(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskResponse `json:"body"`
		}{Body: taskResponse(t)}, nil
	})
}
