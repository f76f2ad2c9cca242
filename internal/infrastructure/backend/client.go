// Package backend implements the HTTP client for the application backend,
// the system of record for task applications.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/taskora/settlement-service/internal/app"
	"github.com/taskora/settlement-service/internal/config"
	"github.com/taskora/settlement-service/internal/domain"
)

type HTTPBackendClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewBackendClient(cfg config.BackendConfig) app.BackendClient {
	return &HTTPBackendClient{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.ConnTimeout,
		},
	}
}

type applicationPayload struct {
	ID          string    `json:"id"`
	TaskID      string    `json:"task_id"`
	DeveloperID string    `json:"developer_id"`
	CompanyID   string    `json:"company_id"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (p *applicationPayload) toDomain() (*domain.TaskApplication, error) {
	status, err := domain.ParseApplicationStatus(p.Status)
	if err != nil {
		return nil, err
	}
	return &domain.TaskApplication{
		ID:          p.ID,
		TaskID:      p.TaskID,
		DeveloperID: p.DeveloperID,
		CompanyID:   p.CompanyID,
		Status:      status,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}, nil
}

type updateStatusPayload struct {
	Status string `json:"status"`
	Role   string `json:"role"`
}

func (c *HTTPBackendClient) GetApplication(ctx context.Context, id string) (*domain.TaskApplication, error) {
	url := fmt.Sprintf("%s/api/v1/applications/%s", c.baseURL, id)
	payload, err := c.one(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return payload.toDomain()
}

func (c *HTTPBackendClient) UpdateStatus(ctx context.Context, id string, status domain.ApplicationStatus, role domain.Role) (*domain.TaskApplication, error) {
	url := fmt.Sprintf("%s/api/v1/applications/%s/status", c.baseURL, id)
	body := updateStatusPayload{Status: string(status), Role: string(role)}
	payload, err := c.one(ctx, http.MethodPatch, url, &body)
	if err != nil {
		return nil, err
	}
	return payload.toDomain()
}

func (c *HTTPBackendClient) ListByTask(ctx context.Context, taskID string) ([]*domain.TaskApplication, error) {
	url := fmt.Sprintf("%s/api/v1/tasks/%s/applications", c.baseURL, taskID)
	return c.list(ctx, url)
}

func (c *HTTPBackendClient) ListByCompany(ctx context.Context, companyID string) ([]*domain.TaskApplication, error) {
	url := fmt.Sprintf("%s/api/v1/companies/%s/applications", c.baseURL, companyID)
	return c.list(ctx, url)
}

func (c *HTTPBackendClient) ListByDeveloper(ctx context.Context, developerID string) ([]*domain.TaskApplication, error) {
	url := fmt.Sprintf("%s/api/v1/developers/%s/applications", c.baseURL, developerID)
	return c.list(ctx, url)
}

func (c *HTTPBackendClient) one(ctx context.Context, method, url string, body *updateStatusPayload) (*applicationPayload, error) {
	respBody, err := c.send(ctx, method, url, body)
	if err != nil {
		return nil, err
	}

	var payload applicationPayload
	if err := json.Unmarshal(respBody, &payload); err != nil {
		return nil, fmt.Errorf("error decoding json response: %w", err)
	}
	return &payload, nil
}

func (c *HTTPBackendClient) list(ctx context.Context, url string) ([]*domain.TaskApplication, error) {
	respBody, err := c.send(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	var payloads []applicationPayload
	if err := json.Unmarshal(respBody, &payloads); err != nil {
		return nil, fmt.Errorf("error decoding json response: %w", err)
	}

	applications := make([]*domain.TaskApplication, 0, len(payloads))
	for i := range payloads {
		application, err := payloads[i].toDomain()
		if err != nil {
			return nil, err
		}
		applications = append(applications, application)
	}
	return applications, nil
}

func (c *HTTPBackendClient) send(ctx context.Context, method, url string, body *updateStatusPayload) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("error marshalling json: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return respBody, nil
	case http.StatusNotFound:
		return nil, app.NewNotFoundError("application")
	default:
		return nil, fmt.Errorf("backend returned status %d: %s", resp.StatusCode, string(respBody))
	}
}
