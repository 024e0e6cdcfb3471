// Package client is a typed HTTP client for the Saga server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jschreck/saga/internal/models"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("saga server: %d: %s", e.Status, e.Message)
}

type Client struct {
	baseURL      string
	conversation string
	httpClient   *http.Client
}

// New returns a client for baseURL. Requests carry the conversation id in
// the X-Saga-Conversation header when one is set.
func New(baseURL, conversation string) *Client {
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		conversation: conversation,
		httpClient: &http.Client{
			Timeout: 6 * time.Minute, // inference plus title generation
		},
	}
}

// Conversation returns the conversation id this client speaks for.
func (c *Client) Conversation() string { return c.conversation }

// Chat sends one user turn.
func (c *Client) Chat(ctx context.Context, text string) (*models.ChatResponse, error) {
	req := models.ChatRequest{Messages: []models.Message{{Role: models.RoleUser, Content: text}}}
	var out models.ChatResponse
	if err := c.do(ctx, http.MethodPost, "/api/chat", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SaveConsensus(ctx context.Context, instruction string) (*models.MemoryEntry, error) {
	var out models.MemoryEntry
	if err := c.do(ctx, http.MethodPost, "/api/consensus", models.SaveConsensusRequest{Instruction: instruction}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Consensus(ctx context.Context, limit int) ([]models.MemoryEntry, error) {
	var out []models.MemoryEntry
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/consensus?limit=%d", limit), nil, &out)
	return out, err
}

func (c *Client) Projects(ctx context.Context) ([]string, error) {
	var out []string
	err := c.do(ctx, http.MethodGet, "/api/projects", nil, &out)
	return out, err
}

func (c *Client) CreateProject(ctx context.Context, name string) (string, error) {
	var out models.CreateProjectResponse
	if err := c.do(ctx, http.MethodPost, "/api/projects", models.CreateProjectRequest{Name: name}, &out); err != nil {
		return "", err
	}
	return out.Name, nil
}

func (c *Client) AddNote(ctx context.Context, project, note string) (*models.ProjectNote, error) {
	var out models.ProjectNote
	path := "/api/projects/" + url.PathEscape(project) + "/notes"
	if err := c.do(ctx, http.MethodPost, path, models.AddNoteRequest{Note: note}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Notes(ctx context.Context, project string) ([]models.ProjectNote, error) {
	var out []models.ProjectNote
	err := c.do(ctx, http.MethodGet, "/api/projects/"+url.PathEscape(project)+"/notes", nil, &out)
	return out, err
}

func (c *Client) Session(ctx context.Context) (*models.SessionSnapshot, error) {
	var out models.SessionSnapshot
	if err := c.do(ctx, http.MethodGet, "/api/session", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CloseSession(ctx context.Context) (*models.CloseSessionResponse, error) {
	var out models.CloseSessionResponse
	if err := c.do(ctx, http.MethodPost, "/api/session/close", models.CloseSessionRequest{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Archives(ctx context.Context) ([]models.ArchiveInfo, error) {
	var out []models.ArchiveInfo
	err := c.do(ctx, http.MethodGet, "/api/archives", nil, &out)
	return out, err
}

func (c *Client) LoadArchive(ctx context.Context, id string) (*models.LoadArchiveResponse, error) {
	var out models.LoadArchiveResponse
	if err := c.do(ctx, http.MethodPost, "/api/archives/"+url.PathEscape(id)+"/load", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Status returns the server health report. A degraded server still yields a
// report alongside the APIError.
func (c *Client) Status(ctx context.Context) (*models.HealthResponse, error) {
	var out models.HealthResponse
	err := c.do(ctx, http.MethodGet, "/api/status", nil, &out)
	if apiErr, ok := err.(*APIError); ok && apiErr.Status == http.StatusServiceUnavailable {
		return &out, err
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Upload sends a document for ingestion.
func (c *Client) Upload(ctx context.Context, path string) (*models.UploadResponse, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("create form: %w", err)
	}
	if _, err := io.Copy(fw, f); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/upload", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out models.UploadResponse
	if err := c.send(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	if c.conversation != "" {
		req.Header.Set("X-Saga-Conversation", c.conversation)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if out != nil && len(data) > 0 {
		if jerr := json.Unmarshal(data, out); jerr != nil && resp.StatusCode < 300 {
			return fmt.Errorf("decode response: %w", jerr)
		}
	}

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		json.Unmarshal(data, &e)
		if e.Error == "" {
			e.Error = strings.TrimSpace(string(data))
		}
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	return nil
}
