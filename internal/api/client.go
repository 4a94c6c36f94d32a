// Package api is the HTTP client for the dbstudio backend.
//
// Every endpoint is a POST with a JSON body carrying the session token and,
// where relevant, the database name. File uploads use multipart form
// encoding. The backend is treated as opaque: no retries, no schema
// knowledge beyond the response shapes declared here.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fyrsmithlabs/dbstudio/internal/config"
	"github.com/fyrsmithlabs/dbstudio/internal/logging"
	"github.com/fyrsmithlabs/dbstudio/internal/registry"
	"go.uber.org/zap"
)

// Client calls the dbstudio backend.
type Client struct {
	baseURL string
	token   config.Secret
	http    *http.Client
	log     *logging.Logger
}

// NewClient creates a backend client. logger may be nil.
func NewClient(baseURL string, token config.Secret, timeout time.Duration, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
		log:     logger.Named("api"),
	}
}

// ListDatabaseNames returns the identifiers of the user's databases.
func (c *Client) ListDatabaseNames(ctx context.Context) ([]string, error) {
	var resp struct {
		DBNames []string `json:"db_names"`
	}
	if err := c.postJSON(ctx, "/integration/get_db_names", map[string]any{
		"token": c.token.Value(),
	}, &resp); err != nil {
		return nil, err
	}
	return resp.DBNames, nil
}

// GetDatabaseDetails returns the full metadata for one database.
// Implements registry.DetailFetcher.
func (c *Client) GetDatabaseDetails(ctx context.Context, name string) (registry.Metadata, error) {
	var meta registry.Metadata
	if err := c.postJSON(ctx, "/integration/get_db_info", map[string]any{
		"token":   c.token.Value(),
		"db_name": name,
	}, &meta); err != nil {
		return registry.Metadata{}, err
	}
	meta.Name = name
	return meta, nil
}

// DeleteDatabase removes a database/project on the backend.
func (c *Client) DeleteDatabase(ctx context.Context, name string) error {
	var resp struct {
		Status string `json:"status"`
	}
	return c.postJSON(ctx, "/integration/delete_db", map[string]any{
		"token":   c.token.Value(),
		"db_name": name,
	}, &resp)
}

// CreateResult is the backend's reply to a credential submission or upload.
type CreateResult struct {
	Name     string            `json:"db_name"`
	Metadata registry.Metadata `json:"db_info"`
}

// Credentials carries a credential create/update request.
type Credentials struct {
	Name     string `json:"db_name"`
	Type     string `json:"db_type"`
	Host     string `json:"host"`
	Port     string `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
}

// SubmitCredentials creates or updates a database connection and returns
// the resulting full metadata.
func (c *Client) SubmitCredentials(ctx context.Context, creds Credentials) (CreateResult, error) {
	var result CreateResult
	err := c.postJSON(ctx, "/integration/update_db_creds", map[string]any{
		"token":    c.token.Value(),
		"db_name":  creds.Name,
		"db_type":  creds.Type,
		"host":     creds.Host,
		"port":     creds.Port,
		"user":     creds.User,
		"password": creds.Password,
		"database": creds.Database,
	}, &result)
	if err != nil {
		return CreateResult{}, err
	}
	if result.Name == "" {
		result.Name = creds.Name
	}
	result.Metadata.Name = result.Name
	return result, nil
}

// UploadFiles sends local files to the backend, which creates a new project
// from their contents. Blocking; run it from the upload worker, never the
// UI loop.
func (c *Client) UploadFiles(ctx context.Context, paths []string) (CreateResult, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	if err := mw.WriteField("token", c.token.Value()); err != nil {
		return CreateResult{}, fmt.Errorf("encode upload: %w", err)
	}
	for _, path := range paths {
		if err := addFilePart(mw, path); err != nil {
			return CreateResult{}, err
		}
	}
	if err := mw.Close(); err != nil {
		return CreateResult{}, fmt.Errorf("encode upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/upload_files", &body)
	if err != nil {
		return CreateResult{}, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var result CreateResult
	if err := c.do(req, "/upload_files", "", &result); err != nil {
		return CreateResult{}, err
	}
	result.Metadata.Name = result.Name
	return result, nil
}

func addFilePart(mw *multipart.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open upload file: %w", err)
	}
	defer f.Close()

	part, err := mw.CreateFormFile("files", filepath.Base(path))
	if err != nil {
		return fmt.Errorf("encode upload: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("read upload file %s: %w", path, err)
	}
	return nil
}

// postJSON posts body to path and decodes the response into out.
func (c *Client) postJSON(ctx context.Context, path string, body map[string]any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	dbName, _ := body["db_name"].(string)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, path, dbName, out)
}

func (c *Client) do(req *http.Request, path, dbName string, out any) error {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return &RemoteError{Op: path, Database: dbName, Message: err.Error()}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return &RemoteError{Op: path, Database: dbName, Message: err.Error()}
	}

	c.log.Debug(req.Context(), "backend call",
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)))

	if resp.StatusCode != http.StatusOK {
		return &RemoteError{
			Op:         path,
			Database:   dbName,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(data, resp.StatusCode),
		}
	}

	// Some endpoints embed the failure in a 200 body.
	var probe struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &probe) == nil && probe.Error != "" {
		return &RemoteError{Op: path, Database: dbName, Message: probe.Error}
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return &RemoteError{Op: path, Database: dbName,
				Message: fmt.Sprintf("malformed response: %v", err)}
		}
	}
	return nil
}

const maxResponseSize = 32 << 20 // 32MB

// errorMessage extracts the backend's error string from a failed response.
func errorMessage(data []byte, status int) string {
	var body struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if json.Unmarshal(data, &body) == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Detail != "" {
			return body.Detail
		}
	}
	return http.StatusText(status)
}
