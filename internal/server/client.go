package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/IvanShishkin/buckfinder/internal/server/api"
	"github.com/IvanShishkin/buckfinder/pkg/models"
)

// Client talks to a running buckfinder API server
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the server at addr ("host:port" or a URL)
func NewClient(addr string) *Client {
	base := strings.TrimRight(addr, "/")
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &Client{
		baseURL: base,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// StartScan asks the server to scan folder
func (c *Client) StartScan(ctx context.Context, folder string) (models.ScanStart, error) {
	var out models.ScanStart
	err := c.do(ctx, http.MethodPost, "/api/scan_folder", scanFolderReq{FolderPath: folder}, &out)
	return out, err
}

// Progress fetches one progress snapshot. It satisfies poller.FetchFunc.
func (c *Client) Progress(ctx context.Context) (models.ScanProgress, error) {
	var out models.ScanProgress
	err := c.do(ctx, http.MethodGet, "/api/scan_progress", nil, &out)
	return out, err
}

// Cancel asks the server to stop the live scan
func (c *Client) Cancel(ctx context.Context) (bool, error) {
	var out cancelResp
	err := c.do(ctx, http.MethodPost, "/api/scan_cancel", nil, &out)
	return out.Cancelled, err
}

// Save asks the server to copy paths into dest
func (c *Client) Save(ctx context.Context, dest string, paths []string) (*models.ExportResult, error) {
	var out models.ExportResult
	err := c.do(ctx, http.MethodPost, "/api/save_selected_bucks", saveSelectedReq{OutputFolder: dest, ImagePaths: paths}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Health returns the model name reported by the server
func (c *Client) Health(ctx context.Context) (string, error) {
	var out healthResp
	err := c.do(ctx, http.MethodGet, "/api/health", nil, &out)
	return out.Model, err
}

func (c *Client) do(ctx context.Context, method, path string, body, dst any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env struct {
		OK    bool            `json:"ok"`
		Data  json.RawMessage `json:"data"`
		Error *api.Error      `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("%s %s: unexpected response (status %d): %w", method, path, resp.StatusCode, err)
	}

	if !env.OK {
		if env.Error == nil {
			return fmt.Errorf("%s %s: request failed with status %d", method, path, resp.StatusCode)
		}
		return remoteError(path, env.Error)
	}

	if dst == nil || len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, dst)
}

// relayedError is an error returned by the server. It keeps the server's
// message and unwraps to a coded error so errors.Is keeps working.
type relayedError struct {
	path    string
	message string
	cause   error
}

func (e *relayedError) Error() string {
	return e.path + ": " + e.cause.Error()
}

func (e *relayedError) Unwrap() error {
	return e.cause
}

func (e *relayedError) UserMessage() string {
	return e.message
}

// remoteError restores a coded error from the envelope
func remoteError(path string, e *api.Error) error {
	var cause error
	switch code := models.ErrorCode(e.Code); code {
	case models.CodeModelNotFound, models.CodeCompilationFailed, models.CodeLoadFailed,
		models.CodeFolderNotFound, models.CodeFolderUnreadable, models.CodeNoImages,
		models.CodeDestinationUnwritable, models.CodeNoSelection,
		models.CodeImageDecode, models.CodeInference, models.CodeInferenceTimeout,
		models.CodeSourceUnreadable:
		cause = models.NewError(code, "remote", "", errors.New(e.Message))
	default:
		cause = fmt.Errorf("%s: %s", e.Code, e.Message)
	}
	return &relayedError{path: path, message: e.Message, cause: cause}
}
