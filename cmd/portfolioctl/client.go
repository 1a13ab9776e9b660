package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"time"
)

const (
	portfolioAPI = "/api/portfolio/v1"
	auditAPI     = "/api/audit/v1"
)

type portfolioClient struct {
	baseURL string
	user    string
	email   string
	group   string
	token   string
	http    *http.Client
}

func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

// apiError is a non-2xx response.
type apiError struct {
	Status  int
	Code    string `json:"error"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

func (e *apiError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	if e.Reason != "" {
		return fmt.Sprintf("server returned %d %s (%s): %s", e.Status, e.Code, e.Reason, e.Message)
	}
	return fmt.Sprintf("server returned %d %s: %s", e.Status, e.Code, e.Message)
}

func (c *portfolioClient) do(method, path, contentType string, body io.Reader, v any) error {
	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("request creation failed: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	} else {
		if c.user != "" {
			req.Header.Set("X-Remote-User", c.user)
		}
		if c.email != "" {
			req.Header.Set("X-Remote-Email", c.email)
		}
		if c.group != "" {
			req.Header.Set("X-Remote-Group", c.group)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &apiError{Status: resp.StatusCode}
		data, _ := io.ReadAll(resp.Body)
		_ = json.Unmarshal(data, apiErr)
		if apiErr.Message == "" {
			apiErr.Message = string(bytes.TrimSpace(data))
		}
		return apiErr
	}

	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			return fmt.Errorf("decode error: %w", err)
		}
	}
	return nil
}

func (c *portfolioClient) getJSON(path string, v any) error {
	return c.do(http.MethodGet, path, "", nil, v)
}

func (c *portfolioClient) sendJSON(method, path string, body, v any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal error: %w", err)
		}
		r = bytes.NewReader(data)
	}
	return c.do(method, path, "application/json", r, v)
}

// uploadFile sends data as the multipart "file" part.
func (c *portfolioClient) uploadFile(method, path, fileName string, data []byte, v any) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(fileName))
	if err != nil {
		return err
	}
	if _, err := part.Write(data); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}
	return c.do(method, path, mw.FormDataContentType(), &buf, v)
}
