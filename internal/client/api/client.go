// Package api is a small HTTP client for the credkeeper register and login endpoints.
package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/atinyakov/credkeeper/internal/models"
)

const (
	apiRegister = "/api/register"
	apiLogin    = "/api/login"
)

var (
	// ErrConflict is returned by Register when the username is taken.
	ErrConflict = errors.New("user already exists")
	// ErrUnauthorized is returned by Login for bad credentials.
	ErrUnauthorized = errors.New("invalid credentials")
)

// Client talks to a credkeeper server.
type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a Client for baseURL. If caFile is not empty, the server
// certificate is verified against that CA only.
func New(baseURL, caFile string) (*Client, error) {
	hc := &http.Client{Timeout: 10 * time.Second}
	if caFile != "" {
		caCert, err := os.ReadFile(caFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA cert: %w", err)
		}
		caPool := x509.NewCertPool()
		if !caPool.AppendCertsFromPEM(caCert) {
			return nil, errors.New("failed to parse CA cert")
		}
		hc.Transport = &http.Transport{TLSClientConfig: &tls.Config{RootCAs: caPool, MinVersion: tls.VersionTLS12}}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: hc}, nil
}

// Register creates a user on the server.
func (c *Client) Register(ctx context.Context, username, password string) (models.UserInfo, error) {
	return c.call(ctx, apiRegister, username, password)
}

// Login checks credentials on the server.
func (c *Client) Login(ctx context.Context, username, password string) (models.UserInfo, error) {
	return c.call(ctx, apiLogin, username, password)
}

func (c *Client) call(ctx context.Context, path, username, password string) (models.UserInfo, error) {
	b, err := json.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		return models.UserInfo{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return models.UserInfo{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return models.UserInfo{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
	case http.StatusConflict:
		return models.UserInfo{}, ErrConflict
	case http.StatusUnauthorized:
		return models.UserInfo{}, ErrUnauthorized
	default:
		data, _ := io.ReadAll(resp.Body)
		return models.UserInfo{}, fmt.Errorf("server error: %s: %s", resp.Status, strings.TrimSpace(string(data)))
	}

	var info models.UserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return models.UserInfo{}, fmt.Errorf("failed to decode response: %w", err)
	}
	return info, nil
}
