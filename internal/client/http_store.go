// Package client talks to the calculator backend: an HTTP StateStore and a
// websocket subscriber for the change feed and presence channel.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"realtime-calculator/internal/model"
	"realtime-calculator/internal/store"
)

// DefaultRequestTimeout HTTP 요청 기본 타임아웃
const DefaultRequestTimeout = 10 * time.Second

// HTTPStore 백엔드 REST API를 store.StateStore로 감싼다
type HTTPStore struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

var _ store.StateStore = (*HTTPStore)(nil)

// NewHTTPStore baseURL 예: "http://localhost:8080". token이 비어 있으면 헤더 생략.
func NewHTTPStore(baseURL, token string) *HTTPStore {
	return &HTTPStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: DefaultRequestTimeout,
		},
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *HTTPStore) stateURL(sessionID string) string {
	return s.baseURL + "/api/calculator/" + url.PathEscape(sessionID)
}

// Read 세션 행 조회. 404는 store.ErrNotFound.
func (s *HTTPStore) Read(ctx context.Context, sessionID string) (*model.CalculatorState, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.stateURL(sessionID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, store.ErrNotFound
	default:
		return nil, statusError(resp)
	}

	var state model.CalculatorState
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		return nil, fmt.Errorf("failed to decode state: %w", err)
	}
	return &state, nil
}

// Upsert 전체 행을 PUT 한다
func (s *HTTPStore) Upsert(ctx context.Context, state *model.CalculatorState) error {
	if state == nil {
		return store.ErrInvalidState
	}
	body, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.stateURL(state.SessionID), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusBadRequest {
		return fmt.Errorf("%w: %s", store.ErrInvalidState, readError(resp))
	}
	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

func (s *HTTPStore) do(req *http.Request) (*http.Response, error) {
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s %s failed: %w", req.Method, req.URL.Path, err)
	}
	return resp, nil
}

func statusError(resp *http.Response) error {
	return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, readError(resp))
}

func readError(resp *http.Response) string {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var er errorResponse
	if json.Unmarshal(data, &er) == nil && er.Error != "" {
		return er.Error
	}
	return strings.TrimSpace(string(data))
}
