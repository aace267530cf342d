package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"evalportal/internal/domain/evaluation"
)

// HTTPRemote implements RemoteStore against the portal's REST API. The
// bearer credential is read from the identity source per call, so an
// expired or cleared credential degrades writes exactly like the engine
// expects.
type HTTPRemote struct {
	BaseURL string
	Client  *http.Client
	IDs     IdentitySource
}

func NewHTTPRemote(baseURL string, ids IdentitySource) *HTTPRemote {
	return &HTTPRemote{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 15 * time.Second},
		IDs:     ids,
	}
}

type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (r *HTTPRemote) FetchEvaluation(ctx context.Context, periodYear int) (*evaluation.Record, error) {
	path := fmt.Sprintf("/api/v1/evaluations?periodYear=%d", periodYear)
	data, err := r.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var rec evaluation.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode evaluation: %w", err)
	}
	if rec.ID == "" {
		return nil, nil
	}
	return &rec, nil
}

func (r *HTTPRemote) SaveEvaluation(ctx context.Context, rec *evaluation.Record) (string, error) {
	data, err := r.do(ctx, http.MethodPost, "/api/v1/evaluations", rec)
	if err != nil {
		return "", err
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("decode save response: %w", err)
	}
	return out.ID, nil
}

func (r *HTTPRemote) SubmitEvaluation(ctx context.Context, evaluationID string, rec *evaluation.Record, pdfURL string) error {
	payload := struct {
		*evaluation.Record
		SubmitPDFURL string `json:"submitPdfUrl,omitempty"`
	}{Record: rec, SubmitPDFURL: pdfURL}
	_, err := r.do(ctx, http.MethodPost, "/api/v1/evaluations/"+evaluationID+"/submit", payload)
	return err
}

func (r *HTTPRemote) ReopenEvaluation(ctx context.Context, evaluationID, reason string) error {
	payload := map[string]string{"reason": reason}
	_, err := r.do(ctx, http.MethodPost, "/api/v1/evaluations/"+evaluationID+"/reopen", payload)
	return err
}

func (r *HTTPRemote) FetchDirectoryRecord(ctx context.Context, employeeID string) (*DirectoryRecord, error) {
	data, err := r.do(ctx, http.MethodGet, "/api/v1/directory/"+employeeID, nil)
	if err != nil {
		return nil, err
	}
	var rec DirectoryRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode directory record: %w", err)
	}
	return &rec, nil
}

func (r *HTTPRemote) do(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.BaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if id, ok := r.IDs.Current(); ok {
		req.Header.Set("Authorization", "Bearer "+id.Token)
	}

	resp, err := r.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var envelope apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode response (%d): %w", resp.StatusCode, err)
	}
	if !envelope.Success {
		if envelope.Error != nil {
			return nil, fmt.Errorf("%s: %s", envelope.Error.Code, envelope.Error.Message)
		}
		return nil, fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	return envelope.Data, nil
}
