package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListModelsFollowsPages(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1beta/models", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))

		var page ListModelsResponse
		switch r.URL.Query().Get("pageToken") {
		case "":
			page = ListModelsResponse{
				Models: []Model{
					{Name: "models/gemini-pro", SupportedGenerationMethods: []string{"generateContent", "countTokens"}},
					{Name: "models/embedding-001", SupportedGenerationMethods: []string{"embedContent"}},
				},
				NextPageToken: "p2",
			}
		case "p2":
			page = ListModelsResponse{
				Models: []Model{{Name: "models/gemini-ultra", SupportedGenerationMethods: []string{"generateContent"}}},
			}
		default:
			t.Errorf("unexpected page token %q", r.URL.Query().Get("pageToken"))
		}
		json.NewEncoder(w).Encode(page)
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/v1beta/", "test-key")
	models, err := c.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	require.Len(t, models, 3)
	assert.Equal(t, "models/gemini-pro", models[0].Name)
	assert.Equal(t, "models/embedding-001", models[1].Name)
	assert.Equal(t, "models/gemini-ultra", models[2].Name)
	assert.True(t, models[0].Supports(MethodGenerateContent))
	assert.False(t, models[1].Supports(MethodGenerateContent))
}

func TestListModelsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"code":403,"message":"API key not valid","status":"PERMISSION_DENIED"}}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "bad").ListModels(context.Background())
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, "PERMISSION_DENIED", apiErr.Status)
	assert.Equal(t, "API key not valid", apiErr.Message)
}

func TestGenerateContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/models/gemini-pro:generateContent", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("content-type"))

		var req GenerateContentRequest
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) || !assert.Len(t, req.Contents, 3) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		assert.Equal(t, RoleUser, req.Contents[0].Role)
		assert.Equal(t, RoleModel, req.Contents[1].Role)
		assert.Equal(t, "How are you?", req.Contents[2].Parts[0].Text)

		w.Write([]byte(`{
			"candidates": [{"content": {"role": "model", "parts": [{"text": "Fine, "}, {"text": "thanks."}]}, "finishReason": "STOP"}],
			"usageMetadata": {"promptTokenCount": 12, "candidatesTokenCount": 4, "totalTokenCount": 16}
		}`))
	}))
	defer srv.Close()

	contents := []Content{
		{Role: RoleUser, Parts: []Part{{Text: "Hello"}}},
		{Role: RoleModel, Parts: []Part{{Text: "Hi"}}},
		{Role: RoleUser, Parts: []Part{{Text: "How are you?"}}},
	}
	resp, err := NewClient(srv.URL, "k").GenerateContent(context.Background(), "gemini-pro", contents)
	require.NoError(t, err)

	text, err := resp.Text()
	require.NoError(t, err)
	assert.Equal(t, "Fine, thanks.", text)
	require.NotNil(t, resp.UsageMetadata)
	assert.EqualValues(t, 16, resp.UsageMetadata.TotalTokenCount)
}

func TestGenerateContentMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates": [`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "k").GenerateContent(context.Background(), "models/gemini-pro", nil)
	assert.ErrorContains(t, err, "failed to unmarshal response")
}

func TestGenerateContentQuota(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "k").GenerateContent(context.Background(), "models/gemini-pro", nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Equal(t, "slow down", apiErr.Message)
}

func TestResponseText(t *testing.T) {
	tests := []struct {
		name    string
		resp    GenerateContentResponse
		want    string
		wantErr error
	}{
		{
			name:    "blocked",
			resp:    GenerateContentResponse{PromptFeedback: &PromptFeedback{BlockReason: "SAFETY"}},
			wantErr: ErrBlocked,
		},
		{
			name:    "no candidates",
			resp:    GenerateContentResponse{},
			wantErr: ErrEmptyResponse,
		},
		{
			name:    "empty parts",
			resp:    GenerateContentResponse{Candidates: []Candidate{{FinishReason: "MAX_TOKENS"}}},
			wantErr: ErrEmptyResponse,
		},
		{
			name: "first candidate wins",
			resp: GenerateContentResponse{Candidates: []Candidate{
				{Content: Content{Parts: []Part{{Text: "a"}}}},
				{Content: Content{Parts: []Part{{Text: "b"}}}},
			}},
			want: "a",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.resp.Text()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestModelPath(t *testing.T) {
	assert.Equal(t, "models/gemini-pro", ModelPath("gemini-pro"))
	assert.Equal(t, "models/gemini-pro", ModelPath("models/gemini-pro"))
	assert.Equal(t, "tunedModels/mine", ModelPath("tunedModels/mine"))
}
