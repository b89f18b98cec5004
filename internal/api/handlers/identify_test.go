package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/faceid/internal/index"
	"github.com/your-org/faceid/internal/models"
	"github.com/your-org/faceid/internal/recognition"
)

// fakeRecognizer returns canned results for each operation.
type fakeRecognizer struct {
	identification *recognition.Identification
	candidates     *recognition.CandidateSet
	enrolled       *models.Identity
	err            error
}

func (f *fakeRecognizer) Identify(ctx context.Context, imageData []byte) (*recognition.Identification, error) {
	return f.identification, f.err
}

func (f *fakeRecognizer) IdentifyCandidates(ctx context.Context, imageData []byte) (*recognition.CandidateSet, error) {
	return f.candidates, f.err
}

func (f *fakeRecognizer) Enroll(ctx context.Context, record models.IdentityRecord, imageData []byte) (*models.Identity, error) {
	return f.enrolled, f.err
}

func testRouter(svc Recognizer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewIdentifyHandler(svc)
	r.POST("/identify", h.Identify)
	r.POST("/identify/candidates", h.Candidates)
	return r
}

func postImage(t *testing.T, r *gin.Engine, path, image string) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(map[string]string{"image": image})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func validPayload() string {
	return base64.StdEncoding.EncodeToString([]byte("image bytes"))
}

func TestDecodeImagePayload(t *testing.T) {
	raw := []byte("some image")
	b64 := base64.StdEncoding.EncodeToString(raw)

	got, err := DecodeImagePayload(b64)
	require.NoError(t, err)
	assert.Equal(t, raw, got)

	got, err = DecodeImagePayload("data:image/jpeg;base64," + b64)
	require.NoError(t, err)
	assert.Equal(t, raw, got)

	_, err = DecodeImagePayload("!!! not base64 !!!")
	assert.Error(t, err)
}

func TestIdentifyMatched(t *testing.T) {
	id := uuid.New()
	svc := &fakeRecognizer{identification: &recognition.Identification{
		Match: index.Match{
			Found:  true,
			ID:     id,
			Record: models.IdentityRecord{Name: "Alice", Crime: "none"},
			Score:  0.87,
		},
	}}
	w := postImage(t, testRouter(svc), "/identify", validPayload())

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Status string         `json:"status"`
		Result map[string]any `json:"result"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, id.String(), resp.Result["id"])
	assert.Equal(t, "Alice", resp.Result["name"])
	assert.InDelta(t, 0.87, resp.Result["score"].(float64), 1e-6)
}

func TestIdentifyNewSentinel(t *testing.T) {
	svc := &fakeRecognizer{identification: &recognition.Identification{
		Match: index.Match{Found: false, Score: 0.31},
	}}
	w := postImage(t, testRouter(svc), "/identify", validPayload())

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Result map[string]any `json:"result"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, index.NewLabel, resp.Result["id"])
	assert.InDelta(t, 0.31, resp.Result["confidence"].(float64), 1e-6)
}

func TestIdentifyMissingImage(t *testing.T) {
	w := postImage(t, testRouter(&fakeRecognizer{}), "/identify", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIdentifyBadBase64(t *testing.T) {
	w := postImage(t, testRouter(&fakeRecognizer{}), "/identify", "%%% nope %%%")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIdentifyErrorStatuses(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"undecodable", recognition.ErrDecode, http.StatusBadRequest},
		{"no subject", recognition.ErrNoSubject, http.StatusUnprocessableEntity},
		{"no face", recognition.ErrNoFace, http.StatusUnprocessableEntity},
		{"store down", recognition.ErrStoreUnavailable, http.StatusServiceUnavailable},
		{"model down", recognition.ErrModelUnavailable, http.StatusServiceUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &fakeRecognizer{err: tc.err}
			w := postImage(t, testRouter(svc), "/identify", validPayload())
			assert.Equal(t, tc.want, w.Code)

			var resp struct {
				Status string `json:"status"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, "failure", resp.Status)
		})
	}
}

func TestCandidatesRankedList(t *testing.T) {
	svc := &fakeRecognizer{candidates: &recognition.CandidateSet{
		Matches: []index.Match{
			{Found: true, ID: uuid.New(), Record: models.IdentityRecord{Name: "Best"}, Score: 0.9},
			{Found: true, ID: uuid.New(), Record: models.IdentityRecord{Name: "Second"}, Score: 0.6},
		},
	}}
	w := postImage(t, testRouter(svc), "/identify/candidates", validPayload())

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Status  string           `json:"status"`
		Results []map[string]any `json:"results"`
		Total   int              `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, 2, resp.Total)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "Best", resp.Results[0]["name"])
	assert.Equal(t, "Second", resp.Results[1]["name"])
}

func TestCandidatesEmptyList(t *testing.T) {
	svc := &fakeRecognizer{candidates: &recognition.CandidateSet{Matches: []index.Match{}}}
	w := postImage(t, testRouter(svc), "/identify/candidates", validPayload())

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Results []map[string]any `json:"results"`
		Total   int              `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Total)
	assert.Empty(t, resp.Results)
}
