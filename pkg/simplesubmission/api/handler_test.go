package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-submission/pkg/simplesubmission"
	"github.com/tendant/simple-submission/pkg/simplesubmission/api"
	repomemory "github.com/tendant/simple-submission/pkg/simplesubmission/repo/memory"
	memorystorage "github.com/tendant/simple-submission/pkg/simplesubmission/storage/memory"
)

func setupTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	svc, err := simplesubmission.New(
		simplesubmission.WithRepository(repomemory.New()),
		simplesubmission.WithBlobStore(memorystorage.New()),
	)
	require.NoError(t, err)

	server := httptest.NewServer(api.NewHandler(svc).Routes())
	t.Cleanup(server.Close)
	return server
}

func createFormViaAPI(t *testing.T, server *httptest.Server, body map[string]interface{}) map[string]interface{} {
	t.Helper()

	if _, ok := body["createdBy"]; !ok {
		body["createdBy"] = uuid.New().String()
	}
	if _, ok := body["title"]; !ok {
		body["title"] = "Test Form"
	}

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(server.URL+"/forms", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var form map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&form))
	return form
}

// multipartUpload builds a multipart body with an explicit part content type.
func multipartUpload(t *testing.T, fileName, contentType, content string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, fileName))
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = io.WriteString(part, content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	return &buf, writer.FormDataContentType()
}

func TestCreateAndGetForm(t *testing.T) {
	server := setupTestServer(t)

	form := createFormViaAPI(t, server, map[string]interface{}{
		"title": "Homework drop",
		"code":  "HW01",
		"constraints": map[string]interface{}{
			"maxSizeBytes": 1024,
			"allowedTypes": []string{"application/pdf"},
		},
	})

	assert.Equal(t, "hw01", form["code"])
	assert.Equal(t, "Homework drop", form["title"])

	t.Run("get by id", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/forms/" + form["id"].(string))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("get by code", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/forms/code/HW01")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var fetched map[string]interface{}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&fetched))
		assert.Equal(t, form["id"], fetched["id"])
	})

	t.Run("unknown form is 404", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/forms/" + uuid.New().String())
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("duplicate code is 409", func(t *testing.T) {
		payload, _ := json.Marshal(map[string]interface{}{
			"title":     "Clone",
			"code":      "hw01",
			"createdBy": uuid.New().String(),
		})
		resp, err := http.Post(server.URL+"/forms", "application/json", bytes.NewReader(payload))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})
}

func TestValidateCodeEndpoint(t *testing.T) {
	server := setupTestServer(t)

	createFormViaAPI(t, server, map[string]interface{}{"code": "open01"})

	closed := time.Now().UTC().Add(-time.Hour).Format(time.RFC3339)
	createFormViaAPI(t, server, map[string]interface{}{"code": "done01", "closesAt": closed})

	t.Run("open form", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/submit/open01/validate")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var status map[string]interface{}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
		assert.Equal(t, true, status["ok"])
	})

	t.Run("closed form is 200 with ok false", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/submit/done01/validate")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var status map[string]interface{}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
		assert.Equal(t, false, status["ok"])
		assert.Equal(t, "submissions closed", status["reason"])
	})

	t.Run("unknown code is 404", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/submit/nothere/validate")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestSubmitEndpoint(t *testing.T) {
	server := setupTestServer(t)

	createFormViaAPI(t, server, map[string]interface{}{
		"code": "drop01",
		"constraints": map[string]interface{}{
			"maxSizeBytes": 100,
			"allowedTypes": []string{"text/plain"},
		},
	})

	t.Run("accepted upload", func(t *testing.T) {
		body, contentType := multipartUpload(t, "notes.txt", "text/plain", "short note")
		resp, err := http.Post(server.URL+"/submit/drop01", contentType, body)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		var result simplesubmission.UploadResult
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
		assert.True(t, result.OK)
		require.NotNil(t, result.Submission)
		assert.Equal(t, "notes.txt", result.Submission.FileName)
	})

	t.Run("rejected upload is 200 with reasons", func(t *testing.T) {
		body, contentType := multipartUpload(t, "notes.txt", "text/plain", strings.Repeat("x", 200))
		resp, err := http.Post(server.URL+"/submit/drop01", contentType, body)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var result simplesubmission.UploadResult
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
		assert.False(t, result.OK)
		assert.Equal(t, []string{"File too large (max 100 bytes)"}, result.Errors)
		assert.Nil(t, result.Submission)
	})

	t.Run("disallowed type", func(t *testing.T) {
		body, contentType := multipartUpload(t, "img.png", "image/png", "fake png")
		resp, err := http.Post(server.URL+"/submit/drop01", contentType, body)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var result simplesubmission.UploadResult
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
		assert.False(t, result.OK)
		assert.Equal(t, []string{"File type image/png not allowed"}, result.Errors)
	})

	t.Run("unknown code is 404", func(t *testing.T) {
		body, contentType := multipartUpload(t, "x.txt", "text/plain", "x")
		resp, err := http.Post(server.URL+"/submit/missing", contentType, body)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("missing file field is 400", func(t *testing.T) {
		var buf bytes.Buffer
		writer := multipart.NewWriter(&buf)
		require.NoError(t, writer.WriteField("other", "value"))
		require.NoError(t, writer.Close())

		resp, err := http.Post(server.URL+"/submit/drop01", writer.FormDataContentType(), &buf)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("closed form is 403", func(t *testing.T) {
		closed := time.Now().UTC().Add(-time.Hour).Format(time.RFC3339)
		createFormViaAPI(t, server, map[string]interface{}{"code": "late01", "closesAt": closed})

		body, contentType := multipartUpload(t, "x.txt", "text/plain", "x")
		resp, err := http.Post(server.URL+"/submit/late01", contentType, body)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusForbidden, resp.StatusCode)

		var result simplesubmission.UploadResult
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
		assert.False(t, result.OK)
		assert.Equal(t, []string{"submissions closed"}, result.Errors)
	})
}

func TestSubmitSniffsContentType(t *testing.T) {
	server := setupTestServer(t)

	createFormViaAPI(t, server, map[string]interface{}{
		"code": "sniff1",
		"constraints": map[string]interface{}{
			"allowedTypes": []string{"text/plain"},
		},
	})

	// No Content-Type on the part; the server detects plain text.
	body, contentType := multipartUpload(t, "raw.txt", "", "plain text payload without a declared type")
	resp, err := http.Post(server.URL+"/submit/sniff1", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var result simplesubmission.UploadResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.True(t, result.OK)
	assert.Equal(t, "text/plain", result.Submission.MimeType)
}

func TestSubmissionLifecycleEndpoints(t *testing.T) {
	server := setupTestServer(t)
	user := uuid.New().String()

	form := createFormViaAPI(t, server, map[string]interface{}{"code": "life01"})

	// Submit as an identified user.
	body, contentType := multipartUpload(t, "mine.txt", "text/plain", "my submission")
	req, err := http.NewRequest(http.MethodPost, server.URL+"/submit/life01", body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-User-ID", user)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var result simplesubmission.UploadResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	require.True(t, result.OK)
	subID := result.Submission.ID.String()

	t.Run("download returns the original bytes", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/submissions/" + subID + "/download")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		data, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, "my submission", string(data))
		assert.Contains(t, resp.Header.Get("Content-Disposition"), "mine.txt")
	})

	t.Run("list form submissions", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/forms/" + form["id"].(string) + "/submissions")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var subs []simplesubmission.Submission
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&subs))
		assert.Len(t, subs, 1)
	})

	t.Run("list my submissions requires user header", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/me/submissions")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("list my submissions", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, server.URL+"/me/submissions", nil)
		require.NoError(t, err)
		req.Header.Set("X-User-ID", user)

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var subs []simplesubmission.Submission
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&subs))
		assert.Len(t, subs, 1)
	})

	t.Run("delete submission", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodDelete, server.URL+"/submissions/"+subID, nil)
		require.NoError(t, err)

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		getResp, err := http.Get(server.URL + "/submissions/" + subID)
		require.NoError(t, err)
		defer getResp.Body.Close()
		assert.Equal(t, http.StatusNotFound, getResp.StatusCode)
	})
}

func TestDeleteFormEndpoint(t *testing.T) {
	server := setupTestServer(t)

	form := createFormViaAPI(t, server, map[string]interface{}{"code": "gone01"})

	req, err := http.NewRequest(http.MethodDelete, server.URL+"/forms/"+form["id"].(string), nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	getResp, err := http.Get(server.URL + "/forms/code/gone01")
	require.NoError(t, err)
	defer getResp.Body.Close()
	assert.Equal(t, http.StatusNotFound, getResp.StatusCode)
}
