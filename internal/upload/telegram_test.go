package upload

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTelegramUpload_SendsDocumentAndReturnsMessageID(t *testing.T) {
	var gotPath, gotChatID, gotFileName, gotFileBody string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path

		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotChatID = r.FormValue("chat_id")

		file, header, err := r.FormFile("document")
		require.NoError(t, err)
		defer file.Close()
		gotFileName = header.Filename
		data, err := io.ReadAll(file)
		require.NoError(t, err)
		gotFileBody = string(data)

		w.Write([]byte(`{"ok":true,"result":{"message_id":4242}}`))
	}))
	defer srv.Close()

	u := NewTelegramUploader("test-token", "-100777", WithTelegramBaseURL(srv.URL))
	ref, err := u.Upload(context.Background(), "match.dem", strings.NewReader("demo-bytes"))

	require.NoError(t, err)
	assert.Equal(t, "4242", ref)
	assert.Equal(t, "/bottest-token/sendDocument", gotPath)
	assert.Equal(t, "-100777", gotChatID)
	assert.Equal(t, "match.dem", gotFileName)
	assert.Equal(t, "demo-bytes", gotFileBody)
}

func TestTelegramUpload_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"ok":false,"description":"Bad Request: file is too big"}`))
	}))
	defer srv.Close()

	u := NewTelegramUploader("test-token", "-100777", WithTelegramBaseURL(srv.URL))
	_, err := u.Upload(context.Background(), "match.dem", strings.NewReader("demo-bytes"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "file is too big")
}

func TestTelegramUpload_ServerUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	u := NewTelegramUploader("test-token", "-100777", WithTelegramBaseURL(srv.URL))
	_, err := u.Upload(context.Background(), "match.dem", strings.NewReader("demo-bytes"))

	require.Error(t, err)
}
