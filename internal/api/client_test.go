package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fyrsmithlabs/dbstudio/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "tok-123", 5*time.Second, nil)
}

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	return body
}

func TestListDatabaseNames(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/integration/get_db_names", r.URL.Path)
		body := decodeBody(t, r)
		assert.Equal(t, "tok-123", body["token"])
		json.NewEncoder(w).Encode(map[string]any{"db_names": []string{"a", "b"}})
	})

	names, err := c.ListDatabaseNames(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)
}

func TestGetDatabaseDetails(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(t, r)
		assert.Equal(t, "sales_db", body["db_name"])
		json.NewEncoder(w).Encode(map[string]any{
			"can_connect": true,
			"tables":      []map[string]any{{"table_name": "orders", "row_count": 42}},
			"column_descriptions": []map[string]any{
				{"table_name": "orders", "column_name": "id", "column_description": "pk"},
			},
		})
	})

	meta, err := c.GetDatabaseDetails(context.Background(), "sales_db")
	require.NoError(t, err)
	assert.Equal(t, "sales_db", meta.Name)
	require.NotNil(t, meta.CanConnect)
	assert.True(t, *meta.CanConnect)
	require.Len(t, meta.Tables, 1)
	assert.Equal(t, "orders", meta.Tables[0].Name)
	assert.EqualValues(t, 42, meta.Tables[0].RowCount)
	require.Len(t, meta.ColumnDescriptions, 1)
	assert.Equal(t, "pk", meta.ColumnDescriptions[0].Description)
}

func TestGetDatabaseDetailsRemoteError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]any{"error": "introspection failed"})
	})

	_, err := c.GetDatabaseDetails(context.Background(), "sales_db")
	var remoteErr *RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, "sales_db", remoteErr.Database)
	assert.Equal(t, "introspection failed", remoteErr.Message)
	assert.False(t, remoteErr.SessionExpired())
}

func TestSessionExpiredDetection(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{"error": "Unauthorized"})
	})

	_, err := c.ListDatabaseNames(context.Background())
	var remoteErr *RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.True(t, remoteErr.SessionExpired())
}

func TestErrorInOKBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"error": "bad credentials"})
	})

	_, err := c.SubmitCredentials(context.Background(), Credentials{Name: "d"})
	var remoteErr *RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, "bad credentials", remoteErr.Message)
}

func TestSubmitCredentials(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/integration/update_db_creds", r.URL.Path)
		body := decodeBody(t, r)
		assert.Equal(t, "new_db", body["db_name"])
		assert.Equal(t, "postgres", body["db_type"])
		json.NewEncoder(w).Encode(map[string]any{
			"db_name": "new_db",
			"db_info": map[string]any{
				"can_connect": true,
				"tables":      []map[string]any{{"table_name": "t"}},
			},
		})
	})

	result, err := c.SubmitCredentials(context.Background(), Credentials{
		Name: "new_db", Type: "postgres", Host: "localhost",
	})
	require.NoError(t, err)
	assert.Equal(t, "new_db", result.Name)
	assert.Equal(t, "new_db", result.Metadata.Name)
	require.Len(t, result.Metadata.Tables, 1)
}

func TestUploadFiles(t *testing.T) {
	dir := t.TempDir()
	csv := filepath.Join(dir, "data.csv")
	require.NoError(t, os.WriteFile(csv, []byte("a,b\n1,2\n"), 0o600))

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/upload_files", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "tok-123", r.FormValue("token"))
		files := r.MultipartForm.File["files"]
		require.Len(t, files, 1)
		assert.Equal(t, "data.csv", files[0].Filename)

		json.NewEncoder(w).Encode(map[string]any{
			"db_name": "data",
			"db_info": map[string]any{"tables": []map[string]any{{"table_name": "data"}}},
		})
	})

	result, err := c.UploadFiles(context.Background(), []string{csv})
	require.NoError(t, err)
	assert.Equal(t, "data", result.Name)
	assert.Len(t, result.Metadata.Tables, 1)
}

func TestUploadFilesMissingFile(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request must not be sent when a file cannot be read")
	})

	_, err := c.UploadFiles(context.Background(), []string{"/nonexistent/file.csv"})
	require.Error(t, err)
	var remoteErr *RemoteError
	assert.False(t, errors.As(err, &remoteErr), "local file errors are not remote errors")
}

func TestClientIntegratesWithRegistry(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"can_connect": true})
	})

	r := registry.New(c, nil, nil)
	r.BulkInitialize([]string{"d"})

	meta, err := r.FetchDetails(context.Background(), "d")
	require.NoError(t, err)
	assert.Equal(t, registry.Full, meta.DetailLevel)
}
