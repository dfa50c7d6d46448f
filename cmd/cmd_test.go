package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"configurablestub/database"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerManagerLoadAppliesOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stub.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  host: 0.0.0.0\n  http_port: 9000\n  https_port: 9443\n"), 0644))

	cmd := &cobra.Command{Use: "test"}
	addServeFlags(cmd)
	require.NoError(t, cmd.Flags().Parse([]string{"--https-port", "9444", "--journal", "/tmp/j.db"}))

	sm := NewServerManager(path)
	sm.SetOverrides(flagOverrides(cmd))

	cfg, err := sm.Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 9000, cfg.Server.HttpPort)
	assert.Equal(t, 9444, cfg.Server.HttpsPort)
	assert.True(t, cfg.Journal.Enabled)
	assert.Equal(t, "/tmp/j.db", cfg.Journal.Path)
}

func TestServerManagerLoadRejectsClashingPorts(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	addServeFlags(cmd)
	require.NoError(t, cmd.Flags().Parse([]string{"--http-port", "9000", "--https-port", "9000"}))

	sm := NewServerManager("")
	sm.SetOverrides(flagOverrides(cmd))

	_, err := sm.Load()
	assert.Error(t, err)
}

func TestHealthCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"health", "--url", srv.URL})
	defer rootCmd.SetArgs(nil)

	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "healthy\n", out.String())
}

func TestJournalCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	db, err := database.InitDB(path)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO stub_transactions (uuid, route_key, request_method, request_endpoint,
		request_headers, request_body, response_status_code, response_content_type, response_body, outcome, timestamp)
		VALUES ('u1', 'GET:api/x', 'GET', '/api/x', '{}', '', 200, 'text/plain', 'ok', 'matched', CURRENT_TIMESTAMP)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"journal", "--path", path, "--route", "GET:api/x"})
	defer rootCmd.SetArgs(nil)

	require.NoError(t, rootCmd.Execute())

	var records []database.Transaction
	require.NoError(t, json.Unmarshal(out.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "u1", records[0].UUID)
	assert.Equal(t, "matched", records[0].Outcome)
}
