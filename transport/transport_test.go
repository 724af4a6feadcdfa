package transport_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/adamant-labs/fragment/engine"
	"github.com/adamant-labs/fragment/fragconf"
	"github.com/adamant-labs/fragment/persistence/memstore"
	"github.com/adamant-labs/fragment/scheduler"
	"github.com/adamant-labs/fragment/transport"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	conf := fragconf.Default()
	store := memstore.New()
	eng := engine.New(conf, store)
	sched := scheduler.New(conf, eng)
	srv := transport.New(conf, eng, sched, store)
	return httptest.NewServer(srv.Handler())
}

func TestJoinThenCommandThenView(t *testing.T) {
	ts := newTestServer(t)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/join", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var joined struct {
		Token     string `json:"token"`
		ProcessID string `json:"process_id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&joined))
	require.NotEmpty(t, joined.Token)
	require.NotEmpty(t, joined.ProcessID)

	body, err := json.Marshal(map[string]string{"token": joined.Token, "kind": "MOVE", "arg": "8"})
	require.NoError(t, err)
	cmdResp, err := http.Post(ts.URL+"/command", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer cmdResp.Body.Close()
	require.Equal(t, http.StatusAccepted, cmdResp.StatusCode)

	viewResp, err := http.Get(ts.URL + "/view/" + joined.ProcessID)
	require.NoError(t, err)
	defer viewResp.Body.Close()
	require.Equal(t, http.StatusOK, viewResp.StatusCode)
}

func TestJoinAtCapacityReturns503(t *testing.T) {
	conf := fragconf.Default()
	conf.MaxTotalProcesses = 1
	store := memstore.New()
	eng := engine.New(conf, store)
	sched := scheduler.New(conf, eng)
	srv := transport.New(conf, eng, sched, store)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	first, err := http.Post(ts.URL+"/join", "application/json", nil)
	require.NoError(t, err)
	first.Body.Close()
	require.Equal(t, http.StatusCreated, first.StatusCode)

	second, err := http.Post(ts.URL+"/join", "application/json", nil)
	require.NoError(t, err)
	defer second.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, second.StatusCode)
}

func TestCommandWithUnknownTokenIsIgnoredNotError(t *testing.T) {
	ts := newTestServer(t)
	defer ts.Close()

	body, err := json.Marshal(map[string]string{
		"token": "00000000-0000-0000-0000-000000000000",
		"kind":  "MOVE",
		"arg":   "8",
	})
	require.NoError(t, err)
	resp, err := http.Post(ts.URL+"/command", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
}
