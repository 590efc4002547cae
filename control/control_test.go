package control_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-ofd/control"
)

type stubPage struct {
	text string
	err  error
}

func (p stubPage) WritePage(w io.Writer) error {
	if p.err != nil {
		return p.err
	}
	_, err := io.WriteString(w, p.text)
	return err
}

type server struct{ URL string }

func newAdmin(t *testing.T, page control.PageWriter) (*control.AdminServer, *control.Metrics, server) {
	t.Helper()
	probes := control.NewDebugProbes()
	probes.RegisterProbe("answer", func() any { return 42 })
	metrics := control.NewMetrics()
	as, err := control.NewAdminServer("127.0.0.1:0", page, probes, metrics, logr.Discard())
	require.NoError(t, err)
	as.Start()
	t.Cleanup(func() { as.Stop(context.Background()) })
	return as, metrics, server{URL: "http://" + as.Addr()}
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestDebugProbes(t *testing.T) {
	dp := control.NewDebugProbes()
	dp.RegisterProbe("b", func() any { return "two" })
	dp.RegisterProbe("a", func() any { return 1 })
	dp.RegisterProbe("a", func() any { return 3 })

	assert.Equal(t, []string{"a", "b"}, dp.Names())
	assert.Equal(t, map[string]any{"a": 3, "b": "two"}, dp.DumpState())
}

func TestPlatformProbes(t *testing.T) {
	dp := control.NewDebugProbes()
	control.RegisterPlatformProbes(dp)
	state := dp.DumpState()
	assert.Contains(t, state, "runtime.cpus")
	assert.Contains(t, state, "runtime.goroutines")
	assert.Contains(t, state, "platform.os")
}

func TestMetricsCounters(t *testing.T) {
	m := control.NewMetrics()
	m.Frames.Add(3)
	m.Commit(control.CommitAccepted)
	m.Commit(control.CommitBusy)
	m.Commit(control.CommitBusy)
	m.ObserveTarget(2, 40)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.Frames))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Commits.WithLabelValues(control.CommitAccepted)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Commits.WithLabelValues(control.CommitBusy)))
	assert.Equal(t, 40.0, testutil.ToFloat64(m.BatchTarget.WithLabelValues("2")))
}

func TestMetricsIsolated(t *testing.T) {
	a := control.NewMetrics()
	b := control.NewMetrics()
	a.Sessions.Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(a.Sessions))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.Sessions))
}

func TestAdminDriverPage(t *testing.T) {
	_, _, srv := newAdmin(t, stubPage{text: "DRIVER\nTotalSwitches 0\n"})
	code, body := get(t, srv.URL+"/driver")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "DRIVER\nTotalSwitches 0\n", body)

	resp, err := http.Post(srv.URL+"/driver", "text/plain", strings.NewReader(""))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestAdminPageError(t *testing.T) {
	_, _, srv := newAdmin(t, stubPage{err: errors.New("boom")})
	code, body := get(t, srv.URL+"/driver")
	assert.Equal(t, http.StatusOK, code)
	assert.Empty(t, body)
}

func TestAdminState(t *testing.T) {
	_, _, srv := newAdmin(t, stubPage{})
	code, body := get(t, srv.URL+"/debug/state")
	require.Equal(t, http.StatusOK, code)

	var state map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &state))
	assert.Equal(t, 42.0, state["answer"])
}

func TestAdminMetrics(t *testing.T) {
	_, m, srv := newAdmin(t, stubPage{})
	m.FramingErrors.Inc()
	code, body := get(t, srv.URL+"/metrics")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "ofdriver_wire_framing_errors_total 1")
	assert.Contains(t, body, "go_goroutines")
}
