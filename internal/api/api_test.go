package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/matryer/is"

	"discburn-agent/internal/caps"
	"discburn-agent/internal/drive"
	"discburn-agent/internal/plugin"
	"discburn-agent/internal/plugins"
	"discburn-agent/internal/queue"
	"discburn-agent/internal/track"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testServer(t *testing.T) *httptest.Server {
	t.Helper()

	registry := caps.NewRegistry(testLogger())
	for _, d := range plugins.Builtin() {
		d.Active = plugin.ActiveEnabled
		if err := registry.Register(d); err != nil {
			t.Fatal(err)
		}
	}
	registry.Freeze()

	drives := map[string]*drive.Drive{
		"dr0": {
			Name:   "dr0",
			Device: "/dev/sr0",
			WritableMedia: track.MediaCD | track.MediaDVD | track.MediaSequential |
				track.MediaWritable | track.MediaRewritable | track.MediaBlank,
			Medium:         track.MediaCD | track.MediaWritable | track.MediaBlank,
			CanTAO:         true,
			CanSAO:         true,
			CanBurnFree:    true,
			CanDummyForSAO: true,
			CanDummyForTAO: true,
		},
	}

	store, err := drive.NewStore(filepath.Join(t.TempDir(), "settings.db"))
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Open(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	manager, err := queue.NewManager(t.TempDir(), testLogger())
	if err != nil {
		t.Fatal(err)
	}

	executor := queue.NewExecutor(registry, drives, t.TempDir(), testLogger())

	srv := httptest.NewServer(NewRouter(registry, drives, store, manager, executor, testLogger()))
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	return out
}

func TestHealth(t *testing.T) {
	is := is.New(t)
	srv := testServer(t)

	resp, err := http.Get(srv.URL + "/health")
	is.NoErr(err)
	is.Equal(resp.StatusCode, http.StatusOK)

	health := decode[HealthResponse](t, resp)
	is.Equal(health.Status, "ok")
}

func TestSessionCheck(t *testing.T) {
	is := is.New(t)
	srv := testServer(t)

	req := SessionRequest{
		Command: queue.Command{
			InputKind: "data",
			InputFS:   track.FSISO9660,
			DestDrive: "dr0",
		},
	}

	resp := postJSON(t, srv.URL+"/sessions/check", req)
	is.Equal(resp.StatusCode, http.StatusOK)

	check := decode[CheckResponse](t, resp)
	is.Equal(check.Result, "ok")

	// an unknown drive is a client error
	req.Command.DestDrive = "dr9"
	resp = postJSON(t, srv.URL+"/sessions/check", req)
	resp.Body.Close()
	is.Equal(resp.StatusCode, http.StatusBadRequest)
}

func TestSessionFlags(t *testing.T) {
	is := is.New(t)
	srv := testServer(t)

	req := SessionRequest{
		Command: queue.Command{
			InputKind:   "stream",
			InputStream: track.StreamRawAudio | track.StreamMetadata,
			DestDrive:   "dr0",
		},
	}

	resp := postJSON(t, srv.URL+"/sessions/flags", req)
	is.Equal(resp.StatusCode, http.StatusOK)

	flags := decode[FlagsResponse](t, resp)
	is.Equal(flags.Result, "ok")
	is.True(flags.Compulsory != "")
}

func TestPluginsAndDrives(t *testing.T) {
	is := is.New(t)
	srv := testServer(t)

	resp, err := http.Get(srv.URL + "/plugins")
	is.NoErr(err)
	pluginsResp := decode[ListPluginsResponse](t, resp)
	is.True(len(pluginsResp.Plugins) > 5)

	resp, err = http.Get(srv.URL + "/drives")
	is.NoErr(err)
	drivesResp := decode[ListDrivesResponse](t, resp)
	is.Equal(len(drivesResp.Drives), 1)
	is.Equal(drivesResp.Drives[0].Name, "dr0")
}

func TestPluginEnableDisable(t *testing.T) {
	is := is.New(t)
	srv := testServer(t)

	resp := postJSON(t, srv.URL+"/plugins/cdrburn/disable", struct{}{})
	resp.Body.Close()
	is.Equal(resp.StatusCode, http.StatusNoContent)

	resp, err := http.Get(srv.URL + "/plugins")
	is.NoErr(err)
	listed := decode[ListPluginsResponse](t, resp)
	for _, p := range listed.Plugins {
		if p.Name == "cdrburn" {
			is.True(!p.Active)
		}
	}

	resp = postJSON(t, srv.URL+"/plugins/cdrburn/enable", struct{}{})
	resp.Body.Close()
	is.Equal(resp.StatusCode, http.StatusNoContent)

	resp = postJSON(t, srv.URL+"/plugins/nonexistent/enable", struct{}{})
	resp.Body.Close()
	is.Equal(resp.StatusCode, http.StatusNotFound)
}

func TestJobLifecycle(t *testing.T) {
	is := is.New(t)
	srv := testServer(t)

	enq := EnqueueRequest{
		Command: queue.Command{
			Type:      queue.CmdBurn,
			InputKind: "data",
			InputFS:   track.FSISO9660,
			DestDrive: "dr0",
		},
	}

	resp := postJSON(t, srv.URL+"/jobs", enq)
	is.Equal(resp.StatusCode, http.StatusAccepted)
	created := decode[EnqueueResponse](t, resp)
	is.True(created.ID != "")

	resp, err := http.Get(srv.URL + "/jobs/" + created.ID)
	is.NoErr(err)
	job := decode[queue.JobResponse](t, resp)
	is.Equal(job.Status, queue.StatusQueued)

	// no worker is running, so cancel hits the queued path
	resp = postJSON(t, srv.URL+"/jobs/"+created.ID+"/cancel", CancelRequest{})
	is.Equal(resp.StatusCode, http.StatusOK)
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/jobs/" + created.ID)
	is.NoErr(err)
	job = decode[queue.JobResponse](t, resp)
	is.Equal(job.Status, queue.StatusCancelled)
}

func TestDriveSettings(t *testing.T) {
	is := is.New(t)
	srv := testServer(t)

	resp, err := http.Get(srv.URL + "/drives/dr0/settings")
	is.NoErr(err)
	resp.Body.Close()
	is.Equal(resp.StatusCode, http.StatusNotFound)

	settings := drive.Settings{Flags: track.FlagEject, Speed: 8}
	data, err := json.Marshal(settings)
	is.NoErr(err)

	put, err := http.NewRequest(http.MethodPut, srv.URL+"/drives/dr0/settings", bytes.NewReader(data))
	is.NoErr(err)
	resp, err = http.DefaultClient.Do(put)
	is.NoErr(err)
	resp.Body.Close()
	is.Equal(resp.StatusCode, http.StatusNoContent)

	resp, err = http.Get(srv.URL + "/drives/dr0/settings")
	is.NoErr(err)
	is.Equal(resp.StatusCode, http.StatusOK)
	saved := decode[drive.Settings](t, resp)
	is.Equal(saved.Speed, int64(8))
}
