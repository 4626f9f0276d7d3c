package ws

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/branchlight/internal/app"
	"github.com/coreman2200/branchlight/internal/config"
	"github.com/coreman2200/branchlight/internal/dynconfig"
	"github.com/coreman2200/branchlight/internal/led"
	"github.com/coreman2200/branchlight/internal/link"
	"github.com/coreman2200/branchlight/internal/proto"
	"github.com/coreman2200/branchlight/internal/schema"
)

type fixture struct {
	core   *app.Core
	state  *State
	srv    *httptest.Server
	remote link.Link
}

func newFixture(t *testing.T, role string) *fixture {
	t.Helper()
	cfg := config.Default()
	cfg.Role = role
	if role == "follower" {
		cfg.LeaderURL = "ws://unused/link"
	}
	local, remote := link.Pipe(16)
	core, err := app.InitCore(context.Background(), cfg, app.Options{Link: local, Driver: led.NewSim(cfg.LEDCount)})
	require.NoError(t, err)
	st := NewState(core)
	srv := httptest.NewServer(st.Routes())
	t.Cleanup(func() {
		srv.Close()
		st.Close()
		core.Close()
	})
	return &fixture{core: core, state: st, srv: srv, remote: remote}
}

func (f *fixture) post(t *testing.T, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(f.srv.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func (f *fixture) get(t *testing.T, path string, v any) *http.Response {
	t.Helper()
	resp, err := http.Get(f.srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	if v != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp
}

func (f *fixture) dial(t *testing.T, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func (f *fixture) recvRemote(t *testing.T) any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	b, err := f.remote.Recv(ctx)
	require.NoError(t, err)
	msg, err := proto.Decode(b)
	require.NoError(t, err)
	return msg
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestSchemaAndHealth(t *testing.T) {
	f := newFixture(t, "leader")

	var doc schema.Document
	resp := f.get(t, "/api/schema", &doc)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, doc.Params, len(schema.Params()))
	assert.Len(t, doc.Animations, len(schema.Anims()))

	var health map[string]any
	f.get(t, "/health", &health)
	assert.Equal(t, "leader", health["role"])
	assert.Equal(t, float64(28), health["count"])

	var st app.State
	f.get(t, "/api/state", &st)
	assert.Equal(t, "Static", st.Local.AnimName)

	resp, err := http.Post(f.srv.URL+"/api/schema", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestCfg2SendsPacketToFollower(t *testing.T) {
	f := newFixture(t, "leader")
	resp, out := f.post(t, "/api/cfg2",
		`{"role":"follower","anim":"wave","params":[{"name":"speed","value":6},{"id":4,"value":1}],"globals":[{"name":"globalMax","value":0.5}]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, out)
	assert.Equal(t, "follower", out["role"])
	assert.Equal(t, float64(schema.AnimWave), out["animIndex"])
	assert.Len(t, out["params"], 2)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	raw, err := f.remote.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, out["hex"], hex.EncodeToString(raw))
	assert.Equal(t, float64(len(raw)), out["bytes"])

	assert.Equal(t, schema.AnimWave, f.core.Leader.Remote.Anim())
}

func TestCfg2NumericRole(t *testing.T) {
	f := newFixture(t, "leader")
	resp, out := f.post(t, "/api/cfg2",
		`{"role":0,"animIndex":0,"params":[{"id":6,"value":0.3}],"globals":[{"id":20,"value":1}]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, out)
	assert.Equal(t, "leader", out["role"])
	assert.InDelta(t, 0.3, f.core.Leader.Local.Params().Level, 1.0/255)

	resp, out = f.post(t, "/api/cfg2", `{"role":1,"animIndex":3,"params":[{"id":1,"value":2}]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, out)
	assert.Equal(t, "follower", out["role"])
	assert.Equal(t, schema.AnimChase, f.core.Leader.Remote.Anim())
	_, ok := f.recvRemote(t).(dynconfig.Packet)
	assert.True(t, ok)
}

func TestCfg2Rejects(t *testing.T) {
	f := newFixture(t, "leader")
	for _, body := range []string{
		`{"role":"follower","anim":"strobe"}`,
		`{"role":"observer","animIndex":1}`,
		`{"role":"follower"}`,
		`{"role":2,"animIndex":1}`,
		`{"role":null,"animIndex":1}`,
		`{"animIndex":0,"params":[{"id":6,"value":0.3}]}`,
		`{"role":1,"anim":"wave","params":[{"name":"bogus","value":1}]}`,
		`{"role":1,"anim":"wave","params":[{"value":1}]}`,
		`not json`,
	} {
		resp, _ := f.post(t, "/api/cfg2", body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
	}

	g := newFixture(t, "follower")
	resp, out := g.post(t, "/api/cfg2", `{"role":1,"anim":"wave"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, out["error"], "leader")
	resp, _ = g.post(t, "/api/sync", `{}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestBrightnessAndSyncForwarded(t *testing.T) {
	f := newFixture(t, "leader")
	resp, out := f.post(t, "/api/brightness", `{"value":0.4}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.InDelta(t, 0.4, out["brightness"], 1e-9)
	assert.Equal(t, proto.Brightness{Percent: 40}, f.recvRemote(t))

	resp, _ = f.post(t, "/api/brightness", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.post(t, "/api/sync", `{}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sync, ok := f.recvRemote(t).(proto.Sync)
	require.True(t, ok)
	assert.Equal(t, uint32(1), sync.Frame)
}

func TestFramesSocket(t *testing.T) {
	f := newFixture(t, "leader")
	conn := f.dial(t, "/ws")
	top := readJSON(t, conn)
	assert.Equal(t, float64(4), top["branches"])
	assert.Equal(t, float64(7), top["perBranch"])

	require.NoError(t, f.core.Step(0.01))
	f.state.broadcastFrame()
	frame := readJSON(t, conn)
	levels, ok := frame["levels"].([]any)
	require.True(t, ok)
	require.Len(t, levels, 28)
	// default Static level 0.5
	assert.Equal(t, float64(128), levels[0])
	assert.Equal(t, float64(1), frame["frame_id"])
}

func TestDiagSocket(t *testing.T) {
	f := newFixture(t, "leader")
	conn := f.dial(t, "/diag")
	// give the handler time to register the client
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, f.core.RunTest("branch_sweep", 1))
	d := readJSON(t, conn)
	assert.Equal(t, "TEST.RUNNING", d["code"])
	assert.Equal(t, "branch_sweep", d["detail"])
}

func TestControlSocket(t *testing.T) {
	f := newFixture(t, "leader")
	conn := f.dial(t, "/control")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"brightness":0.25}`)))
	reply := readJSON(t, conn)
	st := reply["state"].(map[string]any)
	assert.InDelta(t, 0.25, st["brightness"], 1e-9)
	assert.Nil(t, reply["error"])

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"runTest":"plane_z","show":"pause"}`)))
	reply = readJSON(t, conn)
	msg, _ := reply["error"].(string)
	assert.Contains(t, msg, "plane_z")
	assert.Contains(t, msg, "no show")
}

func TestLinkEndpoint(t *testing.T) {
	cfg := config.Default()
	core, err := app.InitCore(context.Background(), cfg, app.Options{Driver: led.NewSim(cfg.LEDCount)})
	require.NoError(t, err)
	defer core.Close()
	require.NotNil(t, core.Hub)

	srv := httptest.NewServer(NewState(core).Routes())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, err := link.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/link")
	require.NoError(t, err)
	defer conn.Close()

	assert.Eventually(t, func() bool { return core.Hub.Peers() == 1 }, time.Second, 10*time.Millisecond)
	require.NoError(t, core.SetBrightness(ctx, 0.5))
	b, err := conn.Recv(ctx)
	require.NoError(t, err)
	assert.True(t, bytes.Equal([]byte{byte(proto.TypeBrightness), 50}, b))
}
