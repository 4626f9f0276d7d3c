package ws

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/branchlight/internal/app"
	"github.com/coreman2200/branchlight/internal/config"
	"github.com/coreman2200/branchlight/internal/dynconfig"
	"github.com/coreman2200/branchlight/internal/schema"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *State) HandleHealth(w http.ResponseWriter, r *http.Request) {
	_, frame := s.Core.Eng.Frame()
	resp := map[string]any{
		"frame_id":   frame,
		"uptime_s":   time.Since(s.startTime).Seconds(),
		"count":      s.Core.Layout.Count(),
		"fps":        s.Core.Cfg.FPS,
		"brightness": s.Core.Eng.Brightness(),
		"role":       s.Core.Cfg.Role,
	}
	if s.Core.Hub != nil {
		resp["peers"] = s.Core.Hub.Peers()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *State) HandleSchema(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, schema.Export())
}

func (s *State) HandleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Core.State())
}

// paramEntry names a parameter by id or by name.
type paramEntry struct {
	ID    *uint8  `json:"id,omitempty"`
	Name  string  `json:"name,omitempty"`
	Value float64 `json:"value"`
}

// wireRole accepts a role as 0/1 or as "leader"/"follower". set stays false
// when the field is absent.
type wireRole struct {
	role dynconfig.Role
	set  bool
}

func (r *wireRole) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var n int
	if err := json.Unmarshal(b, &n); err == nil {
		switch dynconfig.Role(n) {
		case dynconfig.Leader, dynconfig.Follower:
			r.role, r.set = dynconfig.Role(n), true
			return nil
		}
		return fmt.Errorf("unknown role %d", n)
	}
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return errors.New("role must be 0, 1, \"leader\" or \"follower\"")
	}
	switch name {
	case "leader":
		r.role = dynconfig.Leader
	case "follower":
		r.role = dynconfig.Follower
	default:
		return fmt.Errorf("unknown role %q", name)
	}
	r.set = true
	return nil
}

type cfg2Request struct {
	Role      wireRole     `json:"role"`
	AnimIndex *uint8       `json:"animIndex,omitempty"`
	Anim      string       `json:"anim,omitempty"`
	Params    []paramEntry `json:"params"`
	Globals   []paramEntry `json:"globals"`
}

type cfg2Response struct {
	Role      string                 `json:"role"`
	AnimIndex uint8                  `json:"animIndex"`
	Params    []dynconfig.ParamValue `json:"params"`
	Globals   []dynconfig.ParamValue `json:"globals"`
	Bytes     int                    `json:"bytes"`
	Hex       string                 `json:"hex"`
}

func resolve(entries []paramEntry) ([]dynconfig.ParamValue, error) {
	out := make([]dynconfig.ParamValue, 0, len(entries))
	for _, e := range entries {
		switch {
		case e.ID != nil:
			out = append(out, dynconfig.ParamValue{ID: *e.ID, Value: e.Value})
		case e.Name != "":
			pd, ok := schema.FindParamByName(e.Name)
			if !ok {
				return nil, fmt.Errorf("unknown parameter %q", e.Name)
			}
			out = append(out, dynconfig.ParamValue{ID: pd.ID, Value: e.Value})
		default:
			return nil, errors.New("parameter needs an id or a name")
		}
	}
	return out, nil
}

func (req cfg2Request) packet() (dynconfig.Packet, error) {
	var p dynconfig.Packet
	if !req.Role.set {
		return p, errors.New("role is required")
	}
	p.Role = req.Role.role
	switch {
	case req.AnimIndex != nil:
		p.Anim = *req.AnimIndex
	case req.Anim != "":
		a, ok := schema.FindAnimByName(req.Anim)
		if !ok {
			return p, fmt.Errorf("unknown animation %q", req.Anim)
		}
		p.Anim = a.Index
	default:
		return p, errors.New("animIndex or anim is required")
	}
	var err error
	if p.Params, err = resolve(req.Params); err != nil {
		return p, err
	}
	if p.Globals, err = resolve(req.Globals); err != nil {
		return p, err
	}
	return p, nil
}

// HandleCfg2 encodes a configuration packet from JSON and sends it through
// the leader. The response carries the quantized values actually applied.
func (s *State) HandleCfg2(w http.ResponseWriter, r *http.Request) {
	var req cfg2Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	p, err := req.packet()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	applied, err := s.Core.Configure(r.Context(), p)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, app.ErrNotLeader) {
			status = http.StatusConflict
		}
		writeError(w, status, err)
		return
	}
	raw := dynconfig.Marshal(applied)
	writeJSON(w, http.StatusOK, cfg2Response{
		Role:      applied.Role.String(),
		AnimIndex: applied.Anim,
		Params:    applied.Params,
		Globals:   applied.Globals,
		Bytes:     len(raw),
		Hex:       hex.EncodeToString(raw),
	})
}

func (s *State) HandleBrightness(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Value *float64 `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Value == nil {
		writeError(w, http.StatusBadRequest, errors.New(`body must be {"value": 0..1}`))
		return
	}
	if err := s.Core.SetBrightness(r.Context(), clamp(*req.Value, 0, 1)); err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"brightness": s.Core.Eng.Brightness()})
}

func (s *State) HandleSync(w http.ResponseWriter, r *http.Request) {
	if err := s.Core.SendSync(r.Context()); err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, app.ErrNotLeader) {
			status = http.StatusConflict
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint32{"clock_ms": s.Core.Node.Clock().Millis()})
}

// HandleControlWS accepts JSON commands and answers each with the state.
//
//	{"brightness": 0.4}
//	{"runTest": "branch_sweep"}
//	{"show": "pause"}            start | pause | resume | stop
//	{"seek": 12.5}
func (s *State) HandleControlWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg map[string]any
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		reply := map[string]any{}
		if err := s.applyControl(r, msg); err != nil {
			reply["error"] = err.Error()
		}
		reply["state"] = s.Core.State()
		b, _ := json.Marshal(reply)
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
			return
		}
	}
}

func (s *State) applyControl(r *http.Request, msg map[string]any) error {
	var errs []error
	if v, ok := msg["brightness"].(float64); ok {
		v = clamp(v, 0, 1)
		if err := s.Core.SetBrightness(r.Context(), v); err != nil {
			errs = append(errs, err)
		}
		s.saveBrightness(v)
	}
	if v, ok := msg["runTest"].(string); ok {
		if err := s.Core.RunTest(v, 0); err != nil {
			errs = append(errs, err)
		}
	}
	if v, ok := msg["show"].(string); ok {
		if err := s.Core.ShowControl(v); err != nil {
			errs = append(errs, err)
		}
	}
	if v, ok := msg["seek"].(float64); ok {
		if err := s.Core.SeekShow(v); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// saveBrightness persists a brightness change into the config file.
func (s *State) saveBrightness(v float64) {
	if s.ConfigPath == "" {
		return
	}
	cfg, err := config.Load(s.ConfigPath)
	if err != nil {
		log.Warn().Err(err).Str("path", s.ConfigPath).Msg("config not saved")
		return
	}
	cfg.Brightness = v
	if err := config.Save(s.ConfigPath, cfg); err != nil {
		log.Warn().Err(err).Str("path", s.ConfigPath).Msg("config not saved")
	}
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
