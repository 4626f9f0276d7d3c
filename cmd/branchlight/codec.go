package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/coreman2200/branchlight/internal/dynconfig"
	"github.com/coreman2200/branchlight/internal/proto"
	"github.com/coreman2200/branchlight/internal/schema"
)

// parseAssignments turns name=value pairs into parameter values.
func parseAssignments(in []string) ([]dynconfig.ParamValue, error) {
	out := make([]dynconfig.ParamValue, 0, len(in))
	for _, kv := range in {
		name, raw, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, fmt.Errorf("%q: want name=value", kv)
		}
		pd, found := schema.FindParamByName(name)
		if !found {
			id, err := strconv.ParseUint(name, 10, 8)
			if err != nil {
				return nil, fmt.Errorf("unknown parameter %q", name)
			}
			if pd, found = schema.FindParam(uint8(id)); !found {
				return nil, fmt.Errorf("unknown parameter id %d", id)
			}
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			b, berr := strconv.ParseBool(raw)
			if berr != nil {
				return nil, fmt.Errorf("%s: bad value %q", name, raw)
			}
			v = 0
			if b {
				v = 1
			}
		}
		out = append(out, dynconfig.ParamValue{ID: pd.ID, Value: v})
	}
	return out, nil
}

func parseRole(s string) (dynconfig.Role, error) {
	switch s {
	case "leader":
		return dynconfig.Leader, nil
	case "follower":
		return dynconfig.Follower, nil
	}
	return 0, fmt.Errorf("unknown role %q", s)
}

func newEncodeCmd() *cobra.Command {
	var (
		role    string
		anim    string
		params  []string
		globals []string
	)
	cmd := &cobra.Command{
		Use:     "encode",
		Short:   "Encode a configuration packet and print it as hex",
		Example: "  branchlight encode --role follower --anim wave -p speed=6 -p branch=true -g globalMax=0.5",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := parseRole(role)
			if err != nil {
				return err
			}
			a, ok := schema.FindAnimByName(anim)
			if !ok {
				return fmt.Errorf("unknown animation %q", anim)
			}
			ps, err := parseAssignments(params)
			if err != nil {
				return err
			}
			gs, err := parseAssignments(globals)
			if err != nil {
				return err
			}
			b := dynconfig.Marshal(dynconfig.Packet{Role: r, Anim: a.Index, Params: ps, Globals: gs})
			fmt.Println(hex.EncodeToString(b))
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", "follower", "leader | follower")
	cmd.Flags().StringVar(&anim, "anim", "Static", "animation name")
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "animation parameter name=value (repeatable)")
	cmd.Flags().StringArrayVarP(&globals, "global", "g", nil, "global parameter name=value (repeatable)")
	return cmd
}

// decoded is the printable form of any link message.
type decoded struct {
	Type    string             `json:"type"`
	Role    string             `json:"role,omitempty"`
	Anim    string             `json:"anim,omitempty"`
	Params  map[string]float64 `json:"params,omitempty"`
	Globals map[string]float64 `json:"globals,omitempty"`
	Message any                `json:"message,omitempty"`
}

func named(values []dynconfig.ParamValue) map[string]float64 {
	out := make(map[string]float64, len(values))
	for _, pv := range values {
		if pd, ok := schema.FindParam(pv.ID); ok {
			out[pd.Name] = pv.Value
		}
	}
	return out
}

func describe(data []byte) (decoded, error) {
	msg, err := proto.Decode(data)
	if err != nil {
		return decoded{}, err
	}
	t, _ := proto.TypeOf(data)
	d := decoded{Type: t.String()}
	if p, ok := msg.(dynconfig.Packet); ok {
		d.Role = p.Role.String()
		d.Anim = strconv.Itoa(int(p.Anim))
		if a, ok := schema.FindAnim(p.Anim); ok {
			d.Anim = a.Name
		}
		d.Params = named(p.Params)
		d.Globals = named(p.Globals)
		return d, nil
	}
	d.Message = msg
	return d, nil
}

func newDecodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decode HEX",
		Short: "Decode a hex link message and print it as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := hex.DecodeString(strings.ReplaceAll(args[0], " ", ""))
			if err != nil {
				return err
			}
			d, err := describe(data)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(d)
		},
	}
}
