package schema

// ParamJSON is the control panel view of a ParamDef.
type ParamJSON struct {
	ID      uint8   `json:"id"`
	Name    string  `json:"name"`
	Kind    string  `json:"kind"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Default float64 `json:"default"`
	Bits    uint8   `json:"bits"`
	Global  bool    `json:"global,omitempty"`
}

// AnimJSON is the control panel view of an AnimDef.
type AnimJSON struct {
	Index    uint8  `json:"index"`
	Name     string `json:"name"`
	ParamIDs []int  `json:"paramIds"`
}

// Document is the read-only projection served at /api/schema.
type Document struct {
	Params     []ParamJSON `json:"params"`
	Animations []AnimJSON  `json:"animations"`
}

// Export builds the JSON document for the whole registry.
func Export() Document {
	doc := Document{
		Params:     make([]ParamJSON, 0, len(params)),
		Animations: make([]AnimJSON, 0, len(anims)),
	}
	for _, p := range params {
		doc.Params = append(doc.Params, ParamJSON{
			ID:      p.ID,
			Name:    p.Name,
			Kind:    p.Kind.String(),
			Min:     p.Min,
			Max:     p.Max,
			Default: p.Default,
			Bits:    p.Bits,
			Global:  p.Global,
		})
	}
	for _, a := range anims {
		// []uint8 would marshal as base64
		ids := make([]int, len(a.ParamIDs))
		for i, id := range a.ParamIDs {
			ids[i] = int(id)
		}
		doc.Animations = append(doc.Animations, AnimJSON{Index: a.Index, Name: a.Name, ParamIDs: ids})
	}
	return doc
}
