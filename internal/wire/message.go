package wire

import (
	"encoding/json"
	"fmt"
	"strings"
)

// LayerPrimitives is the ordered primitive list of one layer.
type LayerPrimitives struct {
	Layer      string    `json:"layer"`
	Primitives []Payload `json:"svg_primitives"`
}

// Snapshot is the complete authoritative state at one instant.
type Snapshot struct {
	Layers []LayerPrimitives `json:"svg_primitive_arrays"`
}

// LayerPaths returns the layer paths in message order.
func (s Snapshot) LayerPaths() []string {
	out := make([]string, 0, len(s.Layers))
	for _, l := range s.Layers {
		out = append(out, l.Layer)
	}
	return out
}

// Operation is an incremental layer operation.
type Operation uint8

const (
	OpInvalid Operation = iota
	OpAppend
	OpReplace
	OpClear
)

func (o Operation) String() string {
	switch o {
	case OpAppend:
		return "append"
	case OpReplace:
		return "replace"
	case OpClear:
		return "clear"
	}
	return "invalid"
}

// ParseOperation maps an operation name to an Operation.
func ParseOperation(s string) (Operation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "append":
		return OpAppend, nil
	case "replace":
		return OpReplace, nil
	case "clear":
		return OpClear, nil
	}
	return OpInvalid, fmt.Errorf("unknown operation %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (o Operation) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Operation) UnmarshalText(b []byte) error {
	op, err := ParseOperation(string(b))
	if err != nil {
		return err
	}
	*o = op
	return nil
}

// UpdateOp is one operation on one layer. Duration is carried through but
// not interpreted.
type UpdateOp struct {
	Layer      string    `json:"layer"`
	Op         Operation `json:"operation"`
	Primitives []Payload `json:"svg_primitives,omitempty"`
	Duration   *float64  `json:"duration,omitempty"`
}

// UpdateBatch is the content of one update message.
type UpdateBatch struct {
	Updates []UpdateOp `json:"updates"`
}

// Issue describes one entry skipped during normalization.
type Issue struct {
	Index  int
	Layer  string
	Reason string
}

func (i Issue) String() string {
	if i.Layer != "" {
		return fmt.Sprintf("entry %d (layer %q): %s", i.Index, i.Layer, i.Reason)
	}
	return fmt.Sprintf("entry %d: %s", i.Index, i.Reason)
}

type rawEnvelope struct {
	Arrays  json.RawMessage `json:"svg_primitive_arrays"`
	Layers  json.RawMessage `json:"layers"`
	Updates json.RawMessage `json:"updates"`
}

type rawEntry struct {
	Layer      json.RawMessage `json:"layer"`
	Operation  json.RawMessage `json:"operation"`
	Primitives json.RawMessage `json:"svg_primitives"`
	Duration   json.RawMessage `json:"duration"`
}

func decodeEnvelope(data []byte) (rawEnvelope, bool) {
	var env rawEnvelope
	if firstByte(data) != '{' {
		return env, false
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return env, false
	}
	return env, true
}

// layerArray returns the snapshot-shaped entry list, preferring the
// canonical key over the legacy one.
func (env rawEnvelope) layerArray() ([]json.RawMessage, bool) {
	for _, raw := range []json.RawMessage{env.Arrays, env.Layers} {
		if firstByte(raw) != '[' {
			continue
		}
		var entries []json.RawMessage
		if err := json.Unmarshal(raw, &entries); err != nil {
			continue
		}
		return entries, true
	}
	return nil, false
}

// DecodeSnapshot normalizes a snapshot message. ok is false when the message
// matches no recognized shape; malformed entries are skipped and reported.
func DecodeSnapshot(data []byte) (snap Snapshot, issues []Issue, ok bool) {
	env, ok := decodeEnvelope(data)
	if !ok {
		return Snapshot{}, nil, false
	}
	entries, ok := env.layerArray()
	if !ok {
		return Snapshot{}, nil, false
	}
	snap, issues = decodeLayers(entries)
	return snap, issues, true
}

func decodeLayers(entries []json.RawMessage) (Snapshot, []Issue) {
	var (
		snap   = Snapshot{Layers: make([]LayerPrimitives, 0, len(entries))}
		issues []Issue
		seen   = make(map[string]bool, len(entries))
	)
	for i, raw := range entries {
		var e rawEntry
		if firstByte(raw) != '{' || json.Unmarshal(raw, &e) != nil {
			issues = append(issues, Issue{Index: i, Reason: "entry is not an object"})
			continue
		}
		layer, err := decodeLayerName(e.Layer)
		if err != nil {
			issues = append(issues, Issue{Index: i, Reason: err.Error()})
			continue
		}
		if seen[layer] {
			issues = append(issues, Issue{Index: i, Layer: layer, Reason: "duplicate layer in snapshot"})
			continue
		}
		prims, pIssues, err := decodePrimitives(e.Primitives, i, layer)
		issues = append(issues, pIssues...)
		if err != nil {
			issues = append(issues, Issue{Index: i, Layer: layer, Reason: err.Error()})
			continue
		}
		seen[layer] = true
		snap.Layers = append(snap.Layers, LayerPrimitives{Layer: layer, Primitives: prims})
	}
	return snap, issues
}

// DecodeUpdateBatch normalizes an update message. A legacy message with no
// "updates" key but a snapshot shape becomes one replace per layer.
func DecodeUpdateBatch(data []byte) (batch UpdateBatch, issues []Issue, ok bool) {
	env, ok := decodeEnvelope(data)
	if !ok {
		return UpdateBatch{}, nil, false
	}
	if firstByte(env.Updates) == '[' {
		var entries []json.RawMessage
		if err := json.Unmarshal(env.Updates, &entries); err == nil {
			batch, issues = decodeUpdates(entries)
			return batch, issues, true
		}
	}
	entries, ok := env.layerArray()
	if !ok {
		return UpdateBatch{}, nil, false
	}
	snap, issues := decodeLayers(entries)
	batch.Updates = make([]UpdateOp, 0, len(snap.Layers))
	for _, l := range snap.Layers {
		batch.Updates = append(batch.Updates, UpdateOp{
			Layer:      l.Layer,
			Op:         OpReplace,
			Primitives: l.Primitives,
		})
	}
	return batch, issues, true
}

func decodeUpdates(entries []json.RawMessage) (UpdateBatch, []Issue) {
	var (
		batch  = UpdateBatch{Updates: make([]UpdateOp, 0, len(entries))}
		issues []Issue
	)
	for i, raw := range entries {
		var e rawEntry
		if firstByte(raw) != '{' || json.Unmarshal(raw, &e) != nil {
			issues = append(issues, Issue{Index: i, Reason: "entry is not an object"})
			continue
		}
		layer, err := decodeLayerName(e.Layer)
		if err != nil {
			issues = append(issues, Issue{Index: i, Reason: err.Error()})
			continue
		}
		var opName string
		if len(e.Operation) == 0 || json.Unmarshal(e.Operation, &opName) != nil {
			issues = append(issues, Issue{Index: i, Layer: layer, Reason: "missing or non-string operation"})
			continue
		}
		op, err := ParseOperation(opName)
		if err != nil {
			issues = append(issues, Issue{Index: i, Layer: layer, Reason: err.Error()})
			continue
		}
		u := UpdateOp{Layer: layer, Op: op}
		if op != OpClear {
			prims, pIssues, err := decodePrimitives(e.Primitives, i, layer)
			issues = append(issues, pIssues...)
			if err != nil {
				issues = append(issues, Issue{Index: i, Layer: layer, Reason: err.Error()})
				continue
			}
			u.Primitives = prims
		}
		if len(e.Duration) > 0 && string(e.Duration) != "null" {
			var d float64
			if err := json.Unmarshal(e.Duration, &d); err == nil {
				u.Duration = &d
			}
		}
		batch.Updates = append(batch.Updates, u)
	}
	return batch, issues
}

func decodeLayerName(raw json.RawMessage) (string, error) {
	var layer string
	if len(raw) == 0 || json.Unmarshal(raw, &layer) != nil {
		return "", fmt.Errorf("missing or non-string layer")
	}
	if layer == "" {
		return "", fmt.Errorf("empty layer name")
	}
	return layer, nil
}

// decodePrimitives decodes a primitive array. A missing or non-array value
// is an error for the whole entry; a bad element is skipped and reported.
func decodePrimitives(raw json.RawMessage, index int, layer string) ([]Payload, []Issue, error) {
	if firstByte(raw) != '[' {
		return nil, nil, fmt.Errorf("svg_primitives is not an array")
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, nil, fmt.Errorf("svg_primitives: %w", err)
	}
	var issues []Issue
	out := make([]Payload, 0, len(elems))
	for j, el := range elems {
		p, err := DecodePayload(el)
		if err != nil {
			issues = append(issues, Issue{
				Index:  index,
				Layer:  layer,
				Reason: fmt.Sprintf("primitive %d: %v", j, err),
			})
			continue
		}
		out = append(out, p)
	}
	return out, issues, nil
}
