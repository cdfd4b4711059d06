package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/daviddao/crane_viewer/internal/namespace"
)

// Input kinds understood by the host settings editor.
const (
	InputString  = "string"
	InputRGBA    = "rgba"
	InputNumber  = "number"
	InputBoolean = "boolean"
)

// Field is one editable setting.
type Field struct {
	Key   string
	Label string
	Input string
	Value any
	Help  string
}

// Section groups fields under a top-level settings path.
type Section struct {
	Key    string
	Label  string
	Fields []Field
}

// Settings describes the settings tree for cfg and the namespace tree.
// Namespace field keys are the dotted node path.
func Settings(cfg Config, ns namespace.Tree) []Section {
	general := Section{
		Key:   "general",
		Label: "General",
		Fields: []Field{
			{Key: "snapshot_topic", Label: "Snapshot topic", Input: InputString, Value: cfg.SnapshotTopic},
			{Key: "update_topic", Label: "Update topic", Input: InputString, Value: cfg.UpdateTopic},
			{Key: "update_enabled", Label: "Use updates", Input: InputBoolean, Value: cfg.UpdateEnabled},
			{Key: "referee_topic", Label: "Referee topic", Input: InputString, Value: cfg.RefereeTopic},
			{Key: "scoreboard_enabled", Label: "Scoreboard", Input: InputBoolean, Value: cfg.ScoreboardEnabled},
			{Key: "background_color", Label: "Background color", Input: InputRGBA, Value: cfg.BackgroundColor},
			{Key: "field_color", Label: "Field color", Input: InputRGBA, Value: cfg.FieldColor},
			{Key: "show_grid", Label: "Show grid", Input: InputBoolean, Value: cfg.ShowGrid},
			{Key: "grid_size", Label: "Grid size", Input: InputNumber, Value: cfg.GridSize},
			{Key: "viewbox_width", Label: "Viewbox width", Input: InputNumber, Value: cfg.ViewBoxWidth},
			{Key: "history_seconds", Label: "History seconds", Input: InputNumber, Value: cfg.HistorySeconds},
			{Key: "history_max_count", Label: "History max count", Input: InputNumber, Value: cfg.HistoryMaxCount},
		},
	}
	namespaces := Section{Key: "namespaces", Label: "Namespaces"}
	ns.Walk(func(segs []string, visible bool) {
		namespaces.Fields = append(namespaces.Fields, Field{
			Key:   strings.Join(segs, "."),
			Label: segs[len(segs)-1],
			Input: InputBoolean,
			Value: visible,
			Help:  "Show/hide namespace",
		})
	})
	return []Section{general, namespaces}
}

// Apply handles a settings update at path, e.g. ["general", "viewbox_width"]
// or ["namespaces", "robots", "blue"], and returns the updated values.
func Apply(cfg Config, ns namespace.Tree, path []string, value any) (Config, namespace.Tree, error) {
	if len(path) < 2 {
		return cfg, ns, fmt.Errorf("invalid settings path %q", strings.Join(path, "."))
	}
	switch path[0] {
	case "general":
		if len(path) != 2 {
			return cfg, ns, fmt.Errorf("invalid settings path %q", strings.Join(path, "."))
		}
		next, err := applyGeneral(cfg, path[1], value)
		if err != nil {
			return cfg, ns, err
		}
		return next, ns, nil
	case "namespaces":
		v, ok := value.(bool)
		if !ok {
			return cfg, ns, fmt.Errorf("namespace %q: want boolean, got %T", strings.Join(path[1:], "/"), value)
		}
		return cfg, ns.SetVisible(path[1:], v), nil
	}
	return cfg, ns, fmt.Errorf("unhandled settings path %q", strings.Join(path, "."))
}

func applyGeneral(cfg Config, key string, value any) (Config, error) {
	var err error
	switch key {
	case "snapshot_topic":
		cfg.SnapshotTopic, err = nonEmpty(key, value)
	case "update_topic":
		cfg.UpdateTopic, err = nonEmpty(key, value)
	case "referee_topic":
		cfg.RefereeTopic, err = nonEmpty(key, value)
	case "background_color":
		cfg.BackgroundColor, err = nonEmpty(key, value)
	case "field_color":
		cfg.FieldColor, err = nonEmpty(key, value)
	case "show_grid":
		cfg.ShowGrid, err = asBool(key, value)
	case "grid_size":
		cfg.GridSize, err = positive(key, value)
	case "update_enabled":
		cfg.UpdateEnabled, err = asBool(key, value)
	case "scoreboard_enabled":
		cfg.ScoreboardEnabled, err = asBool(key, value)
	case "viewbox_width":
		cfg.ViewBoxWidth, err = positive(key, value)
	case "history_seconds":
		cfg.HistorySeconds, err = positive(key, value)
	case "history_max_count":
		var f float64
		f, err = positive(key, value)
		cfg.HistoryMaxCount = int(f)
		if err == nil && cfg.HistoryMaxCount < 1 {
			err = fmt.Errorf("%s: must be at least 1", key)
		}
	default:
		return cfg, fmt.Errorf("unhandled general setting %q", key)
	}
	return cfg, err
}

// ParseValue converts a command-line string into the type expected by the
// setting at path.
func ParseValue(path []string, raw string) (any, error) {
	if len(path) > 0 && path[0] == "namespaces" {
		return parseBool(raw)
	}
	if len(path) == 2 {
		switch path[1] {
		case "update_enabled", "scoreboard_enabled", "show_grid":
			return parseBool(raw)
		case "viewbox_width", "history_seconds", "history_max_count", "grid_size":
			f, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("%s: %q is not a number", path[1], raw)
			}
			return f, nil
		}
	}
	return raw, nil
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(raw) {
	case "true", "on", "yes", "1":
		return true, nil
	case "false", "off", "no", "0":
		return false, nil
	}
	return false, fmt.Errorf("%q is not a boolean", raw)
}

func nonEmpty(key string, v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s: want string, got %T", key, v)
	}
	if s == "" {
		return "", fmt.Errorf("%s: must not be empty", key)
	}
	return s, nil
}

func asBool(key string, v any) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%s: want boolean, got %T", key, v)
	}
	return b, nil
}

func positive(key string, v any) (float64, error) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	default:
		return 0, fmt.Errorf("%s: want number, got %T", key, v)
	}
	if f <= 0 {
		return 0, fmt.Errorf("%s: must be positive", key)
	}
	return f, nil
}
