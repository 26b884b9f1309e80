package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"neuralca/pkg/neuralca"
)

func loadRunRequestFromConfig(path string) (neuralca.RunRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return neuralca.RunRequest{}, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return neuralca.RunRequest{}, err
	}

	var req neuralca.RunRequest
	if v, ok := asString(raw["run_id"]); ok {
		req.RunID = v
	}
	if v, ok := asInt(raw["height"]); ok {
		req.Height = v
	}
	if v, ok := asInt(raw["width"]); ok {
		req.Width = v
	}
	if v, ok := asInt(raw["channels"]); ok {
		req.Channels = v
	}
	if v, ok := asString(raw["init_pattern"]); ok {
		req.InitPattern = v
	}
	if v, ok := asString(raw["perceive"]); ok {
		req.Perceive = v
	}
	if v, ok := asStrings(raw["kernels"]); ok {
		req.Kernels = v
	}
	if v, ok := asString(raw["padding"]); ok {
		req.Padding = v
	}
	if v, ok := asString(raw["update"]); ok {
		req.Update = v
	}
	if v, ok := asInts(raw["hidden"]); ok {
		req.Hidden = v
	}
	if v, ok := asString(raw["activation"]); ok {
		req.Activation = v
	}
	if v, ok := asFloat64(raw["delta"]); ok {
		delta := float32(v)
		req.Delta = &delta
	}
	if v, ok := asBool(raw["alive_masking"]); ok {
		req.AliveMasking = v
	}
	if v, ok := asFloat64(raw["alive_threshold"]); ok {
		req.AliveThreshold = float32(v)
	}
	if v, ok := asString(raw["input"]); ok {
		req.Input = v
	}
	if v, ok := asInt(raw["input_width"]); ok {
		req.InputWidth = v
	}
	if v, ok := asInt(raw["input_in_axis"]); ok {
		req.InputInAxis = &v
	}
	if v, ok := asInt64(raw["seed"]); ok {
		req.Seed = v
	}
	if v, ok := asInt(raw["num_steps"]); ok {
		req.NumSteps = v
	}
	if v, ok := asBool(raw["all_steps"]); ok {
		req.AllSteps = v
	}
	if v, ok := asBool(raw["encode"]); ok {
		req.Encode = v
	}
	if v, ok := asInt(raw["latent_size"]); ok {
		req.LatentSize = v
	}
	return req, nil
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case float64:
		return int(x), true
	default:
		return 0, false
	}
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case float64:
		return int64(x), true
	default:
		return 0, false
	}
}

func asFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	default:
		return 0, false
	}
}

func asStrings(v any) ([]string, bool) {
	items, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := asString(item)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

func asInts(v any) ([]int, bool) {
	items, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]int, 0, len(items))
	for _, item := range items {
		n, ok := asInt(item)
		if !ok {
			return nil, false
		}
		out = append(out, n)
	}
	return out, true
}

func overrideFromFlags(req *neuralca.RunRequest, set map[string]bool, flagValue map[string]any) error {
	for name := range set {
		v, ok := flagValue[name]
		if !ok {
			continue
		}
		switch name {
		case "run-id":
			req.RunID = v.(string)
		case "height":
			req.Height = v.(int)
		case "width":
			req.Width = v.(int)
		case "channels":
			req.Channels = v.(int)
		case "init":
			req.InitPattern = v.(string)
		case "perceive":
			req.Perceive = v.(string)
		case "kernels":
			req.Kernels = splitList(v.(string))
		case "padding":
			req.Padding = v.(string)
		case "update":
			req.Update = v.(string)
		case "hidden":
			hidden, err := parseInts(v.(string))
			if err != nil {
				return fmt.Errorf("invalid --hidden: %w", err)
			}
			req.Hidden = hidden
		case "activation":
			req.Activation = v.(string)
		case "delta":
			delta := float32(v.(float64))
			req.Delta = &delta
		case "alive-masking":
			req.AliveMasking = v.(bool)
		case "alive-threshold":
			req.AliveThreshold = float32(v.(float64))
		case "input":
			req.Input = v.(string)
		case "input-width":
			req.InputWidth = v.(int)
		case "input-axis":
			s := strings.TrimSpace(v.(string))
			if s == "" {
				req.InputInAxis = nil
				continue
			}
			axis, err := strconv.Atoi(s)
			if err != nil {
				return fmt.Errorf("invalid --input-axis: %w", err)
			}
			req.InputInAxis = &axis
		case "seed":
			req.Seed = v.(int64)
		case "steps":
			req.NumSteps = v.(int)
		case "all-steps":
			req.AllSteps = v.(bool)
		case "encode":
			req.Encode = v.(bool)
		case "latent-size":
			req.LatentSize = v.(int)
		}
	}
	return nil
}

func loadOrDefaultRunRequest(configPath string) (neuralca.RunRequest, error) {
	if configPath == "" {
		return neuralca.RunRequest{}, nil
	}
	req, err := loadRunRequestFromConfig(configPath)
	if err != nil {
		return neuralca.RunRequest{}, fmt.Errorf("load config: %w", err)
	}
	return req, nil
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseInts(s string) ([]int, error) {
	items := splitList(s)
	out := make([]int, 0, len(items))
	for _, item := range items {
		n, err := strconv.Atoi(item)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}
