package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, payload map[string]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run_config.json")
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadRunRequestFromConfig(t *testing.T) {
	path := writeConfig(t, map[string]any{
		"run_id":        "cfg",
		"height":        12,
		"width":         10,
		"channels":      6,
		"perceive":      "depthwise",
		"kernels":       []any{"identity", "laplacian"},
		"padding":       "zero",
		"update":        "residual",
		"hidden":        []any{16, 8},
		"alive_masking": true,
		"input":         "sequence",
		"input_width":   3,
		"input_in_axis": -1,
		"seed":          77,
		"num_steps":     9,
		"all_steps":     true,
		"encode":        true,
		"latent_size":   4,
	})

	req, err := loadRunRequestFromConfig(path)
	if err != nil {
		t.Fatalf("load run request: %v", err)
	}
	if req.RunID != "cfg" || req.Height != 12 || req.Width != 10 || req.Channels != 6 {
		t.Fatalf("unexpected grid fields: %+v", req)
	}
	if len(req.Kernels) != 2 || req.Kernels[1] != "laplacian" || req.Padding != "zero" {
		t.Fatalf("unexpected perceive fields: %+v", req)
	}
	if len(req.Hidden) != 2 || req.Hidden[0] != 16 || !req.AliveMasking {
		t.Fatalf("unexpected update fields: %+v", req)
	}
	if req.InputInAxis == nil || *req.InputInAxis != -1 || req.InputWidth != 3 {
		t.Fatalf("unexpected input fields: %+v", req)
	}
	if req.Seed != 77 || req.NumSteps != 9 || !req.AllSteps || !req.Encode || req.LatentSize != 4 {
		t.Fatalf("unexpected run fields: %+v", req)
	}
}

func TestLoadRunRequestFromConfigLeavesAxisUnset(t *testing.T) {
	path := writeConfig(t, map[string]any{"num_steps": 2})
	req, err := loadRunRequestFromConfig(path)
	if err != nil {
		t.Fatalf("load run request: %v", err)
	}
	if req.InputInAxis != nil {
		t.Fatalf("expected nil input axis, got %d", *req.InputInAxis)
	}
}

func TestOverrideFromFlagsOnlyTouchesSetFlags(t *testing.T) {
	path := writeConfig(t, map[string]any{"height": 12, "num_steps": 9, "input_in_axis": 0})
	req, err := loadOrDefaultRunRequest(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	set := map[string]bool{"steps": true, "kernels": true, "input-axis": true}
	values := map[string]any{
		"height":     99,
		"steps":      4,
		"kernels":    "sobel_x, sobel_y,",
		"input-axis": "",
	}
	if err := overrideFromFlags(&req, set, values); err != nil {
		t.Fatalf("override: %v", err)
	}
	if req.Height != 12 {
		t.Fatalf("unset flag overrode config: height=%d", req.Height)
	}
	if req.NumSteps != 4 {
		t.Fatalf("expected steps override, got %d", req.NumSteps)
	}
	if len(req.Kernels) != 2 || req.Kernels[0] != "sobel_x" || req.Kernels[1] != "sobel_y" {
		t.Fatalf("unexpected kernels: %v", req.Kernels)
	}
	if req.InputInAxis != nil {
		t.Fatal("expected empty --input-axis to clear the axis")
	}
}

func TestLoadOrDefaultRunRequestErrors(t *testing.T) {
	if _, err := loadOrDefaultRunRequest(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected missing config error")
	}
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := loadOrDefaultRunRequest(path); err == nil {
		t.Fatal("expected invalid json error")
	}
	req, err := loadOrDefaultRunRequest("")
	if err != nil || req.RunID != "" {
		t.Fatalf("expected empty request, got %+v err=%v", req, err)
	}
}

func TestLoadRunRequestFromConfigKeepsZeroDelta(t *testing.T) {
	req, err := loadRunRequestFromConfig(writeConfig(t, map[string]any{"update": "increment", "delta": 0}))
	if err != nil {
		t.Fatalf("load run request: %v", err)
	}
	if req.Delta == nil || *req.Delta != 0 {
		t.Fatalf("expected explicit zero delta, got %v", req.Delta)
	}

	req, err = loadRunRequestFromConfig(writeConfig(t, map[string]any{"update": "increment"}))
	if err != nil {
		t.Fatalf("load run request: %v", err)
	}
	if req.Delta != nil {
		t.Fatalf("expected unset delta, got %v", *req.Delta)
	}
}
