package main

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestParseShape(t *testing.T) {
	cases := []struct {
		in      string
		want    []int
		wantErr bool
	}{
		{in: "4", want: []int{4}},
		{in: "84,84,4", want: []int{84, 84, 4}},
		{in: " 8, 8, 1 ", want: []int{8, 8, 1}},
		{in: "", wantErr: true},
		{in: "4,", wantErr: true},
		{in: "4,-1", wantErr: true},
		{in: "a,b", wantErr: true},
	}
	for _, tc := range cases {
		got, err := parseShape(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("parseShape(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("parseShape(%q): %v", tc.in, err)
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("parseShape(%q): got=%v want=%v", tc.in, got, tc.want)
		}
	}
}

func TestRunRejectsBadCommands(t *testing.T) {
	ctx := context.Background()
	if err := run(ctx, nil); err == nil {
		t.Fatal("expected error for missing command")
	}
	if err := run(ctx, []string{"bogus"}); err == nil {
		t.Fatal("expected error for unknown command")
	}
}

func TestDescribeCommand(t *testing.T) {
	args := []string{
		"describe",
		"--network", "simple",
		"--optimizer", "sgd",
		"--input-shape", "4",
		"--actions", "2",
		"--batch-size", "2",
	}
	if err := run(context.Background(), args); err != nil {
		t.Fatalf("describe: %v", err)
	}
}

func TestDescribeCommandFromConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.json")
	cfgJSON := `{"network":"simple","optimizer":"momentum","lr":0.01,"momentum":0.9,"batch_size":2,"seed":5}`
	if err := os.WriteFile(cfgPath, []byte(cfgJSON), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	args := []string{
		"describe",
		"--config", cfgPath,
		"--input-shape", "4",
		"--actions", "3",
	}
	if err := run(context.Background(), args); err != nil {
		t.Fatalf("describe with config: %v", err)
	}
}

func TestSmokeCommandWritesArtifacts(t *testing.T) {
	dir := t.TempDir()
	args := []string{
		"smoke",
		"--network", "simple",
		"--optimizer", "sgd",
		"--input-shape", "4",
		"--actions", "2",
		"--batch-size", "2",
		"--steps", "3",
		"--sync-every", "2",
		"--seed", "9",
		"--artifacts", dir,
	}
	if err := run(context.Background(), args); err != nil {
		t.Fatalf("smoke: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read artifacts dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one summary artifact, got %d", len(entries))
	}
	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	if err != nil {
		t.Fatalf("read summary csv: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header plus three rows, got %d lines", len(lines))
	}
	if !strings.Contains(lines[0], "loss") {
		t.Fatalf("expected loss column in header, got %q", lines[0])
	}
}

func TestCheckpointsCommandEmptyStore(t *testing.T) {
	if err := run(context.Background(), []string{"checkpoints", "--store", "memory"}); err != nil {
		t.Fatalf("checkpoints: %v", err)
	}
}

func TestArchitecturesCommand(t *testing.T) {
	if err := run(context.Background(), []string{"architectures"}); err != nil {
		t.Fatalf("architectures: %v", err)
	}
}
