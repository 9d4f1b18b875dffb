package config

import (
	"testing"

	"github.com/spf13/pflag"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Input != "vfg.dot" {
		t.Errorf("Expected default input vfg.dot, got %q", cfg.Input)
	}
	if cfg.Output != "model.dot" {
		t.Errorf("Expected default output model.dot, got %q", cfg.Output)
	}
	if cfg.Port != 8080 {
		t.Errorf("Expected default port 8080, got %d", cfg.Port)
	}
	if cfg.PathsMode || cfg.WebMode || cfg.Watch {
		t.Error("Expected mode flags to default to false")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("VFG_EXTRACT_PORT", "9090")
	t.Setenv("VFG_EXTRACT_TITLE", "cfd-model")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("Expected env var to override port, got %d", cfg.Port)
	}
	if cfg.Title != "cfd-model" {
		t.Errorf("Expected env var to override title, got %q", cfg.Title)
	}
}

func TestLoadFlagOverride(t *testing.T) {
	t.Setenv("VFG_EXTRACT_SEEDS", "1,2")

	f := pflag.NewFlagSet("test", pflag.ContinueOnError)
	f.String("seeds", "", "")
	f.Bool("paths", false, "")
	if err := f.Parse([]string{"--seeds=42", "--paths"}); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	cfg, err := Load(f)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// Flags win over the environment
	if cfg.Seeds != "42" {
		t.Errorf("Expected flag value to win, got %q", cfg.Seeds)
	}
	if !cfg.PathsMode {
		t.Error("Expected --paths to enable path mode")
	}
}

func TestSeedIDs(t *testing.T) {
	tests := []struct {
		name    string
		seeds   string
		want    []uint64
		wantErr bool
	}{
		{name: "single", seeds: "4078", want: []uint64{4078}},
		{name: "list", seeds: "1,2,3", want: []uint64{1, 2, 3}},
		{name: "spaces", seeds: " 10 , 20 ", want: []uint64{10, 20}},
		{name: "trailing comma", seeds: "7,", want: []uint64{7}},
		{name: "empty", seeds: "", wantErr: true},
		{name: "only commas", seeds: ",,", wantErr: true},
		{name: "not a number", seeds: "1,abc", wantErr: true},
		{name: "negative", seeds: "-5", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Seeds: tt.seeds}
			got, err := cfg.SeedIDs()
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Expected an error for %q", tt.seeds)
				}
				return
			}
			if err != nil {
				t.Fatalf("SeedIDs(%q) failed: %v", tt.seeds, err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Expected %v, got %v", tt.want, got)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Fatalf("Expected %v, got %v", tt.want, got)
				}
			}
		})
	}
}
