package main

import (
	"bytes"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/riyagpt0251/SatTrackAI/internal/tle/tletest"
	"github.com/riyagpt0251/SatTrackAI/internal/tracking"
)

const testAt = "2025-03-01T00:00:00Z"

func writeTLE(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.txt")
	if err := os.WriteFile(path, []byte(tletest.Text()), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCatalogJSON(t *testing.T) {
	path := writeTLE(t)
	out, err := run(t, "", "-f", path, "--json", "catalog")
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}

	var body struct {
		Metadata   tracking.Metadata  `json:"metadata"`
		Satellites []tracking.Listing `json:"satellites"`
	}
	if err := json.Unmarshal([]byte(out), &body); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if body.Metadata.Count != 5 || len(body.Satellites) != 5 {
		t.Errorf("count = %d, listed %d, want 5", body.Metadata.Count, len(body.Satellites))
	}
	if body.Metadata.Source != path {
		t.Errorf("source = %q, want %q", body.Metadata.Source, path)
	}
}

func TestCatalogSingleTable(t *testing.T) {
	out, err := run(t, "", "-f", writeTLE(t), "catalog", tletest.ISSName)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	for _, want := range []string{"25544", "near-earth", "51.6412"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestCatalogStdin(t *testing.T) {
	out, err := run(t, tletest.Text(), "-f", "-", "catalog")
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	if !strings.Contains(out, "5 satellites") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestPosition(t *testing.T) {
	out, err := run(t, "", "-f", writeTLE(t), "--at", testAt, "--json",
		"position", tletest.ISSName, "--lat", "40.7128", "--lon", "-74.0060")
	if err != nil {
		t.Fatalf("position: %v", err)
	}

	var body struct {
		tracking.Position
		Look *tracking.Look `json:"look"`
	}
	if err := json.Unmarshal([]byte(out), &body); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if math.Abs(body.Latitude) > 52 {
		t.Errorf("ISS latitude %.2f exceeds inclination", body.Latitude)
	}
	if body.Altitude < 350 || body.Altitude > 450 {
		t.Errorf("ISS altitude %.1f km out of range", body.Altitude)
	}
	if body.Look == nil {
		t.Fatal("expected look angles when --lat/--lon are set")
	}
	if body.Look.Visible != (body.Look.Elevation > 10) {
		t.Errorf("visible=%t with elevation %.2f", body.Look.Visible, body.Look.Elevation)
	}
}

func TestTrack(t *testing.T) {
	out, err := run(t, "", "-f", writeTLE(t), "--at", testAt, "--json",
		"track", tletest.ISSName, "--samples", "5", "--step", "2m")
	if err != nil {
		t.Fatalf("track: %v", err)
	}
	var points []tracking.Position
	if err := json.Unmarshal([]byte(out), &points); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(points) != 5 {
		t.Fatalf("got %d points, want 5", len(points))
	}
	if d := points[1].Time.Sub(points[0].Time); d.Minutes() != 2 {
		t.Errorf("spacing = %v, want 2m", d)
	}
}

func TestPasses(t *testing.T) {
	out, err := run(t, "", "-f", writeTLE(t), "--at", testAt, "--json",
		"passes", tletest.ISSName, "--lat", "40.7128", "--lon", "-74.0060", "--hours", "24")
	if err != nil {
		t.Fatalf("passes: %v", err)
	}
	var report tracking.PassReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.Name != tletest.ISSName {
		t.Errorf("name = %q", report.Name)
	}
	for _, p := range report.Passes {
		if p.End.Before(p.Start) {
			t.Errorf("pass ends before it starts: %+v", p)
		}
	}
}

func TestErrors(t *testing.T) {
	path := writeTLE(t)
	tests := []struct {
		name string
		args []string
	}{
		{"missing tle flag", []string{"catalog"}},
		{"unreadable file", []string{"-f", filepath.Join(t.TempDir(), "absent.txt"), "catalog"}},
		{"unknown satellite", []string{"-f", path, "position", "NOPE"}},
		{"passes without observer", []string{"-f", path, "passes", tletest.ISSName}},
		{"bad partial policy", []string{"-f", path, "passes", tletest.ISSName, "--lat", "0", "--lon", "0", "--partial", "maybe"}},
		{"bad observer", []string{"-f", path, "passes", tletest.ISSName, "--lat", "95", "--lon", "0"}},
		{"bad reference time", []string{"-f", path, "--at", "yesterday", "position", tletest.ISSName}},
		{"passes hours overflow", []string{"-f", path, "passes", tletest.ISSName, "--lat", "0", "--lon", "0", "--hours", "1e10"}},
		{"track too long", []string{"-f", path, "track", tletest.ISSName, "--samples", "20000"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := run(t, "", tt.args...); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestStrictRejectsMalformed(t *testing.T) {
	bad := tletest.Text() + "BROKEN\n1 99999U garbage\n2 99999 garbage\n"
	path := filepath.Join(t.TempDir(), "bad.txt")
	if err := os.WriteFile(path, []byte(bad), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := run(t, "", "-f", path, "catalog"); err != nil {
		t.Errorf("lenient load failed: %v", err)
	}
	if _, err := run(t, "", "-f", path, "--strict", "catalog"); err == nil {
		t.Error("strict load accepted a malformed entry")
	}
}
