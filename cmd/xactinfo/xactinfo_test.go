package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tidwall/gjson"

	"xact-engine/internal/xact/xacttest"
)

func testFiles() map[string][]byte {
	return map[string][]byte{
		"audio.xgs": xacttest.Settings{
			Categories: []string{"Default", "Music"},
			Globals:    []xacttest.Global{{Name: "Wind", Initial: 0.5, Max: 1}},
		}.Build(),
		"Sounds.xwb": xacttest.WaveBank{Name: "Sounds", Frames: []int{4410, 22050}}.Build(),
		"Effects.xsb": xacttest.SoundBank{
			Name:      "Effects",
			WaveBanks: []string{"Sounds"},
			Cues:      []xacttest.Cue{{Name: "Fire"}, {Name: "Ice", Track: 1}},
		}.Build(),
	}
}

func TestIdentify(t *testing.T) {
	files := testFiles()
	tests := []struct {
		name    string
		data    []byte
		want    string
		wantErr bool
	}{
		{"settings", files["audio.xgs"], "settings", false},
		{"wave bank", files["Sounds.xwb"], "wavebank", false},
		{"sound bank", files["Effects.xsb"], "soundbank", false},
		{"short", []byte("XG"), "", true},
		{"riff", []byte("RIFF\x00\x00\x00\x00WAVE"), "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := identify(tt.data)
			if (err != nil) != tt.wantErr {
				t.Fatalf("identify() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("identify() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestInspect(t *testing.T) {
	files := testFiles()

	rep, err := inspect("audio.xgs", files["audio.xgs"], 8)
	if err != nil {
		t.Fatalf("inspect settings: %v", err)
	}
	checks := []struct{ path, want string }{
		{"kind", "settings"},
		{"header_hex", "584753462e002a00"},
		{"categories.#", "2"},
		{"categories.1.name", "Music"},
		{"categories.0.parent", "-1"},
		{"variables.0.name", "Wind"},
		{"variables.0.initial", "0.5"},
		{"variables.#", "2"},
		{"rpcs.#", "0"},
	}
	for _, c := range checks {
		if got := gjson.GetBytes(rep, c.path).String(); got != c.want {
			t.Errorf("settings %s = %q, want %q", c.path, got, c.want)
		}
	}

	rep, err = inspect("Sounds.xwb", files["Sounds.xwb"], 0)
	if err != nil {
		t.Fatalf("inspect wave bank: %v", err)
	}
	if gjson.GetBytes(rep, "header_hex").Exists() {
		t.Error("header_hex present without -hex")
	}
	if ms := gjson.GetBytes(rep, "duration_ms").Int(); ms != 600 {
		t.Errorf("duration_ms = %d", ms)
	}
	if n := gjson.GetBytes(rep, "entries.#").Int(); n != 2 {
		t.Errorf("entries = %d", n)
	}
	e := gjson.GetBytes(rep, "entries.1")
	if e.Get("codec").String() != "PCM" || e.Get("frames").Int() != 22050 ||
		e.Get("sample_rate").Int() != 44100 || e.Get("duration_ms").Int() != 500 {
		t.Errorf("entry 1 = %s", e.Raw)
	}

	rep, err = inspect("Effects.xsb", files["Effects.xsb"], 0)
	if err != nil {
		t.Fatalf("inspect sound bank: %v", err)
	}
	if got := gjson.GetBytes(rep, "cues.#.name").String(); got != `["Fire","Ice"]` {
		t.Errorf("cue names = %s", got)
	}
	if got := gjson.GetBytes(rep, "wave_banks.0").String(); got != "Sounds" {
		t.Errorf("wave bank = %q", got)
	}
	if gjson.GetBytes(rep, "simple_cues").Int() != 2 || gjson.GetBytes(rep, "cues.0.sounds").Int() != 1 {
		t.Errorf("sound bank report = %s", rep)
	}

	if _, err := inspect("broken.xsb", files["Effects.xsb"][:40], 0); err == nil {
		t.Error("truncated sound bank accepted")
	}
}

func writeContent(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for name, data := range testFiles() {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
			t.Fatal(err)
		}
	}
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644)
	return dir
}

func TestRunCLISummary(t *testing.T) {
	dir := writeContent(t)
	var out, errOut bytes.Buffer
	p := &printer{out: &out, errOut: &errOut, level: LogVerbose}

	if err := runCLI(&CLIConfig{Paths: []string{dir}}, p); err != nil {
		t.Fatalf("runCLI: %v (%s)", err, errOut.String())
	}
	for _, want := range []string{
		"audio.xgs: engine settings",
		"2 categories, 2 variables, 0 RPCs, 0 DSP presets",
		"variable Wind",
		`bank "Sounds": 2 entries`,
		"[1] PCM   1ch 44100 Hz 16-bit 22050 frames (500 ms)",
		`bank "Effects": 2 cues (2 simple, 0 complex), wave banks: Sounds`,
		"cue Ice",
	} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
	if strings.Contains(out.String(), "notes.txt") {
		t.Error("non-content file inspected")
	}

	out.Reset()
	p.level = LogQuiet
	if err := runCLI(&CLIConfig{Paths: []string{dir}, HexBytes: 16}, p); err != nil {
		t.Fatalf("runCLI quiet: %v", err)
	}
	if lines := strings.Count(out.String(), "\n"); lines != 3 {
		t.Errorf("quiet output has %d lines:\n%s", lines, out.String())
	}
}

func TestRunCLIJSON(t *testing.T) {
	dir := writeContent(t)
	bad := filepath.Join(dir, "bad.xwb")
	os.WriteFile(bad, []byte("not a wave bank"), 0644)

	var out, errOut bytes.Buffer
	p := &printer{out: &out, errOut: &errOut, level: LogNormal}
	err := runCLI(&CLIConfig{JSON: true, Paths: []string{dir}}, p)
	if err == nil || !strings.Contains(err.Error(), "1 of 4 files failed") {
		t.Fatalf("runCLI err = %v", err)
	}
	if !strings.Contains(errOut.String(), "bad.xwb") {
		t.Errorf("warning missing: %q", errOut.String())
	}

	if !gjson.Valid(out.String()) {
		t.Fatalf("invalid JSON:\n%s", out.String())
	}
	reports := gjson.Parse(out.String())
	if n := reports.Get("#").Int(); n != 4 {
		t.Fatalf("%d reports", n)
	}
	var failed []string
	reports.ForEach(func(_, r gjson.Result) bool {
		if r.Get("error").Exists() {
			failed = append(failed, r.Get("file").String())
		}
		return true
	})
	if len(failed) != 1 || failed[0] != bad {
		t.Errorf("failed reports = %q", failed)
	}
	if got := reports.Get(`#(kind=="soundbank").name`).String(); got != "Effects" {
		t.Errorf("sound bank name = %q", got)
	}
}

func TestParseCommandLine(t *testing.T) {
	var out bytes.Buffer
	cfg, err := parseCommandLine([]string{"-v", "-hex", "32", "a.xgs", "b.xsb"}, &out)
	if err != nil {
		t.Fatalf("parseCommandLine: %v", err)
	}
	if !cfg.Verbose || cfg.HexBytes != 32 || len(cfg.Paths) != 2 || cfg.level() != LogVerbose {
		t.Errorf("config = %+v", cfg)
	}

	for _, args := range [][]string{
		{"-verbose", "-quiet", "a.xgs"},
		{"-hex", "-1", "a.xgs"},
		{"-json"},
		{"-bogus", "a.xgs"},
	} {
		if _, err := parseCommandLine(args, &out); err == nil {
			t.Errorf("%q accepted", args)
		}
	}
}

func TestHexDump(t *testing.T) {
	var out bytes.Buffer
	hexDump(&out, []byte("XGSF\x2e\x00\x2a\x00tail of header!!extra"), 20)
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("%d lines:\n%s", len(lines), out.String())
	}
	if !strings.HasPrefix(lines[2], "000000  58 47 53 46 2E 00 2A 00") || !strings.HasSuffix(lines[2], "XGSF..*.tail of ") {
		t.Errorf("first row = %q", lines[2])
	}
	if !strings.HasPrefix(lines[3], "000010  68 65 61 64") || !strings.HasSuffix(lines[3], " head") {
		t.Errorf("second row = %q", lines[3])
	}
}
