package main

import (
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// printSummary renders a report produced by inspect as text.
func printSummary(p *printer, data []byte) {
	rep := gjson.ParseBytes(data)
	kind := rep.Get("kind").String()
	p.Resultf("%s: %s, %s\n", rep.Get("file").String(), kindLabels[kind], rep.Get("size_human").String())

	switch kind {
	case "settings":
		p.Infof("  %d categories, %d variables, %d RPCs, %d DSP presets\n",
			rep.Get("categories.#").Int(),
			rep.Get("variables.#").Int(),
			rep.Get("rpcs.#").Int(),
			rep.Get("dsp_presets").Int())
		rep.Get("categories").ForEach(func(_, c gjson.Result) bool {
			p.Verbosef("  category %-16s volume %.3f  limit %s  %s\n",
				c.Get("name").String(), c.Get("volume").Float(),
				limit(c.Get("max_instances").Int()), c.Get("behavior").String())
			return true
		})
		rep.Get("variables").ForEach(func(_, v gjson.Result) bool {
			scope := "instance"
			if v.Get("global").Bool() {
				scope = "global"
			}
			p.Verbosef("  variable %-16s %-8s %g [%g, %g]\n",
				v.Get("name").String(), scope,
				v.Get("initial").Float(), v.Get("min").Float(), v.Get("max").Float())
			return true
		})
		rep.Get("rpcs").ForEach(func(_, c gjson.Result) bool {
			p.Verbosef("  rpc %08X %s -> %s (%d points)\n",
				c.Get("code").Uint(), c.Get("variable").String(),
				c.Get("parameter").String(), c.Get("points").Int())
			return true
		})

	case "wavebank":
		p.Infof("  bank %q: %d entries, %s decoded, %s of audio\n",
			rep.Get("name").String(), rep.Get("entries.#").Int(),
			rep.Get("decoded_size_human").String(), rep.Get("duration_human").String())
		rep.Get("entries").ForEach(func(i, e gjson.Result) bool {
			p.Verbosef("  [%d] %-5s %dch %d Hz %d-bit %d frames (%d ms)",
				i.Int(), e.Get("codec").String(), e.Get("channels").Int(),
				e.Get("sample_rate").Int(), e.Get("bits").Int(),
				e.Get("frames").Int(), e.Get("duration_ms").Int())
			if n := e.Get("loop_length").Int(); n > 0 {
				p.Verbosef(" loop %d+%d", e.Get("loop_start").Int(), n)
			}
			p.Verbosef("\n")
			return true
		})

	case "soundbank":
		var banks []string
		for _, b := range rep.Get("wave_banks").Array() {
			banks = append(banks, b.String())
		}
		p.Infof("  bank %q: %d cues (%d simple, %d complex), wave banks: %s\n",
			rep.Get("name").String(), rep.Get("cues.#").Int(),
			rep.Get("simple_cues").Int(), rep.Get("complex_cues").Int(),
			strings.Join(banks, ", "))
		rep.Get("cues").ForEach(func(_, c gjson.Result) bool {
			p.Verbosef("  cue %-20s %d sounds  category %d  limit %s\n",
				c.Get("name").String(), c.Get("sounds").Int(),
				c.Get("category").Int(), limit(c.Get("instance_limit").Int()))
			return true
		})
	}
}

func limit(n int64) string {
	if n == 0xFF {
		return "none"
	}
	return strconv.FormatInt(n, 10)
}
