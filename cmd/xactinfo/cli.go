package main

import (
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// CLIConfig holds all command line configuration
type CLIConfig struct {
	JSON     bool
	HexBytes int
	Verbose  bool
	Quiet    bool
	Paths    []string
}

func (c *CLIConfig) level() LogLevel {
	switch {
	case c.Quiet:
		return LogQuiet
	case c.Verbose:
		return LogVerbose
	}
	return LogNormal
}

// contentExts are the extensions picked up when scanning a directory.
var contentExts = map[string]bool{".xgs": true, ".xwb": true, ".xsb": true}

// parseCommandLine handles all command line parsing and flag setup
func parseCommandLine(args []string, output io.Writer) (*CLIConfig, error) {
	var config CLIConfig
	flags := flag.NewFlagSet("xactinfo", flag.ContinueOnError)
	flags.SetOutput(output)
	flags.BoolVar(&config.JSON, "json", false, "Print a JSON report instead of a summary")
	flags.IntVar(&config.HexBytes, "hex", 0, "Dump this many leading bytes of each file")
	flags.BoolVar(&config.Verbose, "verbose", false, "List every category, variable, entry and cue")
	flags.BoolVar(&config.Verbose, "v", false, "Enable verbose output (short form)")
	flags.BoolVar(&config.Quiet, "quiet", false, "Print only one line per file")
	flags.BoolVar(&config.Quiet, "q", false, "Print only one line per file (short form)")

	flags.Usage = func() {
		fmt.Fprintf(output, "XACT content inspector\n\n")
		fmt.Fprintf(output, "Usage:\n")
		fmt.Fprintf(output, "  xactinfo [flags] <file_or_directory>...\n\n")
		fmt.Fprintf(output, "Flags:\n")
		flags.PrintDefaults()
		fmt.Fprintf(output, "\nExamples:\n")
		fmt.Fprintf(output, "  xactinfo audio.xgs Effects.xsb\n")
		fmt.Fprintf(output, "  xactinfo -verbose content/\n")
		fmt.Fprintf(output, "  xactinfo -json -hex 64 Sounds.xwb\n")
	}
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	if config.Verbose && config.Quiet {
		return nil, fmt.Errorf("cannot use both -verbose and -quiet flags simultaneously")
	}
	if config.HexBytes < 0 {
		return nil, fmt.Errorf("-hex must not be negative")
	}
	if flags.NArg() < 1 {
		flags.Usage()
		return nil, fmt.Errorf("no input files")
	}
	config.Paths = flags.Args()
	return &config, nil
}

// collectFiles expands directories into the content files beneath them.
func collectFiles(paths []string) ([]string, error) {
	var files []string
	for _, path := range paths {
		stat, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("error accessing path %s: %w", path, err)
		}
		if !stat.IsDir() {
			files = append(files, path)
			continue
		}
		err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && contentExts[strings.ToLower(filepath.Ext(p))] {
				files = append(files, p)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scan directory: %w", err)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no content files found in %s", strings.Join(paths, ", "))
	}
	return files, nil
}

// runCLI inspects every input. A file that fails is reported and skipped;
// the returned error counts the failures.
func runCLI(config *CLIConfig, p *printer) error {
	files, err := collectFiles(config.Paths)
	if err != nil {
		return err
	}

	reports := []byte("[]")
	failed := 0
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err == nil && config.HexBytes > 0 && !config.JSON && p.level >= LogNormal {
			fmt.Fprintf(p.out, "First %d bytes of %s:\n", min(config.HexBytes, len(data)), file)
			hexDump(p.out, data, config.HexBytes)
		}
		var rep []byte
		if err == nil {
			rep, err = inspect(file, data, config.HexBytes)
		}
		if err != nil {
			p.Errorf("Warning: failed to inspect %s: %v\n", file, err)
			failed++
			if config.JSON {
				rep, _ = sjson.SetBytes([]byte("{}"), "file", file)
				rep, _ = sjson.SetBytes(rep, "error", err.Error())
				reports, _ = sjson.SetRawBytes(reports, "-1", rep)
			}
			continue
		}

		if config.JSON {
			reports, err = sjson.SetRawBytes(reports, "-1", rep)
			if err != nil {
				return err
			}
		} else {
			printSummary(p, rep)
		}
	}

	if config.JSON {
		p.Resultf("%s", gjson.GetBytes(reports, "@pretty").Raw)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(files))
	}
	return nil
}
