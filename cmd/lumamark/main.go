// Command lumamark hides short text in the luma channel of images and
// videos and reads it back.
package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/banshee-data/lumamark/internal/monitoring"
	"github.com/banshee-data/lumamark/internal/version"
)

// Exit codes.
const (
	exitOK       = 0
	exitFailure  = 1
	exitUsage    = 2
	exitNotFound = 1
)

// cli carries the output streams shared by every command.
type cli struct {
	stdout io.Writer
	stderr io.Writer
	log    *log.Logger
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	c := &cli{stdout: stdout, stderr: stderr, log: log.New(stderr, "lumamark: ", 0)}
	monitoring.SetLogger(c.log.Printf)
	defer monitoring.SetDebug(false)

	if len(args) < 1 {
		c.printUsage(stderr)
		return exitUsage
	}

	command, rest := args[0], args[1:]
	handlers := map[string]func([]string) int{
		"embed":         c.handleEmbed,
		"extract":       c.handleExtract,
		"embed-video":   c.handleEmbedVideo,
		"extract-video": c.handleExtractVideo,
		"analyze":       c.handleAnalyze,
		"history":       c.handleHistory,
		"serve":         c.handleServe,
	}
	switch command {
	case "version", "--version":
		fmt.Fprintf(stdout, "lumamark version %s (commit %s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return exitOK
	case "help", "-h", "--help":
		c.printUsage(stdout)
		return exitOK
	}
	h, ok := handlers[command]
	if !ok {
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", command)
		c.printUsage(stderr)
		return exitUsage
	}
	return h(rest)
}

func (c *cli) printUsage(w io.Writer) {
	fmt.Fprintln(w, `lumamark - text watermarks in the luma channel of images and videos

Usage: lumamark <command> [options] [arguments]

Commands:
  embed          Embed text: embed [options] <in> <out> <text> [numRegions] [edgeThreshold]
  extract        Extract text: extract [options] <in> [edgeThreshold]
  embed-video    Embed text into sampled frames: embed-video [options] <in> <out> <text>
  extract-video  Extract text from sampled frames: extract-video [options] <in>
  analyze        Compare an original and a marked image
  history        List recorded embeddings and extractions
  serve          Serve the registry debug pages
  version        Show lumamark version
  help           Show this help message

Common Flags:
  --config <file>      Tuning config JSON (defaults built in)
  --db <file>          Record runs in this SQLite registry
  --debug              Enable debug logging

Examples:
  lumamark embed photo.png marked.png "owner:42"
  lumamark extract marked.png
  lumamark extract --reference photo.png marked.png
  lumamark embed --layout per-region --config tuning.json photo.png marked.png hi
  lumamark analyze --original photo.png --marked marked.png --chart regions.html --plot margins.png
  lumamark embed-video --stride 5 clip.mp4 marked.mp4 "owner:42"`)
}
