/*
Package main is a driver around the popfill completion pipeline.

Popfill orchestrates editor completion popups over external providers: it
debounces keystrokes adaptively against observed provider latency, fans
requests out to every registered provider, reconciles replacement
boundaries, normalizes protocol items into popup entries and runs the
acceptance side effects (snippet expansion, additional text edits,
deferred resolve, commands).

The library is meant to be embedded behind editor glue implementing the
Buffer and Popup interfaces. This binary exists for development: it wires
the pipeline to a line-based prompt and a provider child process speaking
msgpack envelopes over stdio, so provider shims can be exercised without
an editor attached.

# Usage

Interactive prompt against a provider shim:

	popfill -provider "node lsp-shim.js"

Trigger characters and resolve support are declared per provider:

	popfill -provider "gopls-shim" -triggers ".:"

Show the effective configuration file:

	popfill -init-config

Configuration lives in a TOML file (see the config package) controlling
the match mode, debounce timing, popup limits and the resolve round trip.
*/
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"popfill/pkg/complete"
	"popfill/pkg/config"
	"popfill/pkg/editor"
	"popfill/pkg/provider"
	"popfill/pkg/provider/stdio"
)

const (
	Version = "0.1.0"
	AppName = "popfill"
	gh      = "https://github.com/bastiangx/popfill"
)

// sigHandler is a simple handler for OS signals to exit normally.
func sigHandler() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		fmt.Fprintf(os.Stderr, "\nExiting...\n")
		os.Exit(0)
	}()
}

func main() {
	sigHandler()

	showVersion := flag.Bool("version", false, "Show current version")
	debugMode := flag.Bool("d", false, "Toggle debug mode")
	configPath := flag.String("config", "", "Path to a custom config.toml")
	initConfig := flag.Bool("init-config", false, "Create the default config file if missing and print its path")
	providerCmd := flag.String("provider", "", "Provider child command, e.g. \"node shim.js\"")
	triggers := flag.String("triggers", ".", "Trigger characters the provider declares")
	noResolve := flag.Bool("no-resolve", false, "Skip the completionItem/resolve round trip on accept")

	flag.Parse()

	if *showVersion {
		logger := log.NewWithOptions(os.Stderr, log.Options{
			ReportCaller:    false,
			ReportTimestamp: false,
			Prefix:          "",
		})

		styles := log.DefaultStyles()
		styles.Values["version"] = lipgloss.NewStyle().Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"})
		styles.Values["gh"] = lipgloss.NewStyle().Italic(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"})
		logger.SetStyles(styles)

		logger.Print("")
		logger.Print("[ popfill ] Adaptive completion popups for any provider!")
		logger.Print("", "version", Version)
		logger.Print("")
		logger.Print("use -h or --help to see available options")
		logger.Print("Github Repo", "gh", gh)

		os.Exit(0)
	}

	if *debugMode {
		log.SetLevel(log.DebugLevel)
		log.SetReportTimestamp(true)
	} else {
		log.SetLevel(log.WarnLevel)
	}

	if *initConfig {
		path := *configPath
		if path == "" {
			var err error
			path, err = config.GetDefaultConfigPath()
			if err != nil {
				log.Fatalf("Resolving config path: %v", err)
			}
		}
		if _, err := config.InitConfig(path); err != nil {
			log.Fatalf("Creating config: %v", err)
		}
		fmt.Println(path)
		return
	}

	cfg, loadedFrom, err := config.LoadConfigWithPriority(*configPath)
	if err != nil {
		log.Warnf("Falling back to default config: %v", err)
		cfg = config.DefaultConfig()
	} else if loadedFrom != "" {
		log.Debugf("Loaded config from %s", loadedFrom)
	}
	if *noResolve {
		cfg.Resolve.Enabled = false
	}

	if *providerCmd == "" {
		fmt.Fprintln(os.Stderr, "no provider given; use -provider \"cmd args...\"")
		flag.Usage()
		os.Exit(1)
	}
	parts := strings.Fields(*providerCmd)
	client, err := stdio.Start(parts[0], parts[1:], provider.Options{
		AutoTrigger:       true,
		ResolveProvider:   cfg.Resolve.Enabled,
		TriggerCharacters: splitTriggers(*triggers),
	})
	if err != nil {
		log.Fatalf("Starting provider: %v", err)
	}
	defer client.Close()

	if err := runPrompt(cfg, client); err != nil {
		log.Fatalf("Prompt error: %v", err)
	}
}

func splitTriggers(s string) []string {
	var out []string
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

// promptBuffer is a single-line Buffer for the interactive prompt; the
// cursor sits at the end of whatever was typed.
type promptBuffer struct {
	line string
	tick int64
}

func (b *promptBuffer) ID() string         { return "prompt" }
func (b *promptBuffer) Line(int) string    { return b.line }
func (b *promptBuffer) Cursor() (int, int) { return 0, len(b.line) }
func (b *promptBuffer) Changedtick() int64 { return b.tick }
func (b *promptBuffer) InsertMode() bool   { return true }

func (b *promptBuffer) Replace(_, start, end int, text string) {
	if start < 0 || end > len(b.line) || start > end {
		return
	}
	b.line = b.line[:start] + text + b.line[end:]
	b.tick++
}

func (b *promptBuffer) ExpandSnippet(body string) {
	b.line += body
	b.tick++
}

func (b *promptBuffer) set(line string) {
	b.line = line
	b.tick++
}

// promptPopup prints entries and hands them back to the prompt loop.
type promptPopup struct {
	shows chan []editor.Entry
}

func (p *promptPopup) Show(startCol int, entries []editor.Entry) {
	select {
	case p.shows <- entries:
	default:
	}
}

// runPrompt reads one line per completion request: the line becomes the
// buffer content, the engine is invoked manually and the entries printed.
func runPrompt(cfg *config.Config, pr provider.Provider) error {
	buf := &promptBuffer{}
	popup := &promptPopup{shows: make(chan []editor.Entry, 1)}
	eng := complete.NewEngine(cfg, editor.NewTimeScheduler(), popup)
	eng.Enable("stdio", buf, pr)

	fmt.Println("type a prefix and hit enter (ctrl-d quits):")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		buf.set(scanner.Text())
		eng.Invoke("prompt")

		select {
		case entries := <-popup.shows:
			if len(entries) == 0 {
				fmt.Println("  (no candidates)")
				continue
			}
			for i, e := range entries {
				mark := " "
				if e.Deprecated {
					mark = "!"
				}
				fmt.Printf("  %2d.%s %-24s %-12s %s\n", i+1, mark, e.Abbr, e.Kind, e.Menu)
			}
		case <-time.After(2 * time.Second):
			fmt.Println("  (provider timed out)")
		}
	}
	return scanner.Err()
}
