package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/foxseedlab/studentize/external/microphone"
	"github.com/foxseedlab/studentize/external/webrtc"
	"github.com/foxseedlab/studentize/internal/voice"
	"github.com/joho/godotenv"
)

type options struct {
	apiBaseURL string
	token      string
	advisor    string
	micDevice  string
	audioOut   string
	verbose    bool
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to read .env file: %v\n", err)
		os.Exit(1)
	}

	var opt options
	flag.StringVar(&opt.apiBaseURL, "api", envOr("PUBLIC_API_BASE_URL", "http://localhost:8080"), "Backend base URL")
	flag.StringVar(&opt.token, "token", os.Getenv("STUDENTIZE_TOKEN"), "Bearer token for the backend (defaults to STUDENTIZE_TOKEN)")
	flag.StringVar(&opt.advisor, "advisor", "", "Advisor persona slug (empty uses the default persona)")
	flag.StringVar(&opt.micDevice, "mic", "", "ffmpeg input device (pulse source on linux, avfoundation index on macOS)")
	flag.StringVar(&opt.audioOut, "audio-out", "", "Write the advisor's audio to this Ogg/Opus file")
	flag.BoolVar(&opt.verbose, "v", false, "Verbose logging")
	flag.Parse()

	level := slog.LevelWarn
	if opt.verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if opt.token == "" {
		fmt.Fprintln(os.Stderr, "a bearer token is required (-token or STUDENTIZE_TOKEN)")
		os.Exit(2)
	}
	if err := run(opt); err != nil {
		fmt.Fprintf(os.Stderr, "voicecall: %v\n", err)
		os.Exit(1)
	}
}

func run(opt options) error {
	var sink io.Writer
	if opt.audioOut != "" {
		f, err := os.Create(opt.audioOut)
		if err != nil {
			return fmt.Errorf("open audio output: %w", err)
		}
		defer f.Close()
		sink = f
	}

	session, err := voice.NewSession(
		webrtc.NewPeerFactory(webrtc.DefaultICEServers, sink),
		microphone.NewFFmpeg(opt.micDevice),
		voice.NewHTTPSignaler(opt.apiBaseURL, opt.advisor),
	)
	if err != nil {
		return err
	}

	printer := &transcriptPrinter{session: session}
	session.OnUpdate(printer.update)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	err = session.Connect(connectCtx, opt.token)
	cancel()
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer session.Disconnect()

	fmt.Println("connected. commands: m = toggle mute, q = quit")

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- strings.TrimSpace(scanner.Text())
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			printer.flush()
			return nil
		case line, ok := <-lines:
			if !ok {
				printer.flush()
				return nil
			}
			switch line {
			case "m":
				session.ToggleMute()
				if session.IsMuted() {
					fmt.Println("[muted]")
				} else {
					fmt.Println("[unmuted]")
				}
			case "q":
				printer.flush()
				return nil
			case "":
			default:
				fmt.Println("unknown command; m = toggle mute, q = quit")
			}
		}
	}
}

// transcriptPrinter writes each transcript entry once it is no longer the
// newest, so streamed assistant text is printed whole.
type transcriptPrinter struct {
	session *voice.Session

	mu        sync.Mutex
	printed   int
	lastState voice.State
}

func (p *transcriptPrinter) update() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if st := p.session.State(); st != p.lastState {
		p.lastState = st
		if st == voice.StateFailed {
			fmt.Printf("[%s] %v\n", st, p.session.Err())
		} else {
			fmt.Printf("[%s]\n", st)
		}
	}
	entries := p.session.Transcript()
	for ; p.printed < len(entries)-1; p.printed++ {
		printEntry(entries[p.printed])
	}
}

func (p *transcriptPrinter) flush() {
	p.mu.Lock()
	defer p.mu.Unlock()
	entries := p.session.Transcript()
	for ; p.printed < len(entries); p.printed++ {
		printEntry(entries[p.printed])
	}
}

func printEntry(e voice.Entry) {
	who := "you"
	if e.Role == voice.RoleAssistant {
		who = "advisor"
	}
	fmt.Printf("%-8s %s\n", who+":", e.Text)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
