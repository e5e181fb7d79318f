// Command presto-voice is a terminal voice client for the Presto gateway.
// It captures microphone audio with ffmpeg, streams it over the gateway's
// voice WebSocket, and plays assistant audio through ffplay. Transcripts,
// tool results, and mode switches are printed as they arrive.
//
// Requires ffmpeg and ffplay on PATH (or -ffplay-path). Type m followed by
// enter to toggle mute, q followed by enter to quit.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/prestolabs/presto/internal/dotenv"
	"github.com/prestolabs/presto/pkg/core/audio"
	presto "github.com/prestolabs/presto/sdk"
)

type options struct {
	gateway       string
	apiKey        string
	micDevice     int
	micFrameMS    int
	micCmd        string
	noSpeaker     bool
	ffplayPath    string
	speakerVolume int
	debug         bool
}

func main() {
	os.Exit(runMain())
}

func runMain() int {
	_ = dotenv.Load()

	var opt options
	flag.StringVar(&opt.gateway, "gateway", "http://localhost:8000", "Gateway base URL (http(s)://host:port or ws(s)://...)")
	flag.StringVar(&opt.apiKey, "api-key", strings.TrimSpace(os.Getenv("PRESTO_API_KEY")), "Gateway API key (optional; also reads PRESTO_API_KEY)")
	flag.IntVar(&opt.micDevice, "mic-device", 0, "macOS avfoundation mic device index (default: 0)")
	flag.IntVar(&opt.micFrameMS, "mic-frame-ms", 20, "Mic frame duration in ms (default: 20)")
	flag.StringVar(&opt.micCmd, "mic-cmd", "", "Override mic capture command (runs via /bin/sh -c). If set, --mic-device is ignored.")
	flag.BoolVar(&opt.noSpeaker, "no-speaker", false, "Do not spawn ffplay; discard assistant audio")
	flag.StringVar(&opt.ffplayPath, "ffplay-path", "ffplay", "Path to ffplay executable (default: ffplay)")
	flag.IntVar(&opt.speakerVolume, "speaker-volume", 80, "ffplay startup volume 0=min 100=max (default: 80)")
	flag.BoolVar(&opt.debug, "debug", false, "Enable debug logging (mic stats, playback errors)")
	flag.Parse()

	if strings.TrimSpace(opt.apiKey) == "" {
		opt.apiKey = strings.TrimSpace(os.Getenv("PRESTO_API_KEY"))
	}
	if strings.TrimSpace(opt.gateway) == "" {
		fmt.Fprintln(os.Stderr, "--gateway is required")
		return 2
	}
	if opt.micFrameMS <= 0 {
		fmt.Fprintln(os.Stderr, "--mic-frame-ms must be > 0")
		return 2
	}
	if opt.speakerVolume < 0 || opt.speakerVolume > 100 {
		fmt.Fprintln(os.Stderr, "--speaker-volume must be between 0 and 100")
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opt); err != nil {
		fmt.Fprintln(os.Stderr, "presto-voice:", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, opt options) error {
	session, err := presto.Dial(ctx, presto.DialConfig{
		BaseURL: strings.TrimSpace(opt.gateway),
		APIKey:  strings.TrimSpace(opt.apiKey),
	})
	if err != nil {
		return fmt.Errorf("dial gateway: %w", err)
	}
	defer session.Close()

	ffplayLogLevel := "error"
	if opt.debug {
		ffplayLogLevel = "info"
	}
	var sink presto.Sink = nullSink{}
	if !opt.noSpeaker {
		speaker := newFFPlaySink(ffplayConfig{
			path:     strings.TrimSpace(opt.ffplayPath),
			logLevel: ffplayLogLevel,
			volume:   opt.speakerVolume,
			format:   audio.DefaultFormat,
		})
		defer speaker.Stop()
		sink = speaker
	}

	speakingCh := make(chan bool, 4)
	playback := presto.NewPlayback(sink, presto.PlaybackConfig{
		OnSpeaking: func(speaking bool) {
			select {
			case speakingCh <- speaking:
			default:
			}
		},
	})

	capture := presto.NewCapture(
		func() (io.ReadCloser, error) { return openMic(ctx, opt) },
		session.SendAudio,
		presto.CaptureConfig{FrameDuration: time.Duration(opt.micFrameMS) * time.Millisecond},
	)
	if err := capture.Start(); err != nil {
		return fmt.Errorf("start microphone: %w", err)
	}
	defer capture.Stop()
	// Dial already consumed the connected frame, so frames can flow now.
	capture.SetReady(true)

	keys := make(chan string, 4)
	go readKeys(ctx, os.Stdin, keys)

	fmt.Println("[presto] connected. m+enter toggles mute, q+enter quits.")

	state := presto.Machine{State: presto.StateConnected}
	for {
		select {
		case <-ctx.Done():
			_ = session.SendStop()
			return nil

		case speaking := <-speakingCh:
			if speaking {
				state, _ = state.Apply(presto.EventPlaybackStarted)
			} else {
				state, _ = state.Apply(presto.EventPlaybackIdle)
			}

		case key := <-keys:
			switch key {
			case "m":
				ev := presto.EventMute
				if state.Muted {
					ev = presto.EventUnmute
				}
				state, _ = state.Apply(ev)
				capture.SetMuted(state.Muted)
				if err := session.SendMute(state.Muted); err != nil {
					fmt.Fprintln(os.Stderr, "presto-voice: send mute:", err)
				}
				if state.Muted {
					fmt.Println("[presto] muted")
				} else {
					fmt.Println("[presto] unmuted")
				}
			case "q":
				_ = session.SendStop()
				return nil
			}

		case ev, ok := <-session.Events():
			if !ok {
				if err := session.Err(); err != nil {
					return err
				}
				return nil
			}
			var effects []presto.Effect
			state, effects = handleEvent(ev, state, capture, opt.debug)
			for _, effect := range effects {
				if effect == presto.EffectInterrupt {
					if err := playback.Interrupt(); err != nil && opt.debug {
						fmt.Fprintln(os.Stderr, "[debug] interrupt playback:", err)
					}
				}
			}
			if e, isAudio := ev.(presto.AudioEvent); isAudio {
				if err := playback.Enqueue(e.Data); err != nil && opt.debug {
					fmt.Fprintln(os.Stderr, "[debug] enqueue playback:", err)
				}
			}
		}
	}
}

// handleEvent applies a gateway event to the client state machine, prints
// its rendering, and adjusts the capture gate on connection status changes.
// Audio payloads are handled by the caller.
func handleEvent(ev presto.Event, state presto.Machine, capture *presto.Capture, debug bool) (presto.Machine, []presto.Effect) {
	if line, ok := formatEvent(ev, debug); ok {
		fmt.Println(line)
	}

	switch e := ev.(type) {
	case presto.StatusEvent:
		switch e.Status {
		case presto.StatusConnected:
			capture.SetReady(true)
			next, effects := state.Apply(presto.EventConnected)
			return next, effects
		case presto.StatusReconnecting:
			// Buffer mic frames locally until the upstream link is back.
			capture.SetReady(false)
			return state, nil
		case presto.StatusDisconnected, presto.StatusError:
			capture.SetReady(false)
			next, effects := state.Apply(presto.EventFatalError)
			return next, effects
		}
		return state, nil
	case presto.SpeechStartedEvent:
		return state.Apply(presto.EventSpeechStarted)
	case presto.SpeechStoppedEvent:
		return state.Apply(presto.EventSpeechStopped)
	default:
		return state, nil
	}
}

// formatEvent renders a gateway event as a terminal line. The second return
// is false for events that print nothing, such as audio frames and
// non-final transcript deltas.
func formatEvent(ev presto.Event, debug bool) (string, bool) {
	switch e := ev.(type) {
	case presto.StatusEvent:
		if e.Detail != "" {
			return fmt.Sprintf("[status] %s: %s", e.Status, e.Detail), true
		}
		return fmt.Sprintf("[status] %s", e.Status), true
	case presto.SpeechStartedEvent:
		return "[mic] speech detected", debug
	case presto.SpeechStoppedEvent:
		return "[mic] speech ended", debug
	case presto.TranscriptEvent:
		if !e.Final {
			return "", false
		}
		return fmt.Sprintf("[%s] %s", e.Role, e.Text), true
	case presto.ToolResultEvent:
		return fmt.Sprintf("[tool] %s -> %s", e.Name, compactJSON(e.Result)), true
	case presto.ModeGeneratingEvent:
		if e.Industry == "" {
			return "[mode] switching...", true
		}
		return fmt.Sprintf("[mode] generating %s persona...", e.Industry), true
	case presto.ModeGeneratingCancelEvent:
		return "[mode] generation cancelled", true
	case presto.ModeSwitchEvent:
		return fmt.Sprintf("[mode] switched to %s", modeLabel(e.Mode)), true
	case presto.ErrorEvent:
		return fmt.Sprintf("[error] %s: %s", e.Code, e.Message), true
	case presto.AudioEvent:
		return "", false
	case presto.UnknownEvent:
		return fmt.Sprintf("[?] %s", e.Type), debug
	default:
		return "", false
	}
}

// modeLabel pulls a human-readable name out of a mode_switch payload.
func modeLabel(raw json.RawMessage) string {
	var mode struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		CompanyName string `json:"company_name"`
	}
	if err := json.Unmarshal(raw, &mode); err != nil {
		return "unknown"
	}
	switch {
	case mode.CompanyName != "":
		return mode.CompanyName
	case mode.Name != "":
		return mode.Name
	case mode.ID != "":
		return mode.ID
	}
	return "unknown"
}

func compactJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "{}"
	}
	var out bytes.Buffer
	if err := json.Compact(&out, raw); err != nil {
		return string(raw)
	}
	return out.String()
}

// readKeys forwards lowercased stdin lines as key commands. It exits when
// stdin closes or the session context is cancelled.
func readKeys(ctx context.Context, r io.Reader, keys chan<- string) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		key := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if key == "" {
			continue
		}
		select {
		case keys <- key:
		case <-ctx.Done():
			return
		}
	}
}

// openMic spawns the capture process and hands its stdout to the SDK as the
// frame source. Closing the returned reader kills the process.
func openMic(ctx context.Context, opt options) (io.ReadCloser, error) {
	cmd := micCommand(ctx, opt)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("mic stdout pipe: %w", err)
	}
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start mic capture: %w", err)
	}
	if opt.debug {
		fmt.Fprintf(os.Stderr, "[debug] mic command: %s\n", strings.Join(cmd.Args, " "))
	}
	return &processReader{ReadCloser: stdout, cmd: cmd}, nil
}

func micCommand(ctx context.Context, opt options) *exec.Cmd {
	if override := strings.TrimSpace(opt.micCmd); override != "" {
		return exec.CommandContext(ctx, "/bin/sh", "-c", override)
	}
	return exec.CommandContext(ctx, "ffmpeg", micArgs(runtime.GOOS, opt.micDevice)...)
}

// micArgs builds the ffmpeg invocation for the host platform. Every
// platform captures s16le mono at the gateway's native 24 kHz so neither
// side resamples.
func micArgs(goos string, device int) []string {
	args := []string{"-hide_banner", "-loglevel", "error"}
	switch goos {
	case "darwin":
		// none:<index> keeps ffmpeg away from the camera.
		args = append(args, "-f", "avfoundation", "-i", fmt.Sprintf("none:%d", device))
	case "linux":
		args = append(args, "-f", "pulse", "-i", "default")
	default:
		args = append(args, "-f", "alsa", "-i", "default")
	}
	return append(args,
		"-ac", "1",
		"-ar", fmt.Sprintf("%d", audio.DefaultFormat.SampleRateHz),
		"-f", "s16le",
		"-",
	)
}

// processReader is an io.ReadCloser over a child process's stdout whose
// Close also reaps the process.
type processReader struct {
	io.ReadCloser
	cmd *exec.Cmd
}

func (r *processReader) Close() error {
	err := r.ReadCloser.Close()
	if r.cmd.Process != nil {
		_ = r.cmd.Process.Kill()
	}
	_ = r.cmd.Wait()
	return err
}
