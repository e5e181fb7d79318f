package main

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/prestolabs/presto/pkg/core/audio"
)

type ffplayConfig struct {
	path     string
	logLevel string
	volume   int
	format   audio.Format
}

// ffplaySink plays PCM frames by piping them to an ffplay child process.
// ffplay drains its stdin at the device rate, so frames queue inside the
// pipe in the order the scheduler hands them over and the start time needs
// no handling here. Stop implements the hard interrupt by killing the
// process, which throws away everything ffplay had buffered; the next Play
// spawns a fresh one.
type ffplaySink struct {
	cfg ffplayConfig

	runningMu sync.Mutex
	cmd       *exec.Cmd
	stdin     io.WriteCloser
}

func newFFPlaySink(cfg ffplayConfig) *ffplaySink {
	if cfg.path == "" {
		cfg.path = "ffplay"
	}
	if cfg.logLevel == "" {
		cfg.logLevel = "error"
	}
	if cfg.format.SampleRateHz == 0 {
		cfg.format = audio.DefaultFormat
	}
	return &ffplaySink{cfg: cfg}
}

func (s *ffplaySink) Play(frame []byte, _ time.Time) error {
	if len(frame) == 0 {
		return nil
	}
	s.runningMu.Lock()
	defer s.runningMu.Unlock()
	if err := s.startLocked(); err != nil {
		return err
	}
	if _, err := s.stdin.Write(frame); err != nil {
		return fmt.Errorf("write to ffplay: %w", err)
	}
	return nil
}

func (s *ffplaySink) Stop() error {
	s.runningMu.Lock()
	defer s.runningMu.Unlock()
	s.closeLocked()
	return nil
}

func (s *ffplaySink) startLocked() error {
	if s.cmd != nil && s.cmd.Process != nil {
		return nil
	}

	chLayout := "mono"
	if s.cfg.format.Channels == 2 {
		chLayout = "stereo"
	}
	// ffplay does not accept -ac for raw input; the channel count rides in
	// -ch_layout instead.
	args := []string{
		"-hide_banner",
		"-loglevel", s.cfg.logLevel,
		"-nostats",
		"-volume", strconv.Itoa(s.cfg.volume),
		"-nodisp",
		"-f", "s16le",
		"-ch_layout", chLayout,
		"-ar", strconv.Itoa(s.cfg.format.SampleRateHz),
		"-i", "-",
	}
	cmd := exec.Command(s.cfg.path, args...)
	if runtime.GOOS == "darwin" && os.Getenv("SDL_AUDIODRIVER") == "" {
		// SDL sometimes picks a silent dummy backend on macOS.
		cmd.Env = append(os.Environ(), "SDL_AUDIODRIVER=coreaudio")
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("ffplay stdin pipe: %w", err)
	}
	cmd.Stdout = io.Discard
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		return fmt.Errorf("start ffplay: %w", err)
	}
	s.cmd = cmd
	s.stdin = stdin
	go func(c *exec.Cmd) {
		_ = c.Wait()
		s.runningMu.Lock()
		if s.cmd == c {
			s.cmd = nil
			s.stdin = nil
		}
		s.runningMu.Unlock()
	}(cmd)
	return nil
}

func (s *ffplaySink) closeLocked() {
	if s.stdin != nil {
		_ = s.stdin.Close()
	}
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	s.cmd = nil
	s.stdin = nil
}

// nullSink discards audio for -no-speaker runs.
type nullSink struct{}

func (nullSink) Play([]byte, time.Time) error { return nil }
func (nullSink) Stop() error                  { return nil }
