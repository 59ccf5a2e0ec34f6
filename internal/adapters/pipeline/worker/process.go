package worker

import (
	"bufio"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	perr "penwatch/internal/platform/errors"
	"penwatch/internal/platform/logger"
)

// startProcess spawns the child with piped stdio
func startProcess(cfg Config, log *logger.Logger) (*pipe, error) {
	cmd := exec.Command(cfg.Command, cfg.Args...)
	cmd.Dir = cfg.Dir
	if len(cfg.Env) > 0 {
		cmd.Env = append(os.Environ(), cfg.Env...)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "worker stdin pipe")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "worker stdout pipe")
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "worker stderr pipe")
	}
	if err := cmd.Start(); err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "start %s", cfg.Command)
	}

	pid := cmd.Process.Pid
	exited := make(chan struct{})
	go logStderr(stderr, log.With().Int("pid", pid).Logger())
	go func() {
		err := cmd.Wait()
		close(exited)
		if err != nil {
			log.Warn().Err(err).Int("pid", pid).Msg("analysis worker exited")
			return
		}
		log.Info().Int("pid", pid).Msg("analysis worker exited")
	}()

	stop := func() error {
		_ = stdin.Close()
		select {
		case <-exited:
			return nil
		case <-time.After(cfg.StopGrace):
		}
		if err := cmd.Process.Kill(); err != nil {
			return err
		}
		<-exited
		return nil
	}

	return &pipe{in: stdin, out: stdout, pid: pid, stop: stop}, nil
}

// logStderr forwards child log lines, mapping python level tags
func logStderr(r io.Reader, l logger.Logger) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), 64*1024)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.Contains(line, "[ERROR]"), strings.Contains(line, "[CRITICAL]"), strings.Contains(line, "Traceback"):
			l.Error().Str("line", line).Msg("worker stderr")
		case strings.Contains(line, "[WARNING]"), strings.Contains(line, "[WARN]"):
			l.Warn().Str("line", line).Msg("worker stderr")
		default:
			l.Debug().Str("line", line).Msg("worker stderr")
		}
	}
}
