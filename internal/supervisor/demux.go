package supervisor

import (
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/sync/errgroup"

	"llamad/internal/diag"
)

const readChunk = 4096

// demux pumps the process pipes into the machine until both close, then reaps
// the process and terminates the session. It closes sess.done when finished.
func (s *Supervisor) demux(sess *session) {
	defer close(sess.done)
	proc := sess.proc

	var g errgroup.Group
	g.Go(func() error {
		return pump(proc.Stdout(), func(c string) { s.m.onStdout(sess.gen, c) })
	})
	g.Go(func() error {
		return pump(proc.Stderr(), func(c string) { s.m.onStderr(sess.gen, c) })
	})
	if err := g.Wait(); err != nil {
		s.log.Warn().Str("event", "pipe_error").Err(err).Send()
	}

	waitErr := proc.Wait()
	s.diag.Log(exitMessage(waitErr), diag.LevelError)
	s.log.Info().Str("event", "process_exit").Int("pid", proc.Pid()).AnErr("wait_err", waitErr).Send()
	s.pub.Publish(Event{Name: "terminated", Fields: map[string]any{"pid": proc.Pid()}})
	s.m.terminate(sess.gen)
}

// pump delivers raw reads from r to fn. Chunk boundaries are whatever the
// pipe hands back; nothing is line-buffered.
func pump(r io.Reader, fn func(string)) error {
	buf := make([]byte, readChunk)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			fn(string(buf[:n]))
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
				return nil
			}
			return err
		}
	}
}

func exitMessage(err error) string {
	if err == nil {
		return "Process exited with code 0"
	}
	var ee interface{ ExitCode() int }
	if errors.As(err, &ee) {
		return fmt.Sprintf("Process exited with code %d (%v)", ee.ExitCode(), err)
	}
	return fmt.Sprintf("Process exited: %v", err)
}
