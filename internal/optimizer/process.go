package optimizer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/microgrid-sizing/backend/internal/logger"
	"github.com/microgrid-sizing/backend/internal/models"
)

const maxStderr = 8 << 10

// ProcessEngine runs an external optimizer command inside the run workspace.
// The request is written as JSON to a file outside the workspace and the
// command must write the result JSON to the path given by --result:
//
//	<command...> --mode single|multi --request <file> --result <file>
type ProcessEngine struct {
	command  []string
	plotFile string
	log      logger.Logger
}

// NewProcessEngine creates a ProcessEngine. plotFile, when absolute, is a file
// the tool writes outside the workspace; it is copied in after each run.
func NewProcessEngine(command []string, plotFile string, log logger.Logger) (*ProcessEngine, error) {
	if len(command) == 0 || strings.TrimSpace(command[0]) == "" {
		return nil, errors.New("optimizer command is empty")
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &ProcessEngine{command: command, plotFile: plotFile, log: log}, nil
}

func (e *ProcessEngine) Name() string { return "process" }

func (e *ProcessEngine) RunSingleYear(ctx context.Context, req *Request) (*Result, error) {
	return e.run(ctx, "single", req)
}

func (e *ProcessEngine) RunMultiYear(ctx context.Context, req *Request) (*Result, error) {
	return e.run(ctx, "multi", req)
}

func (e *ProcessEngine) run(ctx context.Context, mode string, req *Request) (*Result, error) {
	tmp, err := os.MkdirTemp("", "microgrid-call-*")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrOptimizerFailure, err)
	}
	defer os.RemoveAll(tmp)

	reqPath := filepath.Join(tmp, "request.json")
	resPath := filepath.Join(tmp, "result.json")

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%w: encoding request: %v", models.ErrOptimizerFailure, err)
	}
	if err := os.WriteFile(reqPath, body, 0600); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrOptimizerFailure, err)
	}

	args := append(append([]string{}, e.command[1:]...),
		"--mode", mode, "--request", reqPath, "--result", resPath)
	cmd := exec.CommandContext(ctx, e.command[0], args...)
	cmd.Dir = req.Workspace
	var stderr bytes.Buffer
	cmd.Stderr = &limitedWriter{w: &stderr, n: maxStderr}
	cmd.Stdout = io.Discard

	e.log.Infof("starting %s mode=%s dir=%s", e.command[0], mode, req.Workspace)
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s: %v: %s", models.ErrOptimizerFailure, filepath.Base(e.command[0]), err, msg)
	}

	data, err := os.ReadFile(resPath)
	if err != nil {
		return nil, fmt.Errorf("%w: no result written: %v", models.ErrOptimizerFailure, err)
	}
	res := &Result{}
	if err := json.Unmarshal(data, res); err != nil {
		return nil, fmt.Errorf("%w: decoding result: %v", models.ErrOptimizerFailure, err)
	}

	if err := e.collectPlot(req.Workspace); err != nil {
		e.log.Warnf("copying plot file: %v", err)
	}
	return res, nil
}

// A relative plot file is already written inside the workspace.
func (e *ProcessEngine) collectPlot(workspace string) error {
	if e.plotFile == "" || !filepath.IsAbs(e.plotFile) {
		return nil
	}
	src, err := os.Open(e.plotFile)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(filepath.Join(workspace, filepath.Base(e.plotFile)))
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

type limitedWriter struct {
	w io.Writer
	n int
}

func (l *limitedWriter) Write(p []byte) (int, error) {
	size := len(p)
	if l.n <= 0 {
		return size, nil
	}
	if len(p) > l.n {
		p = p[:l.n]
	}
	n, err := l.w.Write(p)
	l.n -= n
	if err != nil {
		return n, err
	}
	return size, nil
}
