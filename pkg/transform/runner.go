// Package transform triggers the downstream transformation run for a dataset
package transform

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/ethpandaops/mirror/pkg/rendering"
	"github.com/sirupsen/logrus"
)

// Static errors for the transform trigger
var (
	// ErrTransformFailed is returned when the transformation tool exits unsuccessfully
	ErrTransformFailed = errors.New("transform failed")
	// ErrInvalidDataset is returned for dataset names outside the allowed character set
	ErrInvalidDataset = errors.New("invalid dataset name")
)

const runDateLayout = "2006-01-02"

//nolint:gochecknoglobals // Compiled once
var datasetPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Runner triggers a transformation run
type Runner interface {
	Run(ctx context.Context, dataset string, runDate time.Time) error
}

// Error carries the exit code and output of a failed command
type Error struct {
	Command  string
	ExitCode int
	Output   string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s exited with code %d: %v", e.Command, e.ExitCode, e.Err)
}

// Is lets errors.Is match ErrTransformFailed
func (e *Error) Is(target error) bool {
	return target == ErrTransformFailed
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ExecRunner runs the transformation tool as a child process with an argument
// list. No shell is involved.
type ExecRunner struct {
	log    logrus.FieldLogger
	cfg    *Config
	engine *rendering.TemplateEngine
}

// NewExecRunner creates a runner from configuration
func NewExecRunner(log logrus.FieldLogger, cfg *Config) *ExecRunner {
	return &ExecRunner{
		log:    log.WithField("component", "transform"),
		cfg:    cfg,
		engine: rendering.NewTemplateEngine(),
	}
}

// ValidateDataset checks a dataset name against the allowed character set
func ValidateDataset(dataset string) error {
	if !datasetPattern.MatchString(dataset) {
		return fmt.Errorf("%w: %q", ErrInvalidDataset, dataset)
	}

	return nil
}

// BuildArgs returns the full argument list for a transformation run
func (r *ExecRunner) BuildArgs(dataset string, runDate time.Time) ([]string, error) {
	if err := ValidateDataset(dataset); err != nil {
		return nil, err
	}

	vars, err := json.Marshal(map[string]string{"run_date": runDate.UTC().Format(runDateLayout)})
	if err != nil {
		return nil, err
	}

	args := make([]string, 0, len(r.cfg.Args)+5)
	args = append(args, r.cfg.Args...)
	args = append(args, "run", "--select", "tag:"+dataset, "--vars", string(vars))

	return args, nil
}

// BuildPrepareArgs renders the prepare arguments for a run
func (r *ExecRunner) BuildPrepareArgs(dataset string, runDate time.Time) ([]string, error) {
	if err := ValidateDataset(dataset); err != nil {
		return nil, err
	}

	formatted := runDate.UTC().Format(runDateLayout)
	vars := rendering.BuildVariables(dataset, formatted, runDate)

	args := make([]string, 0, len(r.cfg.PrepareArgs))

	for i, arg := range r.cfg.PrepareArgs {
		rendered, err := r.engine.Render(fmt.Sprintf("prepare_arg_%d", i), arg, vars)
		if err != nil {
			return nil, err
		}

		args = append(args, rendered)
	}

	return args, nil
}

// Run executes the optional prepare command and then the transformation
func (r *ExecRunner) Run(ctx context.Context, dataset string, runDate time.Time) error {
	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	if r.cfg.PrepareCommand != "" {
		args, err := r.BuildPrepareArgs(dataset, runDate)
		if err != nil {
			return err
		}

		if err := r.exec(ctx, dataset, r.cfg.PrepareCommand, args); err != nil {
			return err
		}
	}

	args, err := r.BuildArgs(dataset, runDate)
	if err != nil {
		return err
	}

	return r.exec(ctx, dataset, r.cfg.Command, args)
}

func (r *ExecRunner) exec(ctx context.Context, dataset, command string, args []string) error {
	log := r.log.WithFields(logrus.Fields{
		"dataset": dataset,
		"command": command,
		"args":    args,
	})

	log.Info("Executing command")

	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Dir = r.cfg.ProjectDir

	if len(r.cfg.Env) > 0 {
		cmd.Env = os.Environ()
		for k, v := range r.cfg.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
	}

	var output bytes.Buffer

	cmd.Stdout = &output
	cmd.Stderr = &output

	start := time.Now()
	err := cmd.Run()

	logOutput(log, output.String())

	if err != nil {
		exitCode := -1

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}

		log.WithError(err).WithField("exit_code", exitCode).Error("Command failed")

		return &Error{
			Command:  command,
			ExitCode: exitCode,
			Output:   output.String(),
			Err:      err,
		}
	}

	log.WithField("duration", time.Since(start)).Info("Command completed")

	return nil
}

func logOutput(log logrus.FieldLogger, output string) {
	scanner := bufio.NewScanner(strings.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			log.Info(line)
		}
	}
}

// NoopRunner is used when transformation is disabled
type NoopRunner struct{}

// Run implements Runner
func (NoopRunner) Run(context.Context, string, time.Time) error {
	return nil
}
