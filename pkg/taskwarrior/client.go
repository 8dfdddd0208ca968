package taskwarrior

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"slices"
)

// Runner executes the task binary with args, feeding it stdin when non-nil.
type Runner func(ctx context.Context, stdin io.Reader, args ...string) ([]byte, error)

type Client struct {
	run Runner
}

func NewClient() *Client {
	return &Client{run: execRunner}
}

// NewClientWithRunner lets callers replace the task binary, e.g. in tests.
func NewClientWithRunner(r Runner) *Client {
	return &Client{run: r}
}

func execRunner(ctx context.Context, stdin io.Reader, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "task", args...)
	cmd.Stdin = stdin

	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("taskwarrior command failed: exit code %d, %s, stderr: %s",
				exitErr.ExitCode(), err, exitErr.Stderr)
		}
		return nil, fmt.Errorf("taskwarrior command failed: %w", err)
	}
	return output, nil
}

// GetTasks exports all tasks matching filter.
func (c *Client) GetTasks(ctx context.Context, filter []string) ([]Task, error) {
	args := append(slices.Clone(filter), "export", "rc.hooks=0")
	output, err := c.run(ctx, nil, args...)
	if err != nil {
		return nil, err
	}

	var tasks []Task
	if err := json.Unmarshal(output, &tasks); err != nil {
		return nil, fmt.Errorf("failed to unmarshal taskwarrior output: %w", err)
	}
	return tasks, nil
}

// Import creates or replaces the task with task.UUID.
func (c *Client) Import(ctx context.Context, task Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to encode task %s: %w", task.UUID, err)
	}
	_, err = c.run(ctx, bytes.NewReader(data), "rc.hooks=0", "import")
	return err
}

// Modify applies modifications such as "due:2024-01-31" to one task.
func (c *Client) Modify(ctx context.Context, uuid string, mods ...string) error {
	args := append([]string{"rc.hooks=0", "rc.confirmation=off", uuid, "modify"}, mods...)
	_, err := c.run(ctx, nil, args...)
	return err
}

// Done marks one task completed.
func (c *Client) Done(ctx context.Context, uuid string) error {
	_, err := c.run(ctx, nil, "rc.hooks=0", "rc.confirmation=off", uuid, "done")
	return err
}
