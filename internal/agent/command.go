package agent

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"helix/internal/catalog"
)

// CommandHandler shells out to an external tool for its stage. The command
// line is split on whitespace; the entity is passed through environment
// variables so arbitrary tools can be wired without argument templating:
//
//	HELIX_ENTITY_ID, HELIX_ENTITY_KIND, HELIX_ENTITY_NAME,
//	HELIX_ENTITY_STATUS, HELIX_STAGE
//
// A non-zero exit reports an external tool failure; exceeding the timeout
// reports a timeout.
type CommandHandler struct {
	Stage   string
	Command string
	Timeout time.Duration
}

// NewCommandHandler builds a handler for a configured stage command.
func NewCommandHandler(stage, command string, timeout time.Duration) *CommandHandler {
	return &CommandHandler{Stage: stage, Command: strings.TrimSpace(command), Timeout: timeout}
}

func (h *CommandHandler) binary() (string, []string, error) {
	fields := strings.Fields(h.Command)
	if len(fields) == 0 {
		return "", nil, Wrap(ErrConfiguration, h.Stage, "command", "no command configured", nil)
	}
	return fields[0], fields[1:], nil
}

func (h *CommandHandler) Prepare(_ context.Context, _ *catalog.Entity) error {
	binary, _, err := h.binary()
	if err != nil {
		return err
	}
	if _, err := exec.LookPath(binary); err != nil {
		return Wrap(ErrConfiguration, h.Stage, "command", fmt.Sprintf("binary %q not found", binary), nil)
	}
	return nil
}

func (h *CommandHandler) Execute(ctx context.Context, entity *catalog.Entity) error {
	binary, args, err := h.binary()
	if err != nil {
		return err
	}

	runCtx := ctx
	if h.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, h.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, binary, args...) //nolint:gosec
	cmd.Env = append(os.Environ(),
		"HELIX_ENTITY_ID="+entity.ID,
		"HELIX_ENTITY_KIND="+string(entity.Kind),
		"HELIX_ENTITY_NAME="+entity.Name,
		"HELIX_ENTITY_STATUS="+string(entity.Status),
		"HELIX_STAGE="+h.Stage,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if runErr == nil {
		return nil
	}
	if runCtx.Err() == context.DeadlineExceeded {
		return Wrap(ErrTimeout, h.Stage, "command", fmt.Sprintf("%s exceeded %s", binary, h.Timeout), nil)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	detail := strings.TrimSpace(stderr.String())
	if detail == "" {
		detail = runErr.Error()
	}
	return Wrap(ErrExternalTool, h.Stage, "command", detail, nil)
}

func (h *CommandHandler) HealthCheck(context.Context) Health {
	binary, _, err := h.binary()
	if err != nil {
		return Unhealthy(h.Stage, "no command configured")
	}
	if _, err := exec.LookPath(binary); err != nil {
		return Unhealthy(h.Stage, fmt.Sprintf("binary %q not found", binary))
	}
	return Healthy(h.Stage)
}

// HandlersFromConfig registers a command handler for every stage named in
// the worker's command map. Map keys are "<kind>.<stage>" or a bare stage
// name applying to every lane with that stage.
func HandlersFromConfig(a *Agent, lanes []Lane, commands map[string]string, timeout time.Duration) {
	for _, lane := range lanes {
		for _, stage := range lane.Stages {
			command, ok := commands[string(lane.Kind)+"."+stage.Name]
			if !ok {
				command, ok = commands[stage.Name]
			}
			if !ok || strings.TrimSpace(command) == "" {
				continue
			}
			a.RegisterHandler(lane.Kind, stage.Name, NewCommandHandler(stage.Name, command, timeout))
		}
	}
}
