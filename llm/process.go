package llm

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// processWaitDelay bounds how long Wait blocks on output pipes after the
// process has been killed.
const processWaitDelay = 2 * time.Second

// processProvider runs a local command per call. The prompt goes to stdin,
// or as the final argument when PromptArg is set; stdout is the output.
// The model, system prompt and context size are passed through the
// environment as ONTOLOGY_MODEL, ONTOLOGY_SYSTEM and ONTOLOGY_NUM_CTX.
type processProvider struct {
	cfg Config
}

// NewProcess creates a provider that invokes cfg.Command.
func NewProcess(cfg Config) Provider {
	return &processProvider{cfg: cfg}
}

func (p *processProvider) Name() string { return "process" }

func (p *processProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	ctx, cancel := boundContext(ctx, req.Timeout)
	defer cancel()

	model := req.Model
	if model == "" {
		model = p.cfg.Model
	}

	args := append([]string(nil), p.cfg.Args...)
	if p.cfg.PromptArg {
		args = append(args, req.Prompt)
	}

	cmd := exec.CommandContext(ctx, p.cfg.Command, args...)
	if !p.cfg.PromptArg {
		cmd.Stdin = strings.NewReader(req.Prompt)
	}
	cmd.Env = append(os.Environ(),
		"ONTOLOGY_MODEL="+model,
		"ONTOLOGY_SYSTEM="+req.System,
		"ONTOLOGY_NUM_CTX="+strconv.Itoa(req.NumCtx),
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = processWaitDelay
	killGroup(cmd)

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if err != nil {
		output := strings.TrimSpace(stderr.String())
		if output == "" {
			output = strings.TrimSpace(stdout.String())
		}
		return nil, transportError(ctx, p.Name(), fmt.Errorf("%s: %w", p.cfg.Command, err), output)
	}
	if strings.TrimSpace(stdout.String()) == "" {
		return nil, &TransportError{Kind: KindProcessFailure, Provider: p.Name(),
			Output: strings.TrimSpace(stderr.String()), Err: errEmptyOutput}
	}

	return &Response{
		Content: stdout.String(),
		Model:   model,
		Elapsed: elapsed,
	}, nil
}

// Ping checks that the command resolves on PATH.
func (p *processProvider) Ping(ctx context.Context) error {
	if _, err := exec.LookPath(p.cfg.Command); err != nil {
		return &TransportError{Kind: KindProcessFailure, Provider: p.Name(), Err: err}
	}
	return nil
}
