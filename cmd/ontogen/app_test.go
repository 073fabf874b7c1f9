package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brunobiangulo/goontology"
	"github.com/brunobiangulo/goontology/llm"
	"github.com/brunobiangulo/goontology/ontology"
	"github.com/brunobiangulo/goontology/prompt"
)

// echoProvider answers with an ontology for the domain named in the prompt,
// and fails for domains containing "fail".
type echoProvider struct {
	mu     sync.Mutex
	calls  int
	numCtx int
}

func (p *echoProvider) Name() string { return "echo" }

func (p *echoProvider) Generate(_ context.Context, req llm.Request) (*llm.Response, error) {
	p.mu.Lock()
	p.calls++
	p.numCtx = req.NumCtx
	p.mu.Unlock()

	domain := "x"
	if i := strings.Index(req.Prompt, `"`); i >= 0 {
		if j := strings.Index(req.Prompt[i+1:], `"`); j >= 0 {
			domain = req.Prompt[i+1 : i+1+j]
		}
	}
	if strings.Contains(domain, "fail") {
		return nil, &llm.TransportError{Kind: llm.KindProcessFailure, Provider: "echo", Output: "boom"}
	}
	return &llm.Response{Content: `{"domain":"` + domain + `","relationships":[{"from":"A","relationship":"has","to":"B","category":"has"},{"from":"C","to":"D"}]}`}, nil
}

func testApp(p llm.Provider) *app {
	a := newApp()
	a.newEngine = func(cfg goontology.Config) (goontology.Engine, error) {
		return goontology.New(cfg, goontology.WithProvider(p))
	}
	return a
}

func execute(t *testing.T, a *app, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := a.rootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestGenerateToStdout(t *testing.T) {
	p := &echoProvider{}
	stdout, _, err := execute(t, testApp(p), "generate", "--no-cache", "--context", "8192", "Marine", "Biology")
	require.NoError(t, err)

	assert.Contains(t, stdout, `"domain": "Marine Biology"`)
	assert.Contains(t, stdout, `"from": "A"`)
	assert.Equal(t, 1, p.calls)
	assert.Equal(t, 8192, p.numCtx)
}

func TestGenerateConnectFlag(t *testing.T) {
	stdout, _, err := execute(t, testApp(&echoProvider{}), "generate", "--no-cache", "--connect", "Pets")
	require.NoError(t, err)
	assert.Contains(t, stdout, `"relationship": "relates to"`)
}

func TestGenerateFailurePrintsErrorJSON(t *testing.T) {
	stdout, _, err := execute(t, testApp(&echoProvider{}), "generate", "--no-cache", "fail here")
	assert.ErrorIs(t, err, errReported)
	assert.Contains(t, stdout, `"errorKind":"ProcessFailure"`)
	assert.Contains(t, stdout, `"message":`)
}

func TestGenerateXLSXFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "pets.xlsx")
	_, stderr, err := execute(t, testApp(&echoProvider{}), "generate", "--no-cache", "--format", "xlsx", "--output", out, "Pets")
	require.NoError(t, err)
	assert.Contains(t, stderr, "Pets: 2 relationships, 4 entities")

	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestGenerateFlagValidation(t *testing.T) {
	a := testApp(&echoProvider{})

	_, _, err := execute(t, a, "generate", "--no-cache", "--format", "pdf", "Pets")
	assert.ErrorContains(t, err, "unsupported format")

	_, _, err = execute(t, a, "generate", "--no-cache", "--format", "xlsx", "Pets")
	assert.ErrorContains(t, err, "requires --output")

	_, _, err = execute(t, a, "generate")
	assert.Error(t, err)
}

func TestBatch(t *testing.T) {
	dir := t.TempDir()
	list := filepath.Join(dir, "domains.txt")
	require.NoError(t, os.WriteFile(list, []byte("# domains\nPets\n\nfail domain\nHigher Education\n"), 0644))
	outDir := filepath.Join(dir, "out")

	p := &echoProvider{}
	stdout, _, err := execute(t, testApp(p), "batch", "--no-cache", "-o", outDir, list)
	assert.ErrorIs(t, err, errReported)
	assert.Equal(t, 3, p.calls)

	assert.Contains(t, stdout, "[1/3] Pets: 2 relationships")
	assert.Contains(t, stdout, "[2/3] fail domain: ProcessFailure")
	assert.Contains(t, stdout, "1 of 3 domains failed")

	assert.FileExists(t, filepath.Join(outDir, "pets.json"))
	assert.FileExists(t, filepath.Join(outDir, "higher-education.json"))
	assert.NoFileExists(t, filepath.Join(outDir, "fail-domain.json"))
}

func TestBatchEmptyFile(t *testing.T) {
	list := filepath.Join(t.TempDir(), "empty.txt")
	require.NoError(t, os.WriteFile(list, []byte("# nothing\n"), 0644))

	_, _, err := execute(t, testApp(&echoProvider{}), "batch", "--no-cache", list)
	assert.ErrorContains(t, err, "no domains")
}

func TestVersion(t *testing.T) {
	stdout, _, err := execute(t, testApp(&echoProvider{}), "version")
	require.NoError(t, err)
	assert.Contains(t, stdout, "ontogen version "+Version)
	assert.Contains(t, stdout, prompt.TemplateVersion)
}

func TestConfigFlag(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("generator:\n  num_ctx: 1024\ncache:\n  enabled: false\n"), 0644))

	p := &echoProvider{}
	_, _, err := execute(t, testApp(p), "generate", "--config", path, "Pets")
	require.NoError(t, err)
	assert.Equal(t, 1024, p.numCtx)

	_, _, err = execute(t, testApp(p), "generate", "--config", filepath.Join(t.TempDir(), "missing.yaml"), "Pets")
	assert.Error(t, err)
}

func TestWriteFileUnsupportedFormat(t *testing.T) {
	err := writeFile(filepath.Join(t.TempDir(), "x.pdf"), ontology.New("x"), "pdf")
	assert.ErrorContains(t, err, "unsupported format")
}
