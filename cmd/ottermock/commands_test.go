package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestMatchCommand_Topic(t *testing.T) {
	out, err := execute(t, "match", "--kind", "topic",
		"--binding", "queue.*.sub.*",
		"--binding", "queue.category.second",
		"--key", "queue.category.sub.first")

	require.NoError(t, err)
	assert.Contains(t, out, `match    topic binding "queue.*.sub.*"`)
	assert.Contains(t, out, `no-match topic binding "queue.category.second"`)
	assert.Contains(t, out, "1 of 2 binding(s) matched")
}

func TestMatchCommand_Headers(t *testing.T) {
	out, err := execute(t, "match", "--kind", "headers",
		"--arg", "x-match=any", "--arg", "format=pdf", "--arg", "type=log",
		"--header", "format=pdf")

	require.NoError(t, err)
	assert.Contains(t, out, "match    headers binding")
	assert.Contains(t, out, "1 of 1 binding(s) matched")
}

func TestMatchCommand_Errors(t *testing.T) {
	_, err := execute(t, "match", "--kind", "ring")
	assert.ErrorContains(t, err, "invalid exchange kind")

	_, err = execute(t, "match", "--kind", "headers", "--arg", "x-match=some")
	assert.ErrorContains(t, err, "invalid x-match")
}

const scenario = `
exchanges:
  - name: jobs
    type: direct
queues:
  - name: work
queue_bindings:
  - queue: work
    exchange: jobs
    routing_key: work
publish:
  - exchange: jobs
    routing_key: work
    body: hello
    count: 2
  - exchange: jobs
    routing_key: nowhere
    body: bounced
    mandatory: true
`

func writeScenario(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(scenario), 0o644))
	return path
}

func TestRunCommand(t *testing.T) {
	out, err := execute(t, "run", writeScenario(t))

	require.NoError(t, err)
	assert.Contains(t, out, "work:")
	assert.Contains(t, out, "messages: 2")
	assert.Contains(t, out, "- hello")
	assert.Contains(t, out, "routing_key: nowhere")
	assert.NotContains(t, out, "# TYPE")
}

func TestRunCommand_WithMetrics(t *testing.T) {
	t.Setenv("OTTERMOCK_METRICS_NAMESPACE", "ottermock")

	out, err := execute(t, "run", "--metrics", writeScenario(t))

	require.NoError(t, err)
	assert.Contains(t, out, `ottermock_queue_published_total{queue="work"} 2`)
	assert.Contains(t, out, `ottermock_exchange_returned_total{exchange="jobs"} 1`)
}

func TestRunCommand_WithOverview(t *testing.T) {
	out, err := execute(t, "run", "--overview", writeScenario(t))

	require.NoError(t, err)
	assert.Contains(t, out, "overview:")
	assert.Contains(t, out, "status: connected")
	assert.Contains(t, out, "channels: 1")
	assert.Contains(t, out, "exchanges: 6")
	assert.Contains(t, out, "messages_ready: 2")
}

const popScenario = `
queues:
  - name: jobs
publish:
  - exchange: ""
    routing_key: jobs
    body: job
pops:
  - queue: jobs
`

func TestRunCommand_LegacyPopChangesPopShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pops.yaml")
	require.NoError(t, os.WriteFile(path, []byte(popScenario), 0o644))

	tracked, err := execute(t, "run", path)
	require.NoError(t, err)
	legacy, err := execute(t, "run", "--legacy-pop", path)
	require.NoError(t, err)

	assert.Contains(t, tracked, "delivery_tag: 1")
	assert.Contains(t, legacy, "delivery_tag: 0")
	assert.NotEqual(t, tracked, legacy)
}

func TestRunCommand_Errors(t *testing.T) {
	_, err := execute(t, "run")
	assert.Error(t, err)

	_, err = execute(t, "run", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to open topology file")
}
