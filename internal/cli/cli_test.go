package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/soyeahso/chainkit/internal/chain"
	"github.com/soyeahso/chainkit/internal/config"
	"github.com/soyeahso/chainkit/internal/version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCLI executes the root command with an isolated CHAINKIT_HOME.
func runCLI(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--log-level", "silent"}, args...))
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

func setupHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("CHAINKIT_HOME", home)
	t.Setenv("ANTHROPIC_API_KEY", "")
	return home
}

// fakeOllama answers /api/chat with the given bodies in order, repeating the last.
func fakeOllama(t *testing.T, replies ...string) (*httptest.Server, *[]map[string]any) {
	t.Helper()
	var n atomic.Int32
	var requests []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		var body map[string]any
		assert.NoError(t, json.Unmarshal(raw, &body))
		requests = append(requests, body)

		i := int(n.Add(1)) - 1
		if i >= len(replies) {
			i = len(replies) - 1
		}
		fmt.Fprint(w, replies[i])
	}))
	t.Cleanup(srv.Close)
	t.Setenv("CHAINKIT_OLLAMA_URL", srv.URL)
	return srv, &requests
}

const (
	addCallReply = `{"model":"llama3","message":{"role":"assistant","content":"","tool_calls":[{"function":{"name":"calculator","arguments":{"operation":"add","a":2,"b":3}}}]},"done":true}`
	answerReply  = `{"model":"llama3","message":{"role":"assistant","content":"2 + 3 = 5"},"done":true,"prompt_eval_count":20,"eval_count":6}`
)

func TestVersionCmd(t *testing.T) {
	setupHome(t)
	out, _, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "chainkit")

	out, _, err = runCLI(t, "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, version.Version+"\n", out)
}

func TestConfigSetGetUnset(t *testing.T) {
	home := setupHome(t)

	out, _, err := runCLI(t, "config", "set", "tools.maxConcurrency", "4")
	require.NoError(t, err)
	assert.Equal(t, "Set tools.maxConcurrency = 4\n", out)

	out, _, err = runCLI(t, "config", "get", "tools.maxConcurrency")
	require.NoError(t, err)
	assert.Equal(t, "4\n", out)

	out, _, err = runCLI(t, "config", "get", "tools")
	require.NoError(t, err)
	assert.Equal(t, "maxConcurrency: 4\n", out)

	_, _, err = runCLI(t, "config", "unset", "tools.maxConcurrency")
	require.NoError(t, err)

	_, _, err = runCLI(t, "config", "get", "tools.maxConcurrency")
	assert.EqualError(t, err, `key "tools.maxConcurrency" not found`)

	_, _, err = runCLI(t, "config", "set", "modle", "ollama:x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown config section")

	out, _, err = runCLI(t, "config", "path")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "config.yaml")+"\n", out)
}

func TestConfigValidate(t *testing.T) {
	setupHome(t)

	out, _, err := runCLI(t, "config", "validate")
	require.NoError(t, err)
	assert.Equal(t, "Config OK\n", out)

	_, _, err = runCLI(t, "config", "set", "model", "llama3")
	require.NoError(t, err)

	out, _, err = runCLI(t, "config", "validate")
	require.Error(t, err)
	assert.Contains(t, out, "model: must be provider:model")
}

func TestConfigFlagOverridesPath(t *testing.T) {
	setupHome(t)
	custom := filepath.Join(t.TempDir(), "other.yaml")
	require.NoError(t, os.WriteFile(custom, []byte("model: ollama:mistral\n"), 0o600))

	out, _, err := runCLI(t, "--config", custom, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Model:   ollama:mistral")
}

func TestStatusCmd(t *testing.T) {
	setupHome(t)
	_, _, err := runCLI(t, "config", "set", "aliases.local", "ollama")
	require.NoError(t, err)

	out, _, err := runCLI(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Model:   ollama:llama3.1 (max iterations 10)")
	assert.Contains(t, out, "LLM:     ollama")
	assert.Contains(t, out, "Aliases: local→ollama")
	assert.Contains(t, out, "Tools:   (none) [sequential]")
	assert.NotContains(t, out, "Validation issues")
}

func TestToolsList(t *testing.T) {
	home := setupHome(t)
	yaml := "tools:\n  enabled: [calculator]\n"
	require.NoError(t, os.WriteFile(filepath.Join(home, "config.yaml"), []byte(yaml), 0o600))

	out, _, err := runCLI(t, "tools", "list")
	require.NoError(t, err)
	for _, name := range []string{"calculator", "current_time", "context_value", "word_count"} {
		assert.Contains(t, out, name)
	}
	assert.Equal(t, 1, strings.Count(out, "(enabled)"))
}

func TestToolsInfo(t *testing.T) {
	setupHome(t)

	out, _, err := runCLI(t, "tools", "info", "calculator")
	require.NoError(t, err)
	assert.Contains(t, out, "Name:        calculator")
	assert.Contains(t, out, `"operation"`)

	_, _, err = runCLI(t, "tools", "info", "teleport")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "available:")
}

func TestRunCmd_ToolLoop(t *testing.T) {
	setupHome(t)
	_, requests := fakeOllama(t, addCallReply, answerReply)

	out, errOut, err := runCLI(t, "run", "--tools", "calculator", "--system", "Be brief.", "what", "is", "2+3?")
	require.NoError(t, err)
	assert.Equal(t, "2 + 3 = 5\n", out)
	assert.Contains(t, errOut, "calculator [ok]")
	assert.Contains(t, errOut, "[model=llama3 tokens=20+6]")

	require.Len(t, *requests, 2)
	first := (*requests)[0]
	assert.Equal(t, "llama3.1", first["model"])
	assert.Len(t, first["tools"], 1)

	msgs := (*requests)[1]["messages"].([]any)
	require.Len(t, msgs, 4)
	assert.Equal(t, "Be brief.", msgs[0].(map[string]any)["content"])
	assert.Equal(t, "what is 2+3?", msgs[1].(map[string]any)["content"])
	toolMsg := msgs[3].(map[string]any)
	assert.Equal(t, "tool", toolMsg["role"])
	assert.JSONEq(t, `{"result":5}`, toolMsg["content"].(string))
}

func TestRunCmd_QuietAndModelFlag(t *testing.T) {
	setupHome(t)
	_, requests := fakeOllama(t, answerReply)

	_, errOut, err := runCLI(t, "run", "-q", "--model", "ollama:qwen2.5:7b", "--temperature", "0.3", "hi")
	require.NoError(t, err)
	assert.NotContains(t, errOut, "⚙")

	req := (*requests)[0]
	assert.Equal(t, "qwen2.5:7b", req["model"])
	assert.Equal(t, 0.3, req["options"].(map[string]any)["temperature"])
	assert.Nil(t, req["tools"])
}

func TestRunCmd_BudgetExhausted(t *testing.T) {
	setupHome(t)
	_, requests := fakeOllama(t, addCallReply)

	_, errOut, err := runCLI(t, "run", "--tools", "calculator", "--max-iterations", "2", "loop forever")
	require.Error(t, err)
	assert.ErrorIs(t, err, chain.ErrBudgetExhausted)
	assert.Len(t, *requests, 2)
	assert.Contains(t, errOut, "--- partial transcript ---")
	assert.Contains(t, errOut, "[USER] loop forever")
}

func TestRunCmd_UnknownProvider(t *testing.T) {
	setupHome(t)
	_, _, err := runCLI(t, "run", "--model", "openai:gpt-4o", "hi")
	require.Error(t, err)
	assert.ErrorIs(t, err, chain.ErrInvalidModelSpec)
}

func TestRunCmd_Stream(t *testing.T) {
	setupHome(t)
	fakeOllama(t, strings.Join([]string{
		`{"model":"llama3","message":{"role":"assistant","content":"Hel"},"done":false}`,
		`{"model":"llama3","message":{"role":"assistant","content":"lo"},"done":false}`,
		`{"model":"llama3","message":{"role":"assistant","content":""},"done":true,"eval_count":2}`,
	}, "\n"))

	out, _, err := runCLI(t, "run", "--stream", "-q", "--save", "say hello")
	require.NoError(t, err)
	assert.Equal(t, "Hello\n", out)

	files, err := filepath.Glob(filepath.Join(os.Getenv("CHAINKIT_HOME"), "transcripts", "run-*.txt"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Equal(t, "[USER] say hello\n\n[ASSISTANT] Hello\n", string(data))
}

func TestRunCmd_StreamFromConfig(t *testing.T) {
	home := setupHome(t)
	require.NoError(t, os.WriteFile(filepath.Join(home, "config.yaml"), []byte("call:\n  stream: true\n"), 0o600))
	_, requests := fakeOllama(t, strings.Join([]string{
		`{"model":"llama3","message":{"role":"assistant","content":"Hi"},"done":false}`,
		`{"model":"llama3","message":{"role":"assistant","content":""},"done":true}`,
	}, "\n"))

	out, _, err := runCLI(t, "run", "-q", "hello")
	require.NoError(t, err)
	assert.Equal(t, "Hi\n", out)
	require.Len(t, *requests, 1)
	assert.Equal(t, true, (*requests)[0]["stream"])

	_, requests = fakeOllama(t, answerReply)
	out, _, err = runCLI(t, "run", "-q", "--stream=false", "hello")
	require.NoError(t, err)
	assert.Equal(t, "2 + 3 = 5\n", out)
	assert.Equal(t, false, (*requests)[0]["stream"])
}

func TestRunCmd_ExplicitToolsOverrideConfigStream(t *testing.T) {
	home := setupHome(t)
	require.NoError(t, os.WriteFile(filepath.Join(home, "config.yaml"), []byte("call:\n  stream: true\n"), 0o600))
	_, requests := fakeOllama(t, addCallReply, answerReply)

	out, _, err := runCLI(t, "run", "-q", "--tools", "calculator", "what is 2+3?")
	require.NoError(t, err)
	assert.Equal(t, "2 + 3 = 5\n", out)
	require.Len(t, *requests, 2)
	assert.Equal(t, false, (*requests)[0]["stream"])
}

func TestRunCmd_StreamRejectsTools(t *testing.T) {
	setupHome(t)
	_, _, err := runCLI(t, "run", "--stream", "--tools", "calculator", "hi")
	assert.EqualError(t, err, "--stream cannot be combined with --tools")
}

func TestRunCmd_ContextReachesTools(t *testing.T) {
	setupHome(t)
	_, requests := fakeOllama(t,
		`{"message":{"role":"assistant","content":"","tool_calls":[{"function":{"name":"context_value","arguments":{"key":"user_id"}}}]},"done":true}`,
		answerReply,
	)

	_, _, err := runCLI(t, "run", "--tools", "context_value", "--context", "user_id=42", "who am I?")
	require.NoError(t, err)

	msgs := (*requests)[1]["messages"].([]any)
	toolMsg := msgs[len(msgs)-1].(map[string]any)
	assert.JSONEq(t, `{"key":"user_id","value":42}`, toolMsg["content"].(string))
	for _, m := range msgs {
		assert.NotContains(t, m.(map[string]any)["content"], "_context")
	}
}

func TestParseContextPairs(t *testing.T) {
	got, err := parseContextPairs([]string{"user_id=42", "tz=Asia/Tokyo", "debug=true", "expr=a=b", "empty="})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"user_id": 42,
		"tz":      "Asia/Tokyo",
		"debug":   true,
		"expr":    "a=b",
		"empty":   "",
	}, got)

	for _, bad := range []string{"novalue", "=x", " =x"} {
		_, err := parseContextPairs([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"true", true},
		{"FALSE", false},
		{"12", 12},
		{"-3", -3},
		{"0.25", 0.25},
		{"1e3", 1000.0},
		{"12abc", "12abc"},
		{"ollama:llama3", "ollama:llama3"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseValue(tt.in))
		})
	}
}

func TestNewExecutor(t *testing.T) {
	cfg := config.Defaults()
	assert.Equal(t, chain.SequentialExecutor{}, newExecutor(cfg, false))
	assert.Equal(t, chain.ParallelExecutor{}, newExecutor(cfg, true))

	cfg.Tools.Parallel = true
	cfg.Tools.MaxConcurrency = 2
	assert.Equal(t, chain.ParallelExecutor{MaxConcurrency: 2}, newExecutor(cfg, false))
}

func TestNewRegistry_Anthropic(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	cfg := config.Defaults()
	assert.Equal(t, []string{"ollama"}, newRegistry(cfg, nil).List())

	cfg.Providers.Anthropic.APIKey = "sk-test"
	reg := newRegistry(cfg, nil)
	assert.Equal(t, []string{"anthropic", "ollama"}, reg.List())

	m, err := reg.Resolve("anthropic:claude-sonnet-4-5")
	require.NoError(t, err)
	assert.Equal(t, "anthropic", m.Client.Name())
	assert.Equal(t, "claude-sonnet-4-5", m.Name)

	t.Setenv("ANTHROPIC_API_KEY", "sk-env")
	assert.Equal(t, []string{"anthropic", "ollama"}, newRegistry(config.Defaults(), nil).List())
}

func TestNewRegistry_Aliases(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	cfg := config.Defaults()
	cfg.Aliases = map[string]string{"local": "ollama"}
	reg := newRegistry(cfg, nil)

	m, err := reg.Resolve("local:llama3")
	require.NoError(t, err)
	assert.Equal(t, "ollama", m.Client.Name())
	assert.Equal(t, []string{"ollama"}, reg.List())
}
