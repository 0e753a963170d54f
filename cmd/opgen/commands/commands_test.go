package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pterm/pterm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/opgen/am"
	"github.com/teranos/opgen/errors"
)

const testManifest = `
package: example.com/app
types:
  - name: ControllerBase
    params: [T]
    abstract: true
    implements: ["example.com/operator.EntityController[*T]"]
  - name: Widget
    markers: ["opgen:resource"]
  - name: WidgetController
    base: ControllerBase[Widget]
`

const testConfig = `
[source]
mode = "manifest"
manifest = "types.yaml"

[output]
package = "app"
package_path = "example.com/app"

[generator]
interface = "example.com/operator.EntityController"
`

const pairLine = "AddController[WidgetController, *Widget](builder)"

// project creates a manifest-mode project in a fresh directory and moves
// into it.
func project(t *testing.T) string {
	t.Helper()
	pterm.DisableStyling()
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "types.yaml"), []byte(testManifest), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, am.ConfigFileName), []byte(testConfig), 0o644))
	t.Chdir(dir)
	am.Reset()
	t.Cleanup(am.Reset)
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := NewRootCmd()
	root.SetArgs(args)
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	err := root.Execute()
	return stdout.String(), err
}

func TestGenerateToStdout(t *testing.T) {
	dir := project(t)

	out, err := execute(t, "generate", "--output", "-")
	require.NoError(t, err)

	assert.Contains(t, out, "package app")
	assert.Contains(t, out, pairLine)
	assert.NoFileExists(t, filepath.Join(dir, am.DefaultOutputPath))
}

func TestGenerateIsDefaultCommand(t *testing.T) {
	dir := project(t)

	_, err := execute(t)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, am.DefaultOutputPath))
	require.NoError(t, err)
	assert.Contains(t, string(data), pairLine)
}

func TestGenerateFlagsOverrideConfig(t *testing.T) {
	project(t)

	out, err := execute(t, "generate", "-o", "-", "--package", "wiring")
	require.NoError(t, err)
	assert.Contains(t, out, "package wiring")
}

func TestGenerateRejectsInvalidConfig(t *testing.T) {
	project(t)

	_, err := execute(t, "generate", "--mode", "python")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidConfig), "got %v", err)
}

const toolOperator = `package operator

import "context"

type EntityController[E any] interface {
	Reconcile(ctx context.Context, entity E) error
}

type Builder interface{ Register(controller any) }

func AddController[C EntityController[E], E any](b Builder) Builder { return b }
`

const toolMain = `package main

import "context"

type Widget struct{}

type WidgetController struct{}

func (WidgetController) Reconcile(ctx context.Context, w *Widget) error { return nil }

func main() {}
`

const toolConfig = `
[output]
builder_package = "example.com/tool/operator"

[generator]
interface = "example.com/tool/operator.EntityController"
`

// goProject creates a go-mode module whose controllers live in the root
// main package, next to the registration file.
func goProject(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go command not available")
	}
	pterm.DisableStyling()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("GOWORK", "off")
	t.Setenv("GOPROXY", "off")
	t.Setenv("GOFLAGS", "-mod=mod")
	dir := t.TempDir()
	files := map[string]string{
		"go.mod":               "module example.com/tool\n\ngo 1.22\n",
		"operator/operator.go": toolOperator,
		"main.go":              toolMain,
		am.ConfigFileName:      toolConfig,
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	t.Chdir(dir)
	am.Reset()
	t.Cleanup(am.Reset)
	return dir
}

func TestGenerateIntoMainPackage(t *testing.T) {
	dir := goProject(t)

	_, err := execute(t, "generate")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, am.DefaultOutputPath))
	require.NoError(t, err)
	src := string(data)
	assert.Contains(t, src, "package main")
	assert.Contains(t, src, pairLine)
	assert.NotContains(t, src, `"example.com/tool"`)
}

func TestGenerateAfterControllerRemoved(t *testing.T) {
	dir := goProject(t)
	output := filepath.Join(dir, am.DefaultOutputPath)

	_, err := execute(t, "generate")
	require.NoError(t, err)

	// Rename the controller and call the registration file, which now names
	// a missing type
	renamed := strings.ReplaceAll(toolMain, "WidgetController", "GadgetController")
	renamed = strings.Replace(renamed, "func main() {}", "func main() { RegisterControllers(nil) }", 1)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte(renamed), 0o644))

	_, err = execute(t, "generate")
	require.NoError(t, err)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(data), "AddController[GadgetController, *Widget](builder)")
	assert.NotContains(t, string(data), "WidgetController")

	out, err := execute(t, "check")
	require.NoError(t, err)
	assert.Contains(t, out, "up to date")
}

func TestCheck(t *testing.T) {
	dir := project(t)
	output := filepath.Join(dir, am.DefaultOutputPath)

	_, err := execute(t, "check")
	require.Error(t, err, "missing file is out of date")
	assert.True(t, errors.Is(err, ErrOutOfDate))

	_, err = execute(t, "generate")
	require.NoError(t, err)

	out, err := execute(t, "check")
	require.NoError(t, err)
	assert.Contains(t, out, "up to date")

	require.NoError(t, os.WriteFile(output, []byte("package app\n"), 0o644))
	out, err = execute(t, "check")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOutOfDate))
	assert.NotEmpty(t, errors.GetAllHints(err))
	assert.Contains(t, out, "out of date")
	assert.Contains(t, out, "+\tbuilder = operator."+pairLine)
}

func TestCheckNeedsFileOutput(t *testing.T) {
	project(t)

	_, err := execute(t, "check", "--output", "-")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidConfig))
}

func TestConfigInitAndValidate(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	t.Chdir(dir)
	am.Reset()
	t.Cleanup(am.Reset)

	out, err := execute(t, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, am.ConfigFileName)
	assert.FileExists(t, filepath.Join(dir, am.ConfigFileName))

	_, err = execute(t, "config", "init")
	require.Error(t, err, "existing file needs --force")

	out, err = execute(t, "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration is valid")
}

func TestConfigWhereReportsFlags(t *testing.T) {
	project(t)

	out, err := execute(t, "config", "where", "--format", "json", "--package", "fromflag")
	require.NoError(t, err)

	var intro am.ConfigIntrospection
	require.NoError(t, json.Unmarshal([]byte(out), &intro))

	found := make(map[string]am.SettingInfo)
	for _, s := range intro.Settings {
		found[s.Key] = s
	}
	assert.Equal(t, am.SourceFlag, found["output.package"].Source)
	assert.Equal(t, "fromflag", found["output.package"].Value)
	assert.Equal(t, am.SourceProject, found["source.mode"].Source)
	assert.Equal(t, am.SourceDefault, found["watch.debounce_ms"].Source)
}

func TestConfigShow(t *testing.T) {
	project(t)

	out, err := execute(t, "config", "show", "--format", "json")
	require.NoError(t, err)

	var settings map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &settings))
	assert.Equal(t, "manifest", settings["source"]["mode"])
	assert.Equal(t, "app", settings["output"]["package"])

	_, err = execute(t, "config", "show", "--format", "xml")
	assert.Error(t, err)
}

func TestVersionJSON(t *testing.T) {
	project(t)

	out, err := execute(t, "version", "--json")
	require.NoError(t, err)

	var info map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Contains(t, info, "commit_hash")
	assert.Contains(t, info, "go_version")
}
