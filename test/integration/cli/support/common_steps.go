package support

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cucumber/godog"
)

const commandTimeout = 30 * time.Second

// RegisterCommonSteps registers command, output and file steps.
func (testCtx *TestContext) RegisterCommonSteps(sc *godog.ScenarioContext) {
	sc.Step(`^I run "([^"]*)"$`, testCtx.iRunCommand)
	sc.Step(`^I run '([^']*)'$`, testCtx.iRunCommand)
	sc.Step(`^the command should succeed$`, testCtx.theCommandShouldSucceed)
	sc.Step(`^the command should fail$`, testCtx.theCommandShouldFail)
	sc.Step(`^the output should contain "([^"]*)"$`, testCtx.theOutputShouldContain)
	sc.Step(`^the output should not contain "([^"]*)"$`, testCtx.theOutputShouldNotContain)
	sc.Step(`^the error output should contain "([^"]*)"$`, testCtx.theErrorOutputShouldContain)
	sc.Step(`^the output should be valid JSON$`, testCtx.theOutputShouldBeValidJSON)
	sc.Step(`^the JSON field "([^"]*)" should equal "([^"]*)"$`, testCtx.theJSONFieldShouldEqual)
	sc.Step(`^the JSON field "([^"]*)" should have (\d+) entries$`, testCtx.theJSONFieldShouldHaveEntries)
	sc.Step(`^the output should have (\d+) lines$`, testCtx.theOutputShouldHaveLines)
	sc.Step(`^the file "([^"]*)" should exist$`, testCtx.theFileShouldExist)
	sc.Step(`^the file "([^"]*)" should not exist$`, testCtx.theFileShouldNotExist)
	sc.Step(`^the file "([^"]*)" should contain "([^"]*)"$`, testCtx.theFileShouldContain)
	sc.Step(`^the file "([^"]*)" should not contain "([^"]*)"$`, testCtx.theFileShouldNotContain)
	sc.Step(`^the directory "([^"]*)" should contain (\d+) files? ending in "([^"]*)"$`,
		testCtx.theDirectoryShouldContainFiles)
	sc.Step(`^a directory "([^"]*)"$`, testCtx.aDirectory)
	sc.Step(`^the environment variable "([^"]*)" is set to "([^"]*)"$`, testCtx.theEnvironmentVariableIsSet)
	sc.Step(`^the help should describe "([^"]*)"$`, testCtx.theHelpShouldDescribe)
}

// iRunCommand executes a command line. {tmp} expands to the scenario
// directory; double or single quotes group arguments.
func (testCtx *TestContext) iRunCommand(command string) error {
	command = strings.ReplaceAll(command, "{tmp}", testCtx.TempDir)
	testCtx.LastCommand = command

	args, err := splitArgs(command)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return errors.New("empty command")
	}
	if args[0] == "shapectx" {
		if bin := os.Getenv("SHAPECTX_BIN"); bin != "" {
			args[0] = bin
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, args[0], args[1:]...) //nolint:gosec // G204: scenario controlled command
	cmd.Dir = testCtx.WorkingDir
	cmd.Env = append(os.Environ(), testCtx.EnvVars...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err = cmd.Run()
	testCtx.LastDuration = time.Since(start)
	testCtx.LastOutput = stdout.String()
	testCtx.LastStderr = stderr.String()
	testCtx.LastError = err
	testCtx.LastExitCode = 0

	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return fmt.Errorf("failed to run %q: %w", command, err)
		}
		testCtx.LastExitCode = exitErr.ExitCode()
	}
	return nil
}

// splitArgs splits a command line at whitespace, keeping quoted runs
// together.
func splitArgs(s string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		quote   rune
		pending bool
	)
	for _, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
				continue
			}
			cur.WriteRune(r)
		case r == '"' || r == '\'':
			quote = r
			pending = true
		case r == ' ' || r == '\t':
			if pending {
				args = append(args, cur.String())
				cur.Reset()
				pending = false
			}
		default:
			cur.WriteRune(r)
			pending = true
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated quote in %q", s)
	}
	if pending {
		args = append(args, cur.String())
	}
	return args, nil
}

func (testCtx *TestContext) combinedOutput() string {
	return testCtx.LastOutput + testCtx.LastStderr
}

func (testCtx *TestContext) theCommandShouldSucceed() error {
	if testCtx.LastExitCode != 0 {
		return fmt.Errorf("command %q exited with %d\nstdout: %s\nstderr: %s",
			testCtx.LastCommand, testCtx.LastExitCode, testCtx.LastOutput, testCtx.LastStderr)
	}
	return nil
}

func (testCtx *TestContext) theCommandShouldFail() error {
	if testCtx.LastExitCode == 0 {
		return fmt.Errorf("command %q succeeded but was expected to fail\nstdout: %s",
			testCtx.LastCommand, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldContain(expected string) error {
	if !strings.Contains(testCtx.combinedOutput(), expected) {
		return fmt.Errorf("output does not contain %q\nstdout: %s\nstderr: %s",
			expected, testCtx.LastOutput, testCtx.LastStderr)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldNotContain(unexpected string) error {
	if strings.Contains(testCtx.combinedOutput(), unexpected) {
		return fmt.Errorf("output unexpectedly contains %q", unexpected)
	}
	return nil
}

func (testCtx *TestContext) theErrorOutputShouldContain(expected string) error {
	if !strings.Contains(testCtx.LastStderr, expected) {
		return fmt.Errorf("stderr does not contain %q\nstderr: %s", expected, testCtx.LastStderr)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldBeValidJSON() error {
	var v any
	if err := json.Unmarshal([]byte(testCtx.LastOutput), &v); err != nil {
		return fmt.Errorf("output is not valid JSON: %w\noutput: %s", err, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theJSONFieldShouldEqual(path, expected string) error {
	v, err := jsonField([]byte(testCtx.LastOutput), path)
	if err != nil {
		return err
	}
	if got := fmt.Sprint(v); got != expected {
		return fmt.Errorf("JSON field %q is %q, expected %q", path, got, expected)
	}
	return nil
}

func (testCtx *TestContext) theJSONFieldShouldHaveEntries(path string, n int) error {
	v, err := jsonField([]byte(testCtx.LastOutput), path)
	if err != nil {
		return err
	}
	arr, ok := v.([]any)
	if !ok {
		return fmt.Errorf("JSON field %q is not an array", path)
	}
	if len(arr) != n {
		return fmt.Errorf("JSON field %q has %d entries, expected %d", path, len(arr), n)
	}
	return nil
}

// jsonField resolves a dotted path such as "images.0.contours" in data.
func jsonField(data []byte, path string) (any, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	for _, part := range strings.Split(path, ".") {
		switch cur := v.(type) {
		case map[string]any:
			next, ok := cur[part]
			if !ok {
				return nil, fmt.Errorf("JSON field %q not found at %q", path, part)
			}
			v = next
		case []any:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(cur) {
				return nil, fmt.Errorf("JSON index %q out of range in %q", part, path)
			}
			v = cur[i]
		default:
			return nil, fmt.Errorf("JSON field %q cannot descend into %q", path, part)
		}
	}
	return v, nil
}

func (testCtx *TestContext) theOutputShouldHaveLines(n int) error {
	out := strings.TrimRight(testCtx.LastOutput, "\n")
	got := 0
	if out != "" {
		got = len(strings.Split(out, "\n"))
	}
	if got != n {
		return fmt.Errorf("output has %d lines, expected %d\n%s", got, n, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theFileShouldExist(name string) error {
	if _, err := os.Stat(testCtx.Path(name)); err != nil {
		return fmt.Errorf("file %s does not exist: %w", name, err)
	}
	return nil
}

func (testCtx *TestContext) theFileShouldNotExist(name string) error {
	if _, err := os.Stat(testCtx.Path(name)); err == nil {
		return fmt.Errorf("file %s exists", name)
	}
	return nil
}

func (testCtx *TestContext) theFileShouldContain(name, expected string) error {
	data, err := os.ReadFile(testCtx.Path(name))
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	if !strings.Contains(string(data), expected) {
		return fmt.Errorf("file %s does not contain %q", name, expected)
	}
	return nil
}

func (testCtx *TestContext) theFileShouldNotContain(name, unexpected string) error {
	data, err := os.ReadFile(testCtx.Path(name))
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	if strings.Contains(string(data), unexpected) {
		return fmt.Errorf("file %s unexpectedly contains %q", name, unexpected)
	}
	return nil
}

func (testCtx *TestContext) theDirectoryShouldContainFiles(dir string, n int, suffix string) error {
	got := 0
	err := filepath.WalkDir(testCtx.Path(dir), func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, suffix) {
			got++
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to walk %s: %w", dir, err)
	}
	if got != n {
		return fmt.Errorf("directory %s has %d %s files, expected %d", dir, got, suffix, n)
	}
	return nil
}

func (testCtx *TestContext) aDirectory(name string) error {
	return os.MkdirAll(testCtx.Path(name), 0o750)
}

func (testCtx *TestContext) theEnvironmentVariableIsSet(name, value string) error {
	testCtx.AddEnvVar(name, value)
	return nil
}

func (testCtx *TestContext) theHelpShouldDescribe(flag string) error {
	if err := testCtx.theCommandShouldSucceed(); err != nil {
		return err
	}
	if !strings.Contains(testCtx.LastOutput, "Usage:") {
		return errors.New("output does not look like help text")
	}
	return testCtx.theOutputShouldContain(flag)
}
