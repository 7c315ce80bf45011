package cmd

import (
	"bytes"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func executeCommand(root *cobra.Command, args ...string) (output string, err error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)

	err = root.Execute()
	return buf.String(), err
}

func TestVersionFlag(t *testing.T) {
	output, err := executeCommand(NewRootCmd(), "--version")
	if err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	if !strings.Contains(output, "nixie version 0.1.0") {
		t.Errorf("Expected version information, got: %s", output)
	}
}

func TestHelpFlag(t *testing.T) {
	output, err := executeCommand(NewRootCmd(), "--help")
	if err != nil {
		t.Errorf("Unexpected error: %v", err)
	}

	requiredContent := []string{
		"nixie",
		"--config",
		"--debug",
		"--port",
		"--mode",
		"aic",
		"cat",
		"fc",
		"rand",
		"wc",
	}

	for _, content := range requiredContent {
		if !strings.Contains(output, content) {
			t.Errorf("Help output missing: %s", content)
		}
	}
}

func TestConfigCommand(t *testing.T) {
	output, err := executeCommand(NewRootCmd(), "config", "--plain", "--port", "8080", "--mode", "single")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	for _, want := range []string{"port: 8080", "mode: single", "markdown_path: ../README.md"} {
		if !strings.Contains(output, want) {
			t.Errorf("Expected %q in output, got:\n%s", want, output)
		}
	}
}

func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nixie.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9999\nsources:\n  directory: /tmp\n"), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	output, err := executeCommand(NewRootCmd(), "config", "--plain", "--config", path)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if !strings.Contains(output, "port: 9999") {
		t.Errorf("Expected port from config file, got:\n%s", output)
	}
	if !strings.Contains(output, "directory: /tmp") {
		t.Errorf("Expected directory from config file, got:\n%s", output)
	}
}

func TestConfigFileErrorsAreFatal(t *testing.T) {
	dir := t.TempDir()
	badMode := filepath.Join(dir, "mode.yaml")
	if err := os.WriteFile(badMode, []byte("server:\n  mode: forking\n"), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	paths := []string{filepath.Join(dir, "missing.yaml"), badMode}
	for _, path := range paths {
		if _, err := executeCommand(NewRootCmd(), "config", "--plain", "--config", path); err == nil {
			t.Errorf("Expected error for config file %s", path)
		}
	}
}

func TestInvalidModeFlag(t *testing.T) {
	_, err := executeCommand(NewRootCmd(), "config", "--mode", "forking")
	if err == nil {
		t.Error("Expected error for an unknown mode")
	}
}

func TestCatRequiresExistingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "no-such-counter")

	_, err := executeCommand(NewRootCmd(), "cat", missing)
	if err == nil {
		t.Fatal("Expected error for a missing counter file")
	}
	if !strings.Contains(err.Error(), "cat source") {
		t.Errorf("Expected error to name the source, got: %v", err)
	}

	_, err = executeCommand(NewRootCmd(), "cat")
	if err == nil {
		t.Error("Expected error when no counter file is given")
	}
}

func TestFileCountRejectsFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	if _, err := executeCommand(NewRootCmd(), "fc", file); err == nil {
		t.Error("Expected error when the directory argument is a file")
	}
}

func TestWordCountMissingDefault(t *testing.T) {
	dir := t.TempDir()
	if _, err := executeCommand(NewRootCmd(), "wc", filepath.Join(dir, "README.md")); err == nil {
		t.Error("Expected error for a missing markdown file")
	}
}

func TestArgumentCounts(t *testing.T) {
	tests := [][]string{
		{"rand", "extra"},
		{"aic", "extra"},
		{"fc", "a", "b"},
		{"wc", "a", "b"},
	}

	for _, args := range tests {
		if _, err := executeCommand(NewRootCmd(), args...); err == nil {
			t.Errorf("Expected error for arguments %v", args)
		}
	}
}

func TestBindFailureIsFatal(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	defer listener.Close()

	_, port, err := net.SplitHostPort(listener.Addr().String())
	if err != nil {
		t.Fatalf("Failed to split address: %v", err)
	}

	output, err := executeCommand(NewRootCmd(), "rand", "--bind", "127.0.0.1", "--port", port)
	if err == nil {
		t.Error("Expected error when the port is already bound")
	}
	if strings.Contains(output, "Serving") {
		t.Errorf("Banner should not be printed when binding fails, got: %s", output)
	}
}
