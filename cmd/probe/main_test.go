package main

import (
	"bytes"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// TestHelperProcess is a subprocess entrypoint used by tests.
//
// This pattern allows tests to execute main() and observe:
//   - process exit codes (including os.Exit),
//   - stdout/stderr output,
//
// without terminating the parent "go test" process.
//
// The parent test runs the current test binary with:
//
//	-test.run=TestHelperProcess
//
// and sets GO_WANT_HELPER_PROCESS=1.
//
// Any arguments after a literal "--" are treated as CLI args for the command.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	// Rebuild os.Args to contain only the command arguments passed after "--".
	args := os.Args
	i := 0
	for ; i < len(args); i++ {
		if args[i] == "--" {
			break
		}
	}
	if i < len(args) {
		os.Args = append([]string{args[0]}, args[i+1:]...)
	} else {
		// No args were provided; keep argv0 only.
		os.Args = []string{args[0]}
	}

	main()
	os.Exit(0)
}

// runCmd executes the command's main() in a subprocess and returns the captured
// stdout, stderr, and the process exit code.
//
// The subprocess is the current test binary, re-invoked with
// -test.run=TestHelperProcess, so it runs on all platforms supported by Go tests.
func runCmd(t *testing.T, args ...string) (stdout, stderr string, exitCode int) {
	t.Helper()

	cmdArgs := []string{"-test.run=TestHelperProcess", "--"}
	cmdArgs = append(cmdArgs, args...)

	cmd := exec.Command(os.Args[0], cmdArgs...)
	cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1")

	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	err := cmd.Run()
	stdout = outBuf.String()
	stderr = errBuf.String()

	// Exit code handling: nil means exit 0.
	if err == nil {
		return stdout, stderr, 0
	}

	// For non-zero exits, Go returns *exec.ExitError.
	if ee, ok := err.(*exec.ExitError); ok {
		return stdout, stderr, ee.ExitCode()
	}

	// Unexpected error type (e.g., binary not runnable). Fail loudly.
	t.Fatalf("unexpected run error: %T: %v", err, err)
	return "", "", 1
}

// TestMain_MissingURL verifies the usage-error exit code.
func TestMain_MissingURL(t *testing.T) {
	t.Parallel()

	_, stderr, code := runCmd(t)
	if code != 2 {
		t.Fatalf("exit code = %d, want 2\nstderr:\n%s", code, stderr)
	}
	if !strings.Contains(stderr, "missing -url") {
		t.Fatalf("stderr = %q, want missing -url hint", stderr)
	}
}

// TestMain_TextReport verifies the default human-readable output.
func TestMain_TextReport(t *testing.T) {
	t.Parallel()

	csvPath := filepath.Join(t.TempDir(), "sample.csv")
	csv := strings.Join([]string{
		"id,category,value",
		"1,a,10",
		"2,a,11",
		"3,b,12",
		"",
	}, "\n")
	if err := os.WriteFile(csvPath, []byte(csv), 0o600); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	stdout, stderr, code := runCmd(t, "-url", csvPath)
	if code != 0 {
		t.Fatalf("exit code = %d\nstderr:\n%s", code, stderr)
	}
	for _, want := range []string{"table:     data_sample", "uniqueness report:", "key candidates: id, value"} {
		if !strings.Contains(stdout, want) {
			t.Fatalf("stdout missing %q:\n%s", want, stdout)
		}
	}
}

// TestMain_JSONReport verifies -json emits a decodable report.
func TestMain_JSONReport(t *testing.T) {
	t.Parallel()

	jsonPath := filepath.Join(t.TempDir(), "events.ndjson")
	body := "{\"id\": 1, \"ok\": true}\n{\"id\": 2, \"ok\": false}\n"
	if err := os.WriteFile(jsonPath, []byte(body), 0o600); err != nil {
		t.Fatalf("write json: %v", err)
	}

	stdout, stderr, code := runCmd(t, "-url", jsonPath, "-json")
	if code != 0 {
		t.Fatalf("exit code = %d\nstderr:\n%s", code, stderr)
	}
	var rep struct {
		Format  string `json:"format"`
		Table   string `json:"table_name"`
		Rows    int    `json:"row_count"`
		Columns []struct {
			Name string `json:"name"`
			Type string `json:"type"`
		} `json:"columns"`
	}
	if err := json.Unmarshal([]byte(stdout), &rep); err != nil {
		t.Fatalf("decode stdout: %v\n%s", err, stdout)
	}
	if rep.Format != "json" || rep.Table != "data_events" || rep.Rows != 2 || len(rep.Columns) != 2 {
		t.Fatalf("report = %+v", rep)
	}
}

// TestMain_NotTabular verifies documents are rejected with exit code 1.
func TestMain_NotTabular(t *testing.T) {
	t.Parallel()

	p := filepath.Join(t.TempDir(), "memo.docx")
	if err := os.WriteFile(p, []byte("PK"), 0o600); err != nil {
		t.Fatal(err)
	}
	_, stderr, code := runCmd(t, "-url", p)
	if code != 1 || !strings.Contains(stderr, "not a tabular format") {
		t.Fatalf("exit=%d stderr=%q, want 1 and not-tabular error", code, stderr)
	}
}
