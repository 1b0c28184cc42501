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

// TestHelperProcess is the subprocess entrypoint used by runCmd. Arguments
// after a literal "--" become the command's os.Args.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
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
		os.Args = []string{args[0]}
	}
	main()
	os.Exit(0)
}

type lake struct {
	root string
	dsn  string
}

func newLake(t *testing.T) lake {
	t.Helper()
	dir := t.TempDir()
	return lake{root: filepath.Join(dir, "lake"), dsn: "file:" + filepath.Join(dir, "catalog.db")}
}

func (l lake) put(t *testing.T, objectPath, body string) {
	t.Helper()
	p := filepath.Join(l.root, filepath.FromSlash(objectPath))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
}

// runCmd executes main() in a subprocess against l and returns stdout,
// stderr and the exit code.
func runCmd(t *testing.T, l lake, args ...string) (string, string, int) {
	t.Helper()

	cmd := exec.Command(os.Args[0], append([]string{"-test.run=TestHelperProcess", "--"}, args...)...)
	cmd.Env = append(os.Environ(),
		"GO_WANT_HELPER_PROCESS=1",
		"LAKEHOUSE_CONFIG=",
		"LAKEHOUSE_CATALOG_KIND=sqlite",
		"LAKEHOUSE_CATALOG_DSN="+l.dsn,
		"LAKEHOUSE_OBJECTSTORE_KIND=fs",
		"LAKEHOUSE_OBJECTSTORE_ROOT="+l.root,
		"LAKEHOUSE_LOG_LEVEL=error",
		"METRICS_BACKEND=none",
	)
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	err := cmd.Run()
	if err == nil {
		return outBuf.String(), errBuf.String(), 0
	}
	if ee, ok := err.(*exec.ExitError); ok {
		return outBuf.String(), errBuf.String(), ee.ExitCode()
	}
	t.Fatalf("unexpected run error: %T: %v", err, err)
	return "", "", 1
}

// TestMain_IngestPrefix runs the default raw/ prefix and checks the JSON
// summary, including deduplication of identical content.
func TestMain_IngestPrefix(t *testing.T) {
	t.Parallel()

	l := newLake(t)
	l.put(t, "raw/a.csv", "id,name\n1,x\n2,y\n")
	l.put(t, "raw/b.csv", "id,name\n1,x\n2,y\n")

	stdout, stderr, code := runCmd(t, l, "-json", "-workers", "1")
	if code != 0 {
		t.Fatalf("exit code = %d\nstderr:\n%s", code, stderr)
	}
	var sum struct {
		Counts  map[string]int `json:"counts"`
		Results []struct {
			Path   string `json:"path"`
			Status string `json:"status"`
		} `json:"results"`
	}
	if err := json.Unmarshal([]byte(stdout), &sum); err != nil {
		t.Fatalf("decode summary: %v\n%s", err, stdout)
	}
	if sum.Counts["processed"] != 1 || sum.Counts["duplicate"] != 1 || len(sum.Results) != 2 {
		t.Fatalf("summary = %+v", sum)
	}
}

// TestMain_FailedObjectExitCode verifies a per-object failure yields exit
// code 3 with the error on stderr.
func TestMain_FailedObjectExitCode(t *testing.T) {
	t.Parallel()

	l := newLake(t)
	l.put(t, "raw/empty.csv", "id,name\n")

	stdout, stderr, code := runCmd(t, l, "-object", "raw/empty.csv")
	if code != 3 {
		t.Fatalf("exit code = %d, want 3\nstdout:\n%s\nstderr:\n%s", code, stdout, stderr)
	}
	if !strings.Contains(stderr, "raw/empty.csv") {
		t.Fatalf("stderr does not name the object:\n%s", stderr)
	}
	if !strings.Contains(stdout, "failed") {
		t.Fatalf("stdout missing failed status:\n%s", stdout)
	}
}
