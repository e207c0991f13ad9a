package utils //nolint:revive

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive,staticcheck
)

// DebugLevel controls verbosity of debug output (0=minimal, 1=normal, 2=verbose, 3=trace)
var DebugLevel = getDebugLevel()

func getDebugLevel() int {
	level := os.Getenv("E2E_DEBUG_LEVEL")
	switch level {
	case "0":
		return 0
	case "2":
		return 2
	case "3":
		return 3
	default:
		return 1
	}
}

func warnError(err error) {
	_, _ = fmt.Fprintf(GinkgoWriter, "warning: %v\n", err)
}

// DebugLog writes debug output at the specified level
func DebugLog(level int, format string, args ...interface{}) {
	if level <= DebugLevel {
		prefix := ""
		switch level {
		case 0:
			prefix = "[ERROR] "
		case 1:
			prefix = "[INFO] "
		case 2:
			prefix = "[DEBUG] "
		case 3:
			prefix = "[TRACE] "
		}
		_, _ = fmt.Fprintf(GinkgoWriter, prefix+format+"\n", args...)
	}
}

// Run executes the provided command from the project directory.
func Run(cmd *exec.Cmd) ([]byte, error) {
	dir, _ := GetProjectDir()
	cmd.Dir = dir

	command := strings.Join(cmd.Args, " ")
	DebugLog(2, "running: %s", command)
	output, err := cmd.CombinedOutput()
	if err != nil {
		DebugLog(1, "command failed: %s\nerror: %v\noutput: %s", command, err, string(output))
		return output, fmt.Errorf("%s failed with error: (%w) %s", command, err, string(output))
	}
	if DebugLevel >= 3 {
		DebugLog(3, "command output: %s", string(output))
	}

	return output, nil
}

// RunStdout executes the provided command and returns its standard output only,
// so that log lines written to stderr do not mix with the command result.
func RunStdout(cmd *exec.Cmd) ([]byte, error) {
	dir, _ := GetProjectDir()
	cmd.Dir = dir

	var stderr strings.Builder
	cmd.Stderr = &stderr
	command := strings.Join(cmd.Args, " ")
	DebugLog(2, "running: %s", command)
	output, err := cmd.Output()
	if err != nil {
		DebugLog(1, "command failed: %s\nerror: %v\nstderr: %s", command, err, stderr.String())
		return output, fmt.Errorf("%s failed with error: (%w) %s", command, err, stderr.String())
	}
	return output, nil
}

// StartCommand starts a long running command from the project directory.
// Its combined output is written to out. The caller stops it with Process.Kill or Signal.
func StartCommand(cmd *exec.Cmd, out *SyncBuffer) error {
	dir, _ := GetProjectDir()
	cmd.Dir = dir
	cmd.Stdout = out
	DebugLog(2, "starting: %s", strings.Join(cmd.Args, " "))
	return cmd.Start()
}

// GetNonEmptyLines converts given command output string into individual objects
// according to line breakers, and ignores the empty elements in it.
func GetNonEmptyLines(output string) []string {
	var res []string
	elements := strings.Split(output, "\n")
	for _, element := range elements {
		if element != "" {
			res = append(res, element)
		}
	}

	return res
}

// GetProjectDir will return the directory where the project is
func GetProjectDir() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return wd, err
	}
	wd = strings.ReplaceAll(wd, "/test/e2e", "")
	return wd, nil
}

// ShouldTeardown controls whether tests should delete the kind cluster they created.
func ShouldTeardown() bool {
	return os.Getenv("E2E_TEARDOWN") == "true"
}

// ApplyManifest applies a YAML manifest from a string using server-side apply
func ApplyManifest(manifest string) error {
	cmd := exec.CommandContext(context.Background(), "kubectl", "apply", "--server-side", "--force-conflicts", "-f", "-")
	cmd.Stdin = strings.NewReader(manifest)
	_, err := Run(cmd)
	return err
}

// DeleteManifest deletes resources defined in a YAML manifest
func DeleteManifest(manifest string) error {
	cmd := exec.CommandContext(context.Background(), "kubectl", "delete", "-f", "-", "--ignore-not-found=true", "--wait=true")
	cmd.Stdin = strings.NewReader(manifest)
	_, err := Run(cmd)
	return err
}

// WaitForCRDEstablished waits for a CRD to report the Established condition.
func WaitForCRDEstablished(name string, timeout time.Duration) error {
	cmd := exec.CommandContext(context.Background(), "kubectl", "wait", "--for=condition=Established",
		"crd/"+name, fmt.Sprintf("--timeout=%s", timeout))
	_, err := Run(cmd)
	return err
}

// KindClusterExists checks if a kind cluster with the given name exists
func KindClusterExists(name string) bool {
	cmd := exec.CommandContext(context.Background(), "kind", "get", "clusters")
	output, err := Run(cmd)
	if err != nil {
		return false
	}
	clusters := GetNonEmptyLines(string(output))
	for _, cluster := range clusters {
		if cluster == name {
			return true
		}
	}
	return false
}

// CreateKindCluster creates a new kind cluster
func CreateKindCluster(name, k8sVersion string) error {
	if KindClusterExists(name) {
		_, _ = fmt.Fprintf(GinkgoWriter, "Kind cluster '%s' already exists\n", name)
		return nil
	}

	image := fmt.Sprintf("kindest/node:%s", k8sVersion)
	cmd := exec.CommandContext(context.Background(), "kind", "create", "cluster",
		"--name", name,
		"--image", image,
		"--wait", "5m")
	_, err := Run(cmd)
	return err
}

// DeleteKindCluster deletes a kind cluster
func DeleteKindCluster(name string) {
	cmd := exec.CommandContext(context.Background(), "kind", "delete", "cluster", "--name", name)
	if _, err := Run(cmd); err != nil {
		warnError(err)
	}
}
