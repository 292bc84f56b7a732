package deps

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const versionProbeTimeout = 5 * time.Second

// CheckFFmpeg resolves binary and runs "-version" to confirm it starts. On
// success Detail carries the first line of the version banner.
func CheckFFmpeg(ctx context.Context, binary string) Status {
	status := CheckBinaries([]Requirement{{
		Name:        "FFmpeg",
		Command:     binary,
		Description: "Decodes song audio for feature extraction",
	}})[0]
	if !status.Available {
		return status
	}

	probeCtx, cancel := context.WithTimeout(ctx, versionProbeTimeout)
	defer cancel()
	out, err := exec.CommandContext(probeCtx, status.Command, "-hide_banner", "-version").Output()
	if err != nil {
		status.Available = false
		status.Detail = fmt.Sprintf("%s -version failed: %v", status.Command, err)
		return status
	}
	status.Detail = firstLine(out)
	return status
}

func firstLine(out []byte) string {
	scanner := bufio.NewScanner(bytes.NewReader(out))
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text())
	}
	return ""
}
