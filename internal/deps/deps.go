// Package deps inventories the external tools the pipeline shells out to.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"slate/internal/config"
)

// Requirement defines one external binary the pipeline invokes.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of one requirement.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Defaults returns the tool requirements for the given configuration.
func Defaults(cfg *config.Config) []Requirement {
	ffmpeg, ffprobe := "ffmpeg", "ffprobe"
	if cfg != nil {
		ffmpeg, ffprobe = cfg.FFmpegBinary(), cfg.FFprobeBinary()
	}
	return []Requirement{
		{Name: "FFmpeg", Command: ffmpeg, Description: "Transcodes video, captures stills, cuts segments"},
		{Name: "FFprobe", Command: ffprobe, Description: "Probes media metadata"},
	}
}

// CheckBinaries resolves each requirement and reports, per tool, whether the
// binary is reachable.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		results = append(results, req.check())
	}
	return results
}

// check resolves one requirement against PATH. Absolute commands resolve
// directly without a PATH search.
func (r Requirement) check() Status {
	cmd := strings.TrimSpace(r.Command)
	status := Status{
		Name:        r.Name,
		Command:     cmd,
		Description: strings.TrimSpace(r.Description),
		Optional:    r.Optional,
	}
	if cmd == "" {
		status.Detail = "command not configured"
		return status
	}
	if _, err := exec.LookPath(cmd); err != nil {
		status.Detail = fmt.Sprintf("binary %q not found", cmd)
		return status
	}
	status.Available = true
	return status
}
