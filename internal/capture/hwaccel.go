package capture

import (
	"os"
	"os/exec"
	"strings"
	"sync"
)

// HWAccelType is an ffmpeg hardware decode backend.
type HWAccelType string

const (
	HWAccelNone         HWAccelType = ""
	HWAccelCUDA         HWAccelType = "cuda"
	HWAccelVideoToolbox HWAccelType = "videotoolbox"
	HWAccelVAAPI        HWAccelType = "vaapi"
	HWAccelQSV          HWAccelType = "qsv"
	HWAccelD3D11VA      HWAccelType = "d3d11va"
)

// Priority order, best decode performance first.
var hwAccelPriority = []HWAccelType{
	HWAccelCUDA,
	HWAccelVideoToolbox,
	HWAccelQSV,
	HWAccelVAAPI,
	HWAccelD3D11VA,
}

var (
	hwAccelOnce     sync.Once
	hwAccelSelected HWAccelType
)

// RecommendedHWAccel picks the decode backend used for stream
// captures. HWACCEL=off disables it, HWACCEL=<type> forces one;
// otherwise the best backend ffmpeg reports is used. Detected once
// per process.
func RecommendedHWAccel() HWAccelType {
	hwAccelOnce.Do(func() {
		switch env := os.Getenv("HWACCEL"); env {
		case "off", "none":
			return
		case "":
			hwAccelSelected = detectHWAccel()
		default:
			hwAccelSelected = HWAccelType(env)
		}
	})
	return hwAccelSelected
}

// detectHWAccel lists ffmpeg's compiled-in backends and selects the
// best by priority.
func detectHWAccel() HWAccelType {
	out, err := exec.Command("ffmpeg", "-hide_banner", "-hwaccels").CombinedOutput()
	if err != nil {
		return HWAccelNone
	}
	return selectHWAccel(parseHWAccels(string(out)))
}

// parseHWAccels parses `ffmpeg -hwaccels` output.
func parseHWAccels(output string) []HWAccelType {
	var accels []HWAccelType
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.Contains(line, ":") {
			continue
		}
		accels = append(accels, HWAccelType(line))
	}
	return accels
}

// selectHWAccel picks the highest-priority available backend.
func selectHWAccel(available []HWAccelType) HWAccelType {
	for _, want := range hwAccelPriority {
		for _, have := range available {
			if want == have {
				return want
			}
		}
	}
	return HWAccelNone
}

// hwAccelArgs returns the ffmpeg input arguments for a backend.
func hwAccelArgs(accel HWAccelType) []string {
	switch accel {
	case HWAccelCUDA:
		return []string{"-hwaccel", "cuda"}
	case HWAccelVideoToolbox:
		return []string{"-hwaccel", "videotoolbox"}
	case HWAccelVAAPI:
		return []string{"-hwaccel", "vaapi", "-hwaccel_device", "/dev/dri/renderD128"}
	case HWAccelQSV:
		return []string{"-hwaccel", "qsv"}
	case HWAccelD3D11VA:
		return []string{"-hwaccel", "d3d11va"}
	default:
		return nil
	}
}
