package config

import "runtime"

func defaultScreenshotCommand() []string {
	switch runtime.GOOS {
	case "darwin":
		return []string{"screencapture", "-x", "-t", "png", "/dev/stdout"}
	case "linux":
		return []string{"grim", "-"}
	default:
		return nil
	}
}
