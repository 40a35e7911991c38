package eventlogger

import (
	"os"
	"runtime"
	"strings"
)

// Environment is the app and device identity stamped on every event.
type Environment struct {
	AppID       string
	AppName     string
	AppVersion  string
	Platform    string
	OSVersion   string
	DeviceModel string
	DeviceBrand string
	DeviceName  string
}

// AppIdentity is the host application identity supplied through configuration.
type AppIdentity struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// CaptureEnvironment collects device metadata from the running process and
// combines it with the configured app identity.
func CaptureEnvironment(app AppIdentity) Environment {
	hostname, _ := os.Hostname() // empty hostname is acceptable

	name := strings.TrimSpace(app.Name)
	if name == "" && len(os.Args) > 0 {
		name = baseName(os.Args[0])
	}
	id := strings.TrimSpace(app.ID)
	if id == "" {
		id = name
	}

	return Environment{
		AppID:       id,
		AppName:     name,
		AppVersion:  strings.TrimSpace(app.Version),
		Platform:    runtime.GOOS,
		OSVersion:   osVersion(),
		DeviceModel: runtime.GOARCH,
		DeviceBrand: runtime.Compiler,
		DeviceName:  hostname,
	}
}

func baseName(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[i+1:]
	}
	return p
}

// osVersion reads the kernel release where the platform exposes one.
func osVersion() string {
	if runtime.GOOS == "linux" {
		if b, err := os.ReadFile("/proc/sys/kernel/osrelease"); err == nil {
			return strings.TrimSpace(string(b))
		}
	}
	return runtime.Version()
}
