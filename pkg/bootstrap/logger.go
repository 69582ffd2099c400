package bootstrap

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"github.com/sirupsen/logrus"

	"github.com/Goden-Gun/chat-bindings/pkg/config"
	log "github.com/Goden-Gun/chat-bindings/pkg/logger"
)

// containerHook tags every entry with the container id.
type containerHook struct {
	containerID string
}

func (h *containerHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *containerHook) Fire(entry *logrus.Entry) error {
	entry.Data["container_id"] = h.containerID
	return nil
}

func detectContainerID() string {
	if id := config.GetNodeID("CONTAINER_ID", "NODE_ID"); id != "" {
		return id
	}
	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		return hostname
	}
	if data, err := os.ReadFile("/etc/hostname"); err == nil {
		if hostname := strings.TrimSpace(string(data)); hostname != "" {
			return hostname
		}
	}
	return "unknown"
}

// InitLogger configures the shared logger. File output is enabled when
// file.Path is set; the file name is service plus a date suffix.
func InitLogger(cfg config.LogConfig, file config.LogFileConfig, service string) error {
	std := log.StandardLogger()
	switch cfg.Format {
	case "text":
		std.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		std.SetFormatter(&logrus.JSONFormatter{})
	}

	if lvl, err := log.ParseLevel(cfg.Level); err == nil {
		log.SetLevel(lvl)
	} else {
		log.SetLevel(log.InfoLevel)
		log.Warnf("invalid log level %q, fallback to info", cfg.Level)
	}
	std.SetReportCaller(cfg.ReportCaller)

	if file.Path != "" {
		if err := setupFileOutput(file, service); err != nil {
			return err
		}
		log.AddHook(&containerHook{containerID: detectContainerID()})
	}
	return nil
}

// ApplyChatLevel lowers or raises verbosity from the chat log level name.
func ApplyChatLevel(name string) {
	log.SetLevel(log.ChatLevel(name))
}

func setupFileOutput(file config.LogFileConfig, service string) error {
	file.ApplyDefaults()
	if err := os.MkdirAll(file.Path, 0o755); err != nil {
		log.Errorf("create log dir failed: %v", err)
		return err
	}
	if service == "" {
		service = "chat"
	}
	writer, err := rotatelogs.New(
		filepath.Join(file.Path, service+".%Y%m%d.log"),
		rotatelogs.WithLinkName(filepath.Join(file.Path, service+".log")),
		rotatelogs.WithMaxAge(file.MaxAge.Duration()),
		rotatelogs.WithRotationTime(file.RotationTime.Duration()),
	)
	if err != nil {
		log.Errorf("set log output failed: %v", err)
		return err
	}
	log.SetOutput(io.MultiWriter(os.Stdout, writer))
	return nil
}
