package config

import (
	"flag"
	"io"
	"os"
	"reflect"
	"testing"
	"time"
)

func loadWithArgs(t *testing.T, args ...string) *Config {
	t.Helper()

	if len(args) == 0 {
		args = []string{"test"}
	}

	oldCommandLine := flag.CommandLine
	oldArgs := os.Args

	flag.CommandLine = flag.NewFlagSet(args[0], flag.ContinueOnError)
	flag.CommandLine.SetOutput(io.Discard)
	os.Args = args

	t.Cleanup(func() {
		flag.CommandLine = oldCommandLine
		os.Args = oldArgs
	})

	return Load()
}

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"HTTP_ADDR", "UPLOAD_DIR", "MAX_UPLOAD_BYTES", "CORS_ORIGINS", "LOG_FORMAT",
		"DETECTION_BACKEND", "DETECTION_TIMEOUT", "DETECTION_CONFIDENCE", "ROBOFLOW_OVERLAP",
		"VIDEO_SAMPLES_PER_SECOND", "VIDEO_MAX_FRAMES",
	} {
		t.Setenv(key, "")
	}
	cfg := loadWithArgs(t, "test")

	if cfg.Server.HTTPAddr != ":8080" || cfg.Server.UploadDir != "uploads" {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Server.MaxUploadBytes != 100<<20 {
		t.Errorf("max upload = %d", cfg.Server.MaxUploadBytes)
	}
	if !reflect.DeepEqual(cfg.Server.AllowedOrigins, []string{"*"}) {
		t.Errorf("origins = %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Detection.Backend != "roboflow" || cfg.Detection.ConfidenceThreshold != 0.40 || cfg.Detection.Timeout != 30*time.Second {
		t.Errorf("detection = %+v", cfg.Detection)
	}
	if cfg.Detection.RoboflowOverlap != 30 {
		t.Errorf("overlap = %d, want 30", cfg.Detection.RoboflowOverlap)
	}
	if cfg.Video.SamplesPerSecond != 1 || cfg.Video.MaxFrames != 60 {
		t.Errorf("video = %+v", cfg.Video)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("log format = %q", cfg.Logging.Format)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("DETECTION_BACKEND", " Placeholder ")
	t.Setenv("DETECTION_TIMEOUT", "5s")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("VIDEO_MAX_FRAMES", "12")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("LOG_FORMAT", "text")

	cfg := loadWithArgs(t, "test")

	if cfg.Server.HTTPAddr != ":9090" {
		t.Errorf("http addr = %q", cfg.Server.HTTPAddr)
	}
	if cfg.Detection.Backend != "placeholder" || cfg.Detection.Timeout != 5*time.Second {
		t.Errorf("detection = %+v", cfg.Detection)
	}
	if !reflect.DeepEqual(cfg.Server.AllowedOrigins, []string{"https://a.example", "https://b.example"}) {
		t.Errorf("origins = %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Video.MaxFrames != 12 || cfg.Database.Port != 6543 || cfg.Logging.Format != "text" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoad_InvalidEnvKeepsDefault(t *testing.T) {
	t.Setenv("DETECTION_TIMEOUT", "soon")
	t.Setenv("VIDEO_MAX_FRAMES", "-3")
	t.Setenv("DETECTION_CONFIDENCE", "1.5")

	cfg := loadWithArgs(t, "test")
	if cfg.Detection.Timeout != 30*time.Second || cfg.Video.MaxFrames != 60 || cfg.Detection.ConfidenceThreshold != 0.40 {
		t.Errorf("invalid env should keep defaults: %+v %+v", cfg.Detection, cfg.Video)
	}
}

func TestLoad_FlagOverride(t *testing.T) {
	t.Setenv("UPLOAD_DIR", "")
	cfg := loadWithArgs(t, "test", "-upload-dir", "/data/media", "-detection-backend", "rekognition")
	if cfg.Server.UploadDir != "/data/media" || cfg.Detection.Backend != "rekognition" {
		t.Errorf("flags not applied: %+v %+v", cfg.Server, cfg.Detection)
	}
}
