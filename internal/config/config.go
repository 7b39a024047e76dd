package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type contextKey string

const configKey contextKey = "config"

// Config holds all application configuration
type Config struct {
	// Core settings
	WorkDir     string `yaml:"work_dir"`
	Concurrency int    `yaml:"concurrency"`

	Log         LogConfig         `yaml:"log"`
	Frames      FramesConfig      `yaml:"frames"`
	Segment     SegmentConfig     `yaml:"segment"`
	Fingerprint FingerprintConfig `yaml:"fingerprint"`
	Storage     StorageConfig     `yaml:"storage"`
	AI          AIConfig          `yaml:"ai"`
	Server      ServerConfig      `yaml:"server"`
	FFmpeg      FFmpegConfig      `yaml:"ffmpeg"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json
}

// FramesConfig controls frame sampling.
type FramesConfig struct {
	FPS     float64 `yaml:"fps"`
	Width   int     `yaml:"width"`
	Height  int     `yaml:"height"`
	Quality int     `yaml:"quality"` // 1-100
}

// SegmentConfig controls shot clustering and scene assembly.
type SegmentConfig struct {
	Strategy       string  `yaml:"strategy"` // seed or adjacent
	Metric         string  `yaml:"metric"`   // rgb or phash
	PHashThreshold float64 `yaml:"phash_threshold"`
	RGBThreshold   float64 `yaml:"rgb_threshold"`
	MinShotSize    int     `yaml:"min_shot_size"`
	MaxFrameGap    float64 `yaml:"max_frame_gap"`
	MaxSceneGap    float64 `yaml:"max_scene_gap"`
}

// Threshold returns the clustering threshold for the configured metric.
func (s SegmentConfig) Threshold() float64 {
	if s.Metric == "phash" {
		return s.PHashThreshold
	}
	return s.RGBThreshold
}

type FingerprintConfig struct {
	Command  []string `yaml:"command"`
	GridSize int      `yaml:"grid_size"`
}

type StorageConfig struct {
	Backend     string `yaml:"backend"` // file, postgres or redis
	Dir         string `yaml:"dir"`
	PostgresURL string `yaml:"postgres_url"`
	RedisAddr   string `yaml:"redis_addr"`
	RedisPrefix string `yaml:"redis_prefix"`
}

type AIConfig struct {
	APIKey          string `yaml:"api_key"`
	BaseURL         string `yaml:"base_url"`
	VisionModel     string `yaml:"vision_model"`
	TranscribeModel string `yaml:"transcribe_model"`
	PromptFile      string `yaml:"prompt_file"`
	MaxTokens       int    `yaml:"max_tokens"`
}

type ServerConfig struct {
	Addr     string `yaml:"addr"`
	Movie    string `yaml:"movie"`
	Products string `yaml:"products"`
}

type FFmpegConfig struct {
	BinaryPath string `yaml:"binary_path"`
	Threads    int    `yaml:"threads"`
}

// Load reads configuration from file or returns defaults
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = findConfigFile()
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes configuration to file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Validate rejects values no component can run with.
func (c *Config) Validate() error {
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	if c.Frames.FPS <= 0 {
		return fmt.Errorf("frames.fps must be positive, got %v", c.Frames.FPS)
	}
	if c.Frames.Quality < 1 || c.Frames.Quality > 100 {
		return fmt.Errorf("frames.quality must be within 1-100, got %d", c.Frames.Quality)
	}
	switch c.Segment.Strategy {
	case "seed", "adjacent":
	default:
		return fmt.Errorf("unknown segment.strategy %q", c.Segment.Strategy)
	}
	switch c.Segment.Metric {
	case "rgb", "phash":
	default:
		return fmt.Errorf("unknown segment.metric %q", c.Segment.Metric)
	}
	if c.Segment.MinShotSize < 1 {
		return fmt.Errorf("segment.min_shot_size must be at least 1, got %d", c.Segment.MinShotSize)
	}
	if c.Segment.MaxFrameGap < 0 || c.Segment.MaxSceneGap < 0 {
		return fmt.Errorf("segment gaps must be non-negative")
	}
	if c.Fingerprint.GridSize < 1 {
		return fmt.Errorf("fingerprint.grid_size must be at least 1, got %d", c.Fingerprint.GridSize)
	}
	switch c.Storage.Backend {
	case "file", "postgres", "redis":
	default:
		return fmt.Errorf("unknown storage.backend %q", c.Storage.Backend)
	}
	return nil
}

// FramesDir returns the directory frames for a video are extracted into.
func (c *Config) FramesDir(movie string) string {
	return filepath.Join(c.WorkDir, "frames", movieKey(movie))
}

// ProductsPath returns where product annotations for a video are stored.
func (c *Config) ProductsPath(movie string) string {
	return filepath.Join(c.WorkDir, "products", movieKey(movie)+".json")
}

func movieKey(movie string) string {
	base := filepath.Base(movie)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (c *Config) applyEnv() {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.AI.APIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		c.AI.BaseURL = v
	}
	if v := os.Getenv("FRAMEFINDER_POSTGRES_URL"); v != "" {
		c.Storage.PostgresURL = v
	}
	if v := os.Getenv("FRAMEFINDER_REDIS_ADDR"); v != "" {
		c.Storage.RedisAddr = v
	}
}

func defaultConfig() *Config {
	return &Config{
		WorkDir:     "./work",
		Concurrency: 4,
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Frames: FramesConfig{
			FPS:     1.0,
			Width:   512,
			Height:  288,
			Quality: 80,
		},
		Segment: SegmentConfig{
			Strategy:       "seed",
			Metric:         "rgb",
			PHashThreshold: 8,
			RGBThreshold:   1000,
			MinShotSize:    2,
			MaxFrameGap:    2.0,
			MaxSceneGap:    5.0,
		},
		Fingerprint: FingerprintConfig{
			GridSize: 5,
		},
		Storage: StorageConfig{
			Backend:     "file",
			Dir:         "./work/manifests",
			RedisAddr:   "localhost:6379",
			RedisPrefix: "framefinder:manifest:",
		},
		AI: AIConfig{
			VisionModel:     "gpt-4-turbo",
			TranscribeModel: "whisper-1",
			PromptFile:      "system_prompt.txt",
			MaxTokens:       1024,
		},
		Server: ServerConfig{
			Addr: ":5000",
		},
		FFmpeg: FFmpegConfig{
			BinaryPath: "ffmpeg",
			Threads:    0,
		},
	}
}

func findConfigFile() string {
	candidates := []string{
		"./config.yaml",
		"./config.yml",
		filepath.Join(os.Getenv("HOME"), ".framefinder", "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// WithConfig stores config in context
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// FromContext retrieves config from context
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(configKey).(*Config); ok {
		return cfg
	}
	return defaultConfig()
}
