package deploystore

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/thanos-io/objstore"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/deploystore/deploystore-go/deploystore/codec"
	"github.com/deploystore/deploystore-go/deploystore/diaglog"
	"github.com/deploystore/deploystore-go/internal"
	"github.com/deploystore/deploystore-go/internal/compress"
)

// Options Configuration options for the store. These options are set on client startup.
type Options struct {
	// FilePrefix is prepended to every object name to form its file name.
	FilePrefix string
	// FileExt is appended to object and tracker file names.
	FileExt string
	// TrackerName is the file name, without extension, of the manifest that
	// lists persistent saves.
	TrackerName string
	// ResourcesDir is the bundled-resource directory relative to the project root.
	ResourcesDir string
	// DeveloperDir holds authoring-only saves, relative to the project root.
	DeveloperDir string
	// LogFileName is the diagnostic log name, without extension, in the
	// writable data root.
	LogFileName string

	// Compression is applied to object bytes on top of Codec.
	Compression compress.Codec
	// Codec encodes objects. Defaults to codec.Gob.
	Codec codec.Codec
	// CacheCapacity in bytes of the read cache; 0 disables it.
	CacheCapacity int

	// SaveRetries is how many extra attempts a save makes after a retryable
	// IO failure, waiting RetryBackoff between attempts.
	SaveRetries  int
	RetryBackoff time.Duration

	// AutoUnpack runs the bundle unpacker before the first save or load in
	// packaged mode.
	AutoUnpack bool
	// PreserveRuntimeCopies makes the unpacker leave runtime files that already
	// exist untouched.
	PreserveRuntimeCopies bool

	// Log receives status reports. Defaults to slog.Default().
	Log *slog.Logger
	// Diag, when set, also receives every status report. When nil and
	// DiagToFile or DiagToConsole is set, one is created in the writable data
	// root.
	Diag          *diaglog.Log
	DiagToFile    bool
	DiagToConsole bool
	// Console is the diagnostic log's interactive channel.
	Console *zap.Logger

	// Bucket, when set, holds every location instead of the local file system.
	Bucket objstore.Bucket
}

func DefaultOptions() Options {
	return Options{
		FilePrefix:   "DS_",
		FileExt:      ".bytes",
		TrackerName:  "DeploymentSaveTracker",
		ResourcesDir: "Resources",
		DeveloperDir: "DeveloperSaves",
		LogFileName:  "DS_BuildLog",
		Compression:  compress.CodecNone,
		RetryBackoff: 50 * time.Millisecond,
		AutoUnpack:   true,
	}
}

func (o *Options) validate() error {
	if o.FileExt == "" {
		return internal.ErrInvalidArgument("Options.FileExt cannot be empty")
	}
	if !strings.HasPrefix(o.FileExt, ".") {
		o.FileExt = "." + o.FileExt
	}
	if o.TrackerName == "" {
		return internal.ErrInvalidArgument("Options.TrackerName cannot be empty")
	}
	if o.ResourcesDir == o.DeveloperDir {
		return internal.ErrInvalidArgument("Options.ResourcesDir and Options.DeveloperDir must differ; both are %q", o.ResourcesDir)
	}
	if o.SaveRetries < 0 {
		return internal.ErrInvalidArgument("Options.SaveRetries cannot be negative; got %d", o.SaveRetries)
	}
	if o.CacheCapacity < 0 {
		return internal.ErrInvalidArgument("Options.CacheCapacity cannot be negative; got %d", o.CacheCapacity)
	}
	return nil
}

// fileConfig is the YAML layout read by LoadOptions. Absent keys keep their
// default value.
type fileConfig struct {
	FilePrefix            *string        `yaml:"file_prefix"`
	FileExt               *string        `yaml:"file_ext"`
	TrackerName           *string        `yaml:"tracker_name"`
	ResourcesDir          *string        `yaml:"resources_dir"`
	DeveloperDir          *string        `yaml:"developer_dir"`
	LogFileName           *string        `yaml:"log_file_name"`
	Compression           *string        `yaml:"compression"`
	CacheCapacity         *int           `yaml:"cache_capacity"`
	SaveRetries           *int           `yaml:"save_retries"`
	RetryBackoff          *time.Duration `yaml:"retry_backoff"`
	AutoUnpack            *bool          `yaml:"auto_unpack"`
	PreserveRuntimeCopies *bool          `yaml:"preserve_runtime_copies"`
	Diag                  struct {
		File    *bool `yaml:"file"`
		Console *bool `yaml:"console"`
	} `yaml:"diag"`
}

// LoadOptions reads a YAML config file on top of DefaultOptions.
func LoadOptions(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("while reading config %s: %w", path, err)
	}
	return ParseOptions(data)
}

func ParseOptions(data []byte) (Options, error) {
	opts := DefaultOptions()
	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Options{}, fmt.Errorf("while parsing config: %w", err)
	}

	setIf(&opts.FilePrefix, cfg.FilePrefix)
	setIf(&opts.FileExt, cfg.FileExt)
	setIf(&opts.TrackerName, cfg.TrackerName)
	setIf(&opts.ResourcesDir, cfg.ResourcesDir)
	setIf(&opts.DeveloperDir, cfg.DeveloperDir)
	setIf(&opts.LogFileName, cfg.LogFileName)
	setIf(&opts.CacheCapacity, cfg.CacheCapacity)
	setIf(&opts.SaveRetries, cfg.SaveRetries)
	setIf(&opts.RetryBackoff, cfg.RetryBackoff)
	setIf(&opts.AutoUnpack, cfg.AutoUnpack)
	setIf(&opts.PreserveRuntimeCopies, cfg.PreserveRuntimeCopies)
	setIf(&opts.DiagToFile, cfg.Diag.File)
	setIf(&opts.DiagToConsole, cfg.Diag.Console)
	if cfg.Compression != nil {
		c, err := compress.ParseCodec(*cfg.Compression)
		if err != nil {
			return Options{}, err
		}
		opts.Compression = c
	}

	if err := opts.validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
