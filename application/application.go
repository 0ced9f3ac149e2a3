package application

import (
	"encoding/hex"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"

	"github.com/lk2023060901/objection-go/internal/stream/codec"
	"github.com/lk2023060901/objection-go/internal/stream/compressor"
	"github.com/lk2023060901/objection-go/internal/stream/crypto"
	"github.com/lk2023060901/objection-go/internal/stream/framer"
	"github.com/lk2023060901/objection-go/internal/stream/serializer"
	zlog "github.com/lk2023060901/objection-go/pkg/log"
	"github.com/lk2023060901/objection-go/pkg/marshal"
	"github.com/lk2023060901/objection-go/pkg/metrics"
	"github.com/lk2023060901/objection-go/pkg/objection"
	"github.com/lk2023060901/objection-go/pkg/util/merr"
	zviper "github.com/lk2023060901/objection-go/pkg/util/viper"
	"github.com/lk2023060901/objection-go/pkg/version"
)

const (
	envConfigPath = "OBJECTION_CONFIG_FILE_PATH"
	envPrefix     = "OBJECTION"
	engineKey     = "objection"
	loggingKey    = "logging"
)

// engineDefaults also makes every engine key visible to env overrides,
// e.g. OBJECTION_OBJECTION_MAX_FRAME_SIZE.
var engineDefaults = map[string]any{
	"max-elements":      1 << 24,
	"max-string-length": 16 << 20,
	"max-frame-size":    16 << 20,
	"pool-size":         0,
	"compression":       false,
	"min-compress-size": 256,
	"encryption-key":    "",
	"mac-key":           "",
}

// EngineConfig is the "objection" section of the configuration file.
//
// Example:
//
//	objection:
//	  max-elements: 1048576
//	  max-string-length: 4194304
//	  compression: true
//	  encryption-key: <64 hex chars>
//	  mac-key: <hex>
type EngineConfig struct {
	MaxElements     int    `mapstructure:"max-elements"`
	MaxStringLength int    `mapstructure:"max-string-length"`
	MaxFrameSize    uint32 `mapstructure:"max-frame-size"`
	PoolSize        int    `mapstructure:"pool-size"`
	Compression     bool   `mapstructure:"compression"`
	MinCompressSize int    `mapstructure:"min-compress-size"`
	EncryptionKey   string `mapstructure:"encryption-key"`
	MACKey          string `mapstructure:"mac-key"`
}

// Application is the runtime container for an objection service.
// It owns configuration and the engine components built from it.
type Application struct {
	classes []*objection.Class

	cfg     *zviper.Config
	engine  EngineConfig
	loggers map[string]*zlog.MLogger

	reg       *objection.Registry
	marshal   *marshal.Marshaller
	zstd      *compressor.ZstdCompressor
	codec     codec.Codec
	undoProcs func()
}

// New creates an Application whose registry will accept the given classes.
func New(classes ...*objection.Class) *Application {
	return &Application{classes: classes}
}

// Run loads configuration file using the following priority:
//  1. Default: ./config.yaml
//  2. Env: OBJECTION_CONFIG_FILE_PATH
//  3. CLI: --config <path> or --config=<path>
//
// and then builds logging, metrics, the registry, the marshaller and the stream codec.
func (a *Application) Run() error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	a.cfg = cfg

	if err := a.initLogging(); err != nil {
		return err
	}
	undo, err := maxprocs.Set(maxprocs.Logger(zlog.S().Infof))
	if err != nil {
		zlog.Warn("failed to set GOMAXPROCS", zap.Error(err))
	}
	a.undoProcs = undo

	metrics.Register(prometheus.DefaultRegisterer)
	metrics.RegisterLoggingMetrics(prometheus.DefaultRegisterer)

	if err := a.initEngine(); err != nil {
		return err
	}
	zlog.Info("objection started",
		zap.String("version", version.String()),
		zap.String("wireFormat", version.WireFormat.String()),
		zap.Int("types", len(a.classes)),
		zap.Bool("compression", a.engine.Compression),
		zap.Bool("encryption", a.engine.EncryptionKey != ""))
	return nil
}

// Close releases worker pools and codecs.
func (a *Application) Close() {
	if a.marshal != nil {
		a.marshal.Close()
	}
	if a.zstd != nil {
		a.zstd.Close()
	}
	if a.undoProcs != nil {
		a.undoProcs()
	}
	_ = zlog.Sync()
}

// Config returns the loaded configuration, if any.
func (a *Application) Config() *zviper.Config {
	return a.cfg
}

// Engine returns the resolved engine configuration.
func (a *Application) Engine() EngineConfig {
	return a.engine
}

func (a *Application) Registry() *objection.Registry {
	return a.reg
}

func (a *Application) Marshaller() *marshal.Marshaller {
	return a.marshal
}

func (a *Application) Codec() codec.Codec {
	return a.codec
}

// Logger returns a named logger created from configuration.
// If the name is unknown, it falls back to the global logger.
func (a *Application) Logger(name string) *zlog.MLogger {
	if lg, ok := a.loggers[name]; ok && lg != nil {
		return lg
	}
	return &zlog.MLogger{Logger: zlog.L()}
}

// loadConfig resolves config file path and loads it via viper wrapper.
func (a *Application) loadConfig() (*zviper.Config, error) {
	configPath := "./config.yaml"

	if envPath := os.Getenv(envConfigPath); envPath != "" {
		configPath = envPath
	}

	args := os.Args[1:]
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--config" {
			if i+1 >= len(args) {
				return nil, merr.WrapErrParameterInvalidMsg("missing value after --config")
			}
			configPath = args[i+1]
			i++
			continue
		}
		if val, ok := strings.CutPrefix(arg, "--config="); ok && val != "" {
			configPath = val
		}
	}

	cfg := zviper.New()
	cfg.BindEnv(envPrefix)
	for key, value := range engineDefaults {
		cfg.SetDefault(engineKey+"."+key, value)
	}
	if err := cfg.LoadFile(configPath); err != nil {
		return nil, errors.Wrapf(err, "failed to load config file %q", configPath)
	}
	return cfg, nil
}

// initEngine reads the "objection" section and builds the engine components.
func (a *Application) initEngine() error {
	if err := a.cfg.UnmarshalKey(engineKey, &a.engine); err != nil {
		return errors.Wrap(err, "read engine config")
	}

	var regOpts []objection.RegistryOption
	if a.engine.MaxElements > 0 {
		regOpts = append(regOpts, objection.WithMaxElements(a.engine.MaxElements))
	}
	if a.engine.MaxStringLength > 0 {
		regOpts = append(regOpts, objection.WithMaxStringLength(a.engine.MaxStringLength))
	}
	a.reg = objection.NewRegistry(regOpts...).RegisterType(a.classes...)

	var marshalOpts []marshal.Option
	if a.engine.PoolSize > 0 {
		marshalOpts = append(marshalOpts, marshal.WithPoolSize(a.engine.PoolSize))
	}
	a.marshal = marshal.New(a.reg, marshalOpts...)

	opts := codec.Options{
		Framer:            framer.NewLengthPrefixedFramer(a.engine.MaxFrameSize),
		Serializer:        serializer.NewObjectionSerializer(a.marshal),
		EnableCompression: a.engine.Compression,
		MinCompressSize:   a.engine.MinCompressSize,
	}
	if a.engine.Compression {
		zc, err := compressor.NewZstdCompressor(0, uint64(a.engine.MaxFrameSize))
		if err != nil {
			return errors.Wrap(err, "create zstd compressor")
		}
		a.zstd = zc
		opts.Compressor = zc
	}
	if a.engine.EncryptionKey != "" {
		enc, err := newEncryptor(a.engine.EncryptionKey, a.engine.MACKey)
		if err != nil {
			return err
		}
		opts.Encryptor = enc
		opts.EnableEncryption = true
	}
	c, err := codec.New(opts)
	if err != nil {
		return err
	}
	a.codec = c
	return nil
}

func newEncryptor(encKeyHex, macKeyHex string) (crypto.Encryptor, error) {
	encKey, err := hex.DecodeString(encKeyHex)
	if err != nil {
		return nil, merr.WrapErrParameterInvalidMsg("encryption-key is not hex: %v", err)
	}
	macKey, err := hex.DecodeString(macKeyHex)
	if err != nil {
		return nil, merr.WrapErrParameterInvalidMsg("mac-key is not hex: %v", err)
	}
	return crypto.NewAEADHMAC(encKey, macKey)
}

// initLogging initializes global and module-level loggers.
func (a *Application) initLogging() error {
	if err := a.initGlobalLoggerFromEnv(); err != nil {
		return err
	}
	return a.initModuleLoggersFromConfig()
}

// initGlobalLoggerFromEnv configures the process-wide logger based on OBJECTION_LOG_* env vars.
//
//   - OBJECTION_LOG_ENABLE: "1"/"true" to enable outputs; others treated as disabled.
//   - OBJECTION_LOG_LEVEL: log level (default "info").
//   - OBJECTION_LOG_STDOUT: whether to log to stdout (default false).
//   - OBJECTION_LOG_FILE_DIR: log directory.
//   - OBJECTION_LOG_FILE: log file name (empty means no file).
//   - OBJECTION_LOG_FORMAT: log format ("text" or "json", default "text").
func (a *Application) initGlobalLoggerFromEnv() error {
	enabled := getenvBool("OBJECTION_LOG_ENABLE", false)

	cfg := &zlog.Config{
		Level:               getenvDefault("OBJECTION_LOG_LEVEL", "info"),
		Format:              getenvDefault("OBJECTION_LOG_FORMAT", "text"),
		Stdout:              getenvBool("OBJECTION_LOG_STDOUT", false),
		DisableErrorVerbose: true,
		File: zlog.FileLogConfig{
			RootPath: getenvDefault("OBJECTION_LOG_FILE_DIR", ""),
			Filename: getenvDefault("OBJECTION_LOG_FILE", ""),
		},
	}

	// When not enabled, direct all outputs to a discarded sink.
	if !enabled {
		cfg.Stdout = false
		cfg.File.Filename = ""
	}

	logger, props, err := zlog.InitLogger(cfg)
	if err != nil {
		return errors.Wrap(err, "init global logger from env")
	}
	zlog.ReplaceGlobals(logger, props)
	return nil
}

// initModuleLoggersFromConfig creates named loggers from the "logging" key.
//
// Example:
//
//	logging:
//	  engine:
//	    level: debug
//	    stdout: true
//	    file:
//	      rootpath: ./logs
//	      filename: engine.log
func (a *Application) initModuleLoggersFromConfig() error {
	if a.cfg == nil {
		return nil
	}

	if !a.cfg.IsSet(loggingKey) {
		return nil
	}
	raw := make(map[string]zlog.Config)
	if err := a.cfg.UnmarshalKey(loggingKey, &raw); err != nil {
		return err
	}

	a.loggers = make(map[string]*zlog.MLogger, len(raw))
	for name, lc := range raw {
		logger, _, err := zlog.InitLogger(&lc)
		if err != nil {
			return errors.Wrapf(err, "init module logger %q", name)
		}
		a.loggers[name] = &zlog.MLogger{Logger: logger}
	}
	return nil
}

func getenvDefault(key, def string) string {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return def
	}
	return val
}

func getenvBool(key string, def bool) bool {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return def
	}
	switch strings.ToLower(val) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}
