package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"gopkg.in/yaml.v3"

	"github.com/tigerroll/surfin-import/pkg/importer/support/util/exception"
	"github.com/tigerroll/surfin-import/pkg/importer/support/util/logger"
)

const moduleName = "config"

// ConfigParams defines the dependencies for NewConfigProvider.
type ConfigParams struct {
	fx.In
	EmbeddedConfig EmbeddedConfig
	EnvFilePath    string `name:"envFilePath" optional:"true"`
}

// NewConfigProvider is an Fx provider that loads *Config and applies the log level.
func NewConfigProvider(params ConfigParams) (*Config, error) {
	cfg, err := LoadConfig(params.EnvFilePath, params.EmbeddedConfig)
	if err != nil {
		return nil, err
	}
	logger.SetLogLevel(cfg.Importer.System.Logging.Level)
	logger.Infof("Log level set to: %s", cfg.Importer.System.Logging.Level)
	return cfg, nil
}

// LoadConfig builds the configuration in this order: defaults from NewConfig,
// the embedded YAML (with ${VAR} placeholders expanded), then environment
// variables derived from the yaml tags (e.g. IMPORTER_BATCH_DEFAULT_BATCH_SIZE).
//
// Parameters:
//
//	envFilePath: The .env file to load first. Empty means ".env" in the working directory.
//	embeddedConfig: The YAML document.
func LoadConfig(envFilePath string, embeddedConfig EmbeddedConfig) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			logger.Warnf(".env file (%s) not found or could not be loaded: %v", envFilePath, err)
		}
	} else if err := godotenv.Load(); err != nil {
		logger.Debugf(".env file not found or could not be loaded: %v", err)
	}

	cfg := NewConfig()

	expanded, err := NewOsEnvironmentExpander().Expand(embeddedConfig)
	if err != nil {
		return nil, exception.NewImportError(moduleName, "failed to expand environment placeholders", err)
	}
	// Decoding onto the defaults keeps every field the document leaves out.
	if err := yaml.Unmarshal(expanded, cfg); err != nil {
		return nil, exception.NewImportError(moduleName, "failed to unmarshal embedded config", err)
	}

	if err := loadStructFromEnv(reflect.ValueOf(cfg).Elem(), ""); err != nil {
		return nil, exception.NewImportError(moduleName, "failed to load config from environment variables", err)
	}
	if err := validate(cfg); err != nil {
		return nil, exception.NewImportError(moduleName, "invalid configuration", err)
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	c := cfg.Importer
	if c.Batch.DefaultBatchSize <= 0 {
		return fmt.Errorf("batch.default_batch_size must be positive, got %d", c.Batch.DefaultBatchSize)
	}
	if c.Batch.Queue == "" {
		return fmt.Errorf("batch.queue must not be empty")
	}
	switch c.Queue.Mode {
	case "local", "inline":
	default:
		return fmt.Errorf("queue.mode must be 'local' or 'inline', got '%s'", c.Queue.Mode)
	}
	if c.Queue.Mode == "local" && c.Queue.Workers[c.Batch.Queue] <= 0 {
		return fmt.Errorf("queue.workers has no workers for batch queue '%s'", c.Batch.Queue)
	}
	for name, value := range map[string]string{
		"infrastructure.repository_type": c.Infrastructure.RepositoryType,
		"infrastructure.cache_type":      c.Infrastructure.CacheType,
	} {
		if value != "sql" && value != "inmemory" {
			return fmt.Errorf("%s must be 'sql' or 'inmemory', got '%s'", name, value)
		}
	}
	return nil
}

// loadStructFromEnv recursively loads configuration values into a struct from environment variables.
// It uses the "yaml" tag to determine the environment variable name.
//
// Parameters:
//
//	val: The reflect.Value of the struct to populate.
//	prefix: The prefix for environment variable names (e.g., "IMPORTER_BATCH_").
func loadStructFromEnv(val reflect.Value, prefix string) error {
	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)
		yamlTag := strings.Split(fieldType.Tag.Get("yaml"), ",")[0]
		if yamlTag == "" || yamlTag == "-" {
			continue
		}
		envVarName := strings.ToUpper(prefix + yamlTag)

		switch field.Kind() {
		case reflect.Struct:
			if err := loadStructFromEnv(field, envVarName+"_"); err != nil {
				return err
			}
			continue
		case reflect.Map:
			if field.Type().Key().Kind() == reflect.String && isScalar(field.Type().Elem().Kind()) {
				if err := loadScalarMapFromEnv(field, envVarName+"_"); err != nil {
					return err
				}
			}
			continue
		case reflect.Slice:
			if envValue, ok := os.LookupEnv(envVarName); ok && field.Type().Elem().Kind() == reflect.String {
				field.Set(reflect.ValueOf(splitList(envValue)))
			}
			continue
		}

		envValue, exists := os.LookupEnv(envVarName)
		if !exists {
			continue
		}
		if err := setField(field, envValue); err != nil {
			return fmt.Errorf("failed to set field '%s' from env var '%s': %w", fieldType.Name, envVarName, err)
		}
	}
	return nil
}

// loadScalarMapFromEnv fills a map[string]<scalar> from variables named prefix+KEY.
// Example: IMPORTER_QUEUE_WORKERS_LONG=4 sets Workers["long"] = 4.
func loadScalarMapFromEnv(mapField reflect.Value, prefix string) error {
	if mapField.IsNil() {
		mapField.Set(reflect.MakeMap(mapField.Type()))
	}
	for _, env := range os.Environ() {
		if !strings.HasPrefix(env, prefix) {
			continue
		}
		parts := strings.SplitN(strings.TrimPrefix(env, prefix), "=", 2)
		if len(parts) != 2 || parts[0] == "" {
			continue
		}
		elem := reflect.New(mapField.Type().Elem()).Elem()
		if err := setField(elem, parts[1]); err != nil {
			return fmt.Errorf("failed to set map entry '%s' from env var '%s%s': %w", strings.ToLower(parts[0]), prefix, parts[0], err)
		}
		mapField.SetMapIndex(reflect.ValueOf(strings.ToLower(parts[0])), elem)
	}
	return nil
}

func isScalar(kind reflect.Kind) bool {
	switch kind {
	case reflect.String, reflect.Bool, reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// setField sets the value of a reflect.Value field based on its kind.
func setField(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(intValue)
	case reflect.Float64, reflect.Float32:
		floatValue, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(floatValue)
	case reflect.Bool:
		boolValue, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(boolValue)
	}
	return nil
}
