package config

import (
	"flag"
	"log"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/redis/go-redis/v9"
)

// Config - Global variable to export
var Config AppConfig

// AppConfig defines
type AppConfig struct {
	Server      ServerConfig       `koanf:"server"`
	Database    DatabaseConfig     `koanf:"database"`
	Queue       QueueConfig        `koanf:"queue"`
	Minio       MinioConfig        `koanf:"minio"`
	Neo4j       Neo4jConfig        `koanf:"neo4j"`
	Milvus      MilvusConfig       `koanf:"milvus"`
	OCR         OCRConfig          `koanf:"ocr"`
	Knowledge   KnowledgeConfig    `koanf:"knowledge"`
	Storage     StorageConfig      `koanf:"storage"`
	EntityTypes EntityTypeDefaults `koanf:"entitytypes"`
}

// ServerConfig defines process-wide behavior
type ServerConfig struct {
	Debug bool `koanf:"debug"`
}

// DatabaseConfig related to database
type DatabaseConfig struct {
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Name     string `koanf:"name"`
	TimeZone string `koanf:"timezone"`
	Pool     struct {
		IdleConnections int           `koanf:"idleconnections"`
		MaxConnections  int           `koanf:"maxconnections"`
		ConnLifeTime    time.Duration `koanf:"connlifetime"`
	}
}

// QueueConfig related to the Redis-backed task queues
type QueueConfig struct {
	Redis struct {
		RedisOptions redis.Options `koanf:"redisoptions"`
	}
	MaxRetries     int           `koanf:"maxretries"`
	InitialBackoff time.Duration `koanf:"initialbackoff"`
	MaxBackoff     time.Duration `koanf:"maxbackoff"`
	OCRWorkers     int           `koanf:"ocrworkers"`
	KBBuildWorkers int           `koanf:"kbbuildworkers"`
}

// MinioConfig is the object storage configuration. The source bucket holds
// uploaded documents, the content bucket holds content records.
type MinioConfig struct {
	Host          string `koanf:"host"`
	Port          string `koanf:"port"`
	RootUser      string `koanf:"rootuser"`
	RootPwd       string `koanf:"rootpwd"`
	SourceBucket  string `koanf:"sourcebucket"`
	ContentBucket string `koanf:"contentbucket"`
}

// Neo4jConfig is the graph database configuration.
type Neo4jConfig struct {
	URI      string `koanf:"uri"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
}

// MilvusConfig is the milvus configuration.
type MilvusConfig struct {
	Host string `koanf:"host"`
	Port string `koanf:"port"`
}

// OCRConfig points at the OCR HTTP API (MinerU-compatible).
type OCRConfig struct {
	APIURL    string        `koanf:"apiurl" validate:"url"`
	Backend   string        `koanf:"backend"`
	OutputDir string        `koanf:"outputdir"`
	Timeout   time.Duration `koanf:"timeout"`
}

// KnowledgeConfig points at the Markdown-restructuring / graph-build service.
type KnowledgeConfig struct {
	BaseURL string        `koanf:"baseurl" validate:"url"`
	Timeout time.Duration `koanf:"timeout"`
}

// StorageConfig holds local artifact paths.
type StorageConfig struct {
	GraphPath string `koanf:"graphpath"`
}

// EntityTypeDefaults names the system-wide default entity-type template used
// when neither the document nor the tenant specifies one.
type EntityTypeDefaults struct {
	DefaultTemplateName string `koanf:"defaulttemplatename"`
}

// Init - Assign global config to decoded config struct
func Init(filePath string) error {
	k := koanf.New(".")
	parser := yaml.Parser()

	if err := k.Load(confmap.Provider(map[string]any{
		"queue.maxretries":     3,
		"queue.initialbackoff": "2s",
		"queue.maxbackoff":     "2m",
		"queue.ocrworkers":     4,
		"queue.kbbuildworkers": 2,
	}, "."), nil); err != nil {
		log.Fatal(err.Error())
	}

	if err := k.Load(file.Provider(filePath), parser); err != nil {
		log.Fatal(err.Error())
	}

	if err := k.Load(env.ProviderWithValue("CFG_", ".", func(s string, v string) (string, any) {
		key := strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "CFG_")), "_", ".")
		if strings.Contains(v, ",") {
			return key, strings.Split(strings.TrimSpace(v), ",")
		}
		return key, v
	}), nil); err != nil {
		return err
	}

	if err := k.Unmarshal("", &Config); err != nil {
		return err
	}

	return ValidateConfig(&Config)
}

// ValidateConfig is for custom validation rules for the configuration
func ValidateConfig(cfg *AppConfig) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return err
	}
	return nil
}

var defaultConfigPath = "config/config.yaml"

// ParseConfigFlag allows clients to specify the relative path to the file from
// which the configuration will be loaded.
func ParseConfigFlag() string {
	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	configPath := fs.String("file", defaultConfigPath, "configuration file")
	flag.Parse()

	return *configPath
}
