package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds everything the API server and the Discord relay read from the environment.
type Config struct {
	Port           int    `env:"PORT" envDefault:"8080"`
	DatabaseURL    string `env:"DATABASE_URL"` // empty selects lite mode
	DBMaxConns     int32  `env:"DB_MAX_CONNS" envDefault:"6"`
	LiteDBPath     string `env:"LITE_DB_PATH" envDefault:"./data/cases.db"`
	RequestTimeout int    `env:"REQUEST_TIMEOUT_SECONDS" envDefault:"15"`
	JWTSecret      string `env:"JWT_SECRET,required"`

	DocumentsBucket string `env:"DOCUMENTS_BUCKET"` // empty selects DOCUMENTS_DIR
	DocumentsDir    string `env:"DOCUMENTS_DIR" envDefault:"./data/documents"`
	AWSRegion       string `env:"AWS_REGION" envDefault:"ap-southeast-1"`
	S3Endpoint      string `env:"S3_ENDPOINT"`

	RedisAddr     string `env:"REDIS_ADDR"` // empty disables the redis publisher
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	EventsChannel string `env:"EVENTS_CHANNEL" envDefault:"dhportal:case_events"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
	LogFile   string `env:"LOG_FILE"`

	DiscordBotToken          string `env:"DISCORD_BOT_TOKEN"`
	DiscordChannelID         string `env:"DISCORD_CHANNEL_ID"`
	DiscordMessagesPerMinute int    `env:"DISCORD_MESSAGES_PER_MINUTE" envDefault:"30"`
}

func (c Config) Timeout() time.Duration { return time.Duration(c.RequestTimeout) * time.Second }

func (c Config) LiteMode() bool { return c.DatabaseURL == "" }

// Load reads the given env files (".env" when none are named; a missing file is fine)
// and then parses the process environment. Variables already set win over the files.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if cfg.RequestTimeout <= 0 {
		return Config{}, errors.New("parse config: REQUEST_TIMEOUT_SECONDS must be positive")
	}
	if cfg.DiscordMessagesPerMinute <= 0 {
		return Config{}, errors.New("parse config: DISCORD_MESSAGES_PER_MINUTE must be positive")
	}
	return cfg, nil
}
