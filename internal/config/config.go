package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/LJTian/NewsRadar/internal/collector"
)

const defaultSources = "szvc:深创投,weibo:微博,zhihu:知乎,baidu:百度热搜,wallstreetcn-hot:华尔街见闻"

type Config struct {
	AppPort string

	PostgresDSN string
	RedisAddr   string

	CronSpec string

	LogLevel       string
	LogDevelopment bool

	APIURL          string
	ProxyURL        string
	RequestInterval time.Duration
	KeyMode         collector.KeyMode
	PageLimit       int
	Sources         []collector.SourceRequest
}

type sourcesFile struct {
	Sources []collector.SourceRequest `yaml:"sources"`
}

// Load 先尝试加载 .env（不存在则忽略），再从环境变量读取配置
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	cfg := &Config{
		AppPort:        getEnv("APP_PORT", "9000"),
		PostgresDSN:    getEnv("POSTGRES_DSN", ""),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6380"),
		CronSpec:       getEnv("CRON_SPEC", "*/30 * * * *"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogDevelopment: getEnv("LOG_DEVELOPMENT", "false") == "true",
		APIURL:         getEnv("NEWSNOW_API_URL", collector.DefaultAPIURL),
		ProxyURL:       getEnv("CRAWL_PROXY_URL", ""),
	}

	defaultIntervalMS := int(collector.DefaultCrawlerConfig().RequestInterval / time.Millisecond)
	intervalMS, err := getEnvInt("CRAWL_REQUEST_INTERVAL_MS", defaultIntervalMS)
	if err != nil {
		return nil, err
	}
	cfg.RequestInterval = time.Duration(intervalMS) * time.Millisecond

	if cfg.PageLimit, err = getEnvInt("CRAWL_PAGE_LIMIT", 3); err != nil {
		return nil, err
	}

	if cfg.KeyMode, err = collector.ParseKeyMode(getEnv("CRAWL_KEY_MODE", "unique")); err != nil {
		return nil, fmt.Errorf("config: CRAWL_KEY_MODE: %w", err)
	}

	if path := getEnv("CRAWL_SOURCES_FILE", ""); path != "" {
		if cfg.Sources, err = LoadSourcesFile(path); err != nil {
			return nil, err
		}
	} else {
		cfg.Sources = ParseSources(getEnv("CRAWL_SOURCES", defaultSources))
	}
	if len(cfg.Sources) == 0 {
		return nil, errors.New("config: no sources configured")
	}

	return cfg, nil
}

// ParseSources 解析 "id:别名,id" 形式的数据源列表
func ParseSources(s string) []collector.SourceRequest {
	var out []collector.SourceRequest
	for _, part := range strings.Split(s, ",") {
		id, alias, _ := strings.Cut(part, ":")
		if strings.TrimSpace(id) == "" {
			continue
		}
		out = append(out, collector.NewSourceRequest(id, alias))
	}
	return out
}

// LoadSourcesFile 从 YAML 文件读取数据源列表
func LoadSourcesFile(path string) ([]collector.SourceRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read sources file: %w", err)
	}
	var f sourcesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("config: parse sources file: %w", err)
	}
	out := make([]collector.SourceRequest, 0, len(f.Sources))
	for _, s := range f.Sources {
		if strings.TrimSpace(s.ID) == "" {
			continue
		}
		out = append(out, collector.NewSourceRequest(s.ID, s.Alias))
	}
	return out, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}
