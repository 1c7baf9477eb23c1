package config

import (
	"io/ioutil"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/freundallein/commonmq/chassis/queue"
)

const (
	defaultWorkers     = 1
	defaultLogLevel    = "info"
	defaultMetricsAddr = ":2112"
)

// AppConfig ...
type AppConfig struct {
	Queue struct {
		URL             string `yaml:"url"`
		BadMessageQueue string `yaml:"badMessageQueue"`
		PollIntervalMs  int    `yaml:"pollIntervalMs"`
	}
	Redis struct {
		Password  string `yaml:"password"`
		DB        int    `yaml:"db"`
		Namespace string `yaml:"namespace"`
	}
	AWS struct {
		CredentialsFile    string `yaml:"credentialsFile"`
		CredentialsProfile string `yaml:"credentialsProfile"`
		Retries            int    `yaml:"retries"`
		Endpoint           string `yaml:"endpoint"`
		WaitTimeSeconds    int64  `yaml:"waitTimeSeconds"`
		ReceiptTTLSeconds  int    `yaml:"receiptTTLSeconds"`
	}
	Postgres struct {
		VisibilityTimeout int `yaml:"visibilityTimeout"`
	}
	Consumer struct {
		Workers           int    `yaml:"workers"`
		LogLevel          string `yaml:"loglevel"`
		MetricsAddr       string `yaml:"metricsAddr"`
		VisibilityTimeout int    `yaml:"visibilityTimeout"`
	}
}

// Read loads the file named by CFG_PATH.
func Read() (*AppConfig, error) {
	return ReadFile(os.Getenv("CFG_PATH"))
}

// ReadFile ...
func ReadFile(filename string) (*AppConfig, error) {
	cfg := &AppConfig{}
	buff, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	err = yaml.Unmarshal(buff, cfg)
	if err != nil {
		return nil, err
	}
	cfg.setDefaults()
	return cfg, nil
}

// Default is used when no config file is given.
func Default() *AppConfig {
	cfg := &AppConfig{}
	cfg.setDefaults()
	return cfg
}

func (c *AppConfig) setDefaults() {
	if c.Queue.URL == "" {
		c.Queue.URL = queue.DefaultQueue
	}
	if c.Consumer.Workers <= 0 {
		c.Consumer.Workers = defaultWorkers
	}
	if c.Consumer.LogLevel == "" {
		c.Consumer.LogLevel = defaultLogLevel
	}
	if c.Consumer.MetricsAddr == "" {
		c.Consumer.MetricsAddr = defaultMetricsAddr
	}
}

// QueueConfig ...
func (c *AppConfig) QueueConfig() queue.Config {
	return queue.Config{
		Queue:           c.Queue.URL,
		BadMessageQueue: c.Queue.BadMessageQueue,
		PollInterval:    time.Duration(c.Queue.PollIntervalMs) * time.Millisecond,

		//RSMQ specific
		RedisPassword:  c.Redis.Password,
		RedisDB:        c.Redis.DB,
		RedisNamespace: c.Redis.Namespace,

		//AWS specific
		CredentialsFile:    c.AWS.CredentialsFile,
		CredentialsProfile: c.AWS.CredentialsProfile,
		Retries:            c.AWS.Retries,
		Endpoint:           c.AWS.Endpoint,
		WaitTimeSeconds:    c.AWS.WaitTimeSeconds,
		ReceiptTTL:         time.Duration(c.AWS.ReceiptTTLSeconds) * time.Second,

		//Postgres specific
		VisibilityTimeout: c.Postgres.VisibilityTimeout,
	}
}
