package config

import (
	"database/sql"
	_ "github.com/lib/pq"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spf13/viper"
)

type Config struct {
	App     App           `yaml:"app"`
	Server  Server        `yaml:"server"`
	Storage Storage       `yaml:"storage"`
	DB      *sql.DB       `yaml:"db"`
	Queue   *RabbitMQ     `yaml:"rabbitmq"`
	Minio   *minio.Client `yaml:"minio"`
}

type App struct {
	Environment string `yaml:"environment"`
	Host        string `yaml:"host"`
	Protocol    string `yaml:"protocol"`
}

type Server struct {
	HttpPort string `yaml:"http_port"`
}

type Storage struct {
	Backend            string `yaml:"backend"`
	Bucket             string `yaml:"bucket"`
	PresignExpiryHours int    `yaml:"presign_expiry_hours"`
	LocalDirectory     string `yaml:"local_directory"`
	LocalSignSecret    string `yaml:"local_sign_secret"`
}

type RabbitMQ struct {
	Enabled bool   `json:"enabled"`
	Host    string `json:"host"`
	Port    int    `json:"port"`
	User    string `json:"user"`
	Pass    string `json:"pass"`
	Kind    string `json:"kind"`
}

func Load(path string) (*Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	err := viper.ReadInConfig()
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("postgres", viper.GetString("postgresql_host"))
	if err != nil {
		return nil, err
	}

	rabbitmq := &RabbitMQ{
		Enabled: viper.GetBool("rabbitmq_enabled"),
		Host:    viper.GetString("rabbitmq_host"),
		Port:    viper.GetInt("rabbitmq_port"),
		User:    viper.GetString("rabbitmq_user"),
		Pass:    viper.GetString("rabbitmq_pass"),
		Kind:    viper.GetString("rabbitmq_kind"),
	}

	storage := Storage{
		Backend:            viper.GetString("storage.backend"),
		Bucket:             viper.GetString("storage.bucket"),
		PresignExpiryHours: viper.GetInt("storage.presign_expiry_hours"),
		LocalDirectory:     viper.GetString("storage.local_directory"),
		LocalSignSecret:    viper.GetString("storage.local_sign_secret"),
	}

	cfg := &Config{
		App: App{
			Environment: viper.GetString("app.environment"),
			Host:        viper.GetString("app.host"),
			Protocol:    viper.GetString("app.protocol"),
		},
		Server: Server{
			HttpPort: viper.GetString("server.port"),
		},
		Storage: storage,
		DB:      db,
		Queue:   rabbitmq,
	}

	// The MinIO client is only dialed when the networked backend is selected;
	// the local backend needs no connection parameters.
	if storage.Backend != "local" {
		minioClient, err := minio.New(viper.GetString("minio.url"), &minio.Options{
			Creds:  credentials.NewStaticV4(viper.GetString("minio.access_id"), viper.GetString("minio.secret_access_key"), ""),
			Secure: viper.GetBool("minio.secure"),
		})
		if err != nil {
			return nil, err
		}
		cfg.Minio = minioClient
	}

	return cfg, nil
}
