// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package config

import (
	"log"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Application config structure
type AppConfig struct {
	Name     string `mapstructure:"service_name" validate:"required"`
	Version  string `mapstructure:"version" validate:"required"`
	Host     string `mapstructure:"host" validate:"required"`
	Port     int    `mapstructure:"port" validate:"required"`
	LogLevel string `mapstructure:"log_level" validate:"required"`
	LogFile  string `mapstructure:"log_file"`

	// AdminApiKey guards the admin HTTP surface; empty disables auth.
	AdminApiKey string `mapstructure:"admin_api_key"`

	AsteriskConfig AsteriskConfig `mapstructure:"asterisk" validate:"required"`
	OpenAIConfig   OpenAIConfig   `mapstructure:"openai" validate:"required"`
	YandexConfig   YandexConfig   `mapstructure:"yandex" validate:"required"`
	GoogleConfig   GoogleConfig   `mapstructure:"google"`
	PipelineConfig PipelineConfig `mapstructure:"pipeline"`

	DatabasePath string `mapstructure:"database_path" validate:"required"`
	// SoundDir must be a directory Asterisk resolves sound: media from.
	SoundDir     string `mapstructure:"sound_dir" validate:"required"`
	RecordingDir string `mapstructure:"recording_dir" validate:"required"`

	KnowledgeBasePath string `mapstructure:"knowledge_base_path"`
}

type AsteriskConfig struct {
	URL      string `mapstructure:"url" validate:"required"`
	Username string `mapstructure:"username" validate:"required"`
	Password string `mapstructure:"password" validate:"required"`
	App      string `mapstructure:"app" validate:"required"`
}

type OpenAIConfig struct {
	ApiKey       string `mapstructure:"api_key" validate:"required"`
	Model        string `mapstructure:"model" validate:"required"`
	SystemPrompt string `mapstructure:"system_prompt"`
}

type YandexConfig struct {
	ApiKey   string `mapstructure:"api_key" validate:"required"`
	FolderId string `mapstructure:"folder_id"`
	Voice    string `mapstructure:"voice"`
	Language string `mapstructure:"language"`
}

// GoogleConfig enables the reliable synthesis fallback when either
// credential field is set.
type GoogleConfig struct {
	ApiKey             string `mapstructure:"api_key"`
	ServiceAccountJson string `mapstructure:"service_account_json"`
	Voice              string `mapstructure:"voice"`
}

type PipelineConfig struct {
	SynthesisWorkers  int    `mapstructure:"synthesis_workers"`
	SynthesisTimeoutS int    `mapstructure:"synthesis_timeout_s"`
	SilenceTimeoutMs  int    `mapstructure:"silence_timeout_ms"`
	MinSpeechMs       int    `mapstructure:"min_speech_ms"`
	MaxRecordingS     int    `mapstructure:"max_recording_s"`
	BargeInGuardMs    int    `mapstructure:"barge_in_guard_ms"`
	InactivityS       int    `mapstructure:"inactivity_s"`
	Greeting          string `mapstructure:"greeting"`
	FillerEnabled     bool   `mapstructure:"filler_enabled"`
}

// reading config and intializing configs for application
func InitConfig() (*viper.Viper, error) {
	vConfig := viper.NewWithOptions(viper.KeyDelimiter("__"))

	vConfig.AddConfigPath(".")
	vConfig.SetConfigName(".env")
	path := os.Getenv("ENV_PATH")
	if path != "" {
		log.Printf("env path %v", path)
		vConfig.SetConfigFile(path)
	}
	vConfig.SetConfigType("env")
	vConfig.AutomaticEnv()

	setDefault(vConfig)
	if err := vConfig.ReadInConfig(); err != nil && !os.IsNotExist(err) {
		log.Printf("Reading from env varaibles.")
	}

	return vConfig, nil
}

func setDefault(v *viper.Viper) {
	// setting all default values
	// keeping watch on https://github.com/spf13/viper/issues/188

	v.SetDefault("SERVICE_NAME", "langchain-vox-bot")
	v.SetDefault("VERSION", "0.0.1")
	v.SetDefault("HOST", "0.0.0.0")
	v.SetDefault("PORT", 8000)
	v.SetDefault("LOG_LEVEL", "debug")
	v.SetDefault("LOG_FILE", "logs/app.log")
	v.SetDefault("ADMIN_API_KEY", "")

	v.SetDefault("DATABASE_PATH", "data/calls.db")
	v.SetDefault("SOUND_DIR", "/usr/share/asterisk/sounds/en")
	v.SetDefault("RECORDING_DIR", "/var/spool/asterisk/recording")
	v.SetDefault("KNOWLEDGE_BASE_PATH", "")

	v.SetDefault("ASTERISK__URL", "http://localhost:8088/ari")
	v.SetDefault("ASTERISK__USERNAME", "asterisk")
	v.SetDefault("ASTERISK__PASSWORD", "")
	v.SetDefault("ASTERISK__APP", "voice-assistant")

	v.SetDefault("OPENAI__API_KEY", "")
	v.SetDefault("OPENAI__MODEL", "gpt-4o-mini")
	v.SetDefault("OPENAI__SYSTEM_PROMPT", "")

	v.SetDefault("YANDEX__API_KEY", "")
	v.SetDefault("YANDEX__FOLDER_ID", "")
	v.SetDefault("YANDEX__VOICE", "alena")
	v.SetDefault("YANDEX__LANGUAGE", "ru-RU")

	v.SetDefault("GOOGLE__API_KEY", "")
	v.SetDefault("GOOGLE__SERVICE_ACCOUNT_JSON", "")
	v.SetDefault("GOOGLE__VOICE", "ru-RU-Wavenet-C")

	v.SetDefault("PIPELINE__SYNTHESIS_WORKERS", 3)
	v.SetDefault("PIPELINE__SYNTHESIS_TIMEOUT_S", 5)
	v.SetDefault("PIPELINE__SILENCE_TIMEOUT_MS", 1200)
	v.SetDefault("PIPELINE__MIN_SPEECH_MS", 500)
	v.SetDefault("PIPELINE__MAX_RECORDING_S", 15)
	v.SetDefault("PIPELINE__BARGE_IN_GUARD_MS", 400)
	v.SetDefault("PIPELINE__INACTIVITY_S", 30)
	v.SetDefault("PIPELINE__GREETING", "")
	v.SetDefault("PIPELINE__FILLER_ENABLED", true)
}

// Getting application config from viper
func GetApplicationConfig(v *viper.Viper) (*AppConfig, error) {
	var config AppConfig
	err := v.Unmarshal(&config)
	if err != nil {
		log.Printf("%+v\n", err)
		return nil, err
	}

	// valdating the app config
	validate := validator.New()
	err = validate.Struct(&config)
	if err != nil {
		log.Printf("%+v\n", err)
		return nil, err
	}
	return &config, nil
}
