package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contém as configurações da aplicação
type Config struct {
	DatabasePath string

	// Cadência dos trabalhos em background
	CheckInterval        time.Duration // verificação de produtos de contas comuns
	PremiumCheckInterval time.Duration // verificação de produtos de contas premium
	MiningInterval       time.Duration // mineração de catálogo
	RetentionInterval    time.Duration // compactação do histórico de preços
	RetentionAfterDays   int           // idade mínima (dias) para compactar histórico

	// Limites de concorrência
	MaxConcurrentChecks int // sessões de extração simultâneas na verificação
	MiningConcurrency   int // alvos de catálogo minerados em paralelo

	// Navegador headless
	BrowserBin string // caminho do binário; vazio = baixar o padrão
	Headless   bool
	Proxies    []string // lista de proxies para rotação por lançamento

	// Alertas
	AlertMinDrop float64 // queda mínima absoluta de preço para gerar alerta

	// Push (FCM)
	FCMServerKey string
	FCMEndpoint  string

	// Telegram (canal operacional, opcional)
	TelegramBotToken string
	TelegramChatID   int64
}

// Load carrega as configurações das variáveis de ambiente
func Load() (*Config, error) {
	cfg := &Config{
		DatabasePath:         envString("DATABASE_PATH", "./tracker.db"),
		CheckInterval:        envMinutes("CHECK_INTERVAL_MINUTES", 180),
		PremiumCheckInterval: envMinutes("PREMIUM_CHECK_INTERVAL_MINUTES", 30),
		MiningInterval:       envMinutes("MINING_INTERVAL_MINUTES", 360),
		RetentionInterval:    envMinutes("RETENTION_INTERVAL_MINUTES", 1440),
		RetentionAfterDays:   envInt("RETENTION_AFTER_DAYS", 90),
		MaxConcurrentChecks:  envInt("MAX_CONCURRENT_CHECKS", 5),
		MiningConcurrency:    envInt("MINING_CONCURRENCY", 2),
		BrowserBin:           envString("BROWSER_BIN", ""),
		Headless:             envBool("BROWSER_HEADLESS", true),
		AlertMinDrop:         envFloat("ALERT_MIN_DROP", 0),
		FCMServerKey:         os.Getenv("FCM_SERVER_KEY"),
		FCMEndpoint:          envString("FCM_ENDPOINT", "https://fcm.googleapis.com/fcm/send"),
		TelegramBotToken:     os.Getenv("TELEGRAM_BOT_TOKEN"),
	}

	// Lista de proxies separada por vírgula (opcional)
	if raw := os.Getenv("PROXY_LIST"); raw != "" {
		for _, p := range strings.Split(raw, ",") {
			if p = strings.TrimSpace(p); p != "" {
				cfg.Proxies = append(cfg.Proxies, p)
			}
		}
	}

	// Chat ID é opcional (usado para o canal operacional do Telegram)
	if chatIDStr := os.Getenv("TELEGRAM_CHAT_ID"); chatIDStr != "" {
		if chatID, err := strconv.ParseInt(chatIDStr, 10, 64); err == nil {
			cfg.TelegramChatID = chatID
		}
	}

	if cfg.MaxConcurrentChecks <= 0 {
		cfg.MaxConcurrentChecks = 1
	}
	if cfg.MiningConcurrency <= 0 {
		cfg.MiningConcurrency = 1
	}

	return cfg, nil
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			return parsed
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil && parsed >= 0 {
			return parsed
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return def
}

func envMinutes(key string, defMinutes int) time.Duration {
	return time.Duration(envInt(key, defMinutes)) * time.Minute
}
