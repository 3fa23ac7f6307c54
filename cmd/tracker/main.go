package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"rastreador-precos/config"
	"rastreador-precos/internal/bot"
	"rastreador-precos/internal/browser"
	"rastreador-precos/internal/database"
	"rastreador-precos/internal/monitor"
	"rastreador-precos/internal/notifier"
	"rastreador-precos/internal/scraper"
	"rastreador-precos/internal/search"
)

func main() {
	// Carregar variáveis de ambiente
	if err := godotenv.Load(); err != nil {
		log.Println("Arquivo .env não encontrado, usando variáveis de ambiente do sistema")
	}

	// Carregar configurações
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Erro ao carregar configurações: %v", err)
	}

	// Inicializar banco de dados
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Erro ao inicializar banco de dados: %v", err)
	}
	defer db.Close()

	// Pool de navegador compartilhado por extração, mineração e Shopee
	pool := browser.NewPool(browser.Config{
		Bin:      cfg.BrowserBin,
		Headless: cfg.Headless,
		Proxies:  cfg.Proxies,
	})
	defer pool.Close()

	extractor := scraper.NewExtractor(pool)

	// Agregador de busca multi-provedor
	engine := search.NewEngine(
		search.NewMercadoLivreProvider(),
		search.NewBuscapeProvider(),
		search.NewZoomProvider(),
		search.NewShopeeProvider(pool),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var senders []notifier.PushSender
	if cfg.FCMServerKey != "" {
		senders = append(senders, notifier.NewFCMSender(cfg.FCMServerKey, cfg.FCMEndpoint))
	}

	api, botErr := bot.Init(cfg.TelegramBotToken)
	if botErr != nil {
		log.Printf("Canal do Telegram desabilitado: %v", botErr)
	} else if cfg.TelegramChatID != 0 {
		senders = append(senders, notifier.NewTelegramSender(api, cfg.TelegramChatID))
	}

	dispatcher := notifier.NewDispatcher(db, cfg.AlertMinDrop, senders...)
	mon := monitor.New(db, extractor, dispatcher, cfg.MaxConcurrentChecks, cfg.MiningConcurrency)

	// Trabalhos periódicos supervisionados
	supervisor := monitor.NewSupervisor()
	supervisor.Register(monitor.Job{
		Name:     "verificacao",
		Interval: cfg.CheckInterval,
		Run:      func(ctx context.Context) error { return mon.CheckAll(ctx, false) },
	})
	supervisor.Register(monitor.Job{
		Name:     "verificacao-premium",
		Interval: cfg.PremiumCheckInterval,
		Run:      func(ctx context.Context) error { return mon.CheckAll(ctx, true) },
	})
	supervisor.Register(monitor.Job{
		Name:     "mineracao",
		Interval: cfg.MiningInterval,
		Run:      func(ctx context.Context) error { return mon.MineCatalog(ctx, monitor.DefaultListingTargets()) },
	})
	supervisor.Register(monitor.Job{
		Name:     "retencao",
		Interval: cfg.RetentionInterval,
		Run:      func(context.Context) error { return mon.CollapseHistory(cfg.RetentionAfterDays, 5000) },
	})
	supervisor.Start(ctx)

	// Comandos do canal operacional
	if botErr == nil {
		go bot.SetupCommands(ctx, api, bot.Deps{
			DB:               db,
			Monitor:          mon,
			Extractor:        extractor,
			Engine:           engine,
			Supervisor:       supervisor,
			Notifier:         dispatcher,
			Pool:             pool,
			AuthorizedChatID: cfg.TelegramChatID,
		})
	}

	// Aguardar sinal de interrupção
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Encerrando rastreador...")
	cancel()
	supervisor.Wait()
}
