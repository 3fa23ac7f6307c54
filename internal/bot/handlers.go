package bot

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"rastreador-precos/internal/browser"
	"rastreador-precos/internal/database"
	"rastreador-precos/internal/monitor"
	"rastreador-precos/internal/notifier"
	"rastreador-precos/internal/scraper"
	"rastreador-precos/internal/search"
)

// escapeHTML escapa caracteres especiais do HTML
func escapeHTML(text string) string {
	text = strings.ReplaceAll(text, "&", "&amp;")
	text = strings.ReplaceAll(text, "<", "&lt;")
	text = strings.ReplaceAll(text, ">", "&gt;")
	return text
}

// Deps são as dependências dos handlers do canal operacional
type Deps struct {
	DB         *database.DB
	Monitor    *monitor.Monitor
	Extractor  *scraper.Extractor
	Engine     *search.Engine
	Supervisor *monitor.Supervisor
	Notifier   *notifier.Dispatcher
	Pool       *browser.Pool

	// Chat autorizado para comandos que alteram estado (0 = qualquer um)
	AuthorizedChatID int64
}

// ownerFor deriva o identificador de dono a partir do chat
func ownerFor(chatID int64) string {
	return fmt.Sprintf("tg:%d", chatID)
}

// SetupCommands consome as atualizações do bot e despacha os comandos.
// Bloqueia até o contexto ser cancelado.
func SetupCommands(ctx context.Context, bot *tgbotapi.BotAPI, deps Deps) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			bot.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil || update.Message.Text == "" {
				continue
			}
			handleUpdate(ctx, bot, deps, update.Message)
		}
	}
}

func handleUpdate(ctx context.Context, bot *tgbotapi.BotAPI, deps Deps, message *tgbotapi.Message) {
	parts := strings.Fields(message.Text)
	if len(parts) == 0 {
		return
	}

	command := strings.ToLower(parts[0])
	// Remover @botname se presente
	if idx := strings.Index(command, "@"); idx > 0 {
		command = command[:idx]
	}

	// Comandos públicos (não precisam de autorização)
	isPublicCommand := command == "/start" || command == "/help"

	if !isPublicCommand && deps.AuthorizedChatID != 0 && message.Chat.ID != deps.AuthorizedChatID {
		msg := tgbotapi.NewMessage(message.Chat.ID, "Você não está autorizado a usar este bot.")
		bot.Send(msg)
		return
	}

	switch command {
	case "/start", "/help":
		handleHelp(bot, message.Chat.ID)
	case "/add":
		handleAddProduct(ctx, bot, message, deps)
	case "/lista", "/list":
		handleListProducts(bot, message.Chat.ID, deps)
	case "/remove":
		handleRemoveProduct(bot, message, deps)
	case "/check":
		handleCheckProduct(ctx, bot, message, deps)
	case "/buscar":
		handleSearch(ctx, bot, message, deps)
	case "/dispositivo":
		handleRegisterDevice(bot, message, deps)
	case "/alertas":
		handleListAlerts(bot, message.Chat.ID, deps)
	case "/apagar":
		handleDeleteProduct(bot, message, deps)
	case "/premium":
		handleSetTier(bot, message, deps)
	case "/status":
		handleStatus(bot, message.Chat.ID, deps)
	case "/reiniciar":
		handleRestartBrowser(bot, message.Chat.ID, deps)
	default:
		msg := tgbotapi.NewMessage(message.Chat.ID, "Comando não reconhecido. Use /help para ver os comandos disponíveis.")
		bot.Send(msg)
	}
}

func handleHelp(bot *tgbotapi.BotAPI, chatID int64) {
	helpText := `🤖 <b>Rastreador de Preços</b>

<b>Comandos disponíveis:</b>

<b>/add</b> - Adicionar produto para rastrear
Uso: /add &lt;URL&gt; [preço_alvo]
Exemplo: /add https://mercadolivre.com.br/produto 3000

<b>/lista</b> - Listar produtos rastreados

<b>/remove &lt;id&gt;</b> - Parar de rastrear um produto

<b>/check &lt;id&gt;</b> - Verificar o preço de um produto agora

<b>/buscar &lt;termo&gt;</b> - Buscar um produto em todos os provedores
Exemplo: /buscar iphone 14 128gb

<b>/dispositivo &lt;token&gt;</b> - Cadastrar um token de push para receber alertas

<b>/alertas</b> - Últimos alertas gerados para seus produtos

<b>/apagar &lt;id&gt;</b> - Apagar um produto e todo o seu histórico

<b>/premium &lt;on|off&gt;</b> - Alternar a cadência premium de verificação

<b>/status</b> - Estado dos trabalhos em background

<b>/reiniciar</b> - Reiniciar o navegador compartilhado

<b>/help</b> - Mostrar esta mensagem de ajuda
`

	msg := tgbotapi.NewMessage(chatID, helpText)
	msg.ParseMode = "HTML"
	if _, err := bot.Send(msg); err != nil {
		log.Printf("Erro ao enviar mensagem de ajuda: %v", err)
		// Tentar sem formatação se houver erro
		msg.ParseMode = ""
		bot.Send(msg)
	}
}

func handleAddProduct(ctx context.Context, bot *tgbotapi.BotAPI, message *tgbotapi.Message, deps Deps) {
	parts := strings.Fields(message.Text)
	if len(parts) < 2 {
		msg := tgbotapi.NewMessage(message.Chat.ID, "❌ Formato incorreto.\n\nUso: /add <URL> [preço_alvo]\n\nExemplo: /add https://mercadolivre.com.br/produto 3000")
		bot.Send(msg)
		return
	}

	url := parts[1]
	var targetPrice float64
	if len(parts) >= 3 {
		price, err := strconv.ParseFloat(parts[2], 64)
		if err != nil || price <= 0 {
			msg := tgbotapi.NewMessage(message.Chat.ID, "❌ Preço alvo inválido. Use um valor numérico positivo.")
			bot.Send(msg)
			return
		}
		targetPrice = price
	}

	waitMsg := tgbotapi.NewMessage(message.Chat.ID, "⏳ Extraindo dados do produto...")
	bot.Send(waitMsg)

	snap, err := deps.Extractor.ExtractResolved(ctx, url)
	if err != nil {
		msg := tgbotapi.NewMessage(message.Chat.ID, fmt.Sprintf("❌ Não consegui extrair o produto: %v", err))
		bot.Send(msg)
		return
	}

	owner := ownerFor(message.Chat.ID)
	trackedURL := url
	if snap.FinalURL != "" {
		trackedURL = snap.FinalURL
	}

	id, err := deps.DB.AddProduct(owner, trackedURL, *snap, targetPrice, false)
	if err != nil {
		var msg tgbotapi.MessageConfig
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			msg = tgbotapi.NewMessage(message.Chat.ID, "❌ Este produto já está sendo rastreado.")
		} else {
			msg = tgbotapi.NewMessage(message.Chat.ID, fmt.Sprintf("❌ Erro ao adicionar produto: %v", err))
		}
		bot.Send(msg)
		return
	}

	response := fmt.Sprintf(
		"✅ Produto adicionado com sucesso!\n\n"+
			"ID: %d\n"+
			"Nome: %s\n"+
			"Preço atual: R$ %.2f\n"+
			"Loja: %s",
		id, snap.Title, snap.CurrentPrice, snap.Source,
	)
	if snap.OriginalPrice > snap.CurrentPrice && snap.OriginalPrice > 0 {
		discount := ((snap.OriginalPrice - snap.CurrentPrice) / snap.OriginalPrice) * 100
		response += fmt.Sprintf("\n🎉 Em promoção! %.1f%% OFF (de R$ %.2f)", discount, snap.OriginalPrice)
	}
	if targetPrice > 0 {
		response += fmt.Sprintf("\nPreço alvo: R$ %.2f", targetPrice)
	}
	if !snap.InStock {
		response += "\n⚠️ Produto fora de estoque no momento"
	}

	bot.Send(tgbotapi.NewMessage(message.Chat.ID, response))
}

func handleListProducts(bot *tgbotapi.BotAPI, chatID int64, deps Deps) {
	products, err := deps.DB.ListProducts(ownerFor(chatID))
	if err != nil {
		msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("❌ Erro ao listar produtos: %v", err))
		bot.Send(msg)
		return
	}

	if len(products) == 0 {
		msg := tgbotapi.NewMessage(chatID, "📋 Nenhum produto sendo rastreado no momento.")
		bot.Send(msg)
		return
	}

	var response strings.Builder
	response.WriteString("📋 <b>Produtos rastreados:</b>\n\n")

	for _, p := range products {
		response.WriteString(fmt.Sprintf("🆔 <b>ID: %d</b>\n", p.ID))
		response.WriteString(fmt.Sprintf("📦 %s\n", escapeHTML(p.Title)))

		if p.CurrentPrice > 0 {
			response.WriteString(fmt.Sprintf("💰 <b>R$ %.2f</b>", p.CurrentPrice))
			if p.Discount > 0 && p.OriginalPrice > 0 {
				response.WriteString(fmt.Sprintf(" 🎉 %.1f%% OFF (de R$ %.2f)", p.Discount, p.OriginalPrice))
			}
			response.WriteString("\n")
		} else {
			response.WriteString("💰 Preço ainda não verificado\n")
		}

		if p.TargetPrice > 0 {
			if p.CurrentPrice > 0 && p.CurrentPrice <= p.TargetPrice {
				response.WriteString(fmt.Sprintf("🎯 Preço alvo: R$ %.2f ✅ <b>META ATINGIDA!</b>\n", p.TargetPrice))
			} else {
				response.WriteString(fmt.Sprintf("🎯 Preço alvo: R$ %.2f\n", p.TargetPrice))
			}
		}
		if !p.InStock {
			response.WriteString("📭 Fora de estoque\n")
		}
		if !p.LastChecked.IsZero() {
			response.WriteString(fmt.Sprintf("🕐 Última verificação: %s\n", p.LastChecked.Format("02/01/2006 15:04")))
		}
		response.WriteString(fmt.Sprintf("🔗 %s\n\n", p.URL))
	}

	msg := tgbotapi.NewMessage(chatID, response.String())
	msg.ParseMode = "HTML"
	if _, err := bot.Send(msg); err != nil {
		log.Printf("Erro ao enviar lista de produtos com HTML: %v", err)
		msg.ParseMode = ""
		bot.Send(msg)
	}
}

func handleRemoveProduct(bot *tgbotapi.BotAPI, message *tgbotapi.Message, deps Deps) {
	parts := strings.Fields(message.Text)
	if len(parts) < 2 {
		msg := tgbotapi.NewMessage(message.Chat.ID, "❌ Formato incorreto.\n\nUso: /remove <id>\n\nExemplo: /remove 1")
		bot.Send(msg)
		return
	}

	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		msg := tgbotapi.NewMessage(message.Chat.ID, "❌ ID inválido.")
		bot.Send(msg)
		return
	}

	product, err := deps.DB.GetProductByID(id)
	if err != nil || product.OwnerID != ownerFor(message.Chat.ID) {
		msg := tgbotapi.NewMessage(message.Chat.ID, "❌ Produto não encontrado.")
		bot.Send(msg)
		return
	}

	if err := deps.DB.DeactivateProduct(id); err != nil {
		msg := tgbotapi.NewMessage(message.Chat.ID, fmt.Sprintf("❌ Erro ao remover produto: %v", err))
		bot.Send(msg)
		return
	}

	bot.Send(tgbotapi.NewMessage(message.Chat.ID, fmt.Sprintf("✅ Produto removido: %s", product.Title)))
}

func handleCheckProduct(ctx context.Context, bot *tgbotapi.BotAPI, message *tgbotapi.Message, deps Deps) {
	parts := strings.Fields(message.Text)
	if len(parts) < 2 {
		msg := tgbotapi.NewMessage(message.Chat.ID, "❌ Formato incorreto.\n\nUso: /check <id>\n\nExemplo: /check 1")
		bot.Send(msg)
		return
	}

	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		msg := tgbotapi.NewMessage(message.Chat.ID, "❌ ID inválido.")
		bot.Send(msg)
		return
	}

	product, err := deps.DB.GetProductByID(id)
	if err != nil || product.OwnerID != ownerFor(message.Chat.ID) {
		msg := tgbotapi.NewMessage(message.Chat.ID, "❌ Produto não encontrado.")
		bot.Send(msg)
		return
	}

	waitMsg := tgbotapi.NewMessage(message.Chat.ID, "⏳ Verificando preço...")
	sentMsg, err := bot.Send(waitMsg)
	var sentMessageID int
	if err == nil {
		sentMessageID = sentMsg.MessageID
	}

	newPrice, err := deps.Monitor.CheckProduct(ctx, *product)
	if err != nil {
		sendOrEdit(bot, message.Chat.ID, sentMessageID, fmt.Sprintf("❌ Erro ao verificar preço: %v", err), "")
		return
	}

	updated, err := deps.DB.GetProductByID(id)
	if err != nil {
		sendOrEdit(bot, message.Chat.ID, sentMessageID, fmt.Sprintf("❌ Erro ao buscar produto atualizado: %v", err), "")
		return
	}
	if updated.CurrentPrice == 0 && newPrice > 0 {
		updated.CurrentPrice = newPrice
	}

	response := fmt.Sprintf(
		"📊 <b>Produto: %s</b>\n\n"+
			"Preço atual: R$ %.2f\n"+
			"Preço anterior: R$ %.2f\n"+
			"Link: %s",
		escapeHTML(updated.Title), updated.CurrentPrice, product.CurrentPrice, updated.URL,
	)
	if updated.Discount > 0 && updated.OriginalPrice > 0 {
		response += fmt.Sprintf("\n\n🎉 <b>%.1f%% OFF</b> (de R$ %.2f)", updated.Discount, updated.OriginalPrice)
	}
	if updated.TargetPrice > 0 && updated.CurrentPrice > 0 && updated.CurrentPrice <= updated.TargetPrice {
		response += "\n\n✅ Produto está abaixo do preço alvo!"
	}
	if !updated.InStock {
		response += "\n\n📭 Produto fora de estoque"
	}

	sendOrEdit(bot, message.Chat.ID, sentMessageID, response, "HTML")
}

func handleSearch(ctx context.Context, bot *tgbotapi.BotAPI, message *tgbotapi.Message, deps Deps) {
	query := strings.TrimSpace(strings.TrimPrefix(message.Text, "/buscar"))
	if idx := strings.Index(query, " "); query != "" && strings.HasPrefix(query, "@") && idx > 0 {
		query = strings.TrimSpace(query[idx:])
	}
	if query == "" {
		msg := tgbotapi.NewMessage(message.Chat.ID, "❌ Formato incorreto.\n\nUso: /buscar <termo>\n\nExemplo: /buscar iphone 14 128gb")
		bot.Send(msg)
		return
	}

	bot.Send(tgbotapi.NewMessage(message.Chat.ID, "🔎 Buscando em todos os provedores..."))

	sctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	groups := deps.Engine.Search(sctx, query)

	if len(groups) == 0 {
		bot.Send(tgbotapi.NewMessage(message.Chat.ID, "Nenhum resultado encontrado."))
		return
	}

	// Só a primeira página cabe numa mensagem do Telegram
	limit := 10
	if len(groups) < limit {
		limit = len(groups)
	}

	var response strings.Builder
	response.WriteString(fmt.Sprintf("🔎 <b>Resultados para \"%s\":</b>\n\n", escapeHTML(query)))
	for _, g := range groups[:limit] {
		response.WriteString(fmt.Sprintf("📦 %s\n", escapeHTML(g.Title)))
		response.WriteString(fmt.Sprintf("💰 <b>R$ %.2f</b> em %s", g.BestPrice, g.Source))
		if len(g.Sellers) > 1 {
			response.WriteString(fmt.Sprintf(" (+%d vendedores)", len(g.Sellers)-1))
		}
		response.WriteString(fmt.Sprintf("\n🔗 %s\n\n", g.BestURL))
	}

	msg := tgbotapi.NewMessage(message.Chat.ID, response.String())
	msg.ParseMode = "HTML"
	msg.DisableWebPagePreview = true
	if _, err := bot.Send(msg); err != nil {
		log.Printf("Erro ao enviar resultados da busca: %v", err)
		msg.ParseMode = ""
		bot.Send(msg)
	}
}

func handleRegisterDevice(bot *tgbotapi.BotAPI, message *tgbotapi.Message, deps Deps) {
	parts := strings.Fields(message.Text)
	if len(parts) < 2 {
		msg := tgbotapi.NewMessage(message.Chat.ID, "❌ Formato incorreto.\n\nUso: /dispositivo <token>")
		bot.Send(msg)
		return
	}

	if err := deps.Notifier.RegisterDevice(ownerFor(message.Chat.ID), parts[1]); err != nil {
		msg := tgbotapi.NewMessage(message.Chat.ID, fmt.Sprintf("❌ Erro ao cadastrar dispositivo: %v", err))
		bot.Send(msg)
		return
	}
	bot.Send(tgbotapi.NewMessage(message.Chat.ID, "✅ Dispositivo cadastrado. Você vai receber alertas por push."))
}

func handleListAlerts(bot *tgbotapi.BotAPI, chatID int64, deps Deps) {
	events, err := deps.DB.ListAlertEvents(ownerFor(chatID), 10)
	if err != nil {
		bot.Send(tgbotapi.NewMessage(chatID, fmt.Sprintf("❌ Erro ao listar alertas: %v", err)))
		return
	}
	if len(events) == 0 {
		bot.Send(tgbotapi.NewMessage(chatID, "🔕 Nenhum alerta gerado até agora."))
		return
	}

	var response strings.Builder
	response.WriteString("🔔 <b>Últimos alertas:</b>\n\n")
	for _, ev := range events {
		response.WriteString(fmt.Sprintf("%s · %s\n%s\n\n",
			ev.CreatedAt.Format("02/01 15:04"), ev.Kind, escapeHTML(ev.Message)))
	}

	msg := tgbotapi.NewMessage(chatID, response.String())
	msg.ParseMode = "HTML"
	if _, err := bot.Send(msg); err != nil {
		msg.ParseMode = ""
		bot.Send(msg)
	}
}

func handleDeleteProduct(bot *tgbotapi.BotAPI, message *tgbotapi.Message, deps Deps) {
	parts := strings.Fields(message.Text)
	if len(parts) < 2 {
		bot.Send(tgbotapi.NewMessage(message.Chat.ID, "❌ Formato incorreto.\n\nUso: /apagar <id>"))
		return
	}

	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		bot.Send(tgbotapi.NewMessage(message.Chat.ID, "❌ ID inválido."))
		return
	}

	product, err := deps.DB.GetProductByID(id)
	if err != nil || product.OwnerID != ownerFor(message.Chat.ID) {
		bot.Send(tgbotapi.NewMessage(message.Chat.ID, "❌ Produto não encontrado."))
		return
	}

	if err := deps.DB.DeleteProduct(id); err != nil {
		bot.Send(tgbotapi.NewMessage(message.Chat.ID, fmt.Sprintf("❌ Erro ao apagar produto: %v", err)))
		return
	}
	bot.Send(tgbotapi.NewMessage(message.Chat.ID, fmt.Sprintf("🗑 Produto e histórico apagados: %s", product.Title)))
}

func handleSetTier(bot *tgbotapi.BotAPI, message *tgbotapi.Message, deps Deps) {
	parts := strings.Fields(message.Text)
	if len(parts) < 2 || (parts[1] != "on" && parts[1] != "off") {
		bot.Send(tgbotapi.NewMessage(message.Chat.ID, "❌ Formato incorreto.\n\nUso: /premium <on|off>"))
		return
	}

	premium := parts[1] == "on"
	if err := deps.DB.SetOwnerTier(ownerFor(message.Chat.ID), premium); err != nil {
		bot.Send(tgbotapi.NewMessage(message.Chat.ID, fmt.Sprintf("❌ Erro ao alterar a cadência: %v", err)))
		return
	}
	if premium {
		bot.Send(tgbotapi.NewMessage(message.Chat.ID, "⭐ Cadência premium ativada: seus produtos serão verificados com mais frequência."))
	} else {
		bot.Send(tgbotapi.NewMessage(message.Chat.ID, "Cadência padrão restaurada."))
	}
}

func handleRestartBrowser(bot *tgbotapi.BotAPI, chatID int64, deps Deps) {
	deps.Pool.ForceRestart()
	bot.Send(tgbotapi.NewMessage(chatID, fmt.Sprintf("🔄 Navegador reiniciado (estado: %s). O próximo uso relança o processo.", deps.Pool.State())))
}

func handleStatus(bot *tgbotapi.BotAPI, chatID int64, deps Deps) {
	stats := deps.Supervisor.Health()

	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)

	var response strings.Builder
	response.WriteString("🩺 <b>Trabalhos em background:</b>\n\n")
	for _, name := range names {
		st := stats[name]
		response.WriteString(fmt.Sprintf("<b>%s</b>: %d execuções, %d falhas\n", name, st.Runs, st.Failures))
		if !st.LastSuccess.IsZero() {
			response.WriteString(fmt.Sprintf("  Último sucesso: %s (%v)\n", st.LastSuccess.Format("02/01 15:04:05"), st.LastDuration.Round(time.Millisecond)))
		}
		if st.LastError != "" {
			response.WriteString(fmt.Sprintf("  Último erro: %s\n", escapeHTML(st.LastError)))
		}
	}

	msg := tgbotapi.NewMessage(chatID, response.String())
	msg.ParseMode = "HTML"
	if _, err := bot.Send(msg); err != nil {
		log.Printf("Erro ao enviar status: %v", err)
		msg.ParseMode = ""
		bot.Send(msg)
	}
}

func sendOrEdit(bot *tgbotapi.BotAPI, chatID int64, messageID int, text, parseMode string) {
	if messageID != 0 {
		editMsg := tgbotapi.NewEditMessageText(chatID, messageID, text)
		editMsg.ParseMode = parseMode
		if _, err := bot.Send(editMsg); err == nil {
			return
		}
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = parseMode
	if _, err := bot.Send(msg); err != nil {
		msg.ParseMode = ""
		bot.Send(msg)
	}
}
