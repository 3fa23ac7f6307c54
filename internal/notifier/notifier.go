package notifier

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"rastreador-precos/internal/database"
	"rastreador-precos/internal/models"
)

// PushSender entrega uma notificação a um lote de tokens e devolve os
// tokens que o serviço reportou como inválidos (para descadastro).
type PushSender interface {
	Send(ctx context.Context, tokens []string, title, body string, data map[string]string) (invalid []string, err error)
}

// Dispatcher converte transições de estado de produtos em eventos de
// alerta persistidos e os distribui para os dispositivos do dono.
type Dispatcher struct {
	db      *database.DB
	senders []PushSender
	minDrop float64 // queda absoluta mínima para alertar (0 = qualquer queda)
}

// NewDispatcher cria o despachante de alertas
func NewDispatcher(db *database.DB, minDrop float64, senders ...PushSender) *Dispatcher {
	return &Dispatcher{db: db, senders: senders, minDrop: minDrop}
}

// OnPriceObserved avalia uma observação recém-persistida contra o estado
// anterior do produto e emite os alertas cabíveis. Produtos de catálogo
// (dono "system") geram evento mas não push, porque não há dispositivos.
func (d *Dispatcher) OnPriceObserved(ctx context.Context, p *models.Product, oldPrice, newPrice float64, oldStock, newStock bool) {
	// Queda de preço
	if oldPrice > 0 && newPrice > 0 && newPrice < oldPrice {
		drop := oldPrice - newPrice
		pct := (drop / oldPrice) * 100
		if drop >= d.minDrop && pct > 0 {
			msg := fmt.Sprintf("%s baixou de R$ %.2f para R$ %.2f (-%.0f%%)",
				p.Title, oldPrice, newPrice, pct)
			d.Dispatch(ctx, models.AlertEvent{
				ProductID: p.ID,
				OwnerID:   p.OwnerID,
				Kind:      models.AlertPriceDrop,
				Message:   msg,
			})
		}
	}

	// Voltou ao estoque
	if !oldStock && newStock {
		d.Dispatch(ctx, models.AlertEvent{
			ProductID: p.ID,
			OwnerID:   p.OwnerID,
			Kind:      models.AlertStockBack,
			Message:   fmt.Sprintf("%s voltou ao estoque por R$ %.2f", p.Title, newPrice),
		})
	}

	// Cruzou o preço alvo (só na travessia, não em toda observação abaixo)
	if p.TargetPrice > 0 && newPrice > 0 && newPrice <= p.TargetPrice {
		if oldPrice > p.TargetPrice || oldPrice == 0 {
			d.Dispatch(ctx, models.AlertEvent{
				ProductID: p.ID,
				OwnerID:   p.OwnerID,
				Kind:      models.AlertTargetPrice,
				Message: fmt.Sprintf("%s atingiu o preço alvo: R$ %.2f (alvo R$ %.2f)",
					p.Title, newPrice, p.TargetPrice),
			})
		}
	}
}

// Dispatch persiste o evento e o distribui para os dispositivos do dono.
// Falha de entrega nunca derruba o chamador; só é logada.
func (d *Dispatcher) Dispatch(ctx context.Context, ev models.AlertEvent) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}

	if err := d.db.RecordAlertEvent(ev); err != nil {
		log.Printf("Erro ao registrar evento de alerta: %v", err)
	}

	if ev.OwnerID == models.OwnerSystem || len(d.senders) == 0 {
		return
	}

	devices, err := d.db.DevicesByOwner(ev.OwnerID)
	if err != nil {
		log.Printf("Erro ao listar dispositivos de %s: %v", ev.OwnerID, err)
		return
	}
	if len(devices) == 0 {
		return
	}

	tokens := make([]string, 0, len(devices))
	for _, dev := range devices {
		tokens = append(tokens, dev.Token)
	}

	data := map[string]string{
		"event_id":   ev.ID,
		"product_id": fmt.Sprintf("%d", ev.ProductID),
		"kind":       ev.Kind,
	}

	for _, sender := range d.senders {
		invalid, err := sender.Send(ctx, tokens, alertTitle(ev.Kind), ev.Message, data)
		if err != nil {
			log.Printf("Erro no envio de push (%s): %v", ev.Kind, err)
		}
		for _, token := range invalid {
			if err := d.db.DeleteDevice(token); err != nil {
				log.Printf("Erro ao remover token inválido: %v", err)
			} else {
				log.Printf("Token inválido removido do dono %s", ev.OwnerID)
			}
		}
	}
}

// RegisterDevice cadastra (ou reativa) um token de push para um dono
func (d *Dispatcher) RegisterDevice(ownerID, token string) error {
	return d.db.RegisterDevice(ownerID, token)
}

func alertTitle(kind string) string {
	switch kind {
	case models.AlertPriceDrop:
		return "Queda de preço!"
	case models.AlertStockBack:
		return "De volta ao estoque!"
	case models.AlertTargetPrice:
		return "Preço alvo atingido!"
	}
	return "Alerta de produto"
}
