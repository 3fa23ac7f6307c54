package notifier

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rastreador-precos/internal/database"
	"rastreador-precos/internal/models"
)

type recordingSender struct {
	sends   []sendCall
	invalid []string
}

type sendCall struct {
	tokens []string
	title  string
	body   string
}

func (r *recordingSender) Send(_ context.Context, tokens []string, title, body string, _ map[string]string) ([]string, error) {
	r.sends = append(r.sends, sendCall{tokens: tokens, title: title, body: body})
	return r.invalid, nil
}

func testDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func product(owner string, target float64) *models.Product {
	return &models.Product{ID: 1, OwnerID: owner, Title: "iPhone 14 128GB", TargetPrice: target}
}

func TestPriceDropRespectsThreshold(t *testing.T) {
	db := testDB(t)
	require.NoError(t, db.RegisterDevice("tg:1", "token-a"))

	sender := &recordingSender{}
	d := NewDispatcher(db, 50, sender)

	// Queda de 20 fica abaixo do limiar de 50: nada acontece
	d.OnPriceObserved(context.Background(), product("tg:1", 0), 1000, 980, true, true)
	assert.Empty(t, sender.sends)

	// Queda de 50 dispara exatamente um alerta
	d.OnPriceObserved(context.Background(), product("tg:1", 0), 1000, 950, true, true)
	require.Len(t, sender.sends, 1)
	assert.Equal(t, []string{"token-a"}, sender.sends[0].tokens)
	assert.Contains(t, sender.sends[0].body, "950.00")
	assert.Contains(t, sender.sends[0].body, "-5%")

	events, err := db.ListAlertEvents("tg:1", 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.AlertPriceDrop, events[0].Kind)
	assert.NotEmpty(t, events[0].ID)
}

func TestPriceDropMessageCarriesPercent(t *testing.T) {
	db := testDB(t)
	require.NoError(t, db.RegisterDevice("tg:1", "token-a"))

	sender := &recordingSender{}
	d := NewDispatcher(db, 0, sender)

	d.OnPriceObserved(context.Background(), product("tg:1", 0), 1000, 800, true, true)
	require.Len(t, sender.sends, 1)
	assert.Contains(t, sender.sends[0].body, "-20%")
}

func TestPriceIncreaseNeverAlerts(t *testing.T) {
	db := testDB(t)
	sender := &recordingSender{}
	d := NewDispatcher(db, 0, sender)

	d.OnPriceObserved(context.Background(), product("tg:1", 0), 800, 1000, true, true)
	assert.Empty(t, sender.sends)
}

func TestStockAlert(t *testing.T) {
	db := testDB(t)
	require.NoError(t, db.RegisterDevice("tg:1", "token-a"))

	sender := &recordingSender{}
	d := NewDispatcher(db, 0, sender)

	// Só a transição fora -> em estoque alerta
	d.OnPriceObserved(context.Background(), product("tg:1", 0), 100, 100, true, true)
	d.OnPriceObserved(context.Background(), product("tg:1", 0), 100, 100, true, false)
	assert.Empty(t, sender.sends)

	d.OnPriceObserved(context.Background(), product("tg:1", 0), 100, 100, false, true)
	require.Len(t, sender.sends, 1)
	assert.Equal(t, "De volta ao estoque!", sender.sends[0].title)
}

func TestTargetPriceFiresOnCrossing(t *testing.T) {
	db := testDB(t)
	require.NoError(t, db.RegisterDevice("tg:1", "token-a"))

	sender := &recordingSender{}
	d := NewDispatcher(db, 0, sender)

	// Acima do alvo: nada
	d.OnPriceObserved(context.Background(), product("tg:1", 900), 950, 950, true, true)
	assert.Empty(t, sender.sends)

	// Cruzou o alvo
	d.OnPriceObserved(context.Background(), product("tg:1", 900), 950, 890, true, true)
	require.Len(t, sender.sends, 2) // PRICE_DROP + TARGET_PRICE

	kinds := map[string]bool{}
	events, err := db.ListAlertEvents("tg:1", 10)
	require.NoError(t, err)
	for _, ev := range events {
		kinds[ev.Kind] = true
	}
	assert.True(t, kinds[models.AlertTargetPrice])

	// Já abaixo do alvo: não repete a cada observação
	sender.sends = nil
	d.OnPriceObserved(context.Background(), product("tg:1", 900), 890, 890, true, true)
	assert.Empty(t, sender.sends)
}

func TestInvalidTokensAreDeleted(t *testing.T) {
	db := testDB(t)
	require.NoError(t, db.RegisterDevice("tg:1", "token-a"))
	require.NoError(t, db.RegisterDevice("tg:1", "token-b"))

	sender := &recordingSender{invalid: []string{"token-b"}}
	d := NewDispatcher(db, 0, sender)

	d.OnPriceObserved(context.Background(), product("tg:1", 0), 1000, 900, true, true)

	devices, err := db.DevicesByOwner("tg:1")
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "token-a", devices[0].Token)
}

func TestSystemOwnerGetsEventButNoPush(t *testing.T) {
	db := testDB(t)
	sender := &recordingSender{}
	d := NewDispatcher(db, 0, sender)

	d.OnPriceObserved(context.Background(), product(models.OwnerSystem, 0), 1000, 900, true, true)

	assert.Empty(t, sender.sends)
	events, err := db.ListAlertEvents(models.OwnerSystem, 10)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}
