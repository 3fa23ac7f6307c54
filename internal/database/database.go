package database

import (
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"rastreador-precos/internal/models"

	_ "github.com/mattn/go-sqlite3"
)

// DB encapsula a conexão com o banco de dados
type DB struct {
	conn *sql.DB
}

// New cria uma nova instância do banco de dados.
// O busy timeout evita SQLITE_BUSY quando as verificações concorrentes
// gravam ao mesmo tempo.
func New(dbPath string) (*DB, error) {
	if !strings.Contains(dbPath, "?") {
		dbPath += "?_busy_timeout=5000"
	}
	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	db := &DB{conn: conn}

	if err := db.init(); err != nil {
		conn.Close()
		return nil, err
	}

	log.Println("Banco de dados inicializado com sucesso")
	return db, nil
}

// Close fecha a conexão com o banco de dados
func (db *DB) Close() error {
	return db.conn.Close()
}

// init cria as tabelas necessárias
func (db *DB) init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS products (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		owner_id TEXT NOT NULL DEFAULT 'system',
		url TEXT NOT NULL,
		title TEXT,
		current_price REAL DEFAULT 0,
		original_price REAL DEFAULT 0,
		discount REAL DEFAULT 0,
		target_price REAL DEFAULT 0,
		image_url TEXT,
		source TEXT,
		category TEXT,
		demographic_tag TEXT,
		in_stock BOOLEAN DEFAULT 1,
		premium BOOLEAN DEFAULT 0,
		last_checked DATETIME,
		active BOOLEAN DEFAULT 1,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(owner_id, url)
	);

	CREATE TABLE IF NOT EXISTS price_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		product_id INTEGER NOT NULL,
		price REAL NOT NULL,
		observed_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_price_history_product ON price_history(product_id, observed_at);

	CREATE TABLE IF NOT EXISTS alert_events (
		id TEXT PRIMARY KEY,
		product_id INTEGER NOT NULL,
		owner_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		message TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS devices (
		token TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		last_active_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_devices_owner ON devices(owner_id);
	`

	if _, err := db.conn.Exec(schema); err != nil {
		return err
	}

	// Tentar adicionar colunas se não existirem (migração)
	// SQLite não suporta IF NOT EXISTS em ALTER TABLE, então ignoramos o erro
	_, _ = db.conn.Exec("ALTER TABLE products ADD COLUMN demographic_tag TEXT")
	_, _ = db.conn.Exec("ALTER TABLE products ADD COLUMN premium BOOLEAN DEFAULT 0")

	return nil
}

const productColumns = `id, owner_id, url, title, current_price, original_price, discount,
	target_price, image_url, source, category, demographic_tag, in_stock, premium,
	last_checked, active, created_at`

func scanProduct(row interface{ Scan(...any) error }) (models.Product, error) {
	var p models.Product
	var title, imageURL, source, category, demographic sql.NullString
	var lastChecked sql.NullTime
	err := row.Scan(&p.ID, &p.OwnerID, &p.URL, &title, &p.CurrentPrice, &p.OriginalPrice,
		&p.Discount, &p.TargetPrice, &imageURL, &source, &category, &demographic,
		&p.InStock, &p.Premium, &lastChecked, &p.Active, &p.CreatedAt)
	if err != nil {
		return p, err
	}
	p.Title = title.String
	p.ImageURL = imageURL.String
	p.Source = source.String
	p.Category = category.String
	p.DemographicTag = demographic.String
	if lastChecked.Valid {
		p.LastChecked = lastChecked.Time
	}
	return p, nil
}

func (db *DB) queryProducts(query string, args ...any) ([]models.Product, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// AddProduct adiciona um novo produto rastreado e retorna o ID gerado.
// A URL é única por dono.
func (db *DB) AddProduct(ownerID, url string, snap models.ProductSnapshot, targetPrice float64, premium bool) (int64, error) {
	res, err := db.conn.Exec(
		`INSERT INTO products (owner_id, url, title, current_price, original_price, discount,
			target_price, image_url, source, category, in_stock, premium, last_checked, active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, 1)`,
		ownerID, url, snap.Title, snap.CurrentPrice, snap.OriginalPrice,
		discountOf(snap.OriginalPrice, snap.CurrentPrice),
		targetPrice, snap.ImageURL, snap.Source, snap.Category, snap.InStock, premium,
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if snap.CurrentPrice > 0 {
		_ = db.AppendPricePoint(id, snap.CurrentPrice)
	}
	return id, nil
}

func discountOf(original, current float64) float64 {
	if original > current && original > 0 {
		return ((original - current) / original) * 100
	}
	return 0
}

// GetProductByID retorna um produto pelo ID
func (db *DB) GetProductByID(id int64) (*models.Product, error) {
	row := db.conn.QueryRow("SELECT "+productColumns+" FROM products WHERE id = ?", id)
	p, err := scanProduct(row)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetTrackedProducts retorna os produtos ativos de usuários de uma classe de conta.
// Produtos de catálogo (owner "system") não entram no ciclo de verificação por usuário.
func (db *DB) GetTrackedProducts(premium bool) ([]models.Product, error) {
	return db.queryProducts(
		"SELECT "+productColumns+" FROM products WHERE active = 1 AND owner_id != ? AND premium = ?",
		models.OwnerSystem, premium,
	)
}

// ListProducts retorna os produtos de um dono, mais recentes primeiro
func (db *DB) ListProducts(ownerID string) ([]models.Product, error) {
	return db.queryProducts(
		"SELECT "+productColumns+" FROM products WHERE owner_id = ? AND active = 1 ORDER BY created_at DESC",
		ownerID,
	)
}

// SetOwnerTier atualiza a classe de conta denormalizada nos produtos de um dono
func (db *DB) SetOwnerTier(ownerID string, premium bool) error {
	_, err := db.conn.Exec("UPDATE products SET premium = ? WHERE owner_id = ?", premium, ownerID)
	return err
}

// UpdateProductState grava o estado observado em uma verificação
func (db *DB) UpdateProductState(id int64, currentPrice, originalPrice, discount float64, inStock bool) error {
	_, err := db.conn.Exec(
		`UPDATE products SET current_price = ?, original_price = ?, discount = ?, in_stock = ?,
			last_checked = CURRENT_TIMESTAMP WHERE id = ?`,
		currentPrice, originalPrice, discount, inStock, id,
	)
	return err
}

// DeactivateProduct desativa um produto
func (db *DB) DeactivateProduct(id int64) error {
	_, err := db.conn.Exec("UPDATE products SET active = 0 WHERE id = ?", id)
	return err
}

// DeleteProduct remove um produto e seu histórico
func (db *DB) DeleteProduct(id int64) error {
	if _, err := db.conn.Exec("DELETE FROM price_history WHERE product_id = ?", id); err != nil {
		return err
	}
	_, err := db.conn.Exec("DELETE FROM products WHERE id = ?", id)
	return err
}

// AppendPricePoint adiciona uma observação ao histórico de preços (append-only)
func (db *DB) AppendPricePoint(productID int64, price float64) error {
	_, err := db.conn.Exec(
		"INSERT INTO price_history (product_id, price) VALUES (?, ?)",
		productID, price,
	)
	return err
}

// GetPriceHistory retorna o histórico de um produto em ordem cronológica
func (db *DB) GetPriceHistory(productID int64, limit int) ([]models.PricePoint, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := db.conn.Query(
		"SELECT id, product_id, price, observed_at FROM price_history WHERE product_id = ? ORDER BY observed_at ASC LIMIT ?",
		productID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []models.PricePoint
	for rows.Next() {
		var pt models.PricePoint
		if err := rows.Scan(&pt.ID, &pt.ProductID, &pt.Price, &pt.ObservedAt); err != nil {
			return nil, err
		}
		points = append(points, pt)
	}
	return points, rows.Err()
}

// GetProductsByURLs retorna um mapa url -> produto para um conjunto de URLs.
// Usado pela mineração para fazer upsert em lote sem consultar URL por URL.
func (db *DB) GetProductsByURLs(ownerID string, urls []string) (map[string]models.Product, error) {
	existing := make(map[string]models.Product, len(urls))
	if len(urls) == 0 {
		return existing, nil
	}

	// Consultar em lotes para não estourar o limite de parâmetros do SQLite
	const chunk = 400
	for i := 0; i < len(urls); i += chunk {
		j := i + chunk
		if j > len(urls) {
			j = len(urls)
		}
		part := urls[i:j]

		placeholders := strings.Repeat("?,", len(part))
		placeholders = placeholders[:len(placeholders)-1]
		args := make([]any, 0, len(part)+1)
		args = append(args, ownerID)
		for _, u := range part {
			args = append(args, u)
		}

		products, err := db.queryProducts(
			"SELECT "+productColumns+" FROM products WHERE owner_id = ? AND url IN ("+placeholders+")",
			args...,
		)
		if err != nil {
			return nil, err
		}
		for _, p := range products {
			existing[p.URL] = p
		}
	}
	return existing, nil
}

// UpsertCatalogBatch insere ou atualiza produtos de catálogo em uma transação.
// O mapa existing deve vir de GetProductsByURLs; a mineração decide por ele o que
// é inserção e o que é atualização, evitando consultas de existência uma a uma.
func (db *DB) UpsertCatalogBatch(items []models.Product, existing map[string]models.Product) (inserted, updated int, err error) {
	if len(items) == 0 {
		return 0, 0, nil
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return 0, 0, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	insertStmt, err := tx.Prepare(
		`INSERT INTO products (owner_id, url, title, current_price, original_price, discount,
			image_url, source, category, demographic_tag, in_stock, last_checked, active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, CURRENT_TIMESTAMP, 1)`,
	)
	if err != nil {
		return 0, 0, err
	}
	defer insertStmt.Close()

	updateStmt, err := tx.Prepare(
		`UPDATE products SET title = ?, current_price = ?, original_price = ?, discount = ?,
			image_url = ?, last_checked = CURRENT_TIMESTAMP WHERE id = ?`,
	)
	if err != nil {
		return 0, 0, err
	}
	defer updateStmt.Close()

	historyStmt, err := tx.Prepare("INSERT INTO price_history (product_id, price) VALUES (?, ?)")
	if err != nil {
		return 0, 0, err
	}
	defer historyStmt.Close()

	for _, item := range items {
		discount := discountOf(item.OriginalPrice, item.CurrentPrice)
		if old, ok := existing[item.URL]; ok {
			if _, err = updateStmt.Exec(item.Title, item.CurrentPrice, item.OriginalPrice,
				discount, item.ImageURL, old.ID); err != nil {
				return inserted, updated, err
			}
			if item.CurrentPrice > 0 && item.CurrentPrice != old.CurrentPrice {
				if _, err = historyStmt.Exec(old.ID, item.CurrentPrice); err != nil {
					return inserted, updated, err
				}
			}
			updated++
		} else {
			var res sql.Result
			res, err = insertStmt.Exec(models.OwnerSystem, item.URL, item.Title,
				item.CurrentPrice, item.OriginalPrice, discount,
				item.ImageURL, item.Source, item.Category, item.DemographicTag)
			if err != nil {
				return inserted, updated, err
			}
			if item.CurrentPrice > 0 {
				if id, idErr := res.LastInsertId(); idErr == nil {
					if _, err = historyStmt.Exec(id, item.CurrentPrice); err != nil {
						return inserted, updated, err
					}
				}
			}
			inserted++
		}
	}

	err = tx.Commit()
	return inserted, updated, err
}

// CollapsePriceHistory compacta o histórico mais antigo que cutoff, mantendo
// apenas a observação de menor preço por produto por dia. A remoção acontece em
// lotes limitados para não segurar o banco.
func (db *DB) CollapsePriceHistory(cutoff time.Time, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 500
	}

	// Vítimas: linhas antigas que não são o mínimo do seu (produto, dia).
	// Desempate por menor id quando há preços iguais no mesmo dia.
	victimQuery := `
		SELECT p.id FROM price_history p
		WHERE p.observed_at < ?
		  AND EXISTS (
			SELECT 1 FROM price_history q
			WHERE q.product_id = p.product_id
			  AND date(q.observed_at) = date(p.observed_at)
			  AND q.observed_at < ?
			  AND (q.price < p.price OR (q.price = p.price AND q.id < p.id))
		  )
		LIMIT ?`

	total := 0
	for {
		rows, err := db.conn.Query(victimQuery, cutoff, cutoff, batchSize)
		if err != nil {
			return total, err
		}
		var ids []any
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return total, err
			}
			ids = append(ids, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return total, err
		}
		if len(ids) == 0 {
			return total, nil
		}

		placeholders := strings.Repeat("?,", len(ids))
		placeholders = placeholders[:len(placeholders)-1]
		if _, err := db.conn.Exec("DELETE FROM price_history WHERE id IN ("+placeholders+")", ids...); err != nil {
			return total, err
		}
		total += len(ids)
		if len(ids) < batchSize {
			return total, nil
		}
	}
}

// RecordAlertEvent persiste um evento de alerta
func (db *DB) RecordAlertEvent(ev models.AlertEvent) error {
	_, err := db.conn.Exec(
		"INSERT INTO alert_events (id, product_id, owner_id, kind, message, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		ev.ID, ev.ProductID, ev.OwnerID, ev.Kind, ev.Message, ev.CreatedAt,
	)
	return err
}

// ListAlertEvents retorna os eventos de um dono, mais recentes primeiro
func (db *DB) ListAlertEvents(ownerID string, limit int) ([]models.AlertEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.conn.Query(
		"SELECT id, product_id, owner_id, kind, message, created_at FROM alert_events WHERE owner_id = ? ORDER BY created_at DESC LIMIT ?",
		ownerID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.AlertEvent
	for rows.Next() {
		var ev models.AlertEvent
		var msg sql.NullString
		if err := rows.Scan(&ev.ID, &ev.ProductID, &ev.OwnerID, &ev.Kind, &msg, &ev.CreatedAt); err != nil {
			return nil, err
		}
		ev.Message = msg.String
		events = append(events, ev)
	}
	return events, rows.Err()
}

// RegisterDevice registra (ou reativa) um token de push para um dono.
// Operação idempotente: o token é único globalmente.
func (db *DB) RegisterDevice(ownerID, token string) error {
	if token == "" {
		return fmt.Errorf("token de dispositivo vazio")
	}
	_, err := db.conn.Exec(
		`INSERT INTO devices (token, owner_id, last_active_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(token) DO UPDATE SET owner_id = excluded.owner_id, last_active_at = CURRENT_TIMESTAMP`,
		token, ownerID,
	)
	return err
}

// DevicesByOwner retorna os dispositivos registrados de um dono
func (db *DB) DevicesByOwner(ownerID string) ([]models.Device, error) {
	rows, err := db.conn.Query(
		"SELECT token, owner_id, last_active_at FROM devices WHERE owner_id = ?",
		ownerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var devices []models.Device
	for rows.Next() {
		var d models.Device
		if err := rows.Scan(&d.Token, &d.OwnerID, &d.LastActiveAt); err != nil {
			return nil, err
		}
		devices = append(devices, d)
	}
	return devices, rows.Err()
}

// DeleteDevice remove um token permanentemente inválido
func (db *DB) DeleteDevice(token string) error {
	_, err := db.conn.Exec("DELETE FROM devices WHERE token = ?", token)
	return err
}
