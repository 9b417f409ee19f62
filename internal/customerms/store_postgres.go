package customerms

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/example/levelsliving/internal/middleware"
)

// PostgresStore implements Store on PostgreSQL. It also resolves request
// identities from the users table both services share, so role checks see
// the live role rather than the one stamped into the token.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

const customerColumns = `customer_id, customer_contact, customer_street, customer_unit, customer_postal_code, housing_type, latitude, longitude, delivery_preferences, communication_preferences, is_active, created_at`

func scanCustomer(row interface{ Scan(...interface{}) error }) (*Customer, error) {
	var c Customer
	var street, unit, housing sql.NullString
	var delivery, communication []byte
	err := row.Scan(&c.ID, &c.Contact, &street, &unit, &c.PostalCode, &housing,
		&c.Latitude, &c.Longitude, &delivery, &communication, &c.IsActive, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	c.Street = street.String
	c.Unit = unit.String
	c.HousingType = housing.String
	if len(delivery) > 0 {
		if err := json.Unmarshal(delivery, &c.DeliveryPreferences); err != nil {
			return nil, fmt.Errorf("decode delivery_preferences: %w", err)
		}
	}
	if len(communication) > 0 {
		if err := json.Unmarshal(communication, &c.CommunicationPreferences); err != nil {
			return nil, fmt.Errorf("decode communication_preferences: %w", err)
		}
	}
	return &c, nil
}

func (p *PostgresStore) CreateCustomer(ctx context.Context, c *Customer) error {
	delivery, err := json.Marshal(c.DeliveryPreferences)
	if err != nil {
		return fmt.Errorf("encode delivery_preferences: %w", err)
	}
	communication, err := json.Marshal(c.CommunicationPreferences)
	if err != nil {
		return fmt.Errorf("encode communication_preferences: %w", err)
	}
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO customers(customer_id, customer_contact, customer_street, customer_unit,
			customer_postal_code, housing_type, latitude, longitude,
			delivery_preferences, communication_preferences, is_active)
		 VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,TRUE)`,
		c.ID, c.Contact, nullable(c.Street), nullable(c.Unit), c.PostalCode,
		nullable(c.HousingType), c.Latitude, c.Longitude, delivery, communication)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return ErrContactTaken
	}
	return err
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func (p *PostgresStore) CustomerByID(ctx context.Context, id string) (*Customer, error) {
	return scanCustomer(p.db.QueryRowContext(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE customer_id = $1 AND is_active`, id))
}

func (p *PostgresStore) CustomerByContact(ctx context.Context, contact string) (*Customer, error) {
	return scanCustomer(p.db.QueryRowContext(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE customer_contact = $1 AND is_active`, contact))
}

// Search builds the WHERE clause from the populated filters only, the same
// clause feeding both the page query and the total count.
func (p *PostgresStore) Search(ctx context.Context, q SearchQuery) ([]*Customer, int, error) {
	where := "is_active"
	var args []interface{}
	add := func(cond, val string) {
		args = append(args, val)
		where += fmt.Sprintf(" AND %s $%d", cond, len(args))
	}
	if q.PostalCode != "" {
		add("customer_postal_code =", q.PostalCode)
	}
	if q.HousingType != "" {
		add("housing_type =", q.HousingType)
	}
	if q.Contact != "" {
		add("customer_contact LIKE", "%"+q.Contact+"%")
	}
	if q.Street != "" {
		add("customer_street LIKE", "%"+q.Street+"%")
	}

	var total int
	if err := p.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM customers WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM customers WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		customerColumns, where, len(args)+1, len(args)+2)
	rows, err := p.db.QueryContext(ctx, query, append(args, q.Limit, q.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	customers := []*Customer{}
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, 0, err
		}
		customers = append(customers, c)
	}
	return customers, total, rows.Err()
}

// ResolveUser implements middleware.UserResolver against the shared users
// table. Deactivated or deleted accounts resolve to nothing.
func (p *PostgresStore) ResolveUser(ctx context.Context, userID string) (*middleware.Identity, error) {
	var ident middleware.Identity
	err := p.db.QueryRowContext(ctx,
		`SELECT user_id, email, role FROM users WHERE user_id = $1 AND is_active`, userID).
		Scan(&ident.ID, &ident.Email, &ident.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ident, nil
}

func (p *PostgresStore) Close() error { return p.db.Close() }

func (p *PostgresStore) Ping(ctx context.Context) bool { return p.db.PingContext(ctx) == nil }
