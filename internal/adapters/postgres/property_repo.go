package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/bagfinder/internal/core/domain"
)

// PropertyRepo implements ports.PropertyRepository with pgx.
type PropertyRepo struct {
	db *DB
}

// NewPropertyRepo creates a new PropertyRepo.
func NewPropertyRepo(db *DB) *PropertyRepo {
	return &PropertyRepo{db: db}
}

const upsertVerblijfsobject = `
	INSERT INTO verblijfsobject
		(id, gebruiksdoel, oppervlakte, x, y, lat, lon, pand_id, gemeente, woonplaats,
		 straatnaam, huisnummer, postcode, status)
	VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, $9,
	        NULLIF($10, ''), NULLIF($11, ''), NULLIF($12, ''), NULLIF($13, ''))
	ON CONFLICT (id) DO UPDATE
	SET gebruiksdoel = EXCLUDED.gebruiksdoel, oppervlakte = EXCLUDED.oppervlakte,
	    x = EXCLUDED.x, y = EXCLUDED.y, lat = EXCLUDED.lat, lon = EXCLUDED.lon,
	    pand_id = EXCLUDED.pand_id, gemeente = EXCLUDED.gemeente, woonplaats = EXCLUDED.woonplaats,
	    straatnaam = EXCLUDED.straatnaam, huisnummer = EXCLUDED.huisnummer,
	    postcode = EXCLUDED.postcode, status = EXCLUDED.status, updated_at = NOW()
`

// UpsertBatch inserts or updates many objects using pgx.Batch.
func (r *PropertyRepo) UpsertBatch(ctx context.Context, records []domain.ImportRecord) error {
	if len(records) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, rec := range records {
		o := rec.Object
		batch.Queue(upsertVerblijfsobject,
			o.ID, rec.Purpose, o.Area, rec.RD.X, rec.RD.Y, o.Location.Lat, o.Location.Lon,
			rec.PandID, o.Municipality, rec.Street, rec.HouseNumber, rec.Postcode, rec.Status)
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range records {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec: %w", err)
		}
	}
	return nil
}

// FindByFilter returns residential objects passing f, largest first.
// The municipality test mirrors domain.Filter: case-insensitive substring, empty matches all.
func (r *PropertyRepo) FindByFilter(ctx context.Context, f domain.Filter, limit int) ([]domain.Verblijfsobject, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, oppervlakte, gemeente, lat, lon
		FROM verblijfsobject
		WHERE gebruiksdoel LIKE '%' || $1 || '%'
		  AND strpos(lower(gemeente), lower($2)) > 0
		  AND oppervlakte >= $3
		ORDER BY oppervlakte DESC, id
		LIMIT $4
	`, domain.ResidentialPurpose, f.Municipality, f.MinArea, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Verblijfsobject
	for rows.Next() {
		var v domain.Verblijfsobject
		if err := rows.Scan(&v.ID, &v.Area, &v.Municipality, &v.Location.Lat, &v.Location.Lon); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// ListMunicipalities returns the distinct municipalities with residential objects, sorted.
func (r *PropertyRepo) ListMunicipalities(ctx context.Context) ([]string, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT DISTINCT gemeente
		FROM verblijfsobject
		WHERE gebruiksdoel LIKE '%' || $1 || '%' AND gemeente IS NOT NULL
		ORDER BY gemeente ASC
	`, domain.ResidentialPurpose)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// Ping checks database connectivity.
func (r *PropertyRepo) Ping(ctx context.Context) error {
	var one int
	return r.db.Pool.QueryRow(ctx, "SELECT 1").Scan(&one)
}
