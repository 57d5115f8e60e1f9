package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/msomdec/realty/internal/domain"
)

// listingRepo implements domain.ListingRepository using SQLite.
type listingRepo struct {
	db *sql.DB
}

const listingColumns = `id, user_id, name, type, address, description, bedrooms, bathrooms,
	regular_price, discounted_price, offer, parking, furnished, latitude, longitude, created_at, updated_at`

func scanListing(row interface{ Scan(...any) error }) (*domain.Listing, error) {
	l := &domain.Listing{}
	var created, updated int64
	err := row.Scan(&l.ID, &l.UserID, &l.Name, &l.Type, &l.Address, &l.Description,
		&l.Bedrooms, &l.Bathrooms, &l.RegularPrice, &l.DiscountedPrice,
		&l.Offer, &l.Parking, &l.Furnished, &l.Latitude, &l.Longitude, &created, &updated)
	if err != nil {
		return nil, err
	}
	l.CreatedAt = time.Unix(0, created).UTC()
	l.UpdatedAt = time.Unix(0, updated).UTC()
	return l, nil
}

func (r *listingRepo) Create(ctx context.Context, listing *domain.Listing) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx,
		`INSERT INTO listings (user_id, name, type, address, description, bedrooms, bathrooms,
			regular_price, discounted_price, offer, parking, furnished, latitude, longitude, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		listing.UserID, listing.Name, listing.Type, listing.Address, listing.Description,
		listing.Bedrooms, listing.Bathrooms, listing.RegularPrice, listing.DiscountedPrice,
		listing.Offer, listing.Parking, listing.Furnished, listing.Latitude, listing.Longitude,
		now.UnixNano(), now.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert listing: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get listing id: %w", err)
	}

	if err := insertImages(ctx, tx, id, listing.Images); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	listing.ID = id
	listing.CreatedAt = now
	listing.UpdatedAt = now
	return nil
}

func (r *listingRepo) GetByID(ctx context.Context, id int64) (*domain.Listing, error) {
	l, err := scanListing(r.db.QueryRowContext(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get listing: %w", err)
	}

	images, err := r.loadImages(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	l.Images = images[id]
	return l, nil
}

// Update overwrites the listing's fields and replaces its images with
// listing.Images. The owner and creation time never change.
func (r *listingRepo) Update(ctx context.Context, listing *domain.Listing) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx,
		`UPDATE listings SET name = ?, type = ?, address = ?, description = ?, bedrooms = ?, bathrooms = ?,
			regular_price = ?, discounted_price = ?, offer = ?, parking = ?, furnished = ?,
			latitude = ?, longitude = ?, updated_at = ?
		 WHERE id = ?`,
		listing.Name, listing.Type, listing.Address, listing.Description, listing.Bedrooms, listing.Bathrooms,
		listing.RegularPrice, listing.DiscountedPrice, listing.Offer, listing.Parking, listing.Furnished,
		listing.Latitude, listing.Longitude, now.UnixNano(), listing.ID,
	)
	if err != nil {
		return fmt.Errorf("update listing: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM listing_images WHERE listing_id = ?`, listing.ID); err != nil {
		return fmt.Errorf("clear listing images: %w", err)
	}
	if err := insertImages(ctx, tx, listing.ID, listing.Images); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	listing.UpdatedAt = now
	return nil
}

func (r *listingRepo) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM listings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete listing: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *listingRepo) Query(ctx context.Context, q domain.ListingQuery) (*domain.ListingPage, error) {
	var (
		where []string
		args  []any
	)
	if q.Type != "" {
		where = append(where, "type = ?")
		args = append(args, q.Type)
	}
	if q.OfferOnly {
		where = append(where, "offer = 1")
	}
	if q.UserID != 0 {
		where = append(where, "user_id = ?")
		args = append(args, q.UserID)
	}
	if q.After != nil {
		after := q.After.CreatedAt.UnixNano()
		where = append(where, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, after, after, q.After.ID)
	}

	query := `SELECT ` + listingColumns + ` FROM listings`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	// Fetch one extra row to learn whether another page exists.
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit+1)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query listings: %w", err)
	}
	defer rows.Close()

	var listings []domain.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		listings = append(listings, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate listings: %w", err)
	}

	page := &domain.ListingPage{}
	if q.Limit > 0 && len(listings) > q.Limit {
		listings = listings[:q.Limit]
		last := listings[len(listings)-1]
		page.Next = &domain.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}

	ids := make([]int64, len(listings))
	for i, l := range listings {
		ids[i] = l.ID
	}
	images, err := r.loadImages(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range listings {
		listings[i].Images = images[listings[i].ID]
	}

	page.Listings = listings
	return page, nil
}

func (r *listingRepo) loadImages(ctx context.Context, ids []int64) (map[int64][]domain.ListingImage, error) {
	result := make(map[int64][]domain.ListingImage, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT listing_id, storage_key, url, filename, content_type, size
		 FROM listing_images WHERE listing_id IN (`+placeholders+`)
		 ORDER BY listing_id, sort_order`, args...)
	if err != nil {
		return nil, fmt.Errorf("load listing images: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			listingID int64
			img       domain.ListingImage
		)
		if err := rows.Scan(&listingID, &img.StorageKey, &img.URL, &img.Filename, &img.ContentType, &img.Size); err != nil {
			return nil, fmt.Errorf("scan listing image: %w", err)
		}
		result[listingID] = append(result[listingID], img)
	}
	return result, rows.Err()
}

func insertImages(ctx context.Context, tx *sql.Tx, listingID int64, images []domain.ListingImage) error {
	for i, img := range images {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO listing_images (listing_id, sort_order, storage_key, url, filename, content_type, size)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			listingID, i, img.StorageKey, img.URL, img.Filename, img.ContentType, img.Size,
		)
		if err != nil {
			return fmt.Errorf("insert listing image %d: %w", i, err)
		}
	}
	return nil
}
