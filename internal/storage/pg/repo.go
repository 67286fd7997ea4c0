package pg

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taoyao-code/zvt-tap/internal/storage/models"
)

// Repository 抓包写入路径
type Repository struct {
	Pool *pgxpool.Pool
}

const insertUnitSQL = `INSERT INTO zvt_units (
    conn_id, remote_addr, transport, control, name, direction,
    status_ccrc, status_aprc, length_field, length_width, size,
    payload, fields, fields_stop, crc, raw_hex, captured_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`

// InsertUnits 批量插入，单次往返
func (r *Repository) InsertUnits(ctx context.Context, units []models.CapturedUnit) error {
	if len(units) == 0 {
		return nil
	}
	b := &pgx.Batch{}
	for i := range units {
		u := &units[i]
		var fields any
		if len(u.Fields) > 0 {
			fields = string(u.Fields)
		}
		b.Queue(insertUnitSQL,
			u.ConnID, u.RemoteAddr, u.Transport, u.Control, u.Name, u.Direction,
			u.StatusCCRC, u.StatusAPRC, u.LengthField, u.LengthWidth, u.Size,
			u.Payload, fields, u.FieldsStop, u.CRC, u.RawHex, u.CapturedAt,
		)
	}
	br := r.Pool.SendBatch(ctx, b)
	defer br.Close()
	for i := range units {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert zvt unit %d/%d: %w", i+1, len(units), err)
		}
	}
	return nil
}

// DeleteBefore 清理早于 cutoff 的记录，返回删除条数
func (r *Repository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.Pool.Exec(ctx, `DELETE FROM zvt_units WHERE captured_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
