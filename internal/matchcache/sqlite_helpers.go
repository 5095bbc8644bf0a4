package matchcache

import (
	"database/sql"
	"errors"
	"time"
)

func scanRecord(scanner interface{ Scan(dest ...any) error }) (Record, error) {
	var (
		itemID      int64
		messageID   sql.NullInt64
		uploadedRaw sql.NullString
		season      sql.NullInt64
		statusStr   string
	)
	if err := scanner.Scan(&itemID, &messageID, &uploadedRaw, &season, &statusStr); err != nil {
		return Record{}, err
	}

	status, err := ParseStatus(statusStr)
	if err != nil {
		return Record{}, err
	}
	rec := Record{ItemID: itemID, Status: status}
	if messageID.Valid {
		id := messageID.Int64
		rec.MessageID = &id
	}
	if uploadedRaw.Valid {
		uploaded, err := parseTimeString(uploadedRaw.String)
		if err != nil {
			return Record{}, err
		}
		rec.UploadedAt = &uploaded
	}
	if season.Valid {
		s := int(season.Int64)
		rec.Season = &s
	}
	return rec, nil
}

func nullableInt64(value *int64) any {
	if value == nil {
		return nil
	}
	return *value
}

func nullableInt(value *int) any {
	if value == nil {
		return nil
	}
	return *value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
