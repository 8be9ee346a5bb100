package events

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/wahook/pkg/config"
	"github.com/wahook/pkg/constant"
	"github.com/wahook/pkg/database"
	"github.com/wahook/pkg/entities"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository interface {
	Save(ctx context.Context, event *entities.WebhookEvent) (bool, error)
	Count(ctx context.Context) (int64, error)
	RecentMessages(ctx context.Context, limit int) ([]Message, error)
	Search(ctx context.Context, filter SearchFilter) ([]Message, error)
	DailyStats(ctx context.Context, days int) ([]DayStat, error)
	ContactStats(ctx context.Context, limit int) ([]ContactStat, error)
	Info(ctx context.Context) (StoreInfo, error)
	CountOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	Vacuum(ctx context.Context) (int64, error)
	Backup(ctx context.Context, dir string) (string, int64, error)
}

type repository struct {
	db     *gorm.DB
	driver string
	path   string
	now    func() time.Time
	loc    *time.Location
}

func NewRepo(db *gorm.DB, dbc config.Database) Repository {
	driver := dbc.Driver
	if driver == "" {
		driver = database.DriverSQLite
	}
	return &repository{
		db:     db,
		driver: driver,
		path:   dbc.Path,
		now:    time.Now,
		loc:    time.Local,
	}
}

const messageColumns = `e.id AS id, e.event_type AS event_type, e.instance_id AS instance_id,
	COALESCE(e.message_id, '') AS message_id, e.from_me AS from_me, e.from_api AS from_api,
	e.is_group AS is_group, e.moment AS moment, e.received_at AS received_at,
	COALESCE(c.chat_id, '') AS chat_id, COALESCE(c.group_name, '') AS group_name,
	COALESCE(c.profile_picture, '') AS chat_picture,
	COALESCE(s.sender_id, '') AS sender_id, COALESCE(s.push_name, '') AS push_name,
	COALESCE(s.verified_biz_name, '') AS verified_biz_name, COALESCE(s.profile_picture, '') AS sender_picture,
	COALESCE(m.content_type, '') AS content_type, COALESCE(m.text, '') AS text,
	COALESCE(m.caption, '') AS caption, COALESCE(m.url, '') AS url, COALESCE(m.mimetype, '') AS mimetype,
	COALESCE(m.file_name, '') AS file_name, COALESCE(m.latitude, 0) AS latitude,
	COALESCE(m.longitude, 0) AS longitude`

func (r *repository) messages(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("webhook_events AS e").
		Select(messageColumns).
		Joins("LEFT JOIN chats AS c ON c.event_id = e.id").
		Joins("LEFT JOIN senders AS s ON s.event_id = e.id").
		Joins("LEFT JOIN message_contents AS m ON m.event_id = e.id")
}

// Save inserts the event and its side rows atomically. A message id that is
// already stored makes the insert a no-op and Save reports false.
func (r *repository) Save(ctx context.Context, event *entities.WebhookEvent) (bool, error) {
	inserted := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "message_id"}},
			DoNothing: true,
		}).Omit(clause.Associations).Create(event)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		inserted = true

		if event.Chat != nil {
			event.Chat.EventID = event.ID
			if err := tx.Create(event.Chat).Error; err != nil {
				return err
			}
		}
		if event.Sender != nil {
			event.Sender.EventID = event.ID
			if err := tx.Create(event.Sender).Error; err != nil {
				return err
			}
		}
		if event.Content != nil {
			event.Content.EventID = event.ID
			if err := tx.Create(event.Content).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, &StoreError{Op: "save", Err: err}
	}
	return inserted, nil
}

func (r *repository) Count(ctx context.Context) (int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&entities.WebhookEvent{}).Count(&total).Error; err != nil {
		return 0, &StoreError{Op: "count", Err: err}
	}
	return total, nil
}

func (r *repository) RecentMessages(ctx context.Context, limit int) ([]Message, error) {
	var out []Message
	err := r.messages(ctx).
		Order("e.received_at DESC").Order("e.id DESC").
		Limit(clampLimit(limit)).
		Scan(&out).Error
	if err != nil {
		return nil, &StoreError{Op: "recent messages", Err: err}
	}
	return out, nil
}

func (r *repository) Search(ctx context.Context, filter SearchFilter) ([]Message, error) {
	q := r.messages(ctx)
	if text := strings.TrimSpace(filter.Text); text != "" {
		like := "%" + strings.ToLower(text) + "%"
		q = q.Where("(LOWER(m.text) LIKE ? OR LOWER(m.caption) LIKE ?)", like, like)
	}
	if filter.ContactID != "" {
		q = q.Where("(s.sender_id = ? OR c.chat_id = ?)", filter.ContactID, filter.ContactID)
	}
	if filter.MessageType != "" {
		q = q.Where("m.content_type = ?", filter.MessageType)
	}
	if filter.FromMe != nil {
		q = q.Where("e.from_me = ?", *filter.FromMe)
	}
	if filter.IsGroup != nil {
		q = q.Where("e.is_group = ?", *filter.IsGroup)
	}
	if filter.DaysBack > 0 {
		q = q.Where("e.received_at >= ?", windowStart(r.now(), filter.DaysBack))
	}

	var out []Message
	err := q.Order("e.received_at DESC").Order("e.id DESC").
		Limit(clampLimit(filter.Limit)).
		Scan(&out).Error
	if err != nil {
		return nil, &StoreError{Op: "search", Err: err}
	}
	return out, nil
}

// DailyStats buckets the in-window events by calendar day, newest first.
func (r *repository) DailyStats(ctx context.Context, days int) ([]DayStat, error) {
	if days <= 0 {
		days = 7
	}
	rows, err := r.db.WithContext(ctx).
		Table("webhook_events AS e").
		Select("e.received_at, e.from_me, e.is_group, COALESCE(m.content_type, '')").
		Joins("LEFT JOIN message_contents AS m ON m.event_id = e.id").
		Where("e.received_at >= ?", windowStart(r.now(), days)).
		Rows()
	if err != nil {
		return nil, &StoreError{Op: "daily stats", Err: err}
	}
	defer rows.Close()

	buckets := make(map[string]*DayStat)
	for rows.Next() {
		var (
			receivedAt      time.Time
			fromMe, isGroup bool
			contentType     string
		)
		if err := rows.Scan(&receivedAt, &fromMe, &isGroup, &contentType); err != nil {
			return nil, &StoreError{Op: "daily stats", Err: err}
		}
		day := receivedAt.In(r.loc).Format("2006-01-02")
		stat, ok := buckets[day]
		if !ok {
			stat = &DayStat{Date: day}
			buckets[day] = stat
		}
		stat.Total++
		if fromMe {
			stat.Sent++
		} else {
			stat.Received++
		}
		if isGroup {
			stat.Group++
		} else {
			stat.Private++
		}
		switch contentType {
		case constant.CONTENT_STICKER:
			stat.Sticker++
		case constant.CONTENT_TEXT:
			stat.Text++
		case constant.CONTENT_IMAGE, constant.CONTENT_VIDEO, constant.CONTENT_AUDIO, constant.CONTENT_DOCUMENT:
			stat.Media++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: "daily stats", Err: err}
	}

	out := make([]DayStat, 0, len(buckets))
	for _, stat := range buckets {
		out = append(out, *stat)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out, nil
}

// ContactStats aggregates private conversations per sender.
func (r *repository) ContactStats(ctx context.Context, limit int) ([]ContactStat, error) {
	rows, err := r.db.WithContext(ctx).
		Table("senders AS s").
		Select("s.sender_id, s.push_name, s.profile_picture, e.received_at").
		Joins("JOIN webhook_events AS e ON e.id = s.event_id").
		Where("e.is_group = ?", false).
		Where("s.sender_id <> ?", "").
		Order("e.id ASC").
		Rows()
	if err != nil {
		return nil, &StoreError{Op: "contact stats", Err: err}
	}
	defer rows.Close()

	byID := make(map[string]*ContactStat)
	for rows.Next() {
		var (
			senderID, pushName, picture string
			receivedAt                  time.Time
		)
		if err := rows.Scan(&senderID, &pushName, &picture, &receivedAt); err != nil {
			return nil, &StoreError{Op: "contact stats", Err: err}
		}
		stat, ok := byID[senderID]
		if !ok {
			stat = &ContactStat{SenderID: senderID, FirstMessageAt: receivedAt}
			byID[senderID] = stat
		}
		stat.MessageCount++
		if receivedAt.Before(stat.FirstMessageAt) {
			stat.FirstMessageAt = receivedAt
		}
		if !receivedAt.Before(stat.LastMessageAt) {
			stat.LastMessageAt = receivedAt
		}
		if pushName != "" {
			stat.PushName = pushName
		}
		if picture != "" {
			stat.ProfilePicture = picture
		}
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: "contact stats", Err: err}
	}

	out := make([]ContactStat, 0, len(byID))
	for _, stat := range byID {
		out = append(out, *stat)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MessageCount != out[j].MessageCount {
			return out[i].MessageCount > out[j].MessageCount
		}
		return out[i].LastMessageAt.After(out[j].LastMessageAt)
	})
	if limit = clampLimit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *repository) Info(ctx context.Context) (StoreInfo, error) {
	info := StoreInfo{Driver: r.driver, ByContentType: map[string]int64{}}
	if r.driver == database.DriverSQLite {
		info.Path = r.path
	}

	var counts struct {
		Total    int64
		Sent     int64
		Received int64
		Group    int64
		Private  int64
	}
	err := r.db.WithContext(ctx).Model(&entities.WebhookEvent{}).Select(`COUNT(*) AS total,
		COALESCE(SUM(CASE WHEN from_me THEN 1 ELSE 0 END), 0) AS sent,
		COALESCE(SUM(CASE WHEN from_me THEN 0 ELSE 1 END), 0) AS received,
		COALESCE(SUM(CASE WHEN is_group THEN 1 ELSE 0 END), 0) AS "group",
		COALESCE(SUM(CASE WHEN is_group THEN 0 ELSE 1 END), 0) AS private`).
		Scan(&counts).Error
	if err != nil {
		return info, &StoreError{Op: "info", Err: err}
	}
	info.TotalEvents = counts.Total
	info.Sent = counts.Sent
	info.Received = counts.Received
	info.Group = counts.Group
	info.Private = counts.Private

	var byType []struct {
		ContentType string
		Total       int64
	}
	err = r.db.WithContext(ctx).Model(&entities.MessageContent{}).
		Select("content_type, COUNT(*) AS total").
		Group("content_type").
		Scan(&byType).Error
	if err != nil {
		return info, &StoreError{Op: "info", Err: err}
	}
	for _, row := range byType {
		info.ByContentType[row.ContentType] = row.Total
	}

	if info.TotalEvents > 0 {
		var first, last entities.WebhookEvent
		if err := r.db.WithContext(ctx).Order("received_at ASC").Order("id ASC").Take(&first).Error; err != nil {
			return info, &StoreError{Op: "info", Err: err}
		}
		if err := r.db.WithContext(ctx).Order("received_at DESC").Order("id DESC").Take(&last).Error; err != nil {
			return info, &StoreError{Op: "info", Err: err}
		}
		info.FirstEventAt = &first.ReceivedAt
		info.LastEventAt = &last.ReceivedAt
	}

	size, err := r.size(ctx)
	if err != nil {
		return info, &StoreError{Op: "info", Err: err}
	}
	info.SizeBytes = size
	return info, nil
}

func (r *repository) size(ctx context.Context) (int64, error) {
	if r.driver == database.DriverPostgres {
		var size int64
		err := r.db.WithContext(ctx).Raw("SELECT pg_database_size(current_database())").Scan(&size).Error
		return size, err
	}
	var total int64
	for _, p := range []string{r.path, r.path + "-wal"} {
		st, err := os.Stat(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return 0, err
		}
		total += st.Size()
	}
	return total, nil
}

func (r *repository) CountOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&entities.WebhookEvent{}).
		Where("received_at < ?", cutoff.UTC()).
		Count(&total).Error
	if err != nil {
		return 0, &StoreError{Op: "count older", Err: err}
	}
	return total, nil
}

// PurgeOlderThan removes events received before cutoff together with their
// side rows and reports how many events were removed.
func (r *repository) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	cutoff = cutoff.UTC()
	var removed int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		old := tx.Model(&entities.WebhookEvent{}).Select("id").Where("received_at < ?", cutoff)
		for _, side := range []any{&entities.Chat{}, &entities.Sender{}, &entities.MessageContent{}} {
			if err := tx.Where("event_id IN (?)", old).Delete(side).Error; err != nil {
				return err
			}
		}
		res := tx.Where("received_at < ?", cutoff).Delete(&entities.WebhookEvent{})
		if res.Error != nil {
			return res.Error
		}
		removed = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, &StoreError{Op: "purge", Err: err}
	}
	return removed, nil
}

// Vacuum rebuilds the database file and reports the bytes reclaimed.
func (r *repository) Vacuum(ctx context.Context) (int64, error) {
	before, err := r.size(ctx)
	if err != nil {
		return 0, &StoreError{Op: "vacuum", Err: err}
	}
	db := r.db.WithContext(ctx)
	if r.driver == database.DriverSQLite {
		if err := db.Exec("PRAGMA wal_checkpoint(TRUNCATE)").Error; err != nil {
			return 0, &StoreError{Op: "vacuum", Err: err}
		}
	}
	if err := db.Exec("VACUUM").Error; err != nil {
		return 0, &StoreError{Op: "vacuum", Err: err}
	}
	if r.driver == database.DriverSQLite {
		if err := db.Exec("PRAGMA wal_checkpoint(TRUNCATE)").Error; err != nil {
			return 0, &StoreError{Op: "vacuum", Err: err}
		}
	}
	after, err := r.size(ctx)
	if err != nil {
		return 0, &StoreError{Op: "vacuum", Err: err}
	}
	if after > before {
		return 0, nil
	}
	return before - after, nil
}

// Backup checkpoints the WAL and copies the database file into dir under a
// timestamped name.
func (r *repository) Backup(ctx context.Context, dir string) (string, int64, error) {
	if r.driver != database.DriverSQLite {
		return "", 0, ErrBackupUnsupported
	}
	if err := r.db.WithContext(ctx).Exec("PRAGMA wal_checkpoint(TRUNCATE)").Error; err != nil {
		return "", 0, &StoreError{Op: "backup", Err: err}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, &StoreError{Op: "backup", Err: err}
	}

	base := filepath.Base(r.path)
	ext := filepath.Ext(base)
	name := fmt.Sprintf("%s_backup_%s%s", strings.TrimSuffix(base, ext), r.now().Format("20060102_150405"), ext)
	target := filepath.Join(dir, name)

	n, err := copyFile(r.path, target)
	if err != nil {
		return "", 0, &StoreError{Op: "backup", Err: err}
	}
	return target, n, nil
}

func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, in)
	if err != nil {
		out.Close()
		return 0, err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return 0, err
	}
	return n, out.Close()
}
