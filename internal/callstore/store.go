// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_callstore

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gorm_logger "gorm.io/gorm/logger"

	internal_type "github.com/Askhat-cmd/langchain-vox-bot/internal/type"
	"github.com/Askhat-cmd/langchain-vox-bot/pkg/commons"
)

// CallLog is one finished call: identity, timing, how it ended and the full
// ordered transcript serialized as JSON.
type CallLog struct {
	ID           uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	ChannelID    string    `json:"channelId" gorm:"type:string;size:128;not null;index"`
	CallerNumber string    `json:"callerNumber" gorm:"type:string;size:64"`
	StartedAt    time.Time `json:"startedAt" gorm:"not null;index"`
	EndedAt      time.Time `json:"endedAt"`
	EndReason    string    `json:"endReason" gorm:"type:string;size:50"`
	Transcript   string    `json:"transcript" gorm:"type:text"`
}

// Store persists call logs in a local sqlite database.
type Store struct {
	logger commons.Logger
	db     *gorm.DB
}

func NewStore(logger commons.Logger, path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gorm_logger.Default.LogMode(gorm_logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("callstore: opening %s: %w", path, err)
	}
	if err := db.AutoMigrate(&CallLog{}); err != nil {
		return nil, fmt.Errorf("callstore: migrating schema: %w", err)
	}
	return &Store{logger: logger, db: db}, nil
}

// Save writes one finished call. The transcript entries are stored as a
// JSON array in entry order.
func (s *Store) Save(ctx context.Context, log *CallLog, transcript []internal_type.TranscriptEntry) error {
	encoded, err := json.Marshal(transcript)
	if err != nil {
		return fmt.Errorf("callstore: encoding transcript: %w", err)
	}
	log.Transcript = string(encoded)
	if err := s.db.WithContext(ctx).Create(log).Error; err != nil {
		return fmt.Errorf("callstore: saving call %s: %w", log.ChannelID, err)
	}
	s.logger.Infow("call log saved", "channel", log.ChannelID, "reason", log.EndReason)
	return nil
}

// List returns the most recent calls, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]CallLog, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	var logs []CallLog
	err := s.db.WithContext(ctx).
		Order("started_at desc").
		Limit(limit).
		Find(&logs).Error
	if err != nil {
		return nil, fmt.Errorf("callstore: listing calls: %w", err)
	}
	return logs, nil
}

// Purge deletes call logs older than the cutoff and reports how many rows
// went away.
func (s *Store) Purge(ctx context.Context, olderThan time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("started_at < ?", olderThan).
		Delete(&CallLog{})
	if res.Error != nil {
		return 0, fmt.Errorf("callstore: purging calls: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// ExportCSV streams every stored call as CSV, one row per transcript entry.
func (s *Store) ExportCSV(ctx context.Context, w io.Writer) error {
	var logs []CallLog
	if err := s.db.WithContext(ctx).Order("started_at asc").Find(&logs).Error; err != nil {
		return fmt.Errorf("callstore: loading calls for export: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"call_id", "channel_id", "caller", "started_at", "end_reason", "speaker", "text", "timestamp"}); err != nil {
		return err
	}
	for _, log := range logs {
		var entries []internal_type.TranscriptEntry
		if err := json.Unmarshal([]byte(log.Transcript), &entries); err != nil {
			s.logger.Warnw("skipping call with unreadable transcript", "id", log.ID, "error", err)
			continue
		}
		for _, e := range entries {
			row := []string{
				strconv.FormatUint(uint64(log.ID), 10),
				log.ChannelID,
				log.CallerNumber,
				log.StartedAt.Format(time.RFC3339),
				log.EndReason,
				string(e.Speaker),
				e.Text,
				e.Timestamp.Format(time.RFC3339),
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}
