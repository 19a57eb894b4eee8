package db

import (
	types "github.com/masad-stock/skillbridge-sub000/internal/types"
)

// AutoMigrateAll creates the six record kinds and their secondary indexes
// (category, learner id, sync status, verification code, priority, timestamp).
func (s *SQLiteService) AutoMigrateAll() error {
	return s.db.AutoMigrate(
		&types.CourseBundle{},
		&types.ProgressRecord{},
		&types.AssessmentRecord{},
		&types.BusinessRecord{},
		&types.Certificate{},
		&types.QueueItem{},
	)
}
