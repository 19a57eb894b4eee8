package app

import (
	"gorm.io/gorm"

	offline "github.com/masad-stock/skillbridge-sub000/internal/data/repos/offline"
	"github.com/masad-stock/skillbridge-sub000/internal/platform/logger"
)

type Repos struct {
	Course      offline.CourseRepo
	Progress    offline.ProgressRepo
	Assessment  offline.AssessmentRepo
	Business    offline.BusinessRepo
	Certificate offline.CertificateRepo
	Queue       offline.QueueRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Course:      offline.NewCourseRepo(db, log),
		Progress:    offline.NewProgressRepo(db, log),
		Assessment:  offline.NewAssessmentRepo(db, log),
		Business:    offline.NewBusinessRepo(db, log),
		Certificate: offline.NewCertificateRepo(db, log),
		Queue:       offline.NewQueueRepo(db, log),
	}
}
