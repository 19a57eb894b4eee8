package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"gorm.io/gorm"

	offline "github.com/masad-stock/skillbridge-sub000/internal/data/repos/offline"
	pkgerrors "github.com/masad-stock/skillbridge-sub000/internal/pkg/errors"
	"github.com/masad-stock/skillbridge-sub000/internal/platform/logger"
	types "github.com/masad-stock/skillbridge-sub000/internal/types"
)

// A4 landscape at 96 DPI.
const (
	certWidth  = 1123
	certHeight = 794
)

// CertificateInput carries everything needed to issue a course completion
// certificate offline.
type CertificateInput struct {
	LearnerID      string
	LearnerName    string
	CourseID       string
	CourseName     string
	CompletionDate time.Time
	SkillsAcquired []string
}

type CertificateService interface {
	// Generate renders the certificate document, stores it, and queues it
	// for sync. The document render must succeed for the certificate to
	// exist at all.
	Generate(ctx context.Context, input CertificateInput) (*types.Certificate, error)
	Certificates(ctx context.Context, learnerID string) ([]*types.Certificate, error)
	Certificate(ctx context.Context, id string) (*types.Certificate, error)
	ByVerificationCode(ctx context.Context, code string) (*types.Certificate, error)
}

type certificateService struct {
	db    *gorm.DB
	log   *logger.Logger
	repo  offline.CertificateRepo
	queue SyncQueueService

	titleFace  font.Face
	nameFace   font.Face
	bodyFace   font.Face
	smallFace  font.Face
	customFont bool
}

func NewCertificateService(db *gorm.DB, baseLog *logger.Logger, repo offline.CertificateRepo, queue SyncQueueService) CertificateService {
	s := &certificateService{
		db:    db,
		log:   baseLog.With("service", "certificate"),
		repo:  repo,
		queue: queue,
	}
	// A TTF makes the certificate presentable; without one gg falls back to
	// its built-in face at render time.
	fontPath := strings.TrimSpace(os.Getenv("CERTIFICATE_FONT"))
	if fontPath != "" {
		if err := s.loadFaces(fontPath); err != nil {
			s.log.Warn("certificate font could not be loaded, using built-in face", "path", fontPath, "error", err)
		} else {
			s.customFont = true
		}
	}
	return s
}

func (s *certificateService) loadFaces(fontPath string) error {
	fontBytes, err := os.ReadFile(fontPath)
	if err != nil {
		return fmt.Errorf("failed to read font file: %w", err)
	}
	parsedFont, err := truetype.Parse(fontBytes)
	if err != nil {
		return fmt.Errorf("failed to parse TTF: %w", err)
	}
	face := func(size float64) font.Face {
		return truetype.NewFace(parsedFont, &truetype.Options{
			Size:    size,
			DPI:     72,
			Hinting: font.HintingNone,
		})
	}
	s.titleFace = face(44)
	s.nameFace = face(34)
	s.bodyFace = face(20)
	s.smallFace = face(14)
	return nil
}

func (s *certificateService) Generate(ctx context.Context, input CertificateInput) (*types.Certificate, error) {
	if input.LearnerID == "" || input.LearnerName == "" {
		return nil, fmt.Errorf("%w: learner id and name required", pkgerrors.ErrInvalidArgument)
	}
	if input.CourseID == "" || input.CourseName == "" {
		return nil, fmt.Errorf("%w: course id and name required", pkgerrors.ErrInvalidArgument)
	}
	if input.CompletionDate.IsZero() {
		input.CompletionDate = time.Now().UTC()
	}

	code := generateVerificationCode()
	doc, err := s.render(input, code)
	if err != nil {
		return nil, fmt.Errorf("render certificate: %w", err)
	}

	now := time.Now().UTC()
	cert := &types.Certificate{
		ID:               fmt.Sprintf("cert-%d-%s", now.UnixMilli(), randBase36(9)),
		LearnerID:        input.LearnerID,
		CourseID:         input.CourseID,
		LearnerName:      input.LearnerName,
		CourseName:       input.CourseName,
		CompletionDate:   input.CompletionDate,
		SkillsAcquired:   input.SkillsAcquired,
		VerificationCode: code,
		Document:         doc,
		GeneratedAt:      now,
		SyncStatus:       types.SyncStatusPending,
	}
	if err := s.repo.Save(ctx, nil, cert); err != nil {
		return nil, err
	}
	s.log.Info("certificate generated",
		"certificate_id", cert.ID, "course_id", cert.CourseID, "verification_code", cert.VerificationCode, "bytes", len(doc))

	payload := certificateSyncPayload{
		CertificateID:    cert.ID,
		LearnerID:        cert.LearnerID,
		LearnerName:      cert.LearnerName,
		CourseID:         cert.CourseID,
		CourseName:       cert.CourseName,
		CompletionDate:   cert.CompletionDate,
		SkillsAcquired:   cert.SkillsAcquired,
		VerificationCode: cert.VerificationCode,
		DocumentBase64:   base64.StdEncoding.EncodeToString(doc),
		GeneratedAt:      cert.GeneratedAt,
	}
	if _, err := s.queue.Enqueue(ctx, types.QueueTypeCertificate, payload); err != nil {
		// The certificate is already durable; sync can be retried later.
		s.log.Warn("certificate could not be queued for sync", "certificate_id", cert.ID, "error", err)
	}
	return cert, nil
}

// render draws the certificate as a PNG.
func (s *certificateService) render(input CertificateInput, verificationCode string) ([]byte, error) {
	dc := gg.NewContext(certWidth, certHeight)

	w, h := float64(certWidth), float64(certHeight)

	dc.SetRGB(1, 1, 1)
	dc.DrawRectangle(0, 0, w, h)
	dc.Fill()

	// Double border in brand blues
	dc.SetRGB255(41, 128, 185)
	dc.SetLineWidth(6)
	dc.DrawRectangle(40, 40, w-80, h-80)
	dc.Stroke()
	dc.SetRGB255(52, 152, 219)
	dc.SetLineWidth(2)
	dc.DrawRectangle(60, 60, w-120, h-120)
	dc.Stroke()

	centered := func(face font.Face, text string, y float64) {
		if face != nil {
			dc.SetFontFace(face)
		}
		dc.DrawStringAnchored(text, w/2, y, 0.5, 0.5)
	}

	dc.SetRGB255(41, 128, 185)
	centered(s.bodyFace, "SkillBridge", 120)

	dc.SetRGB(0, 0, 0)
	centered(s.titleFace, "Certificate of Completion", 210)
	centered(s.bodyFace, "This is to certify that", 290)
	centered(s.nameFace, input.LearnerName, 350)
	centered(s.bodyFace, "has successfully completed", 420)
	centered(s.nameFace, input.CourseName, 480)

	y := 540.0
	if len(input.SkillsAcquired) > 0 {
		centered(s.smallFace, "Skills Acquired:", y)
		skills := input.SkillsAcquired
		if len(skills) > 5 {
			skills = skills[:5]
		}
		centered(s.smallFace, strings.Join(skills, " * "), y+28)
		y += 70
	}

	centered(s.smallFace, "Completed on: "+input.CompletionDate.Format("January 2, 2006"), y)
	centered(s.smallFace, "Verification Code: "+verificationCode, y+50)

	centered(s.smallFace, "SkillBridge - Empowering Rural Entrepreneurs", h-110)
	centered(s.smallFace, "Verify this certificate at: skillbridge.app/verify", h-85)

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *certificateService) Certificates(ctx context.Context, learnerID string) ([]*types.Certificate, error) {
	return s.repo.ListByLearner(ctx, nil, learnerID)
}

func (s *certificateService) Certificate(ctx context.Context, id string) (*types.Certificate, error) {
	return s.repo.Get(ctx, nil, id)
}

func (s *certificateService) ByVerificationCode(ctx context.Context, code string) (*types.Certificate, error) {
	return s.repo.GetByVerificationCode(ctx, nil, code)
}

// generateVerificationCode yields codes like SB-MB3K2F9Q-A7C4D1E2F.
func generateVerificationCode() string {
	ts := strconv.FormatInt(time.Now().UnixMilli(), 36)
	return strings.ToUpper("SB-" + ts + "-" + randBase36(9))
}

const base36Chars = "0123456789abcdefghijklmnopqrstuvwxyz"

func randBase36(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = base36Chars[rand.Intn(len(base36Chars))]
	}
	return string(b)
}
