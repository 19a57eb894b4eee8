package services

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/masad-stock/skillbridge-sub000/internal/data/repos/testutil"
	pkgerrors "github.com/masad-stock/skillbridge-sub000/internal/pkg/errors"
	types "github.com/masad-stock/skillbridge-sub000/internal/types"
)

// failingQueue rejects every enqueue, standing in for a full or broken queue
// store.
type failingQueue struct {
	SyncQueueService
}

func (failingQueue) Enqueue(ctx context.Context, itemType types.QueueItemType, payload any) (*types.QueueItem, error) {
	return nil, errors.New("queue unavailable")
}

func certificateInput() CertificateInput {
	return CertificateInput{
		LearnerID:      "learner-1",
		LearnerName:    "Wanjiku Kamau",
		CourseID:       "mpesa-mastery",
		CourseName:     "M-Pesa & Mobile Money",
		CompletionDate: time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
		SkillsAcquired: []string{"Mobile payments", "Transaction records"},
	}
}

func newCertificateFixture(t *testing.T) (CertificateService, *queueFixture) {
	t.Helper()
	f := newQueueFixture(t, SyncQueueConfig{})
	svc := NewCertificateService(f.db, testutil.Logger(t), f.certificates, f.service)
	return svc, f
}

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

func TestGenerateRendersAndStoresCertificate(t *testing.T) {
	svc, f := newCertificateFixture(t)
	ctx := context.Background()

	cert, err := svc.Generate(ctx, certificateInput())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.HasPrefix(cert.ID, "cert-") {
		t.Fatalf("certificate id: %q", cert.ID)
	}
	if !strings.HasPrefix(cert.VerificationCode, "SB-") {
		t.Fatalf("verification code: %q", cert.VerificationCode)
	}
	if cert.VerificationCode != strings.ToUpper(cert.VerificationCode) {
		t.Fatalf("verification code not uppercased: %q", cert.VerificationCode)
	}
	if !bytes.HasPrefix(cert.Document, pngMagic) {
		t.Fatalf("document is not a PNG")
	}
	if cert.Verified {
		t.Fatalf("fresh certificate must be unverified")
	}

	stored, err := svc.Certificate(ctx, cert.ID)
	if err != nil {
		t.Fatalf("lookup by id: %v", err)
	}
	if !bytes.Equal(stored.Document, cert.Document) {
		t.Fatalf("stored document differs")
	}
	byCode, err := svc.ByVerificationCode(ctx, cert.VerificationCode)
	if err != nil {
		t.Fatalf("lookup by code: %v", err)
	}
	if byCode.ID != cert.ID {
		t.Fatalf("lookup by code: want=%s got=%s", cert.ID, byCode.ID)
	}

	status, err := f.service.Status(ctx)
	if err != nil {
		t.Fatalf("queue status: %v", err)
	}
	if status.ByType[types.QueueTypeCertificate] != 1 {
		t.Fatalf("queued certificates: want=1 got=%d", status.ByType[types.QueueTypeCertificate])
	}
}

func TestGenerateSurvivesEnqueueFailure(t *testing.T) {
	f := newQueueFixture(t, SyncQueueConfig{})
	svc := NewCertificateService(f.db, testutil.Logger(t), f.certificates, failingQueue{})
	ctx := context.Background()

	cert, err := svc.Generate(ctx, certificateInput())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	// The certificate is durable even when the sync queue rejects it.
	if _, err := svc.Certificate(ctx, cert.ID); err != nil {
		t.Fatalf("certificate not stored: %v", err)
	}
}

func TestGenerateValidatesInput(t *testing.T) {
	svc, _ := newCertificateFixture(t)
	ctx := context.Background()

	cases := []struct {
		name string
		edit func(*CertificateInput)
	}{
		{"missing learner id", func(in *CertificateInput) { in.LearnerID = "" }},
		{"missing learner name", func(in *CertificateInput) { in.LearnerName = "" }},
		{"missing course id", func(in *CertificateInput) { in.CourseID = "" }},
		{"missing course name", func(in *CertificateInput) { in.CourseName = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := certificateInput()
			tc.edit(&in)
			if _, err := svc.Generate(ctx, in); !errors.Is(err, pkgerrors.ErrInvalidArgument) {
				t.Fatalf("want ErrInvalidArgument got %v", err)
			}
		})
	}
}

func TestGenerateDefaultsCompletionDate(t *testing.T) {
	svc, _ := newCertificateFixture(t)

	in := certificateInput()
	in.CompletionDate = time.Time{}
	cert, err := svc.Generate(context.Background(), in)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if cert.CompletionDate.IsZero() {
		t.Fatalf("completion date not defaulted")
	}
}

func TestCertificatesListsOnlyLearner(t *testing.T) {
	svc, _ := newCertificateFixture(t)
	ctx := context.Background()

	if _, err := svc.Generate(ctx, certificateInput()); err != nil {
		t.Fatalf("generate: %v", err)
	}
	other := certificateInput()
	other.LearnerID = "learner-2"
	other.LearnerName = "Otieno Odhiambo"
	if _, err := svc.Generate(ctx, other); err != nil {
		t.Fatalf("generate other: %v", err)
	}

	certs, err := svc.Certificates(ctx, "learner-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(certs) != 1 || certs[0].LearnerID != "learner-1" {
		t.Fatalf("list: %d certs", len(certs))
	}
}

func TestByVerificationCodeUnknown(t *testing.T) {
	svc, _ := newCertificateFixture(t)

	if _, err := svc.ByVerificationCode(context.Background(), "SB-NOPE-NOPE"); !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Fatalf("want ErrNotFound got %v", err)
	}
}
