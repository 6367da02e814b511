package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/models"
	"github.com/noah-isme/timetable-api/internal/scheduler"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
	"github.com/noah-isme/timetable-api/pkg/export"
	"github.com/noah-isme/timetable-api/pkg/storage"
)

// ExportRenderer renders a timetable dataset into a downloadable file.
type ExportRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
	ContentType() string
	Extension() string
}

type exportFileStore interface {
	Save(relPath string, data []byte) (string, error)
	Open(relPath string) (*os.File, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type downloadSigner interface {
	Issue(exportID, relPath string) (string, storage.Grant, error)
	Verify(token string, allowExpired bool) (storage.Grant, error)
	TTL() time.Duration
}

// TransferConfig configures export downloads.
type TransferConfig struct {
	// DownloadPath is the public path of the download endpoint.
	DownloadPath string
}

// ExportDownload is an opened export file ready to stream.
type ExportDownload struct {
	File        *os.File
	FileName    string
	ContentType string
}

// TransferService moves timetables in and out of the system: a JSON document
// for round trips and rendered CSV or PDF files behind signed links.
type TransferService struct {
	snapshots *SnapshotLoader
	writer    *ScheduleWriter
	files     exportFileStore
	signer    downloadSigner
	renderers map[string]ExportRenderer
	validator *validator.Validate
	logger    *zap.Logger
	cfg       TransferConfig
	now       func() time.Time
}

// NewTransferService constructs the service. Renderers are keyed by their extension.
func NewTransferService(
	snapshots *SnapshotLoader,
	writer *ScheduleWriter,
	files exportFileStore,
	signer downloadSigner,
	renderers []ExportRenderer,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg TransferConfig,
) *TransferService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DownloadPath == "" {
		cfg.DownloadPath = "/api/v1/exports/download"
	}
	byExt := make(map[string]ExportRenderer, len(renderers))
	for _, r := range renderers {
		byExt[r.Extension()] = r
	}
	return &TransferService{
		snapshots: snapshots,
		writer:    writer,
		files:     files,
		signer:    signer,
		renderers: byExt,
		validator: newValidator(validate),
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// ExportJSON returns the subjects and current schedule of a group.
func (s *TransferService) ExportJSON(ctx context.Context, groupID string) (*dto.TransferDocument, error) {
	if groupID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "groupId is required")
	}
	snapshot, err := s.snapshots.Load(ctx, groupID)
	if err != nil {
		return nil, err
	}
	_, items, err := s.writer.Current(ctx, nil, groupID)
	if err != nil {
		return nil, err
	}

	doc := &dto.TransferDocument{
		GroupID:    groupID,
		ExportedAt: s.now().UTC(),
		Subjects:   make([]dto.TransferSubject, 0, len(snapshot.Subjects)),
		Schedule:   scheduleView(groupID, nil, items).Items,
	}
	for _, subject := range snapshot.Subjects {
		doc.Subjects = append(doc.Subjects, dto.TransferSubject{
			ID:             subject.ID,
			Name:           subject.Name,
			ShortName:      subject.ShortName,
			HoursPerWeek:   subject.HoursPerWeek,
			TeacherID:      subject.TeacherID,
			RestrictedDays: models.IntDays(subject.RestrictedDays),
		})
	}
	return doc, nil
}

// ImportJSON validates the schedule of a document against the group's
// current catalog and stores it as a new version. The subjects section is
// informational; subjects are matched by id.
func (s *TransferService) ImportJSON(ctx context.Context, req dto.ImportScheduleRequest) (*dto.ScheduleView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidPayload(err, "invalid import payload")
	}
	snapshot, err := s.snapshots.Load(ctx, req.GroupID)
	if err != nil {
		return nil, err
	}
	occ, err := snapshot.Replay(payloadToSessions(req.Document.Schedule))
	if err != nil {
		return nil, err
	}

	items := sessionsToItems(occ.Sessions())
	var schedule *models.Schedule
	err = s.writer.InTx(ctx, req.GroupID, func(tx *sqlx.Tx) error {
		if err := s.writer.CheckTeachers(ctx, snapshot, occ.Sessions()); err != nil {
			return err
		}
		var werr error
		schedule, werr = s.writer.CreateVersion(ctx, tx, req.GroupID, models.ScheduleSourceImported, types.JSONText(`{"importedFrom":"json"}`), items)
		return werr
	})
	if err != nil {
		return nil, err
	}
	return scheduleView(req.GroupID, schedule, items), nil
}

// ExportFile renders the current timetable as CSV or PDF and returns a signed
// download link.
func (s *TransferService) ExportFile(ctx context.Context, req dto.ExportFileRequest) (*dto.ExportFileResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, invalidPayload(err, "invalid export payload")
	}
	renderer, ok := s.renderers[req.Format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", req.Format))
	}

	snapshot, err := s.snapshots.Load(ctx, req.GroupID)
	if err != nil {
		return nil, err
	}
	_, items, err := s.writer.Current(ctx, nil, req.GroupID)
	if err != nil {
		return nil, err
	}

	grid := snapshot.Input.Grid
	data := export.Timetable(grid.Days, grid.Periods, timetableCells(snapshot, items))
	title := fmt.Sprintf("Timetable %s", snapshot.Group.Name)
	content, err := renderer.Render(data, title)
	if err != nil {
		return nil, internalError(err, "failed to render export")
	}

	exportID := uuid.NewString()
	relPath := path.Join(req.GroupID, exportID+"."+renderer.Extension())
	if _, err := s.files.Save(relPath, content); err != nil {
		return nil, internalError(err, "failed to store export")
	}
	token, grant, err := s.signer.Issue(exportID, relPath)
	if err != nil {
		return nil, internalError(err, "failed to sign export link")
	}

	s.logger.Info("schedule exported", zap.String("group_id", req.GroupID), zap.String("format", req.Format), zap.String("export_id", exportID))
	return &dto.ExportFileResponse{
		Token:     token,
		URL:       s.cfg.DownloadPath + "?token=" + token,
		Format:    req.Format,
		ExpiresAt: grant.ExpiresAt,
	}, nil
}

// Open verifies a download token and opens the referenced file.
func (s *TransferService) Open(token string) (*ExportDownload, error) {
	grant, err := s.signer.Verify(token, false)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "download link expired")
		}
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid download link")
	}
	file, err := s.files.Open(grant.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export file not found")
		}
		return nil, internalError(err, "failed to open export")
	}

	download := &ExportDownload{File: file, FileName: path.Base(grant.Path), ContentType: "application/octet-stream"}
	if r, ok := s.renderers[extensionOf(grant.Path)]; ok {
		download.ContentType = r.ContentType()
	}
	return download, nil
}

// Cleanup removes export files older than the link lifetime.
func (s *TransferService) Cleanup(context.Context) (int, error) {
	removed, err := s.files.CleanupOlderThan(s.signer.TTL())
	if err != nil {
		return 0, internalError(err, "failed to clean exports")
	}
	if len(removed) > 0 {
		s.logger.Info("expired exports removed", zap.Int("count", len(removed)))
	}
	return len(removed), nil
}

func timetableCells(snapshot *GroupSnapshot, items []models.ScheduleItem) export.CellFunc {
	labels := make(map[string]string, len(snapshot.Subjects))
	for _, subject := range snapshot.Subjects {
		label := subject.Name
		if teacher, ok := snapshot.Teachers[subject.TeacherIDValue()]; ok {
			name := teacher.ShortName
			if name == "" {
				name = teacher.FullName
			}
			label = fmt.Sprintf("%s (%s)", label, name)
		}
		labels[subject.ID] = label
	}
	cells := make(map[scheduler.Slot]string, len(items))
	for _, item := range items {
		cells[scheduler.Slot{Day: item.Day, Period: item.Period}] = labels[item.SubjectID]
	}
	return func(day, period int) string {
		return cells[scheduler.Slot{Day: day, Period: period}]
	}
}

func extensionOf(p string) string {
	ext := path.Ext(p)
	if ext == "" {
		return ""
	}
	return ext[1:]
}
