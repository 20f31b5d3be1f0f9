package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/rs/zerolog"

	"github.com/meowecho-tech/vote/internal/ids"
	"github.com/meowecho-tech/vote/internal/models"
	"github.com/meowecho-tech/vote/internal/voterroll"
)

type ArchivedImport struct {
	ContestID string
	Format    voterroll.Format
	Payload   []byte
	Report    models.ImportReport
}

// ImportArchive keeps applied voter-roll imports for later audit.
type ImportArchive interface {
	ArchiveImport(ctx context.Context, entry ArchivedImport) error
}

// ObjectPutter is the part of storage.ObjectStore the archive needs.
type ObjectPutter interface {
	Put(ctx context.Context, key string, data []byte, contentType string, meta map[string]string) error
}

type ObjectArchive struct {
	store ObjectPutter
	now   func() time.Time
	log   zerolog.Logger
}

func NewObjectArchive(store ObjectPutter, log zerolog.Logger) *ObjectArchive {
	return &ObjectArchive{store: store, now: time.Now, log: log}
}

// ArchiveImport writes the raw payload and its report side by side under
// imports/<date>/<contest>/<id>.
func (a *ObjectArchive) ArchiveImport(ctx context.Context, entry ArchivedImport) error {
	prefix := a.buildPrefix(entry.ContestID)

	sum := sha256.Sum256(entry.Payload)
	meta := map[string]string{
		"contest-id": entry.ContestID,
		"format":     string(entry.Format),
		"sha256":     hex.EncodeToString(sum[:]),
	}

	payloadKey := fmt.Sprintf("%s.%s", prefix, entry.Format)
	if err := a.store.Put(ctx, payloadKey, entry.Payload, contentTypeFor(entry.Format), meta); err != nil {
		return fmt.Errorf("archive payload: %w", err)
	}

	report, err := json.Marshal(entry.Report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := a.store.Put(ctx, prefix+".report.json", report, "application/json", meta); err != nil {
		return fmt.Errorf("archive report: %w", err)
	}

	a.log.Debug().Str("contest_id", entry.ContestID).Str("key", payloadKey).Msg("import archived")
	return nil
}

func (a *ObjectArchive) buildPrefix(contestID string) string {
	datePrefix := a.now().UTC().Format("2006/01/02")
	return path.Join("imports", datePrefix, contestID, ids.New())
}

func contentTypeFor(format voterroll.Format) string {
	switch format {
	case voterroll.FormatCSV:
		return "text/csv"
	case voterroll.FormatJSON:
		return "application/json"
	case voterroll.FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/octet-stream"
	}
}
