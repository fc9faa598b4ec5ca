package services

import (
	"context"
	"fmt"
	"log"
	"os"

	clamd "github.com/dutchcoders/go-clamd"

	"github.com/Video-Publishing-CreatorHub/Upload-Service/internal/models"
	"github.com/Video-Publishing-CreatorHub/Upload-Service/internal/storage"
)

// Scanner runs ClamAV over freshly registered files. A nil scanner is valid
// and marks everything clean (scanning disabled).
type Scanner struct {
	clamAvURL string
	objects   *MinioService
	store     storage.Store
}

func NewScanner(clamAvURL string, objects *MinioService, store storage.Store) *Scanner {
	if clamAvURL == "" {
		return nil
	}
	return &Scanner{clamAvURL: clamAvURL, objects: objects, store: store}
}

// ScanReference downloads the reference's bytes, scans them, and on a hit
// deletes the object and marks the reference infected. Meant to run in a
// background goroutine after register.
func (s *Scanner) ScanReference(ctx context.Context, ref models.FileReference) {
	if s == nil {
		return
	}

	tempPath := fmt.Sprintf("/tmp/%s", ref.ObjectName)
	if err := s.objects.DownloadFile(ctx, ref.ObjectName, tempPath); err != nil {
		log.Println("Failed to download for scanning:", err)
		return
	}
	defer os.Remove(tempPath)

	c := clamd.NewClamd(s.clamAvURL)
	response, err := c.ScanFile(tempPath)
	if err != nil {
		log.Println("Scan failed:", err)
		return
	}

	status := models.ScanClean
	for res := range response {
		if res.Status == clamd.RES_FOUND {
			log.Printf("Virus detected in %s: %s", ref.ID, res.Description)
			status = models.ScanInfected

			if err := s.objects.RemoveObject(ctx, ref.ObjectName); err != nil {
				log.Println("Failed to delete infected file:", err)
				return
			}
		}
	}

	current, ok := s.store.GetFileReference(ref.ID)
	if !ok {
		return
	}
	current.ScanStatus = status
	if err := s.store.SaveFileReference(current); err != nil {
		log.Println("Failed to update scan status:", err)
	} else {
		log.Printf("Scan finished for %s: %s", ref.ID, status)
	}
}
